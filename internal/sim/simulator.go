package sim

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/san-kum/rigidsim/internal/world"
)

type tracked struct {
	name string
	id   world.BodyID
}

// Simulator steps a world at a fixed rate and records the named bodies.
type Simulator struct {
	world     *world.World
	bodies    []tracked
	metrics   []Metric
	observers []Observer
}

// New tracks the given bodies, recorded in name order.
func New(w *world.World, bodies map[string]world.BodyID) *Simulator {
	s := &Simulator{
		world:     w,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
	for _, name := range slices.Sorted(maps.Keys(bodies)) {
		s.bodies = append(s.bodies, tracked{name: name, id: bodies[name]})
	}
	return s
}

func (s *Simulator) World() *world.World { return s.world }

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Names returns the tracked body names in recording order.
func (s *Simulator) Names() []string {
	out := make([]string, len(s.bodies))
	for i, b := range s.bodies {
		out[i] = b.name
	}
	return out
}

// Capture records the tracked bodies as they are now. Removed bodies are
// skipped.
func (s *Simulator) Capture() Frame {
	f := Frame{
		Step:   s.world.StepCount(),
		Bodies: make([]BodyState, 0, len(s.bodies)),
		Stats:  s.world.Stats(),
	}
	for _, tb := range s.bodies {
		b, ok := s.world.Body(tb.id)
		if !ok {
			continue
		}
		f.Bodies = append(f.Bodies, BodyState{
			Name:            tb.name,
			Kind:            b.Kind(),
			Position:        b.Position(),
			Orientation:     b.Orientation(),
			LinearVelocity:  b.LinearVelocity(),
			AngularVelocity: b.AngularVelocity(),
			Sleeping:        b.IsSleeping(),
		})
	}
	return f
}

func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := cfg.Steps()
	every := max(cfg.RecordEvery, 1)
	result := &Result{
		Frames:  make([]Frame, 0, steps/every+2),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	t := 0.0
	first := s.Capture()
	result.Frames = append(result.Frames, first)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if err := s.world.Update(cfg.Dt); err != nil {
			result.Errors = append(result.Errors, err)
			return result, err
		}
		t += cfg.Dt
		result.StepsTaken++

		f := s.Capture()
		f.Time = t
		if cfg.ValidateState && !f.IsValid() {
			result.Errors = append(result.Errors, SimError{Time: t, Step: i, Message: "invalid state (NaN/Inf)"})
			break
		}

		for _, m := range s.metrics {
			m.Observe(s.world, &f)
		}
		for _, obs := range s.observers {
			obs.OnStep(&f)
		}

		if (i+1)%every == 0 || i == steps-1 {
			result.Frames = append(result.Frames, f)
		}
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive, got %f", cfg.Duration)
	}
	if cfg.RecordEvery < 0 {
		return fmt.Errorf("record interval must not be negative, got %d", cfg.RecordEvery)
	}
	return nil
}

// RunWithCallback steps until Duration is covered or callback returns false.
// Nothing is recorded.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg Config, callback func(*Frame) bool) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}

	t := 0.0
	for i := 0; i < cfg.Steps(); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f := s.Capture()
		f.Time = t
		if !callback(&f) {
			return nil
		}

		if err := s.world.Update(cfg.Dt); err != nil {
			return err
		}
		t += cfg.Dt

		if cfg.ValidateState && !s.Capture().IsValid() {
			return fmt.Errorf("invalid state at t=%.4f", t)
		}
	}

	return nil
}
