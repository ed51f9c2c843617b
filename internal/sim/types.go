package sim

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/world"
)

// BodyState is one body as recorded in a frame. Position is the body origin.
type BodyState struct {
	Name            string
	Kind            world.BodyKind
	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
	Sleeping        bool
}

func (b BodyState) IsValid() bool {
	for _, v := range []mgl64.Vec3{b.Position, b.LinearVelocity, b.AngularVelocity} {
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}

// Frame is the state of every tracked body after a step.
type Frame struct {
	Step   uint64
	Time   float64
	Bodies []BodyState
	Stats  world.StepStats
}

func (f *Frame) IsValid() bool {
	for _, b := range f.Bodies {
		if !b.IsValid() {
			return false
		}
	}
	return true
}

// Body returns the recorded state of the named body.
func (f *Frame) Body(name string) (BodyState, bool) {
	for _, b := range f.Bodies {
		if b.Name == name {
			return b, true
		}
	}
	return BodyState{}, false
}

type Metric interface {
	Name() string
	Observe(w *world.World, f *Frame)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(f *Frame)
}

type Config struct {
	Dt       float64
	Duration float64
	Seed     int64
	// RecordEvery keeps one frame in every RecordEvery steps. Zero or one
	// keeps them all.
	RecordEvery   int
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            1.0 / 60,
		Duration:      10.0,
		RecordEvery:   1,
		ValidateState: true,
	}
}

// Steps is the number of fixed steps that cover Duration.
func (c Config) Steps() int {
	return int(math.Round(c.Duration / c.Dt))
}

type Result struct {
	Frames     []Frame
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

// Final returns the last recorded frame.
func (r *Result) Final() *Frame {
	if len(r.Frames) == 0 {
		return nil
	}
	return &r.Frames[len(r.Frames)-1]
}

// Series returns one column of the recorded frames for a body, e.g. the
// height of its origin.
func (r *Result) Series(name string, fn func(BodyState) float64) []float64 {
	out := make([]float64, 0, len(r.Frames))
	for i := range r.Frames {
		if b, ok := r.Frames[i].Body(name); ok {
			out = append(out, fn(b))
		}
	}
	return out
}

// Times returns the time of every recorded frame.
func (r *Result) Times() []float64 {
	out := make([]float64, len(r.Frames))
	for i := range r.Frames {
		out[i] = r.Frames[i].Time
	}
	return out
}

type SimError struct {
	Time    float64
	Step    int
	Message string
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Message)
}
