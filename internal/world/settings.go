package world

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-logr/logr"

	"github.com/san-kum/rigidsim/internal/alloc"
	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/contact"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/island"
	"github.com/san-kum/rigidsim/internal/narrowphase"
	"github.com/san-kum/rigidsim/internal/solver"
)

// Phase names a stage of the step pipeline.
type Phase uint8

const (
	PhaseBroadPhase Phase = iota
	PhaseNarrowPhase
	PhaseContacts
	PhaseIslands
	PhaseSolve
	PhaseIntegrate
	PhaseRefit

	PhaseCount
)

var phaseNames = [PhaseCount]string{
	"broadphase", "narrowphase", "contacts", "islands", "solve", "integrate", "refit",
}

func (p Phase) String() string {
	if p < PhaseCount {
		return phaseNames[p]
	}
	return "unknown"
}

// Settings configure a world. Start from DefaultSettings.
type Settings struct {
	Gravity            mgl64.Vec3
	VelocityIterations int
	PositionIterations int
	// Workers bounds the goroutines of the narrow phase and the island
	// solve. Zero means GOMAXPROCS.
	Workers int

	TouchSlop              float64
	BroadPhaseMargin       float64
	DisplacementMultiplier float64
	PersistentThreshold    float64

	AllowSleep bool
	Sleep      island.Thresholds

	Solver solver.Config
	Alloc  alloc.Config

	Logger logr.Logger
	// PhaseHook observes the duration of every phase. It must not touch
	// the world.
	PhaseHook func(Phase, time.Duration)
}

func DefaultSettings() Settings {
	return Settings{
		Gravity:                mgl64.Vec3{0, -9.81, 0},
		VelocityIterations:     10,
		PositionIterations:     5,
		TouchSlop:              narrowphase.DefaultTouchSlop,
		BroadPhaseMargin:       broadphase.DefaultMargin,
		DisplacementMultiplier: broadphase.DefaultDisplacementMultiplier,
		PersistentThreshold:    contact.DefaultPersistentThreshold,
		AllowSleep:             true,
		Sleep:                  island.DefaultThresholds(),
		Solver:                 solver.DefaultConfig(),
		Logger:                 logr.Discard(),
	}
}

// Validate reports the first setting out of range.
func (s *Settings) Validate() error {
	nonNeg := func(name string, v float64) error {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s = %g: %w", name, v, dynamo.ErrInvalidSettings)
		}
		return nil
	}
	if !geom.IsFinite(s.Gravity) {
		return fmt.Errorf("gravity %v: %w", s.Gravity, dynamo.ErrInvalidSettings)
	}
	if s.VelocityIterations < 1 {
		return fmt.Errorf("velocity iterations %d: %w", s.VelocityIterations, dynamo.ErrInvalidSettings)
	}
	if s.PositionIterations < 0 {
		return fmt.Errorf("position iterations %d: %w", s.PositionIterations, dynamo.ErrInvalidSettings)
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers %d: %w", s.Workers, dynamo.ErrInvalidSettings)
	}
	checks := []struct {
		name string
		v    float64
	}{
		{"touch slop", s.TouchSlop},
		{"broad phase margin", s.BroadPhaseMargin},
		{"displacement multiplier", s.DisplacementMultiplier},
		{"persistent threshold", s.PersistentThreshold},
		{"sleep linear threshold", s.Sleep.Linear},
		{"sleep angular threshold", s.Sleep.Angular},
		{"restitution threshold", s.Solver.RestitutionThreshold},
		{"linear slop", s.Solver.LinearSlop},
		{"max correction velocity", s.Solver.MaxCorrectionVelocity},
	}
	for _, c := range checks {
		if err := nonNeg(c.name, c.v); err != nil {
			return err
		}
	}
	if s.PersistentThreshold == 0 {
		return fmt.Errorf("persistent threshold must be positive: %w", dynamo.ErrInvalidSettings)
	}
	if !(s.Sleep.TimeBeforeSleep > 0) || math.IsInf(s.Sleep.TimeBeforeSleep, 0) {
		return fmt.Errorf("time before sleep %g: %w", s.Sleep.TimeBeforeSleep, dynamo.ErrInvalidSettings)
	}
	if !(s.Solver.Baumgarte >= 0 && s.Solver.Baumgarte <= 1) {
		return fmt.Errorf("baumgarte %g outside [0, 1]: %w", s.Solver.Baumgarte, dynamo.ErrInvalidSettings)
	}
	if s.Alloc.FrameCapacity < 0 || s.Alloc.HeapLimit < 0 {
		return fmt.Errorf("allocator budgets %+v: %w", s.Alloc, dynamo.ErrInvalidSettings)
	}
	return nil
}
