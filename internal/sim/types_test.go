package sim

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestBodyState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state BodyState
		valid bool
	}{
		{"zero", BodyState{}, true},
		{"normal", BodyState{Position: mgl64.Vec3{1, 2, 3}, LinearVelocity: mgl64.Vec3{0, -1, 0}}, true},
		{"NaN position", BodyState{Position: mgl64.Vec3{1, math.NaN(), 0}}, false},
		{"+Inf velocity", BodyState{LinearVelocity: mgl64.Vec3{math.Inf(1), 0, 0}}, false},
		{"-Inf spin", BodyState{AngularVelocity: mgl64.Vec3{0, 0, math.Inf(-1)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
			f := Frame{Bodies: []BodyState{{}, tt.state}}
			if got := f.IsValid(); got != tt.valid {
				t.Errorf("Frame.IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestConfigSteps(t *testing.T) {
	tests := []struct {
		cfg      Config
		expected int
	}{
		{Config{Dt: 0.1, Duration: 1.0}, 10},
		{Config{Dt: 1.0 / 60, Duration: 1.0}, 60},
		{Config{Dt: 0.3, Duration: 1.0}, 3},
		{DefaultConfig(), 600},
	}

	for _, tt := range tests {
		if got := tt.cfg.Steps(); got != tt.expected {
			t.Errorf("Steps(%+v) = %d, want %d", tt.cfg, got, tt.expected)
		}
	}
}

func TestResultSeries(t *testing.T) {
	r := &Result{Frames: []Frame{
		{Time: 0, Bodies: []BodyState{{Name: "a", Position: mgl64.Vec3{0, 1, 0}}, {Name: "b"}}},
		{Time: 0.5, Bodies: []BodyState{{Name: "a", Position: mgl64.Vec3{0, 2, 0}}}},
		{Time: 1, Bodies: []BodyState{{Name: "b"}}},
	}}

	ys := r.Series("a", func(b BodyState) float64 { return b.Position.Y() })
	if len(ys) != 2 || ys[0] != 1 || ys[1] != 2 {
		t.Errorf("Series(a) = %v, want [1 2]", ys)
	}
	if got := r.Times(); len(got) != 3 || got[2] != 1 {
		t.Errorf("Times() = %v", got)
	}
	if r.Final().Time != 1 {
		t.Errorf("Final().Time = %v, want 1", r.Final().Time)
	}
	if (&Result{}).Final() != nil {
		t.Error("expected nil final frame for empty result")
	}
}

func TestSimError(t *testing.T) {
	err := SimError{Time: 1.5, Step: 150, Message: "test error"}
	expected := "step 150 (t=1.5000): test error"
	if err.Error() != expected {
		t.Errorf("SimError.Error() = %q, want %q", err.Error(), expected)
	}
}
