package dynamics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func unitBox() *State {
	// 1 kg cube with 1 m sides: I = m/6 on the diagonal.
	inv := mgl64.Diag3(mgl64.Vec3{6, 6, 6})
	s := &State{
		Kind:            Dynamic,
		Orientation:     mgl64.QuatIdent(),
		InvMass:         1,
		InvInertiaLocal: inv,
		GravityScale:    1,
	}
	s.UpdateInertia()
	return s
}

func TestFreeFallOneStep(t *testing.T) {
	s := unitBox()
	s.Position = mgl64.Vec3{0, 5, 0}
	dt := 1.0 / 60

	IntegrateVelocity(s, mgl64.Vec3{0, -9.81, 0}, dt)
	IntegratePosition(s, dt)

	wantV := mgl64.Vec3{0, -0.1635, 0}
	if !s.LinearVelocity.ApproxEqualThreshold(wantV, 1e-9) {
		t.Errorf("expected velocity %v, got %v", wantV, s.LinearVelocity)
	}
	wantX := mgl64.Vec3{0, 5 - 0.1635/60, 0}
	if !s.Position.ApproxEqualThreshold(wantX, 1e-12) {
		t.Errorf("expected position %v, got %v", wantX, s.Position)
	}
}

func TestIntegrateVelocity(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*State)
		wantV mgl64.Vec3
		wantW mgl64.Vec3
	}{
		{
			name:  "static ignores gravity",
			setup: func(s *State) { s.Kind = Static },
		},
		{
			name:  "kinematic keeps its velocity",
			setup: func(s *State) { s.Kind = Kinematic; s.LinearVelocity = mgl64.Vec3{1, 0, 0} },
			wantV: mgl64.Vec3{1, 0, 0},
		},
		{
			name:  "gravity disabled",
			setup: func(s *State) { s.GravityScale = 0 },
		},
		{
			name:  "force",
			setup: func(s *State) { s.GravityScale = 0; s.Force = mgl64.Vec3{2, 0, 0} },
			wantV: mgl64.Vec3{2, 0, 0},
		},
		{
			name:  "torque",
			setup: func(s *State) { s.GravityScale = 0; s.Torque = mgl64.Vec3{0, 1, 0} },
			wantW: mgl64.Vec3{0, 6, 0},
		},
		{
			name: "linear damping",
			setup: func(s *State) {
				s.GravityScale = 0
				s.LinearVelocity = mgl64.Vec3{3, 0, 0}
				s.LinearDamping = 2
			},
			wantV: mgl64.Vec3{1.5, 0, 0},
		},
		{
			name: "angular damping",
			setup: func(s *State) {
				s.GravityScale = 0
				s.AngularVelocity = mgl64.Vec3{0, 0, 4}
				s.AngularDamping = 1
			},
			wantW: mgl64.Vec3{0, 0, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := unitBox()
			tt.setup(s)
			IntegrateVelocity(s, mgl64.Vec3{0, -10, 0}, 1)
			if !s.LinearVelocity.ApproxEqual(tt.wantV) {
				t.Errorf("expected v %v, got %v", tt.wantV, s.LinearVelocity)
			}
			if !s.AngularVelocity.ApproxEqual(tt.wantW) {
				t.Errorf("expected w %v, got %v", tt.wantW, s.AngularVelocity)
			}
		})
	}
}

func TestIntegratePositionRotation(t *testing.T) {
	s := unitBox()
	s.AngularVelocity = mgl64.Vec3{0, math.Pi / 2, 0}
	IntegratePosition(s, 1)

	got := s.Orientation.Rotate(mgl64.Vec3{1, 0, 0})
	want := mgl64.Vec3{0, 0, -1}
	if !got.ApproxEqualThreshold(want, 1e-12) {
		t.Errorf("expected quarter turn to map x to %v, got %v", want, got)
	}
	if math.Abs(s.Orientation.Len()-1) > 1e-12 {
		t.Errorf("orientation not normalized: %v", s.Orientation.Len())
	}
}

func TestSplitVelocitiesAreTransient(t *testing.T) {
	s := unitBox()
	s.SplitLinear = mgl64.Vec3{0, 1, 0}
	s.SplitAngular = mgl64.Vec3{1, 0, 0}
	IntegratePosition(s, 0.5)

	if !s.Position.ApproxEqual(mgl64.Vec3{0, 0.5, 0}) {
		t.Errorf("expected split velocity to move the body, got %v", s.Position)
	}
	if s.LinearVelocity != (mgl64.Vec3{}) || s.AngularVelocity != (mgl64.Vec3{}) {
		t.Errorf("split velocity leaked into real velocity: %v %v", s.LinearVelocity, s.AngularVelocity)
	}
	if s.SplitLinear != (mgl64.Vec3{}) || s.SplitAngular != (mgl64.Vec3{}) {
		t.Error("split velocities should be cleared")
	}
}

func TestWorldInverseInertia(t *testing.T) {
	inv := mgl64.Diag3(mgl64.Vec3{1, 2, 3})
	q := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
	got := WorldInverseInertia(q, inv)

	// A quarter turn about z swaps the x and y axes.
	want := mgl64.Diag3(mgl64.Vec3{2, 1, 3})
	if !got.ApproxEqualThreshold(want, 1e-12) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestMassProperties(t *testing.T) {
	var mp MassProperties
	point := mgl64.Mat3{}
	mp.Add(1, mgl64.Vec3{1, 0, 0}, point)
	mp.Add(1, mgl64.Vec3{-1, 0, 0}, point)

	if mp.Mass != 2 || !mp.Center.ApproxEqual(mgl64.Vec3{}) {
		t.Fatalf("expected mass 2 at origin, got %v at %v", mp.Mass, mp.Center)
	}
	want := mgl64.Diag3(mgl64.Vec3{0, 2, 2})
	if !mp.Inertia.ApproxEqualThreshold(want, 1e-12) {
		t.Errorf("expected dumbbell inertia %v, got %v", want, mp.Inertia)
	}

	invMass, invI := mp.Inverse()
	if invMass != 0.5 {
		t.Errorf("expected inverse mass 0.5, got %v", invMass)
	}
	if invI.At(0, 0) != 0 || math.Abs(invI.At(1, 1)-0.5) > 1e-12 {
		t.Errorf("singular inertia should invert per axis, got %v", invI)
	}

	var empty MassProperties
	if m, _ := empty.Inverse(); m != 0 {
		t.Errorf("massless body should have zero inverse mass, got %v", m)
	}
}

func TestKineticEnergy(t *testing.T) {
	s := unitBox()
	s.LinearVelocity = mgl64.Vec3{2, 0, 0}
	s.AngularVelocity = mgl64.Vec3{0, 6, 0}
	// 0.5·1·4 + 0.5·(1/6)·36
	if got := s.KineticEnergy(); math.Abs(got-5) > 1e-9 {
		t.Errorf("expected 5, got %v", got)
	}
	s.Kind = Static
	if got := s.KineticEnergy(); got != 0 {
		t.Errorf("static body should have no energy, got %v", got)
	}
}
