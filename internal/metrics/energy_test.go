package metrics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
)

// ballWorld holds a static anchor and one ball of radius 0.5 at (0, 3, 0)
// moving at 2 m/s along X.
func ballWorld(t *testing.T) (*world.World, *world.Body) {
	t.Helper()
	w, err := world.New(world.DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Destroy)

	if _, err := w.CreateBody(geom.Identity(), world.Static); err != nil {
		t.Fatal(err)
	}
	s, err := shape.NewSphere(0.5)
	if err != nil {
		t.Fatal(err)
	}
	id, err := w.CreateBody(geom.Translation(mgl64.Vec3{0, 3, 0}), world.Dynamic)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.AddCollider(id, s, geom.Identity(), world.DefaultMaterial()); err != nil {
		t.Fatal(err)
	}
	b, _ := w.Body(id)
	b.SetLinearVelocity(mgl64.Vec3{2, 0, 0})
	return w, b
}

func TestKineticAndMechanicalEnergy(t *testing.T) {
	w, b := ballWorld(t)
	m := 4.0 / 3.0 * math.Pi * 0.125

	if math.Abs(b.Mass()-m) > 1e-12 {
		t.Fatalf("expected mass %f, got %f", m, b.Mass())
	}
	if got, want := KineticEnergy(w), 0.5*m*4; math.Abs(got-want) > 1e-9 {
		t.Errorf("expected kinetic energy %f, got %f", want, got)
	}
	if got, want := MechanicalEnergy(w), 0.5*m*4+m*9.81*3; math.Abs(got-want) > 1e-9 {
		t.Errorf("expected mechanical energy %f, got %f", want, got)
	}

	b.SetGravityEnabled(false)
	if got, want := MechanicalEnergy(w), 0.5*m*4; math.Abs(got-want) > 1e-9 {
		t.Errorf("expected mechanical energy without gravity %f, got %f", want, got)
	}
}

func TestEnergyReset(t *testing.T) {
	w, _ := ballWorld(t)
	m := NewEnergy()

	m.Observe(w, &sim.Frame{})
	if m.Value() == 0 {
		t.Error("expected non-zero energy")
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestEnergyDrift(t *testing.T) {
	w, b := ballWorld(t)
	d := NewEnergyDrift()

	d.Observe(w, &sim.Frame{})
	if d.Value() != 0 {
		t.Errorf("expected zero drift on first sample, got %f", d.Value())
	}

	e0 := MechanicalEnergy(w)
	b.SetLinearVelocity(mgl64.Vec3{})
	d.Observe(w, &sim.Frame{})
	want := math.Abs(MechanicalEnergy(w)-e0) / e0
	if math.Abs(d.Value()-want) > 1e-12 {
		t.Errorf("expected drift %f, got %f", want, d.Value())
	}

	d.Reset()
	if d.Value() != 0 {
		t.Error("expected zero drift after reset")
	}
}

func TestStepStatMetrics(t *testing.T) {
	frames := []sim.Frame{
		{Stats: world.StepStats{ContactPoints: 4, MaxPenetration: 0.01, AwakeBodies: 2, Residuals: []float64{1, 0.5}}},
		{Stats: world.StepStats{ContactPoints: 2, MaxPenetration: 0.03, AwakeBodies: 1, SleepingBodies: 1, Residuals: []float64{0.4, 0.1}}},
		{Stats: world.StepStats{ContactPoints: 0, MaxPenetration: 0.02, SleepingBodies: 4}},
	}

	tests := []struct {
		metric   sim.Metric
		expected float64
	}{
		{NewContacts(), 2},
		{NewPenetration(), 0.03},
		{NewResidual(), 0.2},
		{NewSleeping(), 1},
	}

	for _, tt := range tests {
		t.Run(tt.metric.Name(), func(t *testing.T) {
			for i := range frames {
				tt.metric.Observe(nil, &frames[i])
			}
			if got := tt.metric.Value(); math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
			tt.metric.Reset()
			if got := tt.metric.Value(); got != 0 {
				t.Errorf("expected 0 after reset, got %f", got)
			}
		})
	}
}

func TestDefaultNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Default() {
		if seen[m.Name()] {
			t.Errorf("duplicate metric %q", m.Name())
		}
		seen[m.Name()] = true
	}
}
