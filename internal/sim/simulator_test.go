package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
	"github.com/san-kum/rigidsim/internal/world"
)

// newDropWorld holds one unit ball falling freely from y = 100.
func newDropWorld() (*world.World, map[string]world.BodyID, error) {
	w, err := world.New(world.DefaultSettings())
	if err != nil {
		return nil, nil, err
	}
	ball, err := shape.NewSphere(0.5)
	if err != nil {
		return nil, nil, err
	}
	id, err := w.CreateBody(geom.Translation(mgl64.Vec3{0, 100, 0}), world.Dynamic)
	if err != nil {
		return nil, nil, err
	}
	if _, err := w.AddCollider(id, ball, geom.Identity(), world.DefaultMaterial()); err != nil {
		return nil, nil, err
	}
	return w, map[string]world.BodyID{"ball": id}, nil
}

func dropWorld(t *testing.T) (*world.World, map[string]world.BodyID) {
	t.Helper()
	w, bodies, err := newDropWorld()
	if err != nil {
		t.Fatalf("drop world: %v", err)
	}
	t.Cleanup(w.Destroy)
	return w, bodies
}

func TestSimulatorRun(t *testing.T) {
	w, bodies := dropWorld(t)
	sim := New(w, bodies)

	cfg := Config{Dt: 1.0 / 60, Duration: 1.0}
	result, err := sim.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.Frames) != 61 {
		t.Errorf("expected 61 frames, got %d", len(result.Frames))
	}
	if result.StepsTaken != 60 {
		t.Errorf("expected 60 steps, got %d", result.StepsTaken)
	}

	final, ok := result.Final().Body("ball")
	if !ok {
		t.Fatal("ball missing from final frame")
	}
	if math.Abs(final.LinearVelocity.Y()+9.81) > 1e-9 {
		t.Errorf("expected vy -9.81, got %.6f", final.LinearVelocity.Y())
	}
	// Semi-implicit Euler lands slightly below the exact parabola.
	want := 100 - 9.81*61/120
	if math.Abs(final.Position.Y()-want) > 1e-9 {
		t.Errorf("expected y %.6f, got %.6f", want, final.Position.Y())
	}
	if math.Abs(result.Final().Time-1.0) > 1e-9 {
		t.Errorf("expected final time 1.0, got %f", result.Final().Time)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	w, bodies := dropWorld(t)
	sim := New(w, bodies)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
		{"negative record interval", Config{Dt: 0.1, Duration: 1.0, RecordEvery: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), tt.cfg)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

type testMetric struct {
	count int
	sum   float64
}

func (t *testMetric) Name() string { return "test" }
func (t *testMetric) Observe(w *world.World, f *Frame) {
	t.count++
	t.sum += f.Bodies[0].Position.Y()
}
func (t *testMetric) Value() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}
func (t *testMetric) Reset() {
	t.count = 0
	t.sum = 0
}

type countObserver struct{ steps []uint64 }

func (c *countObserver) OnStep(f *Frame) { c.steps = append(c.steps, f.Step) }

func TestSimulatorMetricsAndObservers(t *testing.T) {
	w, bodies := dropWorld(t)
	sim := New(w, bodies)

	metric := &testMetric{}
	obs := &countObserver{}
	sim.AddMetric(metric)
	sim.AddObserver(obs)

	cfg := Config{Dt: 0.1, Duration: 1.0}
	result, err := sim.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}
	if metric.count != 10 {
		t.Errorf("expected 10 observations, got %d", metric.count)
	}
	if len(obs.steps) != 10 || obs.steps[0] != 1 || obs.steps[9] != 10 {
		t.Errorf("unexpected observed steps %v", obs.steps)
	}
}

func TestSimulatorRecordEvery(t *testing.T) {
	w, bodies := dropWorld(t)
	sim := New(w, bodies)

	result, err := sim.Run(context.Background(), Config{Dt: 1.0 / 60, Duration: 1.0, RecordEvery: 25})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	// Initial frame, steps 25 and 50, and the last step.
	steps := make([]uint64, len(result.Frames))
	for i, f := range result.Frames {
		steps[i] = f.Step
	}
	want := []uint64{0, 25, 50, 60}
	if len(steps) != len(want) {
		t.Fatalf("expected frames at %v, got %v", want, steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("expected frames at %v, got %v", want, steps)
			break
		}
	}
}

func TestSimulatorCancel(t *testing.T) {
	w, bodies := dropWorld(t)
	sim := New(w, bodies)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := sim.Run(ctx, Config{Dt: 0.01, Duration: 1.0})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.StepsTaken != 0 {
		t.Errorf("expected no steps, got %d", result.StepsTaken)
	}
}

func TestRunWithCallbackStops(t *testing.T) {
	w, bodies := dropWorld(t)
	sim := New(w, bodies)

	calls := 0
	err := sim.RunWithCallback(context.Background(), Config{Dt: 0.01, Duration: 1.0}, func(f *Frame) bool {
		calls++
		return calls < 5
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if calls != 5 {
		t.Errorf("expected 5 callbacks, got %d", calls)
	}
	if w.StepCount() != 4 {
		t.Errorf("expected 4 steps, got %d", w.StepCount())
	}
}

func TestEnsemble(t *testing.T) {
	build := func(seed int64) (*Simulator, error) {
		w, bodies, err := newDropWorld()
		if err != nil {
			return nil, err
		}
		return New(w, bodies), nil
	}
	e := NewEnsemble(build, 4, 10)

	results, err := e.Run(context.Background(), Config{Dt: 0.1, Duration: 0.5})
	if err != nil {
		t.Fatalf("ensemble failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, r := range results {
		if r.StepsTaken != 5 {
			t.Errorf("run %d: expected 5 steps, got %d", i, r.StepsTaken)
		}
	}
}
