package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
)

func TestDefaultScene(t *testing.T) {
	sc := DefaultScene()

	if sc.Name != "drop/ball" {
		t.Errorf("expected scene drop/ball, got %s", sc.Name)
	}
	if sc.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if sc.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if sc.Steps() != 300 {
		t.Errorf("expected 300 steps, got %d", sc.Steps())
	}
}

func TestGetPreset(t *testing.T) {
	sc := GetPreset("stack", "small")
	if sc == nil {
		t.Fatal("expected preset, got nil")
	}
	if len(sc.Bodies) != 4 {
		t.Errorf("expected ground and 3 boxes, got %d bodies", len(sc.Bodies))
	}

	// Presets hand out copies.
	sc.Bodies[1].Position[1] = 99
	sc.Dt = 1
	again := GetPreset("stack", "small")
	if again.Bodies[1].Position[1] == 99 || again.Dt == 1 {
		t.Error("editing a preset copy changed the preset")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if sc := GetPreset("stack", "nonexistent"); sc != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if sc := GetPreset("nonexistent", "small"); sc != nil {
		t.Error("expected nil for nonexistent family")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("drop")
	want := []string{"ball", "bounce", "box", "capsule"}
	if len(presets) != len(want) {
		t.Fatalf("expected %v, got %v", want, presets)
	}
	for i := range want {
		if presets[i] != want[i] {
			t.Errorf("expected %v, got %v", want, presets)
		}
	}

	if presets := ListPresets("nonexistent"); presets != nil {
		t.Error("expected nil for nonexistent family")
	}
}

func TestEveryPresetBuilds(t *testing.T) {
	for _, family := range Families() {
		for _, name := range ListPresets(family) {
			t.Run(family+"/"+name, func(t *testing.T) {
				sc := GetPreset(family, name)
				w, ids, err := sc.Build(logr.Discard())
				if err != nil {
					t.Fatalf("build: %v", err)
				}
				defer w.Destroy()

				if len(ids) != len(sc.Bodies) {
					t.Errorf("expected %d bodies, got %d", len(sc.Bodies), len(ids))
				}
				if got := len(w.Joints()); got != len(sc.Joints) {
					t.Errorf("expected %d joints, got %d", len(sc.Joints), got)
				}
				for i := 0; i < 10; i++ {
					if err := w.Update(sc.Dt); err != nil {
						t.Fatalf("step %d: %v", i, err)
					}
				}
			})
		}
	}
}

func TestBuildAppliesBodySettings(t *testing.T) {
	sc := &Scene{
		Dt:       DefaultDt,
		Duration: 1,
		World:    WorldConfig{Gravity: Vec{0, -1, 0}, Workers: 2, AllowSleep: ptr(false)},
		Bodies: []BodyConfig{{
			Name:           "b",
			Position:       Vec{1, 2, 3},
			Rotation:       Vec{0, 90, 0},
			LinearVelocity: Vec{1, 0, 0},
			LinearDamping:  0.5,
			Mass:           4,
			Gravity:        ptr(false),
			Colliders: []ColliderConfig{{
				Shape: "box", HalfExtents: Vec{1, 1, 1}, Friction: ptr(0.9), Category: 2,
			}},
		}},
	}

	w, ids, err := sc.Build(logr.Discard())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer w.Destroy()

	set := w.Settings()
	if set.Gravity.Y() != -1 || set.Workers != 2 || set.AllowSleep {
		t.Errorf("world settings not applied: %+v", set)
	}
	b, ok := w.Body(ids["b"])
	if !ok {
		t.Fatal("body b missing")
	}
	if b.Name != "b" {
		t.Errorf("expected name b, got %q", b.Name)
	}
	if p := b.Position(); math.Abs(p.X()-1) > 1e-12 || math.Abs(p.Y()-2) > 1e-12 || math.Abs(p.Z()-3) > 1e-12 {
		t.Errorf("expected position (1,2,3), got %v", p)
	}
	if fwd := b.Orientation().Rotate(Vec{1, 0, 0}.mgl()); math.Abs(fwd.Z()+1) > 1e-9 {
		t.Errorf("expected 90 degree yaw to map +X to -Z, got %v", fwd)
	}
	if b.Mass() != 4 || b.LinearDamping() != 0.5 || b.GravityEnabled() {
		t.Errorf("body settings not applied: mass %f damping %f gravity %v", b.Mass(), b.LinearDamping(), b.GravityEnabled())
	}
	if b.LinearVelocity().X() != 1 {
		t.Errorf("expected vx 1, got %f", b.LinearVelocity().X())
	}
	c, _ := w.Collider(b.Colliders()[0])
	if c.Material().Friction != 0.9 || c.Filter().Category != 2 {
		t.Errorf("collider settings not applied: %+v %+v", c.Material(), c.Filter())
	}
}

func TestJitterIsSeeded(t *testing.T) {
	positions := func(seed int64) []float64 {
		sc := GetPreset("pile", "mixed")
		sc.Seed = seed
		w, ids, err := sc.Build(logr.Discard())
		if err != nil {
			t.Fatal(err)
		}
		defer w.Destroy()
		b, _ := w.Body(ids["ball0"])
		p := b.Position()
		return p[:]
	}

	a, b, c := positions(1), positions(1), positions(2)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave %v and %v", a, b)
		}
	}
	if a[0] == c[0] && a[1] == c[1] && a[2] == c[2] {
		t.Errorf("different seeds gave the same position %v", a)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Scene { return GetPreset("pendulum", "single") }
	tests := []struct {
		name string
		mod  func(*Scene)
	}{
		{"zero dt", func(s *Scene) { s.Dt = 0 }},
		{"negative duration", func(s *Scene) { s.Duration = -1 }},
		{"negative jitter", func(s *Scene) { s.Jitter = -1 }},
		{"unnamed body", func(s *Scene) { s.Bodies[0].Name = "" }},
		{"duplicate body", func(s *Scene) { s.Bodies[1].Name = s.Bodies[0].Name }},
		{"unknown kind", func(s *Scene) { s.Bodies[0].Kind = "floating" }},
		{"unknown joint body", func(s *Scene) { s.Joints[0].BodyB = "ghost" }},
		{"unknown joint type", func(s *Scene) { s.Joints[0].Type = "rope" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := base()
			tt.mod(sc)
			if err := sc.Validate(); !errors.Is(err, ErrInvalidScene) {
				t.Errorf("expected ErrInvalidScene, got %v", err)
			}
		})
	}

	if err := base().Validate(); err != nil {
		t.Errorf("preset should validate: %v", err)
	}
}

func TestBuildRejectsBadShape(t *testing.T) {
	sc := GetPreset("drop", "ball")
	sc.Bodies[1].Colliders[0].Radius = -1
	if _, _, err := sc.Build(logr.Discard()); err == nil {
		t.Error("expected error for negative radius")
	}

	sc = GetPreset("drop", "ball")
	sc.Bodies[1].Colliders[0].Shape = "torus"
	if _, _, err := sc.Build(logr.Discard()); !errors.Is(err, ErrInvalidScene) {
		t.Errorf("expected ErrInvalidScene for unknown shape, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	sc := GetPreset("hinge", "motor")
	if err := Save(path, sc); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Name != sc.Name || len(got.Bodies) != len(sc.Bodies) || len(got.Joints) != 1 {
		t.Fatalf("round trip lost data: %+v", got)
	}
	if *got.Joints[0].Upper != 90 || got.Joints[0].MaxMotor != 50 {
		t.Errorf("joint fields lost: %+v", got.Joints[0])
	}
}

func TestParseFillsDefaults(t *testing.T) {
	sc, err := Parse([]byte("name: tiny\nbodies:\n  - name: b\n    position: [0, 1, 0]\n    colliders:\n      - shape: sphere\n        radius: 0.5\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if sc.Dt != DefaultDt || sc.Duration != DefaultDuration {
		t.Errorf("expected default timing, got dt %f duration %f", sc.Dt, sc.Duration)
	}
	if sc.World.Gravity[1] != -9.81 {
		t.Errorf("expected default gravity, got %v", sc.World.Gravity)
	}

	if _, err := Parse([]byte("bodies: [")); !errors.Is(err, ErrInvalidScene) {
		t.Errorf("expected ErrInvalidScene, got %v", err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestSetParam(t *testing.T) {
	sc := DefaultScene()

	if err := sc.SetParam("velocity_iterations", 11.6); err != nil {
		t.Fatal(err)
	}
	if sc.World.VelocityIterations != 12 {
		t.Errorf("expected 12 velocity iterations, got %d", sc.World.VelocityIterations)
	}
	if err := sc.SetParam("gravity", -3); err != nil {
		t.Fatal(err)
	}
	if sc.World.Gravity[1] != -3 {
		t.Errorf("expected gravity -3, got %v", sc.World.Gravity)
	}
	if err := sc.SetParam("warp", 1); !errors.Is(err, ErrInvalidScene) {
		t.Errorf("expected ErrInvalidScene, got %v", err)
	}
	if len(ParamNames()) != 6 {
		t.Errorf("expected 6 tunable parameters, got %v", ParamNames())
	}
}
