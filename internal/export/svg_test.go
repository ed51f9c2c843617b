package export

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
)

func TestWorldToSVG(t *testing.T) {
	w, err := world.New(world.DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Destroy()

	ground, _ := shape.NewBox(mgl64.Vec3{5, 0.5, 5})
	gid, _ := w.CreateBody(geom.Translation(mgl64.Vec3{0, -0.5, 0}), world.Static)
	if _, err := w.AddCollider(gid, ground, geom.Identity(), world.DefaultMaterial()); err != nil {
		t.Fatal(err)
	}
	ball, _ := shape.NewSphere(0.5)
	bid, _ := w.CreateBody(geom.Translation(mgl64.Vec3{0, 2, 0}), world.Dynamic)
	if _, err := w.AddCollider(bid, ball, geom.Identity(), world.DefaultMaterial()); err != nil {
		t.Fatal(err)
	}
	pill, _ := shape.NewCapsule(0.25, 0.5)
	kid, _ := w.CreateBody(geom.Translation(mgl64.Vec3{2, 1, 0}), world.Kinematic)
	if _, err := w.AddCollider(kid, pill, geom.Identity(), world.DefaultMaterial()); err != nil {
		t.Fatal(err)
	}

	svg := WorldToSVG(w, 400, 300)

	if !strings.HasPrefix(svg, "<?xml") {
		t.Error("missing xml header")
	}
	if !strings.HasSuffix(svg, "</svg>") {
		t.Error("missing closing svg tag")
	}
	if n := strings.Count(svg, "<circle"); n != 1 {
		t.Errorf("expected 1 circle, got %d", n)
	}
	if n := strings.Count(svg, "<polygon"); n != 1 {
		t.Errorf("expected 1 polygon, got %d", n)
	}
	if n := strings.Count(svg, "<line"); n != 1 {
		t.Errorf("expected 1 line, got %d", n)
	}
	if !strings.Contains(svg, dynamicColor) || !strings.Contains(svg, staticColor) || !strings.Contains(svg, kinematicColor) {
		t.Error("expected one color per body kind")
	}
}

func TestHull2D(t *testing.T) {
	pts := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0.5, 0.5}, {1, 0.5}}
	h := hull2D(pts)
	if len(h) != 4 {
		t.Fatalf("expected 4 hull points, got %d: %v", len(h), h)
	}
	for _, p := range h {
		if p == (Point{0.5, 0.5}) {
			t.Error("interior point on hull")
		}
	}
}

func TestTrajectoryToSVG(t *testing.T) {
	frames := []sim.Frame{
		{Bodies: []sim.BodyState{{Name: "ball", Position: mgl64.Vec3{0, 2, 0}}}},
		{Bodies: []sim.BodyState{{Name: "ball", Position: mgl64.Vec3{1, 1, 0}}}},
		{Bodies: []sim.BodyState{{Name: "ball", Position: mgl64.Vec3{2, 0, 0}}}},
	}

	points := BodyTrajectory(frames, "ball")
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if len(BodyTrajectory(frames, "missing")) != 0 {
		t.Error("expected no points for unknown body")
	}

	svg := TrajectoryToSVG(points, 200, 200, "#ff0000")
	if !strings.Contains(svg, `stroke="#ff0000"`) {
		t.Error("missing stroke color")
	}
	if n := strings.Count(svg, " L"); n != 2 {
		t.Errorf("expected 2 line segments, got %d", n)
	}

	if TrajectoryToSVG(points[:1], 200, 200, "#fff") != "" {
		t.Error("expected empty output for a single point")
	}
}
