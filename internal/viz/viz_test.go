package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
	"github.com/san-kum/rigidsim/internal/world"
)

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)

	if c.Grid[0][0] != 0x2801 {
		t.Errorf("expected dot 1 in cell 0, got %U", c.Grid[0][0])
	}
	if c.Grid[0][1] != 0x2880 {
		t.Errorf("expected dot 8 in cell 1, got %U", c.Grid[0][1])
	}

	c.Label(2, 0, 'x')
	if s := c.String(); s != "\u2801x\n" {
		t.Errorf("unexpected canvas %q", s)
	}

	c.Clear()
	if s := c.String(); s != "\u2800\u2800\n" {
		t.Errorf("expected blank canvas, got %q", s)
	}
}

func TestCanvasRenderInk(t *testing.T) {
	c := NewCanvas(3, 1)
	c.Pen = InkDynamic
	c.Set(0, 0)
	out := c.Render(CurrentTheme.Palette())
	if !strings.Contains(out, "⠁") {
		t.Errorf("expected dot in render, got %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected one row, got %q", out)
	}
}

func TestCameraProjectsTargetToCenter(t *testing.T) {
	cam := NewCamera()
	cam.Target = mgl64.Vec3{1, 2, 3}
	x, y, _, ok := cam.Project(cam.Target, 100, 60)
	if !ok || x != 50 || y != 30 {
		t.Errorf("expected (50, 30) visible, got (%d, %d) %v", x, y, ok)
	}

	_, _, _, ok = cam.Project(cam.Target.Add(cameraAxis(cam).Mul(cam.Distance)), 100, 60)
	if ok {
		t.Error("expected point at the eye to be hidden")
	}
}

// cameraAxis is the world direction that maps to view +Z.
func cameraAxis(c *Camera) mgl64.Vec3 {
	q := mgl64.QuatRotate(c.RotX, mgl64.Vec3{1, 0, 0}).Mul(mgl64.QuatRotate(c.RotY, mgl64.Vec3{0, 1, 0}))
	return q.Inverse().Rotate(mgl64.Vec3{0, 0, 1})
}

func TestWireframeShapes(t *testing.T) {
	box, _ := shape.NewBox(mgl64.Vec3{1, 1, 1})
	ball, _ := shape.NewSphere(1)
	pill, _ := shape.NewCapsule(0.5, 1)

	tests := []struct {
		name  string
		shape shape.Shape
		edges int
	}{
		{"box", box, 12},
		{"sphere", ball, 3 * ringSegments},
		{"capsule", pill, 2*ringSegments + 4},
	}

	for _, tt := range tests {
		w := NewWireframe()
		w.AddShape(tt.shape, geom.Identity())
		if len(w.Edges) != tt.edges {
			t.Errorf("%s: expected %d edges, got %d", tt.name, tt.edges, len(w.Edges))
		}
	}
}

func dropBuilder() (*world.World, map[string]world.BodyID, error) {
	w, err := world.New(world.DefaultSettings())
	if err != nil {
		return nil, nil, err
	}
	ground, _ := shape.NewBox(mgl64.Vec3{5, 0.5, 5})
	gid, _ := w.CreateBody(geom.Translation(mgl64.Vec3{0, -0.5, 0}), world.Static)
	if _, err := w.AddCollider(gid, ground, geom.Identity(), world.DefaultMaterial()); err != nil {
		return nil, nil, err
	}
	ball, _ := shape.NewSphere(0.5)
	bid, _ := w.CreateBody(geom.Translation(mgl64.Vec3{0, 3, 0}), world.Dynamic)
	if _, err := w.AddCollider(bid, ball, geom.Identity(), world.DefaultMaterial()); err != nil {
		return nil, nil, err
	}
	return w, map[string]world.BodyID{"ground": gid, "ball": bid}, nil
}

func press(m Model, key string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return next.(Model)
}

func tick(m Model, n int) Model {
	for range n {
		next, _ := m.Update(TickMsg{})
		m = next.(Model)
	}
	return m
}

func TestLiveModelSteps(t *testing.T) {
	m, err := NewModel("drop", dropBuilder, 1.0/60)
	if err != nil {
		t.Fatal(err)
	}

	m = tick(m, 30)
	if got := m.world().StepCount(); got != 30 {
		t.Errorf("expected 30 steps, got %d", got)
	}
	if len(m.history) != 31 {
		t.Errorf("expected 31 snapshots, got %d", len(m.history))
	}

	view := m.View()
	if !strings.Contains(view, "RUNNING") {
		t.Error("expected running status")
	}

	m = press(m, " ")
	m = tick(m, 5)
	if got := m.world().StepCount(); got != 30 {
		t.Errorf("expected paused world at 30 steps, got %d", got)
	}

	m = press(m, "[")
	if m.playHead != len(m.history)-2 {
		t.Errorf("expected play head one back, got %d of %d", m.playHead, len(m.history))
	}
	if !strings.Contains(m.View(), "REPLAY PAUSED") {
		t.Error("expected replay status")
	}

	m = press(m, "r")
	if m.world().StepCount() != 0 || len(m.history) != 1 || m.playHead != -1 {
		t.Error("expected reset to rebuild the world")
	}
}

func TestLiveModelKick(t *testing.T) {
	m, err := NewModel("drop", dropBuilder, 1.0/60)
	if err != nil {
		t.Fatal(err)
	}
	m = press(m, "b")
	b, _ := m.world().Body(m.bodies["ball"])
	if vy := b.LinearVelocity().Y(); vy < kickSpeed-1e-9 {
		t.Errorf("expected upward velocity %v, got %v", kickSpeed, vy)
	}
	g, _ := m.world().Body(m.bodies["ground"])
	if g.LinearVelocity().Len() != 0 {
		t.Error("expected ground to stay still")
	}
}

func TestNewInteractiveAppListsPresets(t *testing.T) {
	app := NewInteractiveApp()
	if len(app.presets) == 0 {
		t.Fatal("expected presets")
	}
	for _, p := range app.presets {
		if !strings.Contains(p, "/") {
			t.Errorf("expected family/name, got %q", p)
		}
	}
	if !strings.Contains(app.View(), "▸") {
		t.Error("expected menu view")
	}
}
