package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
)

// oscillator records a body swinging along X at freq Hz.
func oscillator(freq, dt float64, n int) []sim.Frame {
	frames := make([]sim.Frame, n)
	w := 2 * math.Pi * freq
	for i := range frames {
		t := float64(i) * dt
		frames[i] = sim.Frame{
			Step: uint64(i),
			Time: t,
			Bodies: []sim.BodyState{{
				Name:           "bob",
				Kind:           world.Dynamic,
				Position:       mgl64.Vec3{math.Sin(w * t), 1, 0},
				LinearVelocity: mgl64.Vec3{w * math.Cos(w*t), 0, 0},
			}},
		}
	}
	return frames
}

func TestDominantFrequency(t *testing.T) {
	tests := []struct {
		freq float64
		dt   float64
		n    int
	}{
		{2, 0.01, 500},
		{0.5, 1.0 / 60, 600},
		{5, 0.001, 1000},
	}

	for _, tt := range tests {
		xs := Series(oscillator(tt.freq, tt.dt, tt.n), "bob", Position, 0)
		got, err := DominantFrequency(xs, tt.dt)
		if err != nil {
			t.Fatalf("freq %v: %v", tt.freq, err)
		}
		resolution := 1 / (float64(tt.n) * tt.dt)
		if math.Abs(got-tt.freq) > resolution {
			t.Errorf("expected %v Hz, got %v", tt.freq, got)
		}
	}
}

func TestDominantFrequencyShort(t *testing.T) {
	if _, err := DominantFrequency([]float64{1, 2}, 0.01); err != ErrShortSeries {
		t.Errorf("expected ErrShortSeries, got %v", err)
	}
	f, err := DominantFrequency([]float64{3, 3, 3, 3, 3, 3}, 0.01)
	if err != nil || f != 0 {
		t.Errorf("expected 0 for constant series, got %v (%v)", f, err)
	}
}

func TestSeries(t *testing.T) {
	frames := oscillator(1, 0.1, 4)
	ys := Series(frames, "bob", Position, 1)
	if len(ys) != 4 || ys[2] != 1 {
		t.Errorf("expected constant height 1, got %v", ys)
	}
	if len(Series(frames, "bob", Position, 3)) != 0 {
		t.Error("expected empty series for bad axis")
	}
	if len(Series(frames, "ghost", Position, 0)) != 0 {
		t.Error("expected empty series for unknown body")
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    Quantity
		wantErr bool
	}{
		{"position", Position, false},
		{"", Position, false},
		{"velocity", LinearVelocity, false},
		{"omega", AngularVelocity, false},
		{"torque", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseQuantity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: expected error %v, got %v", tt.in, tt.wantErr, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("%q: expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestSettleTime(t *testing.T) {
	speeds := []float64{5, 2, 0.001, 0.5, 0.001, 0, 0}
	frames := make([]sim.Frame, len(speeds))
	for i, v := range speeds {
		frames[i] = sim.Frame{
			Time: float64(i),
			Bodies: []sim.BodyState{
				{Name: "box", Kind: world.Dynamic, LinearVelocity: mgl64.Vec3{0, v, 0}},
				{Name: "ground", Kind: world.Static},
			},
		}
	}

	got, ok := SettleTime(frames, "box", 0.01)
	if !ok || got != 4 {
		t.Errorf("expected settle at t=4, got %v (%v)", got, ok)
	}

	got, ok = SceneSettleTime(frames, 0.01)
	if !ok || got != 4 {
		t.Errorf("expected scene settle at t=4, got %v (%v)", got, ok)
	}

	frames[len(frames)-1].Bodies[0].LinearVelocity = mgl64.Vec3{1, 0, 0}
	if _, ok := SettleTime(frames, "box", 0.01); ok {
		t.Error("expected no settle when the last frame moves")
	}

	frames[len(frames)-1].Bodies[0].Sleeping = true
	if got, ok := SettleTime(frames, "box", 0.01); !ok || got != 4 {
		t.Errorf("expected sleeping body to count as settled at t=4, got %v (%v)", got, ok)
	}
}

func TestPhasePortrait(t *testing.T) {
	frames := oscillator(1, 0.01, 100)
	p := PhasePortrait(frames, "bob", 0)
	if p == nil || len(p.Points) != 100 {
		t.Fatal("expected 100 phase points")
	}
	// x² + (v/ω)² = 1 for a unit oscillator
	w := 2 * math.Pi
	for i, pt := range p.Points {
		r := pt.X*pt.X + (pt.Y/w)*(pt.Y/w)
		if math.Abs(r-1) > 1e-9 {
			t.Fatalf("point %d off the unit ellipse: %v", i, r)
		}
	}

	ascii := PhasePortraitToASCII(p, 40, 20)
	if lines := strings.Count(ascii, "\n"); lines != 20 {
		t.Errorf("expected 20 lines, got %d", lines)
	}
	if !strings.Contains(ascii, "•") {
		t.Error("expected plotted points")
	}

	if PhasePortrait(frames, "ghost", 0) != nil {
		t.Error("expected nil portrait for unknown body")
	}
}

func TestPoincareSection(t *testing.T) {
	// three full periods, crossing x=0 upward at t = 1, 2 (t = 0 has no predecessor)
	frames := oscillator(1, 0.01, 300)
	section := GeneratePoincareSection(frames, "bob", 0, 0, 0)
	if section == nil {
		t.Fatal("expected section")
	}
	if len(section.Points) != 2 {
		t.Errorf("expected 2 crossings, got %d", len(section.Points))
	}
	for _, p := range section.Points {
		if p.Y <= 0 {
			t.Errorf("expected positive velocity at upward crossing, got %v", p.Y)
		}
	}
	if s := PoincareSectionToASCII(&PoincareSection{}, 10, 5); s != "No crossings detected" {
		t.Errorf("unexpected empty output %q", s)
	}
}

func TestLyapunovExponent(t *testing.T) {
	const rate = 0.7
	a := make([]sim.Frame, 50)
	b := make([]sim.Frame, 50)
	for i := range a {
		tm := float64(i) * 0.1
		a[i] = sim.Frame{Time: tm, Bodies: []sim.BodyState{{Name: "p"}}}
		b[i] = sim.Frame{Time: tm, Bodies: []sim.BodyState{{
			Name:     "p",
			Position: mgl64.Vec3{1e-6 * math.Exp(rate*tm), 0, 0},
		}}}
	}

	got, err := LyapunovExponent(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-rate) > 1e-6 {
		t.Errorf("expected %v, got %v", rate, got)
	}

	if _, err := LyapunovExponent(a, a); err != ErrShortSeries {
		t.Errorf("expected ErrShortSeries for identical runs, got %v", err)
	}
}
