package analysis

import (
	"math"

	"github.com/san-kum/rigidsim/internal/sim"
)

// Separation returns, per frame, the largest distance between the same
// body in two runs. Frames are matched by index and only bodies present
// in both are compared.
func Separation(a, b []sim.Frame) []float64 {
	n := min(len(a), len(b))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		for _, ba := range a[i].Bodies {
			bb, ok := b[i].Body(ba.Name)
			if !ok {
				continue
			}
			out[i] = math.Max(out[i], ba.Position.Sub(bb.Position).Len())
		}
	}
	return out
}

// LyapunovExponent estimates the divergence rate of two runs started from
// nearby states as the least-squares slope of ln(separation) over time.
// A positive value means small differences in initial state grow
// exponentially. Frames with zero separation are ignored.
func LyapunovExponent(a, b []sim.Frame) (float64, error) {
	sep := Separation(a, b)
	var n, st, sy, stt, sty float64
	for i, d := range sep {
		if d <= 0 {
			continue
		}
		t := a[i].Time
		y := math.Log(d)
		n++
		st += t
		sy += y
		stt += t * t
		sty += t * y
	}
	den := n*stt - st*st
	if n < 2 || den == 0 {
		return 0, ErrShortSeries
	}
	return (n*sty - st*sy) / den, nil
}
