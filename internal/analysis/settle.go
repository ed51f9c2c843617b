package analysis

import (
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
)

// SettleTime returns the earliest frame time after which the body's linear
// and angular speeds stay below tol, or false if it never settles. A body
// reported asleep counts as settled.
func SettleTime(frames []sim.Frame, name string, tol float64) (float64, bool) {
	settled := -1
	for i := range frames {
		b, ok := frames[i].Body(name)
		if !ok {
			continue
		}
		if b.Sleeping || (b.LinearVelocity.Len() < tol && b.AngularVelocity.Len() < tol) {
			if settled < 0 {
				settled = i
			}
		} else {
			settled = -1
		}
	}
	if settled < 0 {
		return 0, false
	}
	return frames[settled].Time, true
}

// SceneSettleTime is the latest settle time over every dynamic body.
func SceneSettleTime(frames []sim.Frame, tol float64) (float64, bool) {
	if len(frames) == 0 {
		return 0, false
	}
	latest := 0.0
	for _, b := range frames[len(frames)-1].Bodies {
		if b.Kind != world.Dynamic {
			continue
		}
		t, ok := SettleTime(frames, b.Name, tol)
		if !ok {
			return 0, false
		}
		latest = max(latest, t)
	}
	return latest, true
}
