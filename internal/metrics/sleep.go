package metrics

import (
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
)

// Sleeping is the share of dynamic bodies asleep at the last observation.
type Sleeping struct {
	name  string
	ratio float64
}

func NewSleeping() *Sleeping {
	return &Sleeping{name: "sleep_ratio"}
}

func (s *Sleeping) Name() string { return s.name }

func (s *Sleeping) Observe(w *world.World, f *sim.Frame) {
	total := f.Stats.AwakeBodies + f.Stats.SleepingBodies
	if total == 0 {
		s.ratio = 0
		return
	}
	s.ratio = float64(f.Stats.SleepingBodies) / float64(total)
}

func (s *Sleeping) Value() float64 { return s.ratio }

func (s *Sleeping) Reset() { s.ratio = 0 }

// Default returns the metrics recorded for every run.
func Default() []sim.Metric {
	return []sim.Metric{
		NewEnergy(),
		NewEnergyDrift(),
		NewContacts(),
		NewPenetration(),
		NewResidual(),
		NewSleeping(),
	}
}
