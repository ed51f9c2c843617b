package metrics

import (
	"math"

	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
)

// KineticEnergy sums the kinetic energy of every dynamic body.
func KineticEnergy(w *world.World) float64 {
	total := 0.0
	for _, id := range w.Bodies() {
		if b, ok := w.Body(id); ok && b.Kind() == world.Dynamic {
			total += b.KineticEnergy()
		}
	}
	return total
}

// MechanicalEnergy is kinetic plus gravitational potential energy, with the
// potential measured from the world origin.
func MechanicalEnergy(w *world.World) float64 {
	g := w.Settings().Gravity
	total := 0.0
	for _, id := range w.Bodies() {
		b, ok := w.Body(id)
		if !ok || b.Kind() != world.Dynamic {
			continue
		}
		total += b.KineticEnergy()
		if b.GravityEnabled() {
			total -= b.Mass() * g.Dot(b.CenterOfMass())
		}
	}
	return total
}

// Energy is the mean kinetic energy over a run.
type Energy struct {
	name        string
	samples     int
	totalEnergy float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(w *world.World, f *sim.Frame) {
	e.totalEnergy += KineticEnergy(w)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest relative change of mechanical energy from the
// first observation. Contacts and damping dissipate energy, so any growth
// points at an unstable scene.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(w *world.World, f *sim.Frame) {
	energy := MechanicalEnergy(w)

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
