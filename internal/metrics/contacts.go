package metrics

import (
	"math"

	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/world"
)

// Contacts is the mean number of contact points per step.
type Contacts struct {
	name    string
	sum     float64
	samples int
}

func NewContacts() *Contacts {
	return &Contacts{name: "contacts"}
}

func (c *Contacts) Name() string { return c.name }

func (c *Contacts) Observe(w *world.World, f *sim.Frame) {
	c.sum += float64(f.Stats.ContactPoints)
	c.samples++
}

func (c *Contacts) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *Contacts) Reset() {
	c.sum = 0
	c.samples = 0
}

// Penetration is the deepest overlap seen over a run.
type Penetration struct {
	name string
	max  float64
}

func NewPenetration() *Penetration {
	return &Penetration{name: "max_penetration"}
}

func (p *Penetration) Name() string { return p.name }

func (p *Penetration) Observe(w *world.World, f *sim.Frame) {
	p.max = math.Max(p.max, f.Stats.MaxPenetration)
}

func (p *Penetration) Value() float64 { return p.max }

func (p *Penetration) Reset() { p.max = 0 }

// Residual is the mean velocity-solver residual of the last iteration.
// A value that does not shrink with more iterations means the solver is
// not converging.
type Residual struct {
	name    string
	sum     float64
	samples int
}

func NewResidual() *Residual {
	return &Residual{name: "solver_residual"}
}

func (r *Residual) Name() string { return r.name }

func (r *Residual) Observe(w *world.World, f *sim.Frame) {
	if n := len(f.Stats.Residuals); n > 0 {
		r.sum += f.Stats.Residuals[n-1]
	}
	r.samples++
}

func (r *Residual) Value() float64 {
	if r.samples == 0 {
		return 0
	}
	return r.sum / float64(r.samples)
}

func (r *Residual) Reset() {
	r.sum = 0
	r.samples = 0
}
