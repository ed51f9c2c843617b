// Package island partitions awake dynamic bodies into independently
// solvable groups and decides when a group may sleep.
package island

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamics"
)

// Sleep is the sleep bookkeeping of one body.
type Sleep struct {
	Sleeping   bool
	AllowSleep bool
	// Time spent below the velocity thresholds.
	Time float64
}

func (s *Sleep) Wake() {
	s.Sleeping = false
	s.Time = 0
}

// Member is a body as seen by the builder.
type Member struct {
	State *dynamics.State
	Sleep *Sleep
}

// Edge is a constraint between two members. An index of -1, or a member
// that is not dynamic, anchors the constraint without joining islands.
type Edge struct {
	A, B int
}

// Island is one connected component. All slices hold indices into the
// inputs of Build, in ascending order.
type Island struct {
	Bodies   []int
	Contacts []int
	Joints   []int
	Awake    bool
}

// Thresholds control when islands fall asleep.
type Thresholds struct {
	Linear          float64 // m/s
	Angular         float64 // rad/s
	TimeBeforeSleep float64 // s
}

// DefaultThresholds: 0.02 m/s, 3°/s, one second.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Linear:          0.02,
		Angular:         mgl64.DegToRad(3),
		TimeBeforeSleep: 1,
	}
}

// Builder reuses its union-find storage between steps.
type Builder struct {
	parent []int
	rank   []uint8
	slot   []int
}

func (b *Builder) reset(n int) {
	b.parent = slices.Grow(b.parent[:0], n)[:n]
	b.rank = slices.Grow(b.rank[:0], n)[:n]
	b.slot = slices.Grow(b.slot[:0], n)[:n]
	for i := range n {
		b.parent[i] = i
		b.rank[i] = 0
		b.slot[i] = -1
	}
}

func (b *Builder) find(i int) int {
	for b.parent[i] != i {
		b.parent[i] = b.parent[b.parent[i]]
		i = b.parent[i]
	}
	return i
}

func (b *Builder) union(i, j int) {
	ri, rj := b.find(i), b.find(j)
	if ri == rj {
		return
	}
	switch {
	case b.rank[ri] < b.rank[rj]:
		b.parent[ri] = rj
	case b.rank[ri] > b.rank[rj]:
		b.parent[rj] = ri
	default:
		b.parent[rj] = ri
		b.rank[ri]++
	}
}

func keyed(bodies []Member, i int) bool {
	return i >= 0 && i < len(bodies) && bodies[i].State.Kind == dynamics.Dynamic
}

// Build groups dynamic bodies connected through contacts and joints.
// Static and kinematic bodies never join islands. An island with any awake
// member is awake and wakes every member. Islands are ordered by their
// lowest body index; constraints keep their input order.
func (b *Builder) Build(bodies []Member, contacts, joints []Edge) []Island {
	b.reset(len(bodies))
	link := func(e Edge) {
		if keyed(bodies, e.A) && keyed(bodies, e.B) {
			b.union(e.A, e.B)
		}
	}
	for _, e := range contacts {
		link(e)
	}
	for _, e := range joints {
		link(e)
	}

	var islands []Island
	for i := range bodies {
		if !keyed(bodies, i) {
			continue
		}
		r := b.find(i)
		if b.slot[r] < 0 {
			b.slot[r] = len(islands)
			islands = append(islands, Island{})
		}
		is := &islands[b.slot[r]]
		is.Bodies = append(is.Bodies, i)
		if !bodies[i].Sleep.Sleeping {
			is.Awake = true
		}
	}

	owner := func(e Edge) int {
		switch {
		case keyed(bodies, e.A):
			return b.slot[b.find(e.A)]
		case keyed(bodies, e.B):
			return b.slot[b.find(e.B)]
		}
		return -1
	}
	for i, e := range contacts {
		if s := owner(e); s >= 0 {
			islands[s].Contacts = append(islands[s].Contacts, i)
		}
	}
	for i, e := range joints {
		if s := owner(e); s >= 0 {
			islands[s].Joints = append(islands[s].Joints, i)
		}
	}

	for _, is := range islands {
		if !is.Awake {
			continue
		}
		for _, i := range is.Bodies {
			if bodies[i].Sleep.Sleeping {
				bodies[i].Sleep.Wake()
			}
		}
	}
	return islands
}

// UpdateSleep accumulates sleep time for the bodies of an awake island and
// puts the island to sleep once every member has rested for
// TimeBeforeSleep. Sleeping bodies get exactly zero velocity. It reports
// whether the island fell asleep.
func UpdateSleep(is *Island, bodies []Member, dt float64, th Thresholds) bool {
	if !is.Awake || len(is.Bodies) == 0 {
		return false
	}
	linSq := th.Linear * th.Linear
	angSq := th.Angular * th.Angular
	minTime := math.Inf(1)
	for _, i := range is.Bodies {
		m := bodies[i]
		s := m.State
		if !m.Sleep.AllowSleep ||
			s.LinearVelocity.LenSqr() > linSq ||
			s.AngularVelocity.LenSqr() > angSq {
			m.Sleep.Time = 0
			minTime = 0
			continue
		}
		m.Sleep.Time += dt
		minTime = min(minTime, m.Sleep.Time)
	}
	if minTime < th.TimeBeforeSleep {
		return false
	}
	for _, i := range is.Bodies {
		m := bodies[i]
		m.Sleep.Sleeping = true
		m.Sleep.Time = 0
		m.State.LinearVelocity = mgl64.Vec3{}
		m.State.AngularVelocity = mgl64.Vec3{}
		m.State.SplitLinear = mgl64.Vec3{}
		m.State.SplitAngular = mgl64.Vec3{}
		m.State.ClearForces()
	}
	is.Awake = false
	return true
}
