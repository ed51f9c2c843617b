package world

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/contact"
)

// ContactPoint is a contact point as reported to listeners.
type ContactPoint struct {
	Position      mgl64.Vec3
	Normal        mgl64.Vec3
	Separation    float64
	NormalImpulse float64
}

// ContactEvent reports a pair of colliders starting, continuing or ending
// contact. Normals point from ColliderA to ColliderB.
type ContactEvent struct {
	Type      contact.Event
	ColliderA ColliderID
	ColliderB ColliderID
	BodyA     BodyID
	BodyB     BodyID
	Points    []ContactPoint
}

// OnContact registers fn to receive every contact event. Events of a step
// are delivered after the step completes, ordered by collider pair.
func (w *World) OnContact(fn func(ContactEvent)) {
	w.listeners = append(w.listeners, fn)
}

// makeEvent describes a cached pair. Points are filled from the manifold
// when it exists.
func (w *World) makeEvent(k contact.Key, typ contact.Event) ContactEvent {
	ca, cb := w.colliderAt[k.A], w.colliderAt[k.B]
	ev := ContactEvent{
		Type:      typ,
		ColliderA: ca.id,
		ColliderB: cb.id,
		BodyA:     ca.body.id,
		BodyB:     cb.body.id,
	}
	if typ == contact.EventEnd {
		return ev
	}
	if m := w.cache.Get(k); m != nil {
		ev.Points = make([]ContactPoint, m.Count)
		for i, p := range m.Slice() {
			ev.Points[i] = ContactPoint{
				Position:      p.PositionA.Add(p.PositionB).Mul(0.5),
				Normal:        p.Normal,
				Separation:    p.Separation,
				NormalImpulse: p.NormalImpulse,
			}
		}
	}
	return ev
}

// Contacts returns every touching pair as Stay events, ordered by pair.
func (w *World) Contacts() []ContactEvent {
	keys := w.cache.Keys()
	out := make([]ContactEvent, 0, len(keys))
	for _, k := range keys {
		out = append(out, w.makeEvent(k, contact.EventStay))
	}
	return out
}

func (w *World) dispatch(events []ContactEvent) {
	if len(w.listeners) == 0 {
		return
	}
	for _, ev := range events {
		for _, fn := range w.listeners {
			fn(ev)
		}
	}
}

// StepStats describes one step.
type StepStats struct {
	Step           uint64
	Pairs          int
	Manifolds      int
	ContactPoints  int
	Islands        int
	AwakeBodies    int
	SleepingBodies int
	// Residuals[i] sums the solver residual of iteration i over islands.
	Residuals      []float64
	MaxPenetration float64
	GJKFallbacks   int64
	EPAFallbacks   int64
	FrameBytes     int64
	Phases         [PhaseCount]time.Duration
}
