package world

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/alloc"
	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/island"
	"github.com/san-kum/rigidsim/internal/shape"
)

// Body is a rigid body owned by a world. Pointers stay valid until the body
// is removed.
type Body struct {
	world     *World
	id        BodyID
	state     dynamics.State
	sleep     island.Sleep
	colliders []*Collider
	joints    []*Joint

	mass         float64
	massOverride float64
	gravity      bool
	index        int

	Name     string
	UserData any
}

// CreateBody adds a body with no colliders at t. Dynamic bodies get unit
// mass until colliders are attached.
func (w *World) CreateBody(t geom.Transform, kind BodyKind) (BodyID, error) {
	if err := w.alive(); err != nil {
		return BodyID{}, err
	}
	if !geom.IsFinite(t.Position) || t.Orientation.Len() < 1e-9 || kind > Dynamic {
		return BodyID{}, fmt.Errorf("create body at %v: %w", t.Position, dynamo.ErrInvalidSettings)
	}
	if err := w.alloc.Heap.Alloc(alloc.SizeOf[Body]()); err != nil {
		return BodyID{}, fmt.Errorf("create body: %w", err)
	}
	b := &Body{
		world:   w,
		gravity: true,
		sleep:   island.Sleep{AllowSleep: true},
		state: dynamics.State{
			Kind:         kind,
			Position:     t.Position,
			Orientation:  t.Orientation.Normalize(),
			GravityScale: 1,
		},
	}
	b.updateMass()
	b.id = BodyID{w.bodies.Insert(b)}
	w.log.V(3).Info("body created", "body", b.id, "kind", kind)
	return b.id, nil
}

// RemoveBody removes a body with its colliders and joints.
func (w *World) RemoveBody(id BodyID) error {
	b, err := w.body(id)
	if err != nil {
		return err
	}
	for len(b.joints) > 0 {
		_ = w.RemoveJoint(b.joints[len(b.joints)-1].id)
	}
	for len(b.colliders) > 0 {
		_ = w.RemoveCollider(b.colliders[len(b.colliders)-1].id)
	}
	w.bodies.Remove(id.Handle)
	w.alloc.Heap.Free(alloc.SizeOf[Body]())
	b.world = nil
	return nil
}

// SetBodyKind changes the kind of a body. A body carrying a concave or
// triangle collider cannot become dynamic, and no joint may be left between
// two non-dynamic bodies.
func (w *World) SetBodyKind(id BodyID, kind BodyKind) error {
	b, err := w.body(id)
	if err != nil {
		return err
	}
	if kind > Dynamic {
		return fmt.Errorf("body %v to kind %d: %w", id, kind, dynamo.ErrInvalidKindTransition)
	}
	if b.state.Kind == kind {
		return nil
	}
	if kind == Dynamic {
		for _, c := range b.colliders {
			if !shape.HasMass(c.shape) {
				return fmt.Errorf("body %v with %s collider to dynamic: %w", id, c.shape.Kind(), dynamo.ErrInvalidKindTransition)
			}
		}
	} else {
		for _, j := range b.joints {
			other := j.a
			if other == b {
				other = j.b
			}
			if other.state.Kind != Dynamic {
				return fmt.Errorf("body %v to %s would leave joint %v without a dynamic body: %w", id, kind, j.id, dynamo.ErrInvalidKindTransition)
			}
		}
	}

	b.state.Kind = kind
	if kind == Static {
		b.state.LinearVelocity = mgl64.Vec3{}
		b.state.AngularVelocity = mgl64.Vec3{}
	}
	b.state.ClearForces()
	b.updateMass()
	b.sleep.Wake()
	w.wakeTouching(b)
	return nil
}

// wakeTouching wakes every body sharing a manifold with b.
func (w *World) wakeTouching(b *Body) {
	for _, c := range b.colliders {
		for _, k := range w.cache.KeysOf(int(c.id.Index)) {
			w.colliderAt[k.A].body.wake()
			w.colliderAt[k.B].body.wake()
		}
	}
}

// updateMass recomputes mass, center of mass and inertia from the colliders,
// keeping the body origin in place.
func (b *Body) updateMass() {
	s := &b.state
	origin := s.Origin()
	if s.Kind != dynamics.Dynamic {
		s.InvMass = 0
		s.InvInertiaLocal = mgl64.Mat3{}
		s.LocalCenter = mgl64.Vec3{}
		b.mass = 0
	} else {
		var mp dynamics.MassProperties
		for _, c := range b.colliders {
			if !shape.HasMass(c.shape) {
				continue
			}
			m := c.material.Density * c.shape.Volume()
			center := c.local.Apply(c.shape.Centroid())
			mp.Add(m, center, dynamics.RotateInertia(c.local.Orientation, c.shape.Inertia(m)))
		}
		if mp.Mass <= 0 {
			mp.Add(1, mgl64.Vec3{}, mgl64.Ident3())
		}
		if b.massOverride > 0 {
			scale := b.massOverride / mp.Mass
			mp.Mass = b.massOverride
			mp.Inertia = mp.Inertia.Mul(scale)
		}
		s.InvMass, s.InvInertiaLocal = mp.Inverse()
		s.LocalCenter = mp.Center
		b.mass = mp.Mass
	}
	s.Position = origin.Add(s.Orientation.Rotate(s.LocalCenter))
	s.UpdateInertia()
}

// sync moves the colliders of b to its current transform and refits their
// proxies.
func (b *Body) sync(displacement mgl64.Vec3) error {
	t := b.Transform()
	for _, c := range b.colliders {
		c.place(t)
		if _, err := b.world.bp.Update(c.proxy, c.aabb, displacement); err != nil {
			return fmt.Errorf("collider %v: %w", c.id, err)
		}
	}
	return nil
}

func (b *Body) wake() {
	if b.state.Kind == dynamics.Dynamic {
		b.sleep.Wake()
	}
}

// active bodies drive collision tests; pairs of inactive bodies keep their
// manifolds untouched.
func (b *Body) active() bool {
	switch b.state.Kind {
	case dynamics.Dynamic:
		return !b.sleep.Sleeping
	case dynamics.Kinematic:
		return b.state.LinearVelocity != (mgl64.Vec3{}) || b.state.AngularVelocity != (mgl64.Vec3{})
	}
	return false
}

func (b *Body) ID() BodyID { return b.id }

func (b *Body) Kind() BodyKind { return b.state.Kind }

// Transform is the placement of the body origin.
func (b *Body) Transform() geom.Transform {
	return geom.Transform{Position: b.state.Origin(), Orientation: b.state.Orientation}
}

// SetTransform teleports the body and wakes it.
func (b *Body) SetTransform(t geom.Transform) error {
	if !geom.IsFinite(t.Position) || t.Orientation.Len() < 1e-9 {
		return fmt.Errorf("set transform %v: %w", t.Position, dynamo.ErrInvalidSettings)
	}
	b.state.Orientation = t.Orientation.Normalize()
	b.state.Position = t.Position.Add(b.state.Orientation.Rotate(b.state.LocalCenter))
	b.state.UpdateInertia()
	b.wake()
	return b.sync(mgl64.Vec3{})
}

// Position is the world position of the body origin.
func (b *Body) Position() mgl64.Vec3 { return b.state.Origin() }

func (b *Body) Orientation() mgl64.Quat { return b.state.Orientation }

// CenterOfMass is the world center of mass.
func (b *Body) CenterOfMass() mgl64.Vec3 { return b.state.Position }

func (b *Body) LinearVelocity() mgl64.Vec3 { return b.state.LinearVelocity }

func (b *Body) AngularVelocity() mgl64.Vec3 { return b.state.AngularVelocity }

// SetLinearVelocity is ignored for static bodies.
func (b *Body) SetLinearVelocity(v mgl64.Vec3) {
	if b.state.Kind == dynamics.Static {
		return
	}
	b.state.LinearVelocity = v
	b.wake()
}

func (b *Body) SetAngularVelocity(v mgl64.Vec3) {
	if b.state.Kind == dynamics.Static {
		return
	}
	b.state.AngularVelocity = v
	b.wake()
}

// ApplyForce accumulates a world force at a world point until the next step.
func (b *Body) ApplyForce(f, point mgl64.Vec3) {
	if b.state.Kind != dynamics.Dynamic {
		return
	}
	b.state.Force = b.state.Force.Add(f)
	b.state.Torque = b.state.Torque.Add(point.Sub(b.state.Position).Cross(f))
	b.wake()
}

// ApplyCentralForce accumulates a force at the center of mass.
func (b *Body) ApplyCentralForce(f mgl64.Vec3) {
	if b.state.Kind != dynamics.Dynamic {
		return
	}
	b.state.Force = b.state.Force.Add(f)
	b.wake()
}

func (b *Body) ApplyTorque(t mgl64.Vec3) {
	if b.state.Kind != dynamics.Dynamic {
		return
	}
	b.state.Torque = b.state.Torque.Add(t)
	b.wake()
}

// ApplyImpulse changes the velocities at once by an impulse at a world point.
func (b *Body) ApplyImpulse(impulse, point mgl64.Vec3) {
	if b.state.Kind != dynamics.Dynamic {
		return
	}
	b.state.ApplyImpulse(impulse, point)
	b.wake()
}

func (b *Body) IsSleeping() bool { return b.sleep.Sleeping }

// Wake makes a dynamic body, and next step its island, active.
func (b *Body) Wake() { b.wake() }

// Sleep puts a dynamic body to sleep at once with zero velocity. It is a
// no-op when sleeping is not allowed.
func (b *Body) Sleep() {
	if b.state.Kind != dynamics.Dynamic || !b.sleep.AllowSleep {
		return
	}
	b.sleep.Sleeping = true
	b.sleep.Time = 0
	b.state.LinearVelocity = mgl64.Vec3{}
	b.state.AngularVelocity = mgl64.Vec3{}
	b.state.ClearForces()
}

func (b *Body) AllowSleep() bool { return b.sleep.AllowSleep }

// SetAllowSleep false also wakes the body.
func (b *Body) SetAllowSleep(allow bool) {
	b.sleep.AllowSleep = allow
	if !allow {
		b.wake()
	}
}

// Mass is zero for non-dynamic bodies.
func (b *Body) Mass() float64 { return b.mass }

// SetMass overrides the mass computed from colliders, scaling the inertia
// to match. A non-positive mass restores the computed value.
func (b *Body) SetMass(m float64) {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return
	}
	b.massOverride = max(m, 0)
	b.updateMass()
	if err := b.sync(mgl64.Vec3{}); err != nil {
		b.world.log.Error(err, "refit after mass change", "body", b.id)
	}
}

func (b *Body) LinearDamping() float64 { return b.state.LinearDamping }

func (b *Body) AngularDamping() float64 { return b.state.AngularDamping }

// SetLinearDamping clamps negative values to zero.
func (b *Body) SetLinearDamping(c float64) { b.state.LinearDamping = max(c, 0) }

func (b *Body) SetAngularDamping(c float64) { b.state.AngularDamping = max(c, 0) }

func (b *Body) GravityEnabled() bool { return b.gravity }

func (b *Body) SetGravityEnabled(on bool) {
	b.gravity = on
	b.state.GravityScale = 0
	if on {
		b.state.GravityScale = 1
	}
	b.wake()
}

// KineticEnergy of the body in joules.
func (b *Body) KineticEnergy() float64 { return b.state.KineticEnergy() }

// Colliders returns the collider ids in attachment order.
func (b *Body) Colliders() []ColliderID {
	out := make([]ColliderID, len(b.colliders))
	for i, c := range b.colliders {
		out[i] = c.id
	}
	return out
}

func (b *Body) removeCollider(c *Collider) {
	b.colliders = slices.DeleteFunc(b.colliders, func(o *Collider) bool { return o == c })
}

func (b *Body) removeJoint(j *Joint) {
	b.joints = slices.DeleteFunc(b.joints, func(o *Joint) bool { return o == j })
}
