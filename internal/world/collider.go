package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/alloc"
	"github.com/san-kum/rigidsim/internal/contact"
	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
)

// Material is the surface and bulk of a collider. Density is in kg/m³.
type Material struct {
	Friction    float64
	Restitution float64
	Density     float64
}

func DefaultMaterial() Material {
	return Material{Friction: 0.3, Restitution: 0, Density: 1}
}

func (m Material) validate() error {
	ok := m.Friction >= 0 && !math.IsInf(m.Friction, 0) &&
		m.Restitution >= 0 && m.Restitution <= 1 &&
		m.Density > 0 && !math.IsInf(m.Density, 0)
	if !ok {
		return fmt.Errorf("material %+v: %w", m, dynamo.ErrInvalidShape)
	}
	return nil
}

// combine mixes two materials: friction is the geometric mean, restitution
// the larger one.
func combine(a, b Material) (friction, restitution float64) {
	return math.Sqrt(a.Friction * b.Friction), max(a.Restitution, b.Restitution)
}

// Filter decides which colliders may touch: both must list the other's
// category in their mask.
type Filter struct {
	Category uint32
	Mask     uint32
}

func DefaultFilter() Filter { return Filter{Category: 1, Mask: math.MaxUint32} }

func (f Filter) accepts(o Filter) bool {
	return f.Category&o.Mask != 0 && o.Category&f.Mask != 0
}

// Collider attaches a shape to a body.
type Collider struct {
	id       ColliderID
	body     *Body
	shape    shape.Shape
	local    geom.Transform
	material Material
	filter   Filter
	proxy    int

	transform geom.Transform
	aabb      geom.AABB

	UserData any
}

func (c *Collider) place(body geom.Transform) {
	c.transform = body.Mul(c.local)
	c.aabb = c.shape.LocalBounds().Transformed(c.transform)
}

func (c *Collider) ID() ColliderID { return c.id }

func (c *Collider) Body() BodyID { return c.body.id }

func (c *Collider) Shape() shape.Shape { return c.shape }

// Local is the placement of the shape relative to the body origin.
func (c *Collider) Local() geom.Transform { return c.local }

// Transform is the world placement of the shape.
func (c *Collider) Transform() geom.Transform { return c.transform }

// AABB is the tight world box.
func (c *Collider) AABB() geom.AABB { return c.aabb }

func (c *Collider) Material() Material { return c.material }

func (c *Collider) Filter() Filter { return c.filter }

// AddCollider attaches s to a body at the local transform. Concave and
// triangle shapes carry no mass and only go on static or kinematic bodies.
func (w *World) AddCollider(id BodyID, s shape.Shape, local geom.Transform, m Material) (ColliderID, error) {
	b, err := w.body(id)
	if err != nil {
		return ColliderID{}, err
	}
	if s == nil {
		return ColliderID{}, fmt.Errorf("nil shape: %w", dynamo.ErrInvalidShape)
	}
	if b.state.Kind == dynamics.Dynamic && !shape.HasMass(s) {
		return ColliderID{}, fmt.Errorf("%s collider on dynamic body %v: %w", s.Kind(), id, dynamo.ErrInvalidShape)
	}
	if err := m.validate(); err != nil {
		return ColliderID{}, err
	}
	if local.Orientation.Len() < 1e-9 || !geom.IsFinite(local.Position) {
		return ColliderID{}, fmt.Errorf("collider transform %v: %w", local.Position, dynamo.ErrInvalidShape)
	}
	local.Orientation = local.Orientation.Normalize()

	size := alloc.SizeOf[Collider]()
	if err := w.alloc.Heap.Alloc(size); err != nil {
		return ColliderID{}, fmt.Errorf("add collider: %w", err)
	}
	c := &Collider{body: b, shape: s, local: local, material: m, filter: DefaultFilter()}
	c.place(b.Transform())

	c.id = ColliderID{w.colliders.Insert(c)}
	proxy, err := w.bp.Insert(int(c.id.Index), c.aabb)
	if err != nil {
		w.colliders.Remove(c.id.Handle)
		w.alloc.Heap.Free(size)
		return ColliderID{}, fmt.Errorf("add collider: %w", err)
	}
	c.proxy = proxy
	for int(c.id.Index) >= len(w.colliderAt) {
		w.colliderAt = append(w.colliderAt, nil)
	}
	w.colliderAt[c.id.Index] = c

	b.colliders = append(b.colliders, c)
	b.updateMass()
	b.wake()
	return c.id, nil
}

// RemoveCollider detaches a collider. Its touching pairs end; the End
// events are delivered by the next Update.
func (w *World) RemoveCollider(id ColliderID) error {
	if err := w.alive(); err != nil {
		return err
	}
	c, ok := w.Collider(id)
	if !ok {
		return fmt.Errorf("collider %v: %w", id, dynamo.ErrInvalidHandle)
	}
	idx := int(id.Index)
	for _, k := range w.cache.KeysOf(idx) {
		ev := w.makeEvent(k, contact.EventEnd)
		if w.retire(k) == contact.EventEnd {
			w.pending = append(w.pending, ev)
		}
	}
	for _, p := range w.bp.PairsOf(c.proxy) {
		delete(w.pairCaches, contact.Key{A: p.A, B: p.B})
	}
	w.bp.Remove(c.proxy)
	w.colliderAt[idx] = nil
	w.colliders.Remove(id.Handle)
	w.alloc.Heap.Free(alloc.SizeOf[Collider]())

	b := c.body
	b.removeCollider(c)
	b.updateMass()
	b.wake()
	if err := b.sync(mgl64.Vec3{}); err != nil {
		w.log.Error(err, "refit after collider removal", "body", b.id)
	}
	return nil
}

// SetFilter changes the collision filter of a collider.
func (w *World) SetFilter(id ColliderID, f Filter) error {
	c, ok := w.Collider(id)
	if !ok {
		return fmt.Errorf("collider %v: %w", id, dynamo.ErrInvalidHandle)
	}
	c.filter = f
	c.body.wake()
	return nil
}

// SetMaterial changes the material and recomputes the body mass.
func (w *World) SetMaterial(id ColliderID, m Material) error {
	c, ok := w.Collider(id)
	if !ok {
		return fmt.Errorf("collider %v: %w", id, dynamo.ErrInvalidHandle)
	}
	if err := m.validate(); err != nil {
		return err
	}
	c.material = m
	c.body.updateMass()
	return c.body.sync(mgl64.Vec3{})
}
