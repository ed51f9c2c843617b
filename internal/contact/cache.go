// Package contact keeps contact manifolds alive across steps so the solver
// can warm start from last step's impulses.
package contact

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/alloc"
	"github.com/san-kum/rigidsim/internal/narrowphase"
)

// DefaultPersistentThreshold is the distance within which a new point is
// considered the same as an old one.
const DefaultPersistentThreshold = 0.03

// Key identifies an unordered collider pair with A < B.
type Key struct {
	A, B int
}

func MakeKey(a, b int) Key {
	if a > b {
		a, b = b, a
	}
	return Key{A: a, B: b}
}

func (k Key) compare(o Key) int {
	if k.A != o.A {
		return k.A - o.A
	}
	return k.B - o.B
}

// Point is a narrow-phase point plus the impulses accumulated on it.
type Point struct {
	narrowphase.Point
	NormalImpulse  float64
	TangentImpulse [2]float64
}

// Manifold is the persistent contact state of one pair.
type Manifold struct {
	Key    Key
	Points [narrowphase.MaxPoints]Point
	Count  int
	Normal mgl64.Vec3
	// Combined material, filled in by the world.
	Friction    float64
	Restitution float64
	// Age counts consecutive steps with points.
	Age int
}

// Slice returns the active points.
func (m *Manifold) Slice() []Point { return m.Points[:m.Count] }

type Event uint8

const (
	EventNone Event = iota
	EventBegin
	EventStay
	EventEnd
)

func (e Event) String() string {
	switch e {
	case EventBegin:
		return "begin"
	case EventStay:
		return "stay"
	case EventEnd:
		return "end"
	}
	return "none"
}

// Cache maps pairs to manifolds. It is not safe for concurrent use.
type Cache struct {
	PersistentThreshold float64
	manifolds           map[Key]*Manifold
	byCollider          map[int]map[Key]struct{}
	pool                *alloc.Pool[Manifold]
}

func NewCache(threshold float64) *Cache {
	return &Cache{
		PersistentThreshold: threshold,
		manifolds:           make(map[Key]*Manifold),
		byCollider:          make(map[int]map[Key]struct{}),
		pool:                alloc.NewPool(func(m *Manifold) { *m = Manifold{} }),
	}
}

// Update merges a fresh narrow-phase manifold into the cached one. Points
// matching an old point keep its impulses; unmatched old points are dropped.
// An empty manifold removes the pair.
func (c *Cache) Update(key Key, m *narrowphase.Manifold) Event {
	old := c.manifolds[key]
	if m == nil || m.Count == 0 {
		return c.Retire(key)
	}
	if old == nil {
		fresh := c.pool.Get()
		fresh.Key = key
		fresh.Normal = m.Normal
		fresh.Count = m.Count
		for i, p := range m.Slice() {
			fresh.Points[i] = Point{Point: p}
		}
		fresh.Age = 1
		c.manifolds[key] = fresh
		c.link(key.A, key)
		c.link(key.B, key)
		return EventBegin
	}

	var next [narrowphase.MaxPoints]Point
	var used [narrowphase.MaxPoints]bool
	for i, p := range m.Slice() {
		next[i] = Point{Point: p}
		if j := c.match(old, &p, &used); j >= 0 {
			used[j] = true
			next[i].NormalImpulse = old.Points[j].NormalImpulse
			next[i].TangentImpulse = old.Points[j].TangentImpulse
		}
	}
	old.Points = next
	old.Count = m.Count
	old.Normal = m.Normal
	old.Age++
	return EventStay
}

// match finds the old point with the same id within the threshold, else the
// nearest old point within the threshold. Distances use the local positions
// on both shapes.
func (c *Cache) match(old *Manifold, p *narrowphase.Point, used *[narrowphase.MaxPoints]bool) int {
	limit := c.PersistentThreshold * c.PersistentThreshold
	dist := func(q *Point) float64 {
		return max(q.LocalA.Sub(p.LocalA).LenSqr(), q.LocalB.Sub(p.LocalB).LenSqr())
	}
	for j := range old.Slice() {
		q := &old.Points[j]
		if !used[j] && q.ID == p.ID && dist(q) <= limit {
			return j
		}
	}
	best, bestD := -1, limit
	for j := range old.Slice() {
		if used[j] {
			continue
		}
		if d := dist(&old.Points[j]); d <= bestD {
			best, bestD = j, d
		}
	}
	return best
}

// Retire removes a pair. It reports EventEnd when the pair had points.
func (c *Cache) Retire(key Key) Event {
	m, ok := c.manifolds[key]
	if !ok {
		return EventNone
	}
	delete(c.manifolds, key)
	c.unlink(key.A, key)
	c.unlink(key.B, key)
	had := m.Count > 0
	c.pool.Put(m)
	if had {
		return EventEnd
	}
	return EventNone
}

// Get returns the manifold of a pair or nil.
func (c *Cache) Get(key Key) *Manifold { return c.manifolds[key] }

func (c *Cache) Len() int { return len(c.manifolds) }

// Keys returns every cached pair in ascending order.
func (c *Cache) Keys() []Key {
	keys := make([]Key, 0, len(c.manifolds))
	for k := range c.manifolds {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, Key.compare)
	return keys
}

// KeysOf returns the cached pairs involving collider id in ascending order.
func (c *Cache) KeysOf(id int) []Key {
	set := c.byCollider[id]
	keys := make([]Key, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, Key.compare)
	return keys
}

func (c *Cache) link(id int, key Key) {
	set := c.byCollider[id]
	if set == nil {
		set = make(map[Key]struct{})
		c.byCollider[id] = set
	}
	set[key] = struct{}{}
}

func (c *Cache) unlink(id int, key Key) {
	set := c.byCollider[id]
	delete(set, key)
	if len(set) == 0 {
		delete(c.byCollider, id)
	}
}

// RetireIf removes every pair for which fn returns true, calling emit with
// the event of each removed pair in key order.
func (c *Cache) RetireIf(fn func(Key) bool, emit func(Key, Event)) {
	for _, k := range c.Keys() {
		if fn(k) {
			if e := c.Retire(k); emit != nil {
				emit(k, e)
			}
		}
	}
}
