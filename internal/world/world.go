// Package world owns bodies, colliders and joints and advances them through
// the step pipeline: broad phase, narrow phase, contact cache, islands,
// solver, integration and broad-phase refit.
//
// A World follows a single-writer discipline. Callers must not mutate or
// step a world from several goroutines at once; the world itself fans the
// narrow phase and the island solve out over Settings.Workers goroutines.
package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-logr/logr"

	"github.com/san-kum/rigidsim/internal/alloc"
	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/contact"
	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/island"
	"github.com/san-kum/rigidsim/internal/narrowphase"
	"github.com/san-kum/rigidsim/internal/solver"
)

type (
	BodyID     struct{ dynamo.Handle }
	ColliderID struct{ dynamo.Handle }
	JointID    struct{ dynamo.Handle }
)

// BodyKind re-exports the body kinds.
type BodyKind = dynamics.Kind

// ParseBodyKind reads "static", "kinematic" or "dynamic". Empty means
// dynamic.
func ParseBodyKind(s string) (BodyKind, error) { return dynamics.ParseKind(s) }

const (
	Static    = dynamics.Static
	Kinematic = dynamics.Kinematic
	Dynamic   = dynamics.Dynamic
)

type World struct {
	settings Settings
	log      logr.Logger
	alloc    *alloc.Manager

	bodies     dynamo.Arena[*Body]
	colliders  dynamo.Arena[*Collider]
	joints     dynamo.Arena[*Joint]
	colliderAt []*Collider // by handle index, the broad-phase user data
	jointOrder []*Joint

	bp         *broadphase.BroadPhase
	dispatcher *narrowphase.Dispatcher
	cache      *contact.Cache
	pairCaches map[contact.Key]*narrowphase.PairCache
	builder    island.Builder
	solver     *solver.Solver

	listeners []func(ContactEvent)
	pending   []ContactEvent

	step      uint64
	stats     StepStats
	scratch   scratch
	destroyed bool
}

// New validates settings and builds an empty world.
func New(settings Settings) (*World, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	log := settings.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	w := &World{
		settings:   settings,
		log:        log,
		alloc:      alloc.NewManager(settings.Alloc),
		bp:         broadphase.New(settings.BroadPhaseMargin, settings.DisplacementMultiplier),
		dispatcher: narrowphase.NewDispatcher(settings.TouchSlop),
		cache:      contact.NewCache(settings.PersistentThreshold),
		pairCaches: make(map[contact.Key]*narrowphase.PairCache),
		solver:     solver.New(settings.Solver),
	}
	w.log.V(1).Info("world created",
		"gravity", settings.Gravity,
		"velocityIterations", settings.VelocityIterations,
		"positionIterations", settings.PositionIterations,
		"workers", settings.Workers)
	return w, nil
}

// Destroy releases everything the world owns. Further calls fail with
// dynamo.ErrInvalidHandle.
func (w *World) Destroy() {
	if w.destroyed {
		return
	}
	for _, id := range w.bodies.Handles() {
		_ = w.RemoveBody(BodyID{id})
	}
	w.listeners = nil
	w.pending = nil
	w.destroyed = true
	w.log.V(1).Info("world destroyed", "steps", w.step)
}

func (w *World) alive() error {
	if w.destroyed {
		return fmt.Errorf("world destroyed: %w", dynamo.ErrInvalidHandle)
	}
	return nil
}

func (w *World) Settings() Settings { return w.settings }

// SetGravity changes gravity and wakes every body.
func (w *World) SetGravity(g mgl64.Vec3) {
	w.settings.Gravity = g
	w.bodies.Each(func(_ dynamo.Handle, b **Body) bool {
		(*b).wake()
		return true
	})
}

// StepCount is the number of completed steps.
func (w *World) StepCount() uint64 { return w.step }

// Stats describes the last completed step.
func (w *World) Stats() StepStats { return w.stats }

// Allocator exposes the allocation service of the world.
func (w *World) Allocator() *alloc.Manager { return w.alloc }

// Body returns the body addressed by id.
func (w *World) Body(id BodyID) (*Body, bool) {
	b := w.bodies.Get(id.Handle)
	if b == nil {
		return nil, false
	}
	return *b, true
}

func (w *World) body(id BodyID) (*Body, error) {
	if err := w.alive(); err != nil {
		return nil, err
	}
	b, ok := w.Body(id)
	if !ok {
		return nil, fmt.Errorf("body %v: %w", id, dynamo.ErrInvalidHandle)
	}
	return b, nil
}

// Bodies returns the live body ids in storage order.
func (w *World) Bodies() []BodyID {
	hs := w.bodies.Handles()
	out := make([]BodyID, len(hs))
	for i, h := range hs {
		out[i] = BodyID{h}
	}
	return out
}

func (w *World) BodyCount() int { return w.bodies.Len() }

// Collider returns the collider addressed by id.
func (w *World) Collider(id ColliderID) (*Collider, bool) {
	c := w.colliders.Get(id.Handle)
	if c == nil {
		return nil, false
	}
	return *c, true
}

func (w *World) ColliderCount() int { return w.colliders.Len() }

// Joint returns the joint addressed by id.
func (w *World) Joint(id JointID) (*Joint, bool) {
	j := w.joints.Get(id.Handle)
	if j == nil {
		return nil, false
	}
	return *j, true
}

// Joints returns the live joint ids in creation order.
func (w *World) Joints() []JointID {
	out := make([]JointID, len(w.jointOrder))
	for i, j := range w.jointOrder {
		out[i] = j.id
	}
	return out
}
