package world

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/san-kum/rigidsim/internal/alloc"
	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/contact"
	"github.com/san-kum/rigidsim/internal/dynamics"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/island"
	"github.com/san-kum/rigidsim/internal/narrowphase"
	"github.com/san-kum/rigidsim/internal/solver"
)

const (
	pairsPerWorker   = 32
	islandsPerWorker = 1
)

type pairJob struct {
	key      contact.Key
	a, b     *Collider
	cache    *narrowphase.PairCache
	test     bool
	keep     bool
	touching bool
	manifold narrowphase.Manifold
}

type eventRef struct {
	key contact.Key
	typ contact.Event
}

type islandJob struct {
	island   *island.Island
	solve    solver.Island
	stats    solver.Stats
	asleep   bool
	contacts int
}

// scratch holds per-step buffers. Their sizes are accounted against the
// frame budget every step.
type scratch struct {
	jobs      []pairJob
	bodies    []*Body
	members   []island.Member
	edges     []island.Edge
	manifolds []*contact.Manifold
	jointEdge []island.Edge
	contacts  []solver.Contact
	ptrs      []*solver.Contact
	joints    []solver.Joint
	events    []eventRef
}

// reserve sizes every per-step buffer up front, so that running out of
// frame or heap budget aborts the step before any state changes.
func (w *World) reserve(pairs []broadphase.Pair) (newPairs int64, err error) {
	f := w.alloc.Frame
	s := &w.scratch
	np, nb, nj := len(pairs), w.bodies.Len(), len(w.jointOrder)

	if s.jobs, err = alloc.FrameSlice(f, s.jobs, np); err != nil {
		return 0, err
	}
	if s.bodies, err = alloc.FrameSlice(f, s.bodies, nb); err != nil {
		return 0, err
	}
	if s.members, err = alloc.FrameSlice(f, s.members, nb); err != nil {
		return 0, err
	}
	if s.edges, err = alloc.FrameSlice(f, s.edges, np); err != nil {
		return 0, err
	}
	if s.manifolds, err = alloc.FrameSlice(f, s.manifolds, np); err != nil {
		return 0, err
	}
	if s.jointEdge, err = alloc.FrameSlice(f, s.jointEdge, nj); err != nil {
		return 0, err
	}
	if s.contacts, err = alloc.FrameSlice(f, s.contacts, np); err != nil {
		return 0, err
	}
	if s.ptrs, err = alloc.FrameSlice(f, s.ptrs, np); err != nil {
		return 0, err
	}
	if s.joints, err = alloc.FrameSlice(f, s.joints, nj); err != nil {
		return 0, err
	}
	if s.events, err = alloc.FrameSlice(f, s.events, 2*np+w.cache.Len()); err != nil {
		return 0, err
	}

	for _, p := range pairs {
		if w.cache.Get(contact.Key{A: p.A, B: p.B}) == nil {
			newPairs++
		}
	}
	if err := w.alloc.Heap.Alloc(newPairs * alloc.SizeOf[contact.Manifold]()); err != nil {
		return 0, err
	}
	return newPairs, nil
}

// retire drops a cached pair and returns its manifold to the heap budget.
func (w *World) retire(k contact.Key) contact.Event {
	had := w.cache.Get(k) != nil
	ev := w.cache.Retire(k)
	if had {
		w.alloc.Heap.Free(alloc.SizeOf[contact.Manifold]())
	}
	return ev
}

func (w *World) phaseDone(p Phase, start time.Time) time.Time {
	now := time.Now()
	d := now.Sub(start)
	w.stats.Phases[p] = d
	if w.settings.PhaseHook != nil {
		w.settings.PhaseHook(p, d)
	}
	w.log.V(2).Info("phase done", "step", w.stats.Step, "phase", p.String(), "elapsed", d)
	return now
}

// Update advances the world by exactly one step of dt seconds.
//
// A step that fails with a *dynamo.StepError has committed nothing.
func (w *World) Update(dt float64) error {
	if err := w.alive(); err != nil {
		return err
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("update by %g: %w", dt, dynamo.ErrInvalidTimeStep)
	}
	prev := w.stats
	w.stats = StepStats{Step: w.step + 1}
	w.alloc.Frame.Reset()
	w.dispatcher.ResetStats()

	start := time.Now()
	pairs := w.bp.QueryOverlaps()
	newPairs, err := w.reserve(pairs)
	if err != nil {
		w.stats = prev
		return &dynamo.StepError{Step: w.step + 1, Phase: PhaseBroadPhase.String(), Wrapped: err}
	}
	w.stats.Pairs = len(pairs)
	start = w.phaseDone(PhaseBroadPhase, start)

	w.narrowPhase(pairs)
	start = w.phaseDone(PhaseNarrowPhase, start)

	events := w.updateContacts(pairs, newPairs)
	start = w.phaseDone(PhaseContacts, start)

	islands := w.buildIslands()
	start = w.phaseDone(PhaseIslands, start)

	solved := w.solveIslands(islands, dt)
	start = w.phaseDone(PhaseSolve, start)

	w.integrateKinematic(dt)
	start = w.phaseDone(PhaseIntegrate, start)

	w.refit(solved, dt)
	w.phaseDone(PhaseRefit, start)

	w.step++
	w.stats.FrameBytes = w.alloc.Frame.Used()
	fb := w.dispatcher.Stats()
	w.stats.GJKFallbacks, w.stats.EPAFallbacks = fb.GJKFallbacks, fb.EPAFallbacks

	out := w.pending
	w.pending = nil
	for _, e := range events {
		out = append(out, w.makeEvent(e.key, e.typ))
	}
	w.dispatch(out)
	return nil
}

// narrowPhase decides which pairs to collide and runs the dispatcher over
// them in parallel. Each job owns its pair cache.
func (w *World) narrowPhase(pairs []broadphase.Pair) {
	jobs := w.scratch.jobs
	for i, p := range pairs {
		a, b := w.colliderAt[p.A], w.colliderAt[p.B]
		j := &jobs[i]
		*j = pairJob{key: contact.Key{A: p.A, B: p.B}, a: a, b: b}

		ba, bb := a.body, b.body
		switch {
		case ba == bb,
			ba.state.Kind != Dynamic && bb.state.Kind != Dynamic,
			!a.filter.accepts(b.filter),
			!w.dispatcher.Supports(a.shape.Kind(), b.shape.Kind()),
			jointExcludes(ba, bb):
			continue
		case !ba.active() && !bb.active():
			j.keep = true
			continue
		}
		j.test = true
		j.cache = w.pairCaches[j.key]
		if j.cache == nil {
			j.cache = &narrowphase.PairCache{}
			w.pairCaches[j.key] = j.cache
		}
	}

	err := dynamo.ParallelFor(context.Background(), len(jobs), pairsPerWorker, w.settings.Workers, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			j := &jobs[i]
			if !j.test {
				continue
			}
			j.manifold, j.touching = w.dispatcher.TestPair(
				narrowphase.Input{Shape: j.a.shape, Transform: j.a.transform},
				narrowphase.Input{Shape: j.b.shape, Transform: j.b.transform},
				j.cache)
		}
		return nil
	})
	if err != nil {
		w.log.Error(err, "narrow phase")
	}
}

// updateContacts merges the narrow-phase results into the cache in pair
// order and retires pairs the broad phase no longer reports.
func (w *World) updateContacts(pairs []broadphase.Pair, reserved int64) []eventRef {
	events := w.scratch.events[:0]
	var begun int64
	for i := range w.scratch.jobs {
		j := &w.scratch.jobs[i]
		switch {
		case j.keep:
			// Sleeping pairs keep their manifold and still report it.
			if m := w.cache.Get(j.key); m != nil && m.Count > 0 {
				events = append(events, eventRef{j.key, contact.EventStay})
			}
			continue
		case !j.test || !j.touching:
			if w.retire(j.key) == contact.EventEnd {
				events = append(events, eventRef{j.key, contact.EventEnd})
			}
			continue
		}
		had := w.cache.Get(j.key) != nil
		ev := w.cache.Update(j.key, &j.manifold)
		if !had {
			begun++
		}
		m := w.cache.Get(j.key)
		m.Friction, m.Restitution = combine(j.a.material, j.b.material)
		if ev == contact.EventBegin || pushes(j.a.body) || pushes(j.b.body) {
			j.a.body.wake()
			j.b.body.wake()
		}
		events = append(events, eventRef{j.key, ev})
	}
	w.alloc.Heap.Free((reserved - begun) * alloc.SizeOf[contact.Manifold]())

	// Pairs whose fat boxes separated.
	keys := w.cache.Keys()
	pi := 0
	for _, k := range keys {
		for pi < len(pairs) && (pairs[pi].A < k.A || (pairs[pi].A == k.A && pairs[pi].B < k.B)) {
			pi++
		}
		if pi < len(pairs) && pairs[pi].A == k.A && pairs[pi].B == k.B {
			continue
		}
		ref := eventRef{k, contact.EventEnd}
		if w.retire(k) == contact.EventEnd {
			events = append(events, ref)
		}
	}
	if len(w.pairCaches) > len(pairs) {
		live := make(map[contact.Key]struct{}, len(pairs))
		for _, p := range pairs {
			live[contact.Key{A: p.A, B: p.B}] = struct{}{}
		}
		for k := range w.pairCaches {
			if _, ok := live[k]; !ok {
				delete(w.pairCaches, k)
			}
		}
	}

	slices.SortStableFunc(events, func(x, y eventRef) int {
		if x.key.A != y.key.A {
			return x.key.A - y.key.A
		}
		return x.key.B - y.key.B
	})
	w.scratch.events = events

	for _, k := range w.cache.Keys() {
		m := w.cache.Get(k)
		w.stats.Manifolds++
		w.stats.ContactPoints += m.Count
		for _, p := range m.Slice() {
			w.stats.MaxPenetration = max(w.stats.MaxPenetration, -p.Separation)
		}
	}
	return events
}

// pushes reports whether b is a moving kinematic body. Kinematic bodies
// never join islands, so they wake what they touch every step they move.
func pushes(b *Body) bool {
	return b.state.Kind == Kinematic && b.active()
}

// buildIslands lays out the island members and constraint edges and runs
// the island builder.
func (w *World) buildIslands() []island.Island {
	s := &w.scratch
	n := 0
	w.bodies.Each(func(_ dynamo.Handle, b **Body) bool {
		body := *b
		body.index = n
		s.bodies[n] = body
		s.members[n] = island.Member{State: &body.state, Sleep: &body.sleep}
		n++
		return true
	})

	s.edges = s.edges[:0]
	s.manifolds = s.manifolds[:0]
	for _, k := range w.cache.Keys() {
		m := w.cache.Get(k)
		if m.Count == 0 {
			continue
		}
		s.edges = append(s.edges, island.Edge{A: w.colliderAt[k.A].body.index, B: w.colliderAt[k.B].body.index})
		s.manifolds = append(s.manifolds, m)
	}
	for i, j := range w.jointOrder {
		s.jointEdge[i] = island.Edge{A: j.a.index, B: j.b.index}
		if pushes(j.a) || pushes(j.b) {
			j.a.wake()
			j.b.wake()
		}
	}

	islands := w.builder.Build(s.members, s.edges, s.jointEdge)
	w.stats.Islands = len(islands)
	return islands
}

// solveIslands integrates, solves and puts to sleep every awake island, one
// island per task. Islands share no dynamic body.
func (w *World) solveIslands(islands []island.Island, dt float64) []*island.Island {
	s := &w.scratch
	var jobs []islandJob
	ci, ji := 0, 0
	for i := range islands {
		is := &islands[i]
		if !is.Awake {
			continue
		}
		job := islandJob{island: is}
		start := ci
		for _, e := range is.Contacts {
			m := s.manifolds[e]
			sc := &s.contacts[ci]
			sc.A = &w.colliderAt[m.Key.A].body.state
			sc.B = &w.colliderAt[m.Key.B].body.state
			sc.Manifold = m
			s.ptrs[ci] = sc
			ci++
		}
		job.solve.Contacts = s.ptrs[start:ci:ci]
		start = ji
		for _, e := range is.Joints {
			s.joints[ji] = w.jointOrder[e].constraint
			ji++
		}
		job.solve.Joints = s.joints[start:ji:ji]
		jobs = append(jobs, job)
	}

	set := w.settings
	err := dynamo.ParallelFor(context.Background(), len(jobs), islandsPerWorker, set.Workers, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			job := &jobs[i]
			for _, bi := range job.island.Bodies {
				dynamics.IntegrateVelocity(&s.bodies[bi].state, set.Gravity, dt)
			}
			job.stats = w.solver.Solve(&job.solve, dt, set.VelocityIterations, set.PositionIterations)
			for _, bi := range job.island.Bodies {
				dynamics.IntegratePosition(&s.bodies[bi].state, dt)
			}
			if set.AllowSleep {
				job.asleep = island.UpdateSleep(job.island, s.members, dt, set.Sleep)
			}
		}
		return nil
	})
	if err != nil {
		w.log.Error(err, "island solve")
	}

	w.stats.Residuals = make([]float64, set.VelocityIterations)
	solved := make([]*island.Island, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		solved[i] = job.island
		for it, r := range job.stats.Residuals {
			w.stats.Residuals[it] += r
		}
		if job.asleep {
			w.log.V(1).Info("island asleep", "step", w.stats.Step, "bodies", len(job.island.Bodies))
		}
	}
	for _, b := range s.bodies {
		if b.state.Kind != Dynamic {
			continue
		}
		if b.sleep.Sleeping {
			w.stats.SleepingBodies++
		} else {
			w.stats.AwakeBodies++
		}
	}
	return solved
}

// integrateKinematic moves kinematic bodies by their velocities and clears
// the forces of every body.
func (w *World) integrateKinematic(dt float64) {
	for _, b := range w.scratch.bodies {
		if b.state.Kind == Kinematic {
			dynamics.IntegratePosition(&b.state, dt)
		}
		b.state.ClearForces()
	}
}

// refit moves the proxies of every body that moved this step.
func (w *World) refit(solved []*island.Island, dt float64) {
	sync := func(b *Body) {
		if err := b.sync(b.state.LinearVelocity.Mul(dt)); err != nil {
			w.log.Error(err, "refit", "body", b.id)
		}
	}
	for _, is := range solved {
		for _, bi := range is.Bodies {
			sync(w.scratch.bodies[bi])
		}
	}
	for _, b := range w.scratch.bodies {
		if b.state.Kind == Kinematic && b.active() {
			sync(b)
		}
	}
}
