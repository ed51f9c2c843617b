package broadphase

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/geom"
)

const (
	DefaultMargin                 = 0.08
	DefaultDisplacementMultiplier = 1.7
)

// Pair is an unordered pair of user data values with A < B.
type Pair struct {
	A, B int
}

func makePair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func (p Pair) compare(o Pair) int {
	if p.A != o.A {
		return p.A - o.A
	}
	return p.B - o.B
}

type nodePair struct {
	a, b int
}

// BroadPhase tracks overlapping pairs over a dynamic tree.
type BroadPhase struct {
	tree  *Tree
	moved []int
	pairs map[nodePair]Pair
	links map[int]map[nodePair]struct{}
	out   []Pair
}

func New(margin, multiplier float64) *BroadPhase {
	return &BroadPhase{
		tree:  NewTree(margin, multiplier),
		pairs: make(map[nodePair]Pair),
		links: make(map[int]map[nodePair]struct{}),
	}
}

// Tree exposes the underlying tree for queries.
func (bp *BroadPhase) Tree() *Tree { return bp.tree }

// Insert adds a proxy for data with the tight box aabb.
func (bp *BroadPhase) Insert(data int, aabb geom.AABB) (int, error) {
	id, err := bp.tree.Insert(aabb, data)
	if err != nil {
		return id, err
	}
	bp.markMoved(id)
	return id, nil
}

// Remove deletes a proxy and every pair it is part of.
func (bp *BroadPhase) Remove(id int) {
	if !bp.tree.isLeaf(id) {
		return
	}
	if bp.tree.nodes[id].moved {
		bp.moved = slices.DeleteFunc(bp.moved, func(m int) bool { return m == id })
	}
	for k := range bp.links[id] {
		bp.dropPair(k)
	}
	bp.tree.Remove(id)
}

// Update refits a proxy. It reports whether the proxy was reinserted.
func (bp *BroadPhase) Update(id int, aabb geom.AABB, displacement mgl64.Vec3) (bool, error) {
	reinserted, err := bp.tree.Move(id, aabb, displacement)
	if err != nil || !reinserted {
		return false, err
	}
	bp.markMoved(id)
	return true, nil
}

func (bp *BroadPhase) markMoved(id int) {
	if bp.tree.nodes[id].moved {
		return
	}
	bp.tree.nodes[id].moved = true
	bp.moved = append(bp.moved, id)
}

// FatAABB returns the fattened box of a proxy.
func (bp *BroadPhase) FatAABB(id int) geom.AABB { return bp.tree.FatAABB(id) }

// Len is the number of proxies.
func (bp *BroadPhase) Len() int { return bp.tree.Len() }

// QueryOverlaps returns every overlapping pair sorted by (A, B). The result is
// owned by the broad phase and valid until the next call.
func (bp *BroadPhase) QueryOverlaps() []Pair {
	for _, id := range bp.moved {
		box := bp.tree.nodes[id].aabb
		bp.tree.Query(box, func(other int) bool {
			if other == id {
				return true
			}
			// Two moved leaves find each other twice; keep one.
			if bp.tree.nodes[other].moved && other < id {
				return true
			}
			k := nodePair{min(id, other), max(id, other)}
			if _, ok := bp.pairs[k]; !ok {
				bp.addPair(k, makePair(bp.tree.nodes[id].data, bp.tree.nodes[other].data))
			}
			return true
		})
	}
	for _, id := range bp.moved {
		bp.tree.nodes[id].moved = false
	}
	bp.moved = bp.moved[:0]

	out := bp.out[:0]
	for k, p := range bp.pairs {
		if !bp.tree.nodes[k.a].aabb.Overlaps(bp.tree.nodes[k.b].aabb) {
			bp.dropPair(k)
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, Pair.compare)
	bp.out = out
	return out
}

// PairsOf returns the pairs a proxy is currently part of, in (A, B) order.
func (bp *BroadPhase) PairsOf(id int) []Pair {
	out := make([]Pair, 0, len(bp.links[id]))
	for k := range bp.links[id] {
		out = append(out, bp.pairs[k])
	}
	slices.SortFunc(out, Pair.compare)
	return out
}

func (bp *BroadPhase) addPair(k nodePair, p Pair) {
	bp.pairs[k] = p
	for _, id := range [2]int{k.a, k.b} {
		set := bp.links[id]
		if set == nil {
			set = make(map[nodePair]struct{})
			bp.links[id] = set
		}
		set[k] = struct{}{}
	}
}

func (bp *BroadPhase) dropPair(k nodePair) {
	delete(bp.pairs, k)
	for _, id := range [2]int{k.a, k.b} {
		set := bp.links[id]
		delete(set, k)
		if len(set) == 0 {
			delete(bp.links, id)
		}
	}
}
