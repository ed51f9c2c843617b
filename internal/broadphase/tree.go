package broadphase

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

const nullNode = -1

type node struct {
	aabb   geom.AABB
	parent int
	left   int
	right  int
	// height is 0 for leaves and -1 for free nodes.
	height int
	data   int
	moved  bool
}

func (n *node) isLeaf() bool { return n.left == nullNode }

// Tree is a dynamic AABB tree. Leaves hold fattened boxes so small motions do
// not restructure the tree.
type Tree struct {
	nodes  []node
	root   int
	free   int
	leaves int

	margin     float64
	multiplier float64
}

// NewTree returns an empty tree. margin inflates every leaf box; multiplier
// scales the displacement used to extend boxes along the motion.
func NewTree(margin, multiplier float64) *Tree {
	return &Tree{root: nullNode, free: nullNode, margin: margin, multiplier: multiplier}
}

func (t *Tree) allocate() int {
	if t.free != nullNode {
		id := t.free
		t.free = t.nodes[id].parent
		t.nodes[id] = node{parent: nullNode, left: nullNode, right: nullNode}
		return id
	}
	t.nodes = append(t.nodes, node{parent: nullNode, left: nullNode, right: nullNode})
	return len(t.nodes) - 1
}

func (t *Tree) release(id int) {
	t.nodes[id] = node{parent: t.free, left: nullNode, right: nullNode, height: -1}
	t.free = id
}

func (t *Tree) fatten(aabb geom.AABB, displacement mgl64.Vec3) geom.AABB {
	b := aabb.Inflate(t.margin)
	d := displacement.Mul(t.multiplier)
	for i := 0; i < 3; i++ {
		if d[i] < 0 {
			b.Min[i] += d[i]
		} else {
			b.Max[i] += d[i]
		}
	}
	return b
}

// checkAABB rejects inverted and non-finite boxes. Zero extent is judged
// after the margin, so points and flat triangles are accepted whenever the
// margin is positive.
func (t *Tree) checkAABB(aabb geom.AABB) error {
	if !aabb.Inflate(t.margin).IsValid() {
		return fmt.Errorf("%w: %v..%v", dynamo.ErrDegenerateAABB, aabb.Min, aabb.Max)
	}
	for i := 0; i < 3; i++ {
		if aabb.Min[i] > aabb.Max[i] {
			return fmt.Errorf("%w: %v..%v", dynamo.ErrDegenerateAABB, aabb.Min, aabb.Max)
		}
	}
	return nil
}

// Insert adds a leaf for aabb and returns its node id.
func (t *Tree) Insert(aabb geom.AABB, data int) (int, error) {
	if err := t.checkAABB(aabb); err != nil {
		return nullNode, err
	}
	id := t.allocate()
	t.nodes[id].aabb = t.fatten(aabb, mgl64.Vec3{})
	t.nodes[id].data = data
	t.insertLeaf(id)
	t.leaves++
	return id, nil
}

// Remove deletes a leaf.
func (t *Tree) Remove(id int) {
	if !t.isLeaf(id) {
		return
	}
	t.removeLeaf(id)
	t.release(id)
	t.leaves--
}

// Move updates a leaf for a new tight box. It returns true only when the leaf
// was reinserted because its fat box no longer contained aabb.
func (t *Tree) Move(id int, aabb geom.AABB, displacement mgl64.Vec3) (bool, error) {
	if !t.isLeaf(id) {
		return false, fmt.Errorf("%w: broadphase node %d", dynamo.ErrInvalidHandle, id)
	}
	if err := t.checkAABB(aabb); err != nil {
		return false, err
	}
	if t.nodes[id].aabb.Contains(aabb) {
		return false, nil
	}
	t.removeLeaf(id)
	t.nodes[id].aabb = t.fatten(aabb, displacement)
	t.insertLeaf(id)
	return true, nil
}

func (t *Tree) isLeaf(id int) bool {
	return id >= 0 && id < len(t.nodes) && t.nodes[id].height == 0
}

// FatAABB returns the stored box of a leaf.
func (t *Tree) FatAABB(id int) geom.AABB { return t.nodes[id].aabb }

// UserData returns the value passed to Insert.
func (t *Tree) UserData(id int) int { return t.nodes[id].data }

// Len is the number of leaves.
func (t *Tree) Len() int { return t.leaves }

// Height of the root, 0 for a single leaf and -1 for an empty tree.
func (t *Tree) Height() int {
	if t.root == nullNode {
		return -1
	}
	return t.nodes[t.root].height
}

func (t *Tree) insertLeaf(leaf int) {
	if t.root == nullNode {
		t.root = leaf
		t.nodes[leaf].parent = nullNode
		return
	}

	// Descend by surface area heuristic: the cost of a new parent at index
	// against the enlargement of each child plus the inherited cost.
	box := t.nodes[leaf].aabb
	index := t.root
	for !t.nodes[index].isLeaf() {
		n := &t.nodes[index]
		area := n.aabb.SurfaceArea()
		combined := n.aabb.Merge(box).SurfaceArea()

		cost := 2 * combined
		inherited := 2 * (combined - area)

		cost1 := t.descendCost(n.left, box) + inherited
		cost2 := t.descendCost(n.right, box) + inherited

		if cost < cost1 && cost < cost2 {
			break
		}
		if cost1 < cost2 {
			index = n.left
		} else {
			index = n.right
		}
	}

	sibling := index
	oldParent := t.nodes[sibling].parent
	parent := t.allocate()
	t.nodes[parent].parent = oldParent
	t.nodes[parent].aabb = box.Merge(t.nodes[sibling].aabb)
	t.nodes[parent].height = t.nodes[sibling].height + 1
	t.nodes[parent].left = sibling
	t.nodes[parent].right = leaf
	t.nodes[sibling].parent = parent
	t.nodes[leaf].parent = parent

	if oldParent == nullNode {
		t.root = parent
	} else if t.nodes[oldParent].left == sibling {
		t.nodes[oldParent].left = parent
	} else {
		t.nodes[oldParent].right = parent
	}

	t.refit(t.nodes[leaf].parent)
}

func (t *Tree) descendCost(child int, box geom.AABB) float64 {
	c := &t.nodes[child]
	merged := c.aabb.Merge(box).SurfaceArea()
	if c.isLeaf() {
		return merged
	}
	return merged - c.aabb.SurfaceArea()
}

func (t *Tree) removeLeaf(leaf int) {
	if leaf == t.root {
		t.root = nullNode
		return
	}
	parent := t.nodes[leaf].parent
	grand := t.nodes[parent].parent
	sibling := t.nodes[parent].left
	if sibling == leaf {
		sibling = t.nodes[parent].right
	}

	if grand == nullNode {
		t.root = sibling
		t.nodes[sibling].parent = nullNode
		t.release(parent)
		return
	}
	if t.nodes[grand].left == parent {
		t.nodes[grand].left = sibling
	} else {
		t.nodes[grand].right = sibling
	}
	t.nodes[sibling].parent = grand
	t.release(parent)
	t.refit(grand)
}

// refit walks to the root rebalancing and recomputing boxes and heights.
func (t *Tree) refit(index int) {
	for index != nullNode {
		index = t.balance(index)
		n := &t.nodes[index]
		l, r := &t.nodes[n.left], &t.nodes[n.right]
		n.height = 1 + max(l.height, r.height)
		n.aabb = l.aabb.Merge(r.aabb)
		index = n.parent
	}
}

// balance rotates the taller grandchild up when a's children differ in
// height by more than one and returns the root of the subtree.
func (t *Tree) balance(ia int) int {
	a := &t.nodes[ia]
	if a.isLeaf() || a.height < 2 {
		return ia
	}
	ib, ic := a.left, a.right
	b, c := &t.nodes[ib], &t.nodes[ic]
	diff := c.height - b.height

	switch {
	case diff > 1:
		t.rotateUp(ia, ic, ib, false)
		return ic
	case diff < -1:
		t.rotateUp(ia, ib, ic, true)
		return ib
	}
	return ia
}

// rotateUp lifts child p above a. keep is a's other child. When pIsLeft the
// lifted child was a's left child.
func (t *Tree) rotateUp(ia, ip, keep int, pIsLeft bool) {
	a, p := &t.nodes[ia], &t.nodes[ip]
	i1, i2 := p.left, p.right
	c1, c2 := &t.nodes[i1], &t.nodes[i2]

	p.left = ia
	p.parent = a.parent
	a.parent = ip
	if p.parent == nullNode {
		t.root = ip
	} else if t.nodes[p.parent].left == ia {
		t.nodes[p.parent].left = ip
	} else {
		t.nodes[p.parent].right = ip
	}

	// The taller grandchild stays under p, the shorter moves to a.
	tall, short := i1, i2
	if c1.height <= c2.height {
		tall, short = i2, i1
	}
	p.right = tall
	if pIsLeft {
		a.left = short
	} else {
		a.right = short
	}
	t.nodes[short].parent = ia

	k := &t.nodes[keep]
	s := &t.nodes[short]
	a.aabb = k.aabb.Merge(s.aabb)
	a.height = 1 + max(k.height, s.height)
	tl := &t.nodes[tall]
	p.aabb = a.aabb.Merge(tl.aabb)
	p.height = 1 + max(a.height, tl.height)
}

// Query calls fn for every leaf whose fat box overlaps aabb until fn returns
// false. Concurrent queries are safe while nothing mutates the tree.
func (t *Tree) Query(aabb geom.AABB, fn func(id int) bool) {
	if t.root == nullNode {
		return
	}
	var buf [64]int
	stack := append(buf[:0], t.root)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[id]
		if !n.aabb.Overlaps(aabb) {
			continue
		}
		if n.isLeaf() {
			if !fn(id) {
				break
			}
			continue
		}
		stack = append(stack, n.left, n.right)
	}
}

// RayCast visits leaves whose fat box the ray crosses. fn returns the new
// max fraction: 0 stops the cast, a negative value leaves it unchanged.
func (t *Tree) RayCast(ray geom.Ray, fn func(id int, ray geom.Ray) float64) {
	if t.root == nullNode {
		return
	}
	r := ray
	stack := []int{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[id]
		if _, ok := n.aabb.RayFraction(r.From, r.To, r.MaxFraction); !ok {
			continue
		}
		if !n.isLeaf() {
			stack = append(stack, n.left, n.right)
			continue
		}
		f := fn(id, r)
		if f == 0 {
			return
		}
		if f > 0 && f < r.MaxFraction {
			r.MaxFraction = f
		}
	}
}

// Validate checks parent links, heights, box containment and the leaf count.
func (t *Tree) Validate() error {
	if t.root == nullNode {
		if t.leaves != 0 {
			return fmt.Errorf("broadphase: empty tree reports %d leaves", t.leaves)
		}
		return nil
	}
	if t.nodes[t.root].parent != nullNode {
		return fmt.Errorf("broadphase: root %d has a parent", t.root)
	}
	leaves, err := t.validate(t.root)
	if err != nil {
		return err
	}
	if leaves != t.leaves {
		return fmt.Errorf("broadphase: counted %d leaves, expected %d", leaves, t.leaves)
	}
	return nil
}

func (t *Tree) validate(id int) (int, error) {
	n := &t.nodes[id]
	if n.isLeaf() {
		if n.height != 0 {
			return 0, fmt.Errorf("broadphase: leaf %d has height %d", id, n.height)
		}
		return 1, nil
	}
	for _, c := range [2]int{n.left, n.right} {
		if t.nodes[c].parent != id {
			return 0, fmt.Errorf("broadphase: node %d has wrong parent", c)
		}
		if !n.aabb.Contains(t.nodes[c].aabb) {
			return 0, fmt.Errorf("broadphase: node %d does not contain child %d", id, c)
		}
	}
	l, r := &t.nodes[n.left], &t.nodes[n.right]
	if n.height != 1+max(l.height, r.height) {
		return 0, fmt.Errorf("broadphase: node %d has height %d", id, n.height)
	}
	nl, err := t.validate(n.left)
	if err != nil {
		return 0, err
	}
	nr, err := t.validate(n.right)
	if err != nil {
		return 0, err
	}
	return nl + nr, nil
}
