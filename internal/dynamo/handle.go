package dynamo

import "fmt"

// Handle addresses a slot in an Arena. The generation makes handles to removed
// slots fail lookup instead of aliasing the slot's next occupant.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsZero reports whether h was never issued. Generations start at 1.
func (h Handle) IsZero() bool { return h.Generation == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index, h.Generation)
}

// Less orders handles by slot index, then generation.
func (h Handle) Less(o Handle) bool {
	if h.Index != o.Index {
		return h.Index < o.Index
	}
	return h.Generation < o.Generation
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena is dense slot storage keyed by generation-checked handles. Freed slots
// are reused LIFO.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}
	s := &a.slots[idx]
	s.generation++
	s.value = v
	s.live = true
	a.count++
	return Handle{Index: idx, Generation: s.generation}
}

// Get returns a pointer to the value addressed by h, or nil when h is stale.
func (a *Arena[T]) Get(h Handle) *T {
	if int(h.Index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.Index]
	if !s.live || s.generation != h.Generation {
		return nil
	}
	return &s.value
}

// Contains reports whether h addresses a live slot.
func (a *Arena[T]) Contains(h Handle) bool { return a.Get(h) != nil }

// Remove frees the slot addressed by h. It reports false for stale handles.
func (a *Arena[T]) Remove(h Handle) bool {
	if a.Get(h) == nil {
		return false
	}
	s := &a.slots[h.Index]
	var zero T
	s.value = zero
	s.live = false
	a.free = append(a.free, h.Index)
	a.count--
	return true
}

// Len returns the number of live slots.
func (a *Arena[T]) Len() int { return a.count }

// Each visits live slots in index order until fn returns false.
func (a *Arena[T]) Each(fn func(h Handle, v *T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		if !fn(Handle{Index: uint32(i), Generation: s.generation}, &s.value) {
			return
		}
	}
}

// Handles returns the live handles in index order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.count)
	a.Each(func(h Handle, _ *T) bool {
		out = append(out, h)
		return true
	})
	return out
}
