// Package alloc is the per-world allocation service: typed object pools,
// a per-step frame allocator with a byte budget, and a bounded heap for
// long-lived storage.
//
// Budgets are accounting limits, not real arenas. Exceeding one returns
// dynamo.ErrOutOfMemory so the world can abort a step before committing.
package alloc

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

// Pool recycles values of T. reset runs on Put.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(*T)
}

func NewPool[T any](reset func(*T)) *Pool[T] {
	return &Pool[T]{
		reset: reset,
		pool: sync.Pool{
			New: func() any { return new(T) },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.pool.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.pool.Put(v)
}

// FrameAllocator accounts scratch memory used during one step. Reset at the
// start of every step.
type FrameAllocator struct {
	capacity int64
	used     int64
	peak     int64
}

// Reserve accounts n bytes. A zero capacity means unlimited.
func (f *FrameAllocator) Reserve(n int64) error {
	if f.capacity > 0 && f.used+n > f.capacity {
		return fmt.Errorf("frame allocator: %d + %d bytes exceeds %d: %w", f.used, n, f.capacity, dynamo.ErrOutOfMemory)
	}
	f.used += n
	f.peak = max(f.peak, f.used)
	return nil
}

func (f *FrameAllocator) Reset() { f.used = 0 }

func (f *FrameAllocator) Used() int64 { return f.used }

// Peak is the largest usage seen since creation.
func (f *FrameAllocator) Peak() int64 { return f.peak }

// Heap accounts long-lived storage such as bodies and manifolds.
type Heap struct {
	mu    sync.Mutex
	limit int64
	used  int64
}

func (h *Heap) Alloc(n int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.limit > 0 && h.used+n > h.limit {
		return fmt.Errorf("heap: %d + %d bytes exceeds %d: %w", h.used, n, h.limit, dynamo.ErrOutOfMemory)
	}
	h.used += n
	return nil
}

func (h *Heap) Free(n int64) {
	h.mu.Lock()
	h.used = max(h.used-n, 0)
	h.mu.Unlock()
}

func (h *Heap) Used() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.used
}

// Config sets the budgets in bytes. Zero disables a limit.
type Config struct {
	FrameCapacity int64
	HeapLimit     int64
}

// Manager owns the allocators of one world.
type Manager struct {
	Frame *FrameAllocator
	Heap  *Heap
}

func NewManager(cfg Config) *Manager {
	return &Manager{
		Frame: &FrameAllocator{capacity: cfg.FrameCapacity},
		Heap:  &Heap{limit: cfg.HeapLimit},
	}
}

// SizeOf is the in-memory size of one T.
func SizeOf[T any]() int64 {
	return int64(reflect.TypeFor[T]().Size())
}

// FrameSlice returns buf resized to n elements, accounting the bytes against
// the frame budget. The backing array is reused across steps, so callers keep
// the returned slice in place of buf.
func FrameSlice[T any](f *FrameAllocator, buf []T, n int) ([]T, error) {
	if err := f.Reserve(int64(n) * SizeOf[T]()); err != nil {
		return buf[:0], err
	}
	if cap(buf) < n {
		buf = make([]T, n, n+n/2)
	}
	buf = buf[:n]
	clear(buf)
	return buf, nil
}
