package alloc

import (
	"errors"
	"testing"

	"github.com/san-kum/rigidsim/internal/dynamo"
)

type point struct {
	id      uint64
	impulse float64
}

func TestPoolResetsOnPut(t *testing.T) {
	pool := NewPool(func(p *point) { *p = point{} })

	p := pool.Get()
	p.id, p.impulse = 7, 3.5
	pool.Put(p)

	q := pool.Get()
	if q.id != 0 || q.impulse != 0 {
		t.Errorf("expected zeroed value, got %+v", *q)
	}
	pool.Put(nil)
}

func TestFrameBudget(t *testing.T) {
	m := NewManager(Config{FrameCapacity: 10 * SizeOf[point]()})

	buf, err := FrameSlice[point](m.Frame, nil, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf) != 8 {
		t.Errorf("expected 8 elements, got %d", len(buf))
	}

	_, err = FrameSlice(m.Frame, buf, 4)
	if !errors.Is(err, dynamo.ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}

	m.Frame.Reset()
	buf[0].id = 42
	again, err := FrameSlice(m.Frame, buf, 4)
	if err != nil {
		t.Fatalf("unexpected error after reset: %v", err)
	}
	if &again[0] != &buf[0] {
		t.Error("expected backing array to be reused")
	}
	if again[0].id != 0 {
		t.Error("expected reused slice to be cleared")
	}
	if m.Frame.Peak() != 8*SizeOf[point]() {
		t.Errorf("expected peak %d, got %d", 8*SizeOf[point](), m.Frame.Peak())
	}
}

func TestUnlimitedFrame(t *testing.T) {
	m := NewManager(Config{})
	if _, err := FrameSlice[int](m.Frame, nil, 1<<16); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHeapLimit(t *testing.T) {
	m := NewManager(Config{HeapLimit: 100})
	if err := m.Heap.Alloc(60); err != nil {
		t.Fatal(err)
	}
	if err := m.Heap.Alloc(60); !errors.Is(err, dynamo.ErrOutOfMemory) {
		t.Errorf("expected ErrOutOfMemory, got %v", err)
	}
	m.Heap.Free(60)
	if err := m.Heap.Alloc(60); err != nil {
		t.Errorf("unexpected error after free: %v", err)
	}
	if m.Heap.Used() != 60 {
		t.Errorf("expected 60 used, got %d", m.Heap.Used())
	}
}
