package dynamo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelForCoversRange(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		minChunk int
		workers  int
	}{
		{"serial", 10, 100, 4},
		{"single worker", 50, 1, 1},
		{"chunked", 1000, 16, 4},
		{"uneven", 37, 5, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := make([]int32, tt.n)
			err := ParallelFor(context.Background(), tt.n, tt.minChunk, tt.workers, func(start, end int) error {
				for i := start; i < end; i++ {
					atomic.AddInt32(&hits[i], 1)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i, h := range hits {
				if h != 1 {
					t.Fatalf("index %d visited %d times", i, h)
				}
			}
		})
	}
}

func TestParallelForPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := ParallelFor(context.Background(), 100, 10, 4, func(start, end int) error {
		if start == 0 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestStepErrorUnwrap(t *testing.T) {
	err := &StepError{Step: 3, Phase: "narrowphase", Wrapped: ErrOutOfMemory}
	if !errors.Is(err, ErrOutOfMemory) {
		t.Error("StepError must unwrap to its cause")
	}
	if err.Error() == "" {
		t.Error("expected message")
	}
}
