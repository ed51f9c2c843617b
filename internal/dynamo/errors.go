package dynamo

import (
	"errors"
	"fmt"
)

// Configuration errors. The call that returns one of these leaves the world unchanged.
var (
	// ErrInvalidShape indicates zero, negative or non-finite shape dimensions, or a
	// polyhedron that is not closed and convex.
	ErrInvalidShape = errors.New("dynamo: invalid shape")

	// ErrInvalidJoint indicates an unusable joint definition (same body twice,
	// zero axis, inverted limits, two non-dynamic bodies).
	ErrInvalidJoint = errors.New("dynamo: invalid joint")

	// ErrInvalidKindTransition indicates a body kind change the body cannot take,
	// e.g. a body carrying a concave collider becoming dynamic.
	ErrInvalidKindTransition = errors.New("dynamo: invalid body kind transition")

	// ErrInvalidHandle indicates a stale or never-issued handle.
	ErrInvalidHandle = errors.New("dynamo: invalid handle")

	// ErrDegenerateAABB indicates a bounding box with non-positive or non-finite extent.
	ErrDegenerateAABB = errors.New("dynamo: degenerate aabb")

	// ErrInvalidSettings indicates world settings outside their valid range.
	ErrInvalidSettings = errors.New("dynamo: invalid settings")

	// ErrInvalidTimeStep indicates a non-positive or non-finite step size.
	ErrInvalidTimeStep = errors.New("dynamo: invalid time step")
)

// ErrOutOfMemory indicates the allocation service could not provide scratch space
// for a step. It is fatal to the step that raised it.
var ErrOutOfMemory = errors.New("dynamo: allocator exhausted")

// StepError wraps a fatal error with the step and phase that raised it. A step
// that returns a StepError has committed nothing.
type StepError struct {
	Step    uint64
	Phase   string
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Phase, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
