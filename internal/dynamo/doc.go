// Package dynamo provides the primitives shared by every stage of the physics
// pipeline.
//
// The package defines:
//
//   - [Handle] and [Arena]: generation-checked slots for bodies, colliders and joints
//   - [ParallelFor]: bounded fan-out used by the narrow phase and the island solver
//   - the error taxonomy: configuration errors ([ErrInvalidShape], [ErrInvalidJoint],
//     [ErrInvalidKindTransition], ...) and the fatal [ErrOutOfMemory] wrapped in a
//     [StepError]
//
// # Thread Safety
//
// Arena is NOT thread-safe. A world and everything it owns follows a
// single-writer discipline: no mutation while a step is running.
package dynamo
