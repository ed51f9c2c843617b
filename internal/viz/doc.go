// Package viz draws a running world in the terminal.
//
// The live view is a Bubble Tea program that steps a [world.World] on every
// tick and renders each collider as a braille wireframe:
//
//   - [Model]: live view of one scene with replay history
//   - [Canvas]: braille pixel canvas with per-cell ink
//   - [Camera], [Wireframe]: orbiting perspective projection of shapes
//   - [RunInteractive]: preset browser that launches the live view
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Rebuild the scene
//	B     - Kick every dynamic body upward
//	T     - Cycle color themes
//	?     - Show help overlay
//	[]    - Time travel (rewind/forward)
package viz
