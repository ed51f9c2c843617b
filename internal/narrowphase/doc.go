// Package narrowphase turns broad-phase pairs into contact manifolds.
//
// A [Dispatcher] looks up the algorithm for a pair of shape kinds in a fixed
// table:
//
//	sphere, capsule x sphere, capsule     closed form
//	sphere, capsule x box, mesh, triangle GJK on the cores, EPA when they overlap
//	box, mesh, triangle x polyhedron      GJK early-out, then SAT with face clipping
//	concave x convex                      per triangle, via the mesh tree or grid
//
// Normals point from shape A to shape B. Separation is negative when the
// shapes penetrate. Pairs closer than TouchSlop produce speculative contacts
// with positive separation. Numerical trouble never drops a contact: GJK and
// EPA fall back to a best-effort normal and count the event in Stats.
package narrowphase
