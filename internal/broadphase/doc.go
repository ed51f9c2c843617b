// Package broadphase culls collider pairs with a dynamic AABB tree.
//
// Leaves store fattened boxes: a fixed margin plus the predicted displacement
// along the direction of motion. A leaf is reinserted only when its tight box
// escapes the fat box, so slow bodies cost nothing per step.
//
// BroadPhase keeps the persistent set of overlapping pairs. Only leaves that
// were inserted or reinserted since the last QueryOverlaps are queried against
// the tree; pairs whose fat boxes separate are dropped.
package broadphase
