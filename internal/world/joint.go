package world

import (
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rigidsim/internal/alloc"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/solver"
)

type JointKind uint8

const (
	JointBallSocket JointKind = iota
	JointHinge
	JointSlider
	JointFixed
)

var jointNames = map[JointKind]string{
	JointBallSocket: "ball",
	JointHinge:      "hinge",
	JointSlider:     "slider",
	JointFixed:      "fixed",
}

func (k JointKind) String() string {
	if s, ok := jointNames[k]; ok {
		return s
	}
	return fmt.Sprintf("JointKind(%d)", uint8(k))
}

func ParseJointKind(s string) (JointKind, error) {
	for k, name := range jointNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown joint type %q: %w", s, dynamo.ErrInvalidJoint)
}

// JointDef describes a joint in world space at creation time.
type JointDef struct {
	Kind         JointKind
	BodyA, BodyB BodyID
	Anchor       mgl64.Vec3
	// Axis is used by hinges and sliders.
	Axis   mgl64.Vec3
	Hinge  solver.HingeOptions
	Slider solver.SliderOptions
	// CollideConnected keeps contacts between the two bodies.
	CollideConnected bool
}

type Joint struct {
	id         JointID
	def        JointDef
	a, b       *Body
	constraint solver.Joint
}

func (j *Joint) ID() JointID { return j.id }

func (j *Joint) Kind() JointKind { return j.def.Kind }

func (j *Joint) Bodies() (BodyID, BodyID) { return j.a.id, j.b.id }

// Constraint exposes the solver joint, e.g. a *solver.Hinge for its angle.
func (j *Joint) Constraint() solver.Joint { return j.constraint }

// connects reports whether j is between a and b in either order.
func (j *Joint) connects(a, b *Body) bool {
	return (j.a == a && j.b == b) || (j.a == b && j.b == a)
}

// CreateJoint validates def and joins its bodies.
func (w *World) CreateJoint(def JointDef) (JointID, error) {
	a, err := w.body(def.BodyA)
	if err != nil {
		return JointID{}, err
	}
	b, err := w.body(def.BodyB)
	if err != nil {
		return JointID{}, err
	}

	var c solver.Joint
	switch def.Kind {
	case JointBallSocket:
		c, err = solver.NewBallSocket(&a.state, &b.state, def.Anchor)
	case JointHinge:
		c, err = solver.NewHinge(&a.state, &b.state, def.Anchor, def.Axis, def.Hinge)
	case JointSlider:
		c, err = solver.NewSlider(&a.state, &b.state, def.Anchor, def.Axis, def.Slider)
	case JointFixed:
		c, err = solver.NewFixed(&a.state, &b.state, def.Anchor)
	default:
		err = fmt.Errorf("joint kind %d: %w", def.Kind, dynamo.ErrInvalidJoint)
	}
	if err != nil {
		return JointID{}, err
	}
	if err := w.alloc.Heap.Alloc(alloc.SizeOf[Joint]()); err != nil {
		return JointID{}, fmt.Errorf("create joint: %w", err)
	}

	j := &Joint{def: def, a: a, b: b, constraint: c}
	j.id = JointID{w.joints.Insert(j)}
	w.jointOrder = append(w.jointOrder, j)
	a.joints = append(a.joints, j)
	b.joints = append(b.joints, j)
	a.wake()
	b.wake()
	return j.id, nil
}

// RemoveJoint deletes a joint and wakes its bodies.
func (w *World) RemoveJoint(id JointID) error {
	if err := w.alive(); err != nil {
		return err
	}
	j, ok := w.Joint(id)
	if !ok {
		return fmt.Errorf("joint %v: %w", id, dynamo.ErrInvalidHandle)
	}
	w.joints.Remove(id.Handle)
	w.jointOrder = slices.DeleteFunc(w.jointOrder, func(o *Joint) bool { return o == j })
	j.a.removeJoint(j)
	j.b.removeJoint(j)
	j.a.wake()
	j.b.wake()
	w.alloc.Heap.Free(alloc.SizeOf[Joint]())
	return nil
}

// jointExcludes reports whether a joint between a and b turns off their
// contacts.
func jointExcludes(a, b *Body) bool {
	js := a.joints
	if len(b.joints) < len(js) {
		js = b.joints
	}
	for _, j := range js {
		if j.connects(a, b) && !j.def.CollideConnected {
			return true
		}
	}
	return false
}
