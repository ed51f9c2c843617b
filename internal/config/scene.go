package config

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/shape"
	"github.com/san-kum/rigidsim/internal/solver"
	"github.com/san-kum/rigidsim/internal/world"
)

const (
	DefaultDt       = 1.0 / 60
	DefaultDuration = 10.0
)

// ErrInvalidScene wraps every validation failure of a scene file.
var ErrInvalidScene = errors.New("config: invalid scene")

// Vec is written as a [x, y, z] list.
type Vec [3]float64

func (v Vec) mgl() mgl64.Vec3 { return mgl64.Vec3(v) }

// rotation turns XYZ Euler angles in degrees into a quaternion.
func rotation(deg Vec) mgl64.Quat {
	return mgl64.AnglesToQuat(mgl64.DegToRad(deg[0]), mgl64.DegToRad(deg[1]), mgl64.DegToRad(deg[2]), mgl64.XYZ)
}

type Scene struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Dt          float64 `yaml:"dt"`
	Duration    float64 `yaml:"duration"`
	Seed        int64   `yaml:"seed"`
	// Jitter displaces every dynamic body by up to this distance per axis,
	// drawn from Seed.
	Jitter float64       `yaml:"jitter,omitempty"`
	World  WorldConfig   `yaml:"world"`
	Bodies []BodyConfig  `yaml:"bodies"`
	Joints []JointConfig `yaml:"joints,omitempty"`
}

type WorldConfig struct {
	Gravity            Vec   `yaml:"gravity"`
	VelocityIterations int   `yaml:"velocity_iterations"`
	PositionIterations int   `yaml:"position_iterations"`
	Workers            int   `yaml:"workers"`
	AllowSleep         *bool `yaml:"allow_sleep,omitempty"`
	WarmStarting       *bool `yaml:"warm_starting,omitempty"`
}

type BodyConfig struct {
	Name            string           `yaml:"name"`
	Kind            string           `yaml:"kind"`
	Position        Vec              `yaml:"position"`
	Rotation        Vec              `yaml:"rotation,omitempty"`
	LinearVelocity  Vec              `yaml:"linear_velocity,omitempty"`
	AngularVelocity Vec              `yaml:"angular_velocity,omitempty"`
	LinearDamping   float64          `yaml:"linear_damping,omitempty"`
	AngularDamping  float64          `yaml:"angular_damping,omitempty"`
	Mass            float64          `yaml:"mass,omitempty"`
	Gravity         *bool            `yaml:"gravity,omitempty"`
	AllowSleep      *bool            `yaml:"allow_sleep,omitempty"`
	Colliders       []ColliderConfig `yaml:"colliders"`
}

// ColliderConfig describes one shape. Only the fields of its Shape are read.
type ColliderConfig struct {
	Shape       string    `yaml:"shape"`
	Radius      float64   `yaml:"radius,omitempty"`
	HalfHeight  float64   `yaml:"half_height,omitempty"`
	HalfExtents Vec       `yaml:"half_extents,omitempty"`
	Vertices    []Vec     `yaml:"vertices,omitempty"`
	Faces       [][]int   `yaml:"faces,omitempty"`
	Triangles   [][3]int  `yaml:"triangles,omitempty"`
	Columns     int       `yaml:"columns,omitempty"`
	Rows        int       `yaml:"rows,omitempty"`
	Spacing     float64   `yaml:"spacing,omitempty"`
	Heights     []float64 `yaml:"heights,omitempty"`

	Offset   Vec `yaml:"offset,omitempty"`
	Rotation Vec `yaml:"rotation,omitempty"`

	Friction    *float64 `yaml:"friction,omitempty"`
	Restitution *float64 `yaml:"restitution,omitempty"`
	Density     *float64 `yaml:"density,omitempty"`
	Category    uint32   `yaml:"category,omitempty"`
	Mask        uint32   `yaml:"mask,omitempty"`
}

// JointConfig names its bodies. Hinge limits are in degrees, slider limits
// in meters.
type JointConfig struct {
	Type             string   `yaml:"type"`
	BodyA            string   `yaml:"body_a"`
	BodyB            string   `yaml:"body_b"`
	Anchor           Vec      `yaml:"anchor"`
	Axis             Vec      `yaml:"axis,omitempty"`
	Lower            *float64 `yaml:"lower,omitempty"`
	Upper            *float64 `yaml:"upper,omitempty"`
	MotorSpeed       float64  `yaml:"motor_speed,omitempty"`
	MaxMotor         float64  `yaml:"max_motor,omitempty"`
	CollideConnected bool     `yaml:"collide_connected,omitempty"`
}

// DefaultScene drops a ball on a ground box.
func DefaultScene() *Scene {
	return GetPreset("drop", "ball")
}

func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse reads a scene, filling unset fields from the defaults.
func Parse(data []byte) (*Scene, error) {
	sc := &Scene{Dt: DefaultDt, Duration: DefaultDuration}
	sc.World = defaultWorld()
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScene, err)
	}
	return sc, nil
}

func Save(path string, sc *Scene) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func defaultWorld() WorldConfig {
	s := world.DefaultSettings()
	return WorldConfig{
		Gravity:            Vec(s.Gravity),
		VelocityIterations: s.VelocityIterations,
		PositionIterations: s.PositionIterations,
	}
}

// Clone copies the scene deeply enough that edits to its fields, bodies and
// joints do not reach the original.
func (s *Scene) Clone() *Scene {
	c := *s
	c.Bodies = make([]BodyConfig, len(s.Bodies))
	for i, b := range s.Bodies {
		b.Colliders = append([]ColliderConfig(nil), b.Colliders...)
		c.Bodies[i] = b
	}
	c.Joints = append([]JointConfig(nil), s.Joints...)
	return &c
}

// Steps is the number of fixed steps that cover Duration.
func (s *Scene) Steps() int {
	if s.Dt <= 0 {
		return 0
	}
	return int(s.Duration/s.Dt + 0.5)
}

// Settings maps the world section onto world settings.
func (s *Scene) Settings(log logr.Logger) world.Settings {
	set := world.DefaultSettings()
	set.Gravity = s.World.Gravity.mgl()
	if s.World.VelocityIterations != 0 {
		set.VelocityIterations = s.World.VelocityIterations
	}
	if s.World.PositionIterations != 0 {
		set.PositionIterations = s.World.PositionIterations
	}
	set.Workers = s.World.Workers
	if s.World.AllowSleep != nil {
		set.AllowSleep = *s.World.AllowSleep
	}
	if s.World.WarmStarting != nil {
		set.Solver.WarmStarting = *s.World.WarmStarting
	}
	set.Logger = log
	return set
}

// Validate checks what can be checked without building the world.
func (s *Scene) Validate() error {
	if !(s.Dt > 0) {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidScene, s.Dt)
	}
	if !(s.Duration > 0) {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalidScene, s.Duration)
	}
	if s.Jitter < 0 {
		return fmt.Errorf("%w: jitter must not be negative, got %g", ErrInvalidScene, s.Jitter)
	}
	names := make(map[string]bool, len(s.Bodies))
	for i, b := range s.Bodies {
		if b.Name == "" {
			return fmt.Errorf("%w: body %d has no name", ErrInvalidScene, i)
		}
		if names[b.Name] {
			return fmt.Errorf("%w: duplicate body %q", ErrInvalidScene, b.Name)
		}
		names[b.Name] = true
		if _, err := world.ParseBodyKind(b.Kind); err != nil {
			return fmt.Errorf("%w: body %q: %v", ErrInvalidScene, b.Name, err)
		}
	}
	for i, j := range s.Joints {
		if !names[j.BodyA] || !names[j.BodyB] {
			return fmt.Errorf("%w: joint %d joins unknown bodies %q and %q", ErrInvalidScene, i, j.BodyA, j.BodyB)
		}
		if _, err := world.ParseJointKind(j.Type); err != nil {
			return fmt.Errorf("%w: joint %d: %v", ErrInvalidScene, i, err)
		}
	}
	return nil
}

// Build creates a world holding the scene. The returned map addresses bodies
// by name.
func (s *Scene) Build(log logr.Logger) (*world.World, map[string]world.BodyID, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	w, err := world.New(s.Settings(log))
	if err != nil {
		return nil, nil, err
	}
	ids, err := s.populate(w)
	if err != nil {
		w.Destroy()
		return nil, nil, err
	}
	return w, ids, nil
}

func (s *Scene) populate(w *world.World) (map[string]world.BodyID, error) {
	rng := rand.New(rand.NewSource(s.Seed))
	ids := make(map[string]world.BodyID, len(s.Bodies))

	for _, bc := range s.Bodies {
		kind, _ := world.ParseBodyKind(bc.Kind)
		pos := bc.Position.mgl()
		if kind == world.Dynamic && s.Jitter > 0 {
			for i := range pos {
				pos[i] += (rng.Float64()*2 - 1) * s.Jitter
			}
		}
		id, err := w.CreateBody(geom.NewTransform(pos, rotation(bc.Rotation)), kind)
		if err != nil {
			return nil, fmt.Errorf("body %q: %w", bc.Name, err)
		}
		ids[bc.Name] = id
		b, _ := w.Body(id)
		b.Name = bc.Name

		for i, cc := range bc.Colliders {
			sh, err := cc.shape()
			if err != nil {
				return nil, fmt.Errorf("body %q collider %d: %w", bc.Name, i, err)
			}
			cid, err := w.AddCollider(id, sh, geom.NewTransform(cc.Offset.mgl(), rotation(cc.Rotation)), cc.material())
			if err != nil {
				return nil, fmt.Errorf("body %q collider %d: %w", bc.Name, i, err)
			}
			if cc.Category != 0 || cc.Mask != 0 {
				f := world.DefaultFilter()
				if cc.Category != 0 {
					f.Category = cc.Category
				}
				if cc.Mask != 0 {
					f.Mask = cc.Mask
				}
				if err := w.SetFilter(cid, f); err != nil {
					return nil, err
				}
			}
		}

		if bc.Mass > 0 {
			b.SetMass(bc.Mass)
		}
		b.SetLinearDamping(bc.LinearDamping)
		b.SetAngularDamping(bc.AngularDamping)
		if bc.Gravity != nil {
			b.SetGravityEnabled(*bc.Gravity)
		}
		if bc.AllowSleep != nil {
			b.SetAllowSleep(*bc.AllowSleep)
		}
		b.SetLinearVelocity(bc.LinearVelocity.mgl())
		b.SetAngularVelocity(bc.AngularVelocity.mgl())
	}

	for i, jc := range s.Joints {
		if _, err := w.CreateJoint(jc.def(ids)); err != nil {
			return nil, fmt.Errorf("joint %d (%s %s-%s): %w", i, jc.Type, jc.BodyA, jc.BodyB, err)
		}
	}
	return ids, nil
}

func (c ColliderConfig) shape() (shape.Shape, error) {
	switch c.Shape {
	case "sphere":
		return shape.NewSphere(c.Radius)
	case "box":
		return shape.NewBox(c.HalfExtents.mgl())
	case "capsule":
		return shape.NewCapsule(c.Radius, c.HalfHeight)
	case "convex":
		return shape.NewConvexMesh(vecs(c.Vertices), c.Faces)
	case "triangle":
		if len(c.Vertices) != 3 {
			return nil, fmt.Errorf("%w: triangle needs 3 vertices, got %d", ErrInvalidScene, len(c.Vertices))
		}
		return shape.NewTriangle(c.Vertices[0].mgl(), c.Vertices[1].mgl(), c.Vertices[2].mgl())
	case "mesh":
		return shape.NewTriangleMesh(vecs(c.Vertices), c.Triangles)
	case "heightfield":
		return shape.NewHeightField(c.Columns, c.Rows, c.Spacing, c.Heights)
	}
	return nil, fmt.Errorf("%w: unknown shape %q", ErrInvalidScene, c.Shape)
}

func (c ColliderConfig) material() world.Material {
	m := world.DefaultMaterial()
	if c.Friction != nil {
		m.Friction = *c.Friction
	}
	if c.Restitution != nil {
		m.Restitution = *c.Restitution
	}
	if c.Density != nil {
		m.Density = *c.Density
	}
	return m
}

func (j JointConfig) def(ids map[string]world.BodyID) world.JointDef {
	kind, _ := world.ParseJointKind(j.Type)
	def := world.JointDef{
		Kind:             kind,
		BodyA:            ids[j.BodyA],
		BodyB:            ids[j.BodyB],
		Anchor:           j.Anchor.mgl(),
		Axis:             j.Axis.mgl(),
		CollideConnected: j.CollideConnected,
	}
	limited := j.Lower != nil && j.Upper != nil
	switch kind {
	case world.JointHinge:
		def.Hinge = solver.HingeOptions{
			EnableMotor:    j.MaxMotor > 0,
			MotorSpeed:     j.MotorSpeed,
			MaxMotorTorque: j.MaxMotor,
		}
		if limited {
			def.Hinge.EnableLimit = true
			def.Hinge.Lower = mgl64.DegToRad(*j.Lower)
			def.Hinge.Upper = mgl64.DegToRad(*j.Upper)
		}
	case world.JointSlider:
		def.Slider = solver.SliderOptions{
			EnableMotor:   j.MaxMotor > 0,
			MotorSpeed:    j.MotorSpeed,
			MaxMotorForce: j.MaxMotor,
		}
		if limited {
			def.Slider.EnableLimit = true
			def.Slider.Lower = *j.Lower
			def.Slider.Upper = *j.Upper
		}
	}
	return def
}

func vecs(vs []Vec) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(vs))
	for i, v := range vs {
		out[i] = v.mgl()
	}
	return out
}
