package config

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

func ptr[T any](v T) *T { return &v }

func ground() BodyConfig {
	return BodyConfig{
		Name:     "ground",
		Kind:     "static",
		Position: Vec{0, -0.5, 0},
		Colliders: []ColliderConfig{
			{Shape: "box", HalfExtents: Vec{20, 0.5, 20}},
		},
	}
}

func ball(name string, pos Vec, r float64) BodyConfig {
	return BodyConfig{
		Name:      name,
		Position:  pos,
		Colliders: []ColliderConfig{{Shape: "sphere", Radius: r}},
	}
}

func crate(name string, pos Vec, half float64) BodyConfig {
	return BodyConfig{
		Name:      name,
		Position:  pos,
		Colliders: []ColliderConfig{{Shape: "box", HalfExtents: Vec{half, half, half}}},
	}
}

func scene(name, desc string, duration float64, bodies []BodyConfig, joints ...JointConfig) *Scene {
	return &Scene{
		Name:        name,
		Description: desc,
		Dt:          DefaultDt,
		Duration:    duration,
		World:       defaultWorld(),
		Bodies:      bodies,
		Joints:      joints,
	}
}

func stack(n int) []BodyConfig {
	bodies := []BodyConfig{ground()}
	for i := range n {
		bodies = append(bodies, crate(name("box", i), Vec{0, 0.5 + 1.0*float64(i), 0}, 0.5))
	}
	return bodies
}

func chain(n int, joint string) ([]BodyConfig, []JointConfig) {
	bodies := []BodyConfig{{Name: "anchor", Kind: "static", Position: Vec{0, 10, 0}}}
	var joints []JointConfig
	prev := "anchor"
	for i := range n {
		x := float64(i+1) * 1.0
		b := ball(name("link", i), Vec{x, 10, 0}, 0.2)
		bodies = append(bodies, b)
		joints = append(joints, JointConfig{
			Type:   joint,
			BodyA:  prev,
			BodyB:  b.Name,
			Anchor: Vec{x - 1, 10, 0},
			Axis:   Vec{0, 0, 1},
		})
		prev = b.Name
	}
	return bodies, joints
}

func grid(rows int) []BodyConfig {
	bodies := []BodyConfig{ground()}
	i := 0
	for y := range rows {
		for x := range 3 {
			for z := range 3 {
				pos := Vec{float64(x-1) * 1.2, 1 + float64(y)*1.2, float64(z-1) * 1.2}
				if (x+y+z)%2 == 0 {
					bodies = append(bodies, ball(name("ball", i), pos, 0.5))
				} else {
					bodies = append(bodies, crate(name("box", i), pos, 0.45))
				}
				i++
			}
		}
	}
	return bodies
}

func terrain(rows, cols int) BodyConfig {
	heights := make([]float64, rows*cols)
	for r := range rows {
		for c := range cols {
			heights[r*cols+c] = 0.5 * math.Sin(float64(c)*0.6) * math.Cos(float64(r)*0.6)
		}
	}
	return BodyConfig{
		Name:     "terrain",
		Kind:     "static",
		Position: Vec{-float64(cols-1) / 2, 0, -float64(rows-1) / 2},
		Colliders: []ColliderConfig{{
			Shape: "heightfield", Columns: cols, Rows: rows, Spacing: 1, Heights: heights,
		}},
	}
}

func ramp() BodyConfig {
	return BodyConfig{
		Name: "ramp",
		Kind: "static",
		Colliders: []ColliderConfig{{
			Shape: "mesh",
			Vertices: []Vec{
				{-5, 0, -5}, {5, 0, -5}, {5, 0, 5}, {-5, 0, 5},
				{-5, 3, -5}, {-5, 3, 5},
			},
			Triangles: [][3]int{{0, 2, 1}, {0, 3, 2}, {0, 4, 5}, {0, 5, 3}, {3, 5, 2}, {4, 1, 2}, {4, 2, 5}},
		}},
	}
}

func name(prefix string, i int) string { return fmt.Sprintf("%s%d", prefix, i) }

func pendulum() *Scene {
	bodies, joints := chain(1, "ball")
	bodies[1].Position = Vec{2, 10, 0}
	joints[0].Anchor = Vec{0, 10, 0}
	return scene("pendulum/single", "one ball on a ball joint", 10, bodies, joints...)
}

func chainScene() *Scene {
	bodies, joints := chain(6, "ball")
	return scene("pendulum/chain", "six links of ball joints", 10, bodies, joints...)
}

func door(motor bool) *Scene {
	bodies := []BodyConfig{
		{Name: "frame", Kind: "static", Position: Vec{0, 2, 0}},
		{
			Name:      "door",
			Position:  Vec{1, 2, 0},
			Colliders: []ColliderConfig{{Shape: "box", HalfExtents: Vec{1, 1, 0.05}}},
		},
	}
	j := JointConfig{Type: "hinge", BodyA: "frame", BodyB: "door", Anchor: Vec{0, 2, 0}, Axis: Vec{0, 1, 0}}
	if motor {
		j.MotorSpeed = math.Pi / 2
		j.MaxMotor = 50
		j.Lower, j.Upper = ptr(-90.0), ptr(90.0)
		return scene("hinge/motor", "motorized door swinging into its limit", 5, bodies, j)
	}
	bodies[1].AngularVelocity = Vec{0, 2, 0}
	return scene("hinge/door", "free door pushed open", 5, bodies, j)
}

func rail(motor bool) *Scene {
	bodies := []BodyConfig{
		ground(),
		{Name: "post", Kind: "static", Position: Vec{0, 1, 0}},
		crate("cart", Vec{0, 1, 0}, 0.3),
	}
	bodies[2].Gravity = ptr(false)
	j := JointConfig{
		Type: "slider", BodyA: "post", BodyB: "cart", Anchor: Vec{0, 1, 0}, Axis: Vec{1, 0, 0},
		Lower: ptr(-3.0), Upper: ptr(3.0),
	}
	if motor {
		j.MotorSpeed = 1
		j.MaxMotor = 20
		return scene("slider/motor", "cart driven along a rail into its stop", 8, bodies, j)
	}
	bodies[2].LinearVelocity = Vec{4, 0, 0}
	return scene("slider/rail", "cart sliding into the end of its rail", 5, bodies, j)
}

var Presets = map[string]map[string]*Scene{
	"drop": {
		"ball": scene("drop/ball", "one ball dropped on the ground", 5,
			[]BodyConfig{ground(), ball("ball", Vec{0, 4, 0}, 0.5)}),
		"box": scene("drop/box", "a tumbling box dropped on the ground", 5,
			[]BodyConfig{ground(), func() BodyConfig {
				b := crate("box", Vec{0, 4, 0}, 0.5)
				b.Rotation = Vec{30, 20, 10}
				return b
			}()}),
		"capsule": scene("drop/capsule", "a capsule dropped on its side", 5,
			[]BodyConfig{ground(), {
				Name:      "capsule",
				Position:  Vec{0, 3, 0},
				Rotation:  Vec{0, 0, 80},
				Colliders: []ColliderConfig{{Shape: "capsule", Radius: 0.3, HalfHeight: 0.6}},
			}}),
		"bounce": scene("drop/bounce", "a rubber ball bouncing to rest", 8,
			[]BodyConfig{ground(), func() BodyConfig {
				b := ball("ball", Vec{0, 5, 0}, 0.5)
				b.Colliders[0].Restitution = ptr(0.7)
				return b
			}()}),
	},
	"stack": {
		"small": scene("stack/small", "three boxes stacked", 8, stack(3)),
		"tall":  scene("stack/tall", "eight boxes stacked", 10, stack(8)),
	},
	"pendulum": {
		"single": pendulum(),
		"chain":  chainScene(),
	},
	"hinge": {
		"door":  door(false),
		"motor": door(true),
	},
	"slider": {
		"rail":  rail(false),
		"motor": rail(true),
	},
	"pile": {
		"mixed": func() *Scene {
			s := scene("pile/mixed", "balls and boxes falling into a pile", 10, grid(4))
			s.Jitter = 0.05
			s.Seed = 1
			return s
		}(),
	},
	"terrain": {
		"hills": scene("terrain/hills", "balls rolling over a height field", 10,
			[]BodyConfig{terrain(16, 16), ball("a", Vec{-3, 3, 0}, 0.4), ball("b", Vec{2, 4, 1}, 0.4), crate("c", Vec{0, 5, -2}, 0.3)}),
		"ramp": scene("terrain/ramp", "a box sliding down a triangle mesh ramp", 6,
			[]BodyConfig{ramp(), crate("box", Vec{-3.5, 3.5, 0}, 0.3)}),
	},
}

// GetPreset returns a copy of the preset, or nil when it does not exist.
func GetPreset(family, preset string) *Scene {
	familyPresets, ok := Presets[family]
	if !ok {
		return nil
	}
	sc, ok := familyPresets[preset]
	if !ok {
		return nil
	}
	return sc.Clone()
}

// ListPresets returns the preset names of a family in order.
func ListPresets(family string) []string {
	familyPresets, ok := Presets[family]
	if !ok {
		return nil
	}
	return slices.Sorted(maps.Keys(familyPresets))
}

// Families returns every preset family in order.
func Families() []string {
	return slices.Sorted(maps.Keys(Presets))
}
