package config

import (
	"fmt"
	"math"
	"sort"
)

type paramSetter func(s *Scene, v float64)

var tunable = map[string]paramSetter{
	"dt":                  func(s *Scene, v float64) { s.Dt = v },
	"jitter":              func(s *Scene, v float64) { s.Jitter = v },
	"gravity":             func(s *Scene, v float64) { s.World.Gravity[1] = v },
	"velocity_iterations": func(s *Scene, v float64) { s.World.VelocityIterations = int(math.Round(v)) },
	"position_iterations": func(s *Scene, v float64) { s.World.PositionIterations = int(math.Round(v)) },
	"workers":             func(s *Scene, v float64) { s.World.Workers = int(math.Round(v)) },
}

// ParamNames lists the scene parameters accepted by SetParam.
func ParamNames() []string {
	names := make([]string, 0, len(tunable))
	for n := range tunable {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetParam overrides a single scalar scene parameter. Gravity sets the
// vertical component only. Integer parameters are rounded.
func (s *Scene) SetParam(name string, v float64) error {
	set, ok := tunable[name]
	if !ok {
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidScene, name)
	}
	set(s, v)
	return nil
}
