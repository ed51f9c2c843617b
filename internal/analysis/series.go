package analysis

import (
	"errors"

	"github.com/san-kum/rigidsim/internal/sim"
)

var ErrShortSeries = errors.New("analysis: series too short")

type Quantity int

const (
	Position Quantity = iota
	LinearVelocity
	AngularVelocity
)

func (q Quantity) String() string {
	switch q {
	case Position:
		return "position"
	case LinearVelocity:
		return "velocity"
	case AngularVelocity:
		return "angular_velocity"
	}
	return "unknown"
}

func ParseQuantity(s string) (Quantity, error) {
	switch s {
	case "position", "pos", "":
		return Position, nil
	case "velocity", "vel":
		return LinearVelocity, nil
	case "angular_velocity", "omega":
		return AngularVelocity, nil
	}
	return 0, errors.New("analysis: unknown quantity " + s)
}

// Series extracts one axis (0..2) of a body quantity from recorded frames.
// Frames without the body are skipped.
func Series(frames []sim.Frame, name string, q Quantity, axis int) []float64 {
	out := make([]float64, 0, len(frames))
	if axis < 0 || axis > 2 {
		return out
	}
	for i := range frames {
		b, ok := frames[i].Body(name)
		if !ok {
			continue
		}
		switch q {
		case Position:
			out = append(out, b.Position[axis])
		case LinearVelocity:
			out = append(out, b.LinearVelocity[axis])
		case AngularVelocity:
			out = append(out, b.AngularVelocity[axis])
		}
	}
	return out
}
