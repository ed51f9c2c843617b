// Package optim searches scene parameters for the setting that minimizes
// a run metric, such as the fewest solver iterations that keep
// penetration low.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/rigidsim/internal/sim"
)

var ErrNoCandidates = errors.New("optim: no parameter combination could run")

// Build prepares one run for a parameter combination.
type Build func(params map[string]float64) (*sim.Simulator, sim.Config, error)

// Trial is one evaluated combination. Err is set when the run could not be
// built or failed.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: parameter %q has no values", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Size is the number of combinations.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search runs every combination in order and returns the one with the
// lowest metric value along with all trials. Worlds are destroyed after
// each run. Cancellation stops the search with ctx.Err().
func (g *GridSearch) Search(ctx context.Context, build Build, metricName string) (map[string]float64, float64, []Trial, error) {
	best := math.Inf(1)
	var bestParams map[string]float64
	trials := make([]Trial, 0, g.Size())

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(params map[string]float64) {
		tr := g.evaluate(ctx, build, metricName, params)
		trials = append(trials, tr)
		if tr.Err == nil && tr.Value < best {
			best = tr.Value
			bestParams = tr.Params
		}
	})
	if err != nil {
		return nil, 0, trials, err
	}
	if bestParams == nil {
		return nil, 0, trials, ErrNoCandidates
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) evaluate(ctx context.Context, build Build, metricName string, params map[string]float64) Trial {
	tr := Trial{Params: params}
	s, cfg, err := build(params)
	if err != nil {
		tr.Err = err
		return tr
	}
	defer s.World().Destroy()

	result, err := s.Run(ctx, cfg)
	if err != nil {
		tr.Err = err
		return tr
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		tr.Err = fmt.Errorf("optim: run has no metric %q", metricName)
		return tr
	}
	tr.Value = val
	return tr
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	visit func(map[string]float64),
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(g.paramNames) {
		visit(current)
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}
