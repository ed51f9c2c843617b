// Package automation runs batches of scenes without a terminal in the loop:
// scripted scenarios, single-parameter sweeps and seeded Monte Carlo
// stability checks.
package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/metrics"
	"github.com/san-kum/rigidsim/internal/sim"
)

// Scenario defines a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run. Exactly one of Preset or Scene names the
// starting scene; the remaining fields override it when set.
type ScenarioStep struct {
	Preset   string             `yaml:"preset"`
	Scene    string             `yaml:"scene"`
	Duration float64            `yaml:"duration"`
	Dt       float64            `yaml:"dt"`
	Seed     int64              `yaml:"seed"`
	Params   map[string]float64 `yaml:"params"`
	SaveAs   string             `yaml:"save_as"`
}

// StepResult pairs a finished run with the scene it ran.
type StepResult struct {
	Name   string
	Scene  *config.Scene
	Config sim.Config
	Result *sim.Result
}

var ErrNoScene = errors.New("automation: step names no scene")

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}

	return &scenario, nil
}

func (st ScenarioStep) scene() (*config.Scene, error) {
	var sc *config.Scene
	switch {
	case st.Scene != "":
		loaded, err := config.Load(st.Scene)
		if err != nil {
			return nil, err
		}
		sc = loaded
	case st.Preset != "":
		family, name, _ := strings.Cut(st.Preset, "/")
		sc = config.GetPreset(family, name)
		if sc == nil {
			return nil, fmt.Errorf("unknown preset %q", st.Preset)
		}
	default:
		return nil, ErrNoScene
	}

	if st.Duration > 0 {
		sc.Duration = st.Duration
	}
	if st.Dt > 0 {
		sc.Dt = st.Dt
	}
	if st.Seed != 0 {
		sc.Seed = st.Seed
	}
	for k, v := range st.Params {
		if err := sc.SetParam(k, v); err != nil {
			return nil, err
		}
	}
	return sc, sc.Validate()
}

// Config turns a scene into the run configuration used for it.
func Config(sc *config.Scene) sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Dt = sc.Dt
	cfg.Duration = sc.Duration
	cfg.Seed = sc.Seed
	return cfg
}

// NewSimulator builds the scene and attaches the default metrics.
func NewSimulator(sc *config.Scene, log logr.Logger) (*sim.Simulator, error) {
	w, bodies, err := sc.Build(log)
	if err != nil {
		return nil, err
	}
	s := sim.New(w, bodies)
	for _, m := range metrics.Default() {
		s.AddMetric(m)
	}
	return s, nil
}

// RunScene builds, runs and destroys one scene.
func RunScene(ctx context.Context, sc *config.Scene, log logr.Logger) (*sim.Result, error) {
	s, err := NewSimulator(sc, log)
	if err != nil {
		return nil, err
	}
	defer s.World().Destroy()
	return s.Run(ctx, Config(sc))
}

// RunScenario executes all steps in order and stops at the first failure,
// returning the steps that completed.
func RunScenario(ctx context.Context, scenario *Scenario, log logr.Logger) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		sc, err := step.scene()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		name := step.SaveAs
		if name == "" {
			name = sc.Name
		}
		log.Info("running step", "step", i+1, "of", len(scenario.Steps), "scene", name)

		result, err := RunScene(ctx, sc, log)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		results = append(results, StepResult{Name: name, Scene: sc, Config: Config(sc), Result: result})
	}

	return results, nil
}

// ParameterSweep runs a scene across evenly spaced values of one parameter.
type ParameterSweep struct {
	Scene     *config.Scene
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

type SweepResult struct {
	ParamValue float64
	Metrics    map[string]float64
	Final      *sim.Frame
	StepsTaken int
}

func RunSweep(ctx context.Context, sweep *ParameterSweep, log logr.Logger) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step, got %d", sweep.NumSteps)
	}
	results := make([]SweepResult, 0, sweep.NumSteps)

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	}

	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep
		sc := sweep.Scene.Clone()
		if err := sc.SetParam(sweep.ParamName, paramVal); err != nil {
			return nil, err
		}
		if err := sc.Validate(); err != nil {
			return nil, err
		}

		result, err := RunScene(ctx, sc, log)
		if err != nil {
			return nil, err
		}

		results = append(results, SweepResult{
			ParamValue: paramVal,
			Metrics:    result.Metrics,
			Final:      result.Final(),
			StepsTaken: result.StepsTaken,
		})

		log.V(1).Info("sweep", "step", i+1, "of", sweep.NumSteps, sweep.ParamName, paramVal)
	}

	return results, nil
}

// MonteCarloConfig runs a scene under NumTrials seeds, each jittering the
// dynamic bodies by up to Perturbation.
type MonteCarloConfig struct {
	Scene        *config.Scene
	Perturbation float64
	NumTrials    int
	Seed         int64
	// Bound is the largest coordinate a stable run may reach.
	Bound float64
}

type MonteCarloResult struct {
	TrialID int
	Seed    int64
	Final   *sim.Frame
	Metrics map[string]float64
	Stable  bool
}

// RunMonteCarlo executes the trials concurrently. A trial is unstable when
// it recorded an error or a body left the bound.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, log logr.Logger) ([]MonteCarloResult, error) {
	if cfg.NumTrials < 1 {
		return nil, fmt.Errorf("monte carlo needs at least one trial, got %d", cfg.NumTrials)
	}
	bound := cfg.Bound
	if bound <= 0 {
		bound = 1e6
	}

	base := cfg.Scene.Clone()
	base.Jitter = cfg.Perturbation
	if err := base.Validate(); err != nil {
		return nil, err
	}

	build := func(seed int64) (*sim.Simulator, error) {
		sc := base.Clone()
		sc.Seed = seed
		return NewSimulator(sc, log)
	}

	runs, err := sim.NewEnsemble(build, cfg.NumTrials, cfg.Seed).Run(ctx, Config(base))
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, len(runs))
	for i, r := range runs {
		final := r.Final()
		results[i] = MonteCarloResult{
			TrialID: i,
			Seed:    cfg.Seed + int64(i),
			Final:   final,
			Metrics: r.Metrics,
			Stable:  len(r.Errors) == 0 && bounded(final, bound),
		}
	}
	log.V(1).Info("monte carlo complete", "trials", cfg.NumTrials)

	return results, nil
}

func bounded(f *sim.Frame, bound float64) bool {
	if f == nil {
		return false
	}
	for _, b := range f.Bodies {
		for _, v := range b.Position {
			if math.IsNaN(v) || math.Abs(v) > bound {
				return false
			}
		}
	}
	return true
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
