package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/rigidsim/internal/automation"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/optim"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/storage"
)

var (
	saveRuns   bool
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	trials     int
	grid       []string
	metricName string
	mcJitter   float64
)

func batchCommands(sceneFlags func(*cobra.Command)) []*cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run every step of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	batchCmd.Flags().BoolVar(&saveRuns, "save", true, "store each step as a run")

	sweepCmd := &cobra.Command{
		Use:   "sweep [family/preset]",
		Short: "run a scene across a range of one parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	sceneFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "velocity_iterations", "parameter: "+strings.Join(config.ParamNames(), ", "))
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 2, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 16, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 8, "number of values")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [family/preset]",
		Short: "run jittered copies of a scene and count the stable ones",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonteCarlo,
	}
	sceneFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 16, "number of seeds")
	monteCarloCmd.Flags().Float64Var(&mcJitter, "perturb", 0.05, "jitter per axis")

	tuneCmd := &cobra.Command{
		Use:   "tune [family/preset]",
		Short: "grid search scene parameters for the lowest metric",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTune,
	}
	sceneFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&grid, "grid", []string{"velocity_iterations=2,4,8,12", "position_iterations=1,3"}, "name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&metricName, "metric", "max_penetration", "metric to minimize")

	return []*cobra.Command{batchCmd, sweepCmd, monteCarloCmd, tuneCmd}
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, runErr := automation.RunScenario(ctx, scenario, newLogger())

	var st *storage.Store
	if saveRuns {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSCENE\tSTEPS\tENERGY\tPENETRATION\tRUN")
	for i, r := range results {
		id := "-"
		if st != nil {
			id, err = st.Save(r.Name, r.Config, r.Result)
			if err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%.4f\t%.5f\t%s\n",
			i+1, r.Name, r.Result.StepsTaken,
			r.Result.Metrics["energy"], r.Result.Metrics["max_penetration"], id)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runSweep(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args)
	if err != nil {
		return err
	}

	results, err := automation.RunSweep(context.Background(), &automation.ParameterSweep{
		Scene:     sc,
		ParamName: sweepParam,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepSteps,
	}, newLogger())
	if err != nil {
		return err
	}

	names := metricNames(results[0].Metrics)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(sweepParam), strings.ToUpper(strings.Join(names, "\t")))
	for _, r := range results {
		fmt.Fprintf(w, "%.4g", r.ParamValue)
		for _, n := range names {
			fmt.Fprintf(w, "\t%.5f", r.Metrics[n])
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args)
	if err != nil {
		return err
	}

	results, err := automation.RunMonteCarlo(context.Background(), &automation.MonteCarloConfig{
		Scene:        sc,
		Perturbation: mcJitter,
		NumTrials:    trials,
		Seed:         sc.Seed,
	}, newLogger())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tSEED\tSTABLE\tENERGY\tSLEEPING")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%t\t%.4f\t%.2f\n", r.TrialID, r.Seed, r.Stable, r.Metrics["energy"], r.Metrics["sleep_ratio"])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("\nstable: %d  unstable: %d\n", stable, unstable)
	return nil
}

func runTune(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args)
	if err != nil {
		return err
	}

	names, ranges, err := parseGrid(grid)
	if err != nil {
		return err
	}
	search, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	log := newLogger()
	build := func(params map[string]float64) (*sim.Simulator, sim.Config, error) {
		run := sc.Clone()
		for k, v := range params {
			if err := run.SetParam(k, v); err != nil {
				return nil, sim.Config{}, err
			}
		}
		if err := run.Validate(); err != nil {
			return nil, sim.Config{}, err
		}
		s, err := automation.NewSimulator(run, log)
		return s, automation.Config(run), err
	}

	fmt.Printf("searching %d combinations for the lowest %s\n", search.Size(), metricName)
	best, value, tried, err := search.Search(context.Background(), build, metricName)
	for _, t := range tried {
		if t.Err != nil {
			log.Error(t.Err, "trial failed", "params", t.Params)
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("best %s: %.6f\n", metricName, value)
	for _, n := range names {
		fmt.Printf("  %s = %g\n", n, best[n])
	}
	return nil
}

func parseGrid(entries []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(entries))
	ranges := make([][]float64, 0, len(entries))
	for _, entry := range entries {
		name, list, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, nil, fmt.Errorf("grid entry must be name=v1,v2,..., got %q", entry)
		}
		var values []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("grid %s: %w", name, err)
			}
			values = append(values, v)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func metricNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
