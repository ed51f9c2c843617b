package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/rigidsim/internal/automation"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/metrics"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/storage"
	"github.com/san-kum/rigidsim/internal/viz"
	"github.com/san-kum/rigidsim/internal/world"
)

var (
	dataDir  string
	verbose  int
	dt       float64
	duration float64
	seed     int64
	workers  int
	every    int
	// Config file
	configFile string
	// Export targets
	jsonOut string
	svgOut  string
	// Series selection for plot and analyze
	bodyName string
	quantity string
	axis     int
	tol      float64
	// Bench options
	benchSteps  int
	profileMode string
	// Raycast segment
	rayFrom []float64
	rayTo   []float64
	after   float64
	// Divergence runs
	perturb float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "rigidsim",
		Short:         "3d rigid body physics simulation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to the preset browser when no command given
			return viz.RunInteractive()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".rigidsim", "data directory")
	rootCmd.PersistentFlags().IntVarP(&verbose, "verbose", "v", 0, "log verbosity on stderr")

	sceneFlags := func(cmd *cobra.Command) {
		cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
		cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
		cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for jitter")
		cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines (0 = GOMAXPROCS)")
		cmd.Flags().StringVar(&configFile, "config", "", "scene file path (yaml)")
	}

	runCmd := &cobra.Command{
		Use:   "run [family/preset]",
		Short: "run a scene and store the result",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	sceneFlags(runCmd)
	runCmd.Flags().IntVar(&every, "every", 1, "record every n-th step")
	runCmd.Flags().StringVar(&jsonOut, "json", "", "also export frames to this JSON file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot body motion of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	seriesFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&bodyName, "body", "", "body name (default: every dynamic body)")
		cmd.Flags().StringVar(&quantity, "quantity", "position", "position, velocity or angular_velocity")
		cmd.Flags().IntVar(&axis, "axis", 1, "axis index (0=x, 1=y, 2=z)")
	}
	seriesFlags(plotCmd)

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata, or frames with --json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&jsonOut, "json", "", "write frames to this JSON file")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [family/preset]",
		Short: "render a side view of a scene",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportSVG,
	}
	sceneFlags(exportSVGCmd)
	exportSVGCmd.Flags().StringVar(&svgOut, "out", "scene.svg", "output file")
	exportSVGCmd.Flags().StringVar(&bodyName, "trace", "", "also write the XY path of this body")
	exportSVGCmd.Flags().Float64Var(&after, "after", 0, "seconds to simulate before rendering")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency, settle time and phase analysis",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	seriesFlags(analyzeCmd)
	analyzeCmd.Flags().Float64Var(&tol, "tol", 0.01, "speed below which a body counts as settled")

	benchCmd := &cobra.Command{
		Use:   "bench [family/preset]",
		Short: "benchmark step throughput across worker counts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchScene,
	}
	sceneFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchSteps, "steps", 600, "steps per measurement")
	benchCmd.Flags().StringVar(&profileMode, "profile", "", "write a cpu or mem profile")

	liveCmd := &cobra.Command{
		Use:   "live [family/preset]",
		Short: "run a scene with live visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	sceneFlags(liveCmd)

	presetsCmd := &cobra.Command{
		Use:   "presets [family]",
		Short: "list preset families, or the presets of one family",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Println("families:")
				for _, f := range config.Families() {
					fmt.Printf("  %s\n", f)
				}
				return nil
			}
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for family: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, p := range presets {
				sc := config.GetPreset(args[0], p)
				fmt.Fprintf(w, "  %s/%s\t%s\n", args[0], p, sc.Description)
			}
			return w.Flush()
		},
	}

	raycastCmd := &cobra.Command{
		Use:   "raycast [family/preset]",
		Short: "cast a ray into a scene",
		Args:  cobra.MaximumNArgs(1),
		RunE:  raycastScene,
	}
	sceneFlags(raycastCmd)
	raycastCmd.Flags().Float64SliceVar(&rayFrom, "from", []float64{0, 10, 0}, "ray start x,y,z")
	raycastCmd.Flags().Float64SliceVar(&rayTo, "to", []float64{0, -10, 0}, "ray end x,y,z")
	raycastCmd.Flags().Float64Var(&after, "after", 0, "seconds to simulate before casting")

	divergeCmd := &cobra.Command{
		Use:   "diverge [family/preset]",
		Short: "estimate how fast two nearby runs separate",
		Args:  cobra.MaximumNArgs(1),
		RunE:  divergeScene,
	}
	sceneFlags(divergeCmd)
	divergeCmd.Flags().Float64Var(&perturb, "perturb", 1e-6, "initial jitter between the runs")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportSVGCmd, analyzeCmd, benchCmd, liveCmd, presetsCmd, raycastCmd, divergeCmd)
	rootCmd.AddCommand(batchCommands(sceneFlags)...)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
		} else {
			fmt.Fprintln(os.Stderr, args)
		}
	}, funcr.Options{Verbosity: verbose})
}

// loadScene resolves the scene from --config or a family/preset argument
// and applies the flags the user set explicitly.
func loadScene(cmd *cobra.Command, args []string) (*config.Scene, error) {
	var sc *config.Scene
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		sc = loaded
	case len(args) == 1:
		family, name, ok := strings.Cut(args[0], "/")
		if !ok {
			return nil, fmt.Errorf("scene must be family/preset, got %q", args[0])
		}
		sc = config.GetPreset(family, name)
		if sc == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets(family))
		}
	default:
		sc = config.DefaultScene()
	}

	if cmd.Flags().Changed("dt") {
		sc.Dt = dt
	}
	if cmd.Flags().Changed("time") {
		sc.Duration = duration
	}
	if cmd.Flags().Changed("seed") {
		sc.Seed = seed
	}
	if cmd.Flags().Changed("workers") {
		sc.World.Workers = workers
	}
	return sc, sc.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	log := newLogger()
	s, err := automation.NewSimulator(sc, log)
	if err != nil {
		return err
	}
	defer s.World().Destroy()

	cfg := automation.Config(sc)
	cfg.RecordEvery = every

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s (%d bodies, %d steps)...\n", sc.Name, s.World().BodyCount(), cfg.Steps())
	start := time.Now()

	result, err := s.Run(ctx, cfg)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)

	runID, err := st.Save(sc.Name, cfg, result)
	if err != nil {
		return err
	}

	if jsonOut != "" {
		if err := storage.ExportJSON(jsonOut, sc.Name, cfg.Dt, cfg.Duration, result.Frames, result.Metrics); err != nil {
			return err
		}
		fmt.Printf("frames written to %s\n", jsonOut)
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	for _, e := range result.Errors {
		fmt.Printf("warning: %v\n", e)
	}
	fmt.Println("\nmetrics:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, m := range metrics.Default() {
		if v, ok := result.Metrics[m.Name()]; ok {
			fmt.Fprintf(w, "  %s\t%.6f\n", m.Name(), v)
		}
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tTIME\tDURATION\tDT\tSTEPS\tBODIES")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%d\t%d\n",
			run.ID,
			run.Scene,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Steps,
			len(run.Bodies),
		)
	}

	return w.Flush()
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	if jsonOut != "" {
		frames, err := st.LoadFrames(runID)
		if err != nil {
			return err
		}
		if err := storage.ExportJSON(jsonOut, meta.Scene, meta.Dt, meta.Duration, frames, meta.Metrics); err != nil {
			return err
		}
		fmt.Printf("exported %d frames to %s\n", len(frames), jsonOut)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func runLive(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args)
	if err != nil {
		return err
	}
	// The TUI owns the terminal, so nothing is logged.
	build := func() (*world.World, map[string]world.BodyID, error) {
		return sc.Build(logr.Discard())
	}
	return viz.Run(sc.Name, build, sc.Dt)
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	frames, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no data to plot")
	}

	q, err := parseSeries()
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scene: %s\n", meta.Scene)
	fmt.Printf("frames: %d\n\n", len(frames))

	const maxPlots = 6
	for i, name := range plotBodies(frames) {
		if i == maxPlots {
			break
		}
		data := seriesOf(frames, name, q)
		if len(data) < 2 {
			continue
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("%s %s[%s] vs time", name, q, axisName(axis))),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

// plotBodies is --body, or every body that was dynamic in the last frame.
func plotBodies(frames []sim.Frame) []string {
	if bodyName != "" {
		return []string{bodyName}
	}
	var names []string
	for _, b := range frames[len(frames)-1].Bodies {
		if b.Kind == world.Dynamic {
			names = append(names, b.Name)
		}
	}
	return names
}

func axisName(i int) string {
	if i >= 0 && i < 3 {
		return string("xyz"[i])
	}
	return "?"
}
