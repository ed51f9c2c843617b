package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/guptarohit/asciigraph"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/san-kum/rigidsim/internal/analysis"
	"github.com/san-kum/rigidsim/internal/automation"
	"github.com/san-kum/rigidsim/internal/config"
	"github.com/san-kum/rigidsim/internal/export"
	"github.com/san-kum/rigidsim/internal/geom"
	"github.com/san-kum/rigidsim/internal/sim"
	"github.com/san-kum/rigidsim/internal/storage"
	"github.com/san-kum/rigidsim/internal/world"
)

func parseSeries() (analysis.Quantity, error) {
	if axis < 0 || axis > 2 {
		return 0, fmt.Errorf("axis must be 0, 1 or 2, got %d", axis)
	}
	return analysis.ParseQuantity(quantity)
}

func seriesOf(frames []sim.Frame, name string, q analysis.Quantity) []float64 {
	return analysis.Series(frames, name, q, axis)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
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
	if len(frames) < 2 {
		return fmt.Errorf("no data")
	}

	q, err := parseSeries()
	if err != nil {
		return err
	}

	fmt.Printf("analysis: %s\n", meta.ID)
	fmt.Printf("scene: %s\n\n", meta.Scene)

	// Frames may be recorded every n steps.
	sample := frames[1].Time - frames[0].Time

	for _, name := range plotBodies(frames) {
		data := seriesOf(frames, name, q)
		if len(data) < 4 {
			continue
		}
		fmt.Printf("== %s %s[%s] ==\n", name, q, axisName(axis))

		ps := analysis.PowerSpectrum(data)
		if len(ps) > 8 {
			graph := asciigraph.Plot(ps[:len(ps)/4+1],
				asciigraph.Height(10),
				asciigraph.Width(80),
				asciigraph.Caption("power spectrum"),
			)
			fmt.Println(graph)
			fmt.Println()
		}

		freq, err := analysis.DominantFrequency(data, sample)
		if err == nil && freq > 0 {
			fmt.Printf("dominant frequency: %.3f hz\n", freq)
			fmt.Printf("period: %.3f s\n", 1.0/freq)
		} else {
			fmt.Println("dominant frequency: none")
		}

		if t, ok := analysis.SettleTime(frames, name, tol); ok {
			fmt.Printf("settled at: %.3f s\n", t)
		} else {
			fmt.Println("settled at: never")
		}

		if portrait := analysis.PhasePortrait(frames, name, axis); portrait != nil {
			fmt.Println("\nphase portrait (position vs velocity):")
			fmt.Println(analysis.PhasePortraitToASCII(portrait, 60, 16))
		}
	}

	if t, ok := analysis.SceneSettleTime(frames, tol); ok {
		fmt.Printf("scene at rest after %.3f s\n", t)
	}
	return nil
}

// advance builds the scene and steps it for the given number of seconds.
func advance(sc *config.Scene, seconds float64) (*world.World, error) {
	w, _, err := sc.Build(newLogger())
	if err != nil {
		return nil, err
	}
	steps := int(math.Round(seconds / sc.Dt))
	for i := 0; i < steps; i++ {
		if err := w.Update(sc.Dt); err != nil {
			w.Destroy()
			return nil, err
		}
	}
	return w, nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args)
	if err != nil {
		return err
	}

	if bodyName == "" {
		w, err := advance(sc, after)
		if err != nil {
			return err
		}
		defer w.Destroy()
		if err := os.WriteFile(svgOut, []byte(export.WorldToSVG(w, 800, 600)), 0644); err != nil {
			return err
		}
		fmt.Printf("scene written to %s\n", svgOut)
		return nil
	}

	// With --trace the scene is recorded up to --after and the path drawn
	// next to the final snapshot.
	s, err := automation.NewSimulator(sc, newLogger())
	if err != nil {
		return err
	}
	defer s.World().Destroy()

	cfg := automation.Config(sc)
	cfg.Duration = math.Max(after, sc.Dt)
	result, err := s.Run(context.Background(), cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(svgOut, []byte(export.WorldToSVG(s.World(), 800, 600)), 0644); err != nil {
		return err
	}
	points := export.BodyTrajectory(result.Frames, bodyName)
	if len(points) < 2 {
		return fmt.Errorf("body %q has no recorded path", bodyName)
	}
	tracePath := strings.TrimSuffix(svgOut, filepath.Ext(svgOut)) + "_trace.svg"
	if err := os.WriteFile(tracePath, []byte(export.TrajectoryToSVG(points, 800, 600, "#00ff88")), 0644); err != nil {
		return err
	}
	fmt.Printf("scene written to %s, path to %s\n", svgOut, tracePath)
	return nil
}

func benchScene(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args)
	if err != nil {
		return err
	}

	switch profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q (cpu, mem)", profileMode)
	}

	counts := []int{1, 2, 4, 8}
	if cmd.Flags().Changed("workers") {
		counts = []int{workers}
	}

	fmt.Printf("benchmarking %s (%d steps)\n\n", sc.Name, benchSteps)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORKERS\tTIME\tSTEPS/SEC\tPAIRS\tCONTACTS\tBROAD\tNARROW\tSOLVE")

	for _, n := range counts {
		run := sc.Clone()
		run.World.Workers = n
		wd, _, err := run.Build(newLogger())
		if err != nil {
			return err
		}

		var phases [world.PhaseCount]time.Duration
		start := time.Now()
		for i := 0; i < benchSteps; i++ {
			if err := wd.Update(run.Dt); err != nil {
				wd.Destroy()
				return err
			}
			for p, d := range wd.Stats().Phases {
				phases[p] += d
			}
		}
		elapsed := time.Since(start)
		stats := wd.Stats()
		wd.Destroy()

		fmt.Fprintf(w, "%d\t%v\t%.0f\t%d\t%d\t%v\t%v\t%v\n",
			n, elapsed.Round(time.Microsecond), float64(benchSteps)/elapsed.Seconds(),
			stats.Pairs, stats.ContactPoints,
			phases[world.PhaseBroadPhase].Round(time.Microsecond),
			phases[world.PhaseNarrowPhase].Round(time.Microsecond),
			phases[world.PhaseSolve].Round(time.Microsecond))
	}

	return w.Flush()
}

func vec3(v []float64) (mgl64.Vec3, error) {
	if len(v) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("expected x,y,z, got %v", v)
	}
	return mgl64.Vec3{v[0], v[1], v[2]}, nil
}

func raycastScene(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args)
	if err != nil {
		return err
	}
	from, err := vec3(rayFrom)
	if err != nil {
		return err
	}
	to, err := vec3(rayTo)
	if err != nil {
		return err
	}

	w, bodies, err := sc.Build(newLogger())
	if err != nil {
		return err
	}
	defer w.Destroy()
	for i := 0; i < int(math.Round(after/sc.Dt)); i++ {
		if err := w.Update(sc.Dt); err != nil {
			return err
		}
	}

	hit, ok := w.Raycast(geom.NewRay(from, to))
	if !ok {
		fmt.Println("no hit")
		return nil
	}

	name := "?"
	for n, id := range bodies {
		if id == hit.Body {
			name = n
		}
	}
	fmt.Printf("hit body: %s\n", name)
	fmt.Printf("point:    (%.4f, %.4f, %.4f)\n", hit.Point[0], hit.Point[1], hit.Point[2])
	fmt.Printf("normal:   (%.4f, %.4f, %.4f)\n", hit.Normal[0], hit.Normal[1], hit.Normal[2])
	fmt.Printf("fraction: %.4f\n", hit.Fraction)
	if hit.Feature >= 0 {
		fmt.Printf("triangle: %d\n", hit.Feature)
	}
	return nil
}

func divergeScene(cmd *cobra.Command, args []string) error {
	sc, err := loadScene(cmd, args)
	if err != nil {
		return err
	}
	if sc.Jitter == 0 {
		sc.Jitter = perturb
	}

	build := func(seed int64) (*sim.Simulator, error) {
		run := sc.Clone()
		run.Seed = seed
		return automation.NewSimulator(run, newLogger())
	}

	results, err := sim.NewEnsemble(build, 2, sc.Seed).Run(context.Background(), automation.Config(sc))
	if err != nil {
		return err
	}

	sep := analysis.Separation(results[0].Frames, results[1].Frames)
	graph := asciigraph.Plot(sep,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("max body separation"),
	)
	fmt.Println(graph)
	fmt.Println()

	lambda, err := analysis.LyapunovExponent(results[0].Frames, results[1].Frames)
	if err != nil {
		return err
	}
	fmt.Printf("divergence rate: %.4f 1/s\n", lambda)
	if lambda > 0 {
		fmt.Println("nearby starts separate exponentially")
	}
	return nil
}
