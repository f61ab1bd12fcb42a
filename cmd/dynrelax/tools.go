package main

import (
	"fmt"
	"math"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/san-kum/dynrelax/internal/automation"
	"github.com/san-kum/dynrelax/internal/config"
	"github.com/san-kum/dynrelax/internal/experiment"
	"github.com/san-kum/dynrelax/internal/models"
	"github.com/san-kum/dynrelax/internal/optim"
	"github.com/san-kum/dynrelax/internal/sim"
	"github.com/san-kum/dynrelax/internal/storage"
	"github.com/spf13/cobra"
)

var (
	compareValues []float64
	tuneDamping   []float64
	tuneScale     []float64

	sweepName  string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int

	numTrials int
)

func listModels(cmd *cobra.Command, args []string) error {
	registry := experiment.NewRegistry()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tDEFAULT PRESET\tPARAMETERS")
	for _, name := range registry.ListModels() {
		m, err := registry.GetModel(name)
		if err != nil {
			return err
		}
		p := m.GetParams()
		keys := make([]string, 0, len(p))
		for k := range p {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		line := ""
		for i, k := range keys {
			if i > 0 {
				line += " "
			}
			line += fmt.Sprintf("%s=%g", k, p[k])
		}
		defPreset := config.DefaultPreset(name)
		if defPreset == "" {
			defPreset = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, defPreset, line)
	}
	return w.Flush()
}

func generateModel(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	cfg.Model = args[0]
	cfg.Seed = seed
	if err := applyParams(cfg, params); err != nil {
		return err
	}

	exp := experiment.New(cfg, experiment.NewRegistry(), newLogger())
	spec, err := exp.BuildSpec()
	if err != nil {
		return err
	}
	if _, err := spec.Build(cfg.Tolerance); err != nil {
		return err
	}

	path := outFile
	if path == "" {
		path = args[0] + ".yaml"
	}
	if err := models.SaveFile(path, spec); err != nil {
		return err
	}
	fmt.Printf("wrote %s: %d bars, %d points\n", path, len(spec.Bars), len(spec.Points))
	return nil
}

func compareDamping(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	jobs := make([]sim.Job, len(compareValues))
	for i, c := range compareValues {
		cfg := base.Clone()
		cfg.Solver.Damping = c
		jobs[i], err = automation.NewJob(fmt.Sprintf("damping=%g", c), cfg, registry)
		if err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("comparing %d damping values on %s...\n\n", len(jobs), modelLabel(base))
	results, err := sim.Sweep(ctx, jobs)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DAMPING\tITERS\tCONVERGED\tKE\tRESIDUAL\tMAX DISP")
	for i, r := range results {
		fmt.Fprintf(w, "%.4g\t%d\t%v\t%.3g\t%.3g\t%.4g\n",
			compareValues[i],
			r.Iterations,
			r.Converged,
			r.KineticEnergy,
			r.Metrics["residual_force"],
			r.Metrics["max_displacement"],
		)
	}
	return w.Flush()
}

func tuneSolver(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	registry := experiment.NewRegistry()
	gs := optim.NewGridSearch(
		[]string{"damping", "scale_factor"},
		[][]float64{tuneDamping, tuneScale},
	)

	build := func(p map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		for k, v := range p {
			cfg.SetParam(k, v)
		}
		exp := experiment.New(cfg, registry, newLogger())
		if err := exp.Setup(); err != nil {
			return nil, err
		}
		return exp, nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("searching %d candidates on %s...\n", gs.Candidates(), modelLabel(base))
	best, iters, err := gs.Search(ctx, build, "iterations_to_converge")
	if err != nil {
		return err
	}

	fmt.Printf("%s damping=%g scale_factor=%g\n", labelStyle.Render("best"), best["damping"], best["scale_factor"])
	fmt.Printf("%s %.0f\n", labelStyle.Render("iterations"), iters)
	return nil
}

func sweepParam(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunSweep(ctx, &automation.ParameterSweep{
		Base:      base,
		ParamName: sweepName,
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  sweepSteps,
	}, experiment.NewRegistry())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tITERS\tCONVERGED\tKE\tMAX DISP\n", sweepName)
	for _, r := range results {
		fmt.Fprintf(w, "%.4g\t%d\t%v\t%.3g\t%.4g\n", r.ParamValue, r.Iterations, r.Converged, r.KineticEnergy, r.MaxDisplacement)
	}
	return w.Flush()
}

func runTrials(cmd *cobra.Command, args []string) error {
	base, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunMonteCarlo(ctx, &automation.MonteCarloConfig{
		Base:      base,
		NumTrials: numTrials,
		Seed:      base.Seed,
	}, experiment.NewRegistry(), newLogger())
	if err != nil {
		return err
	}

	converged, unconverged := automation.MonteCarloStats(results)
	worst := 0.0
	for _, r := range results {
		worst = math.Max(worst, r.Residual)
	}
	fmt.Printf("%s %d/%d\n", labelStyle.Render("converged"), converged, converged+unconverged)
	fmt.Printf("%s %.3g\n", labelStyle.Render("worst residual"), worst)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println(titleStyle.Render(scenario.Name))
	if scenario.Description != "" {
		fmt.Println(scenario.Description)
	}
	fmt.Println()

	results, err := automation.RunScenario(ctx, scenario, experiment.NewRegistry(), st, newLogger())
	for i, r := range results {
		status := okStyle.Render("converged")
		if !r.Result.Converged {
			status = warnStyle.Render("not converged")
		}
		fmt.Printf("%d. %s %s in %d iterations", i+1, labelStyle.Render(r.Name), status, r.Result.Iterations)
		if r.RunID != "" {
			fmt.Printf(" (run %s)", r.RunID)
		}
		fmt.Println()
	}
	return err
}
