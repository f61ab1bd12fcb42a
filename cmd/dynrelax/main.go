package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/san-kum/dynrelax/internal/config"
	"github.com/spf13/cobra"
)

var (
	dataDir   string
	verbosity int

	configFile string
	preset     string
	modelFile  string
	seed       int64
	maxIter    int
	traceEvery int
	tolerance  float64
	params     map[string]string

	damping        float64
	timestepMode   string
	dt             float64
	scaleFactor    float64
	massStrategy   string
	gamma          float64
	compression    string
	gravity        float64
	threshold      float64
	maxStep        float64
	kineticDamping bool
	workers        int

	pushgateway string
	mirror      bool
	noSave      bool
	outFile     string
)

// main registers the dynrelax commands and executes the root command,
// exiting with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:          "dynrelax",
		Short:        "form finding for prestressed bar networks by dynamic relaxation",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dynrelax", "data directory")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "relax a built-in model or a network file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRelaxation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&pushgateway, "pushgateway", "", "push final metrics to this Prometheus pushgateway")
	runCmd.Flags().BoolVar(&mirror, "mirror", false, "reflect the result through z=0 (hanging to standing)")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot kinetic energy decay and vertical displacement",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run geometry, forces and energy trace to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list built-in models and their parameters",
		RunE:  listModels,
	}

	generateCmd := &cobra.Command{
		Use:   "generate [model]",
		Short: "write a built-in model as an editable network file",
		Args:  cobra.ExactArgs(1),
		RunE:  generateModel,
	}
	generateCmd.Flags().StringToStringVar(&params, "param", nil, "model parameter name=value")
	generateCmd.Flags().Int64Var(&seed, "seed", 0, "seed for procedural geometry")
	generateCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default <model>.yaml)")

	compareCmd := &cobra.Command{
		Use:   "compare [model]",
		Short: "relax one model under several damping values concurrently",
		Args:  cobra.MaximumNArgs(1),
		RunE:  compareDamping,
	}
	addRunFlags(compareCmd)
	compareCmd.Flags().Float64SliceVar(&compareValues, "values", []float64{0.8, 0.9, 0.95, 0.98}, "damping values")

	tuneCmd := &cobra.Command{
		Use:   "tune [model]",
		Short: "grid search damping and scale factor for fastest convergence",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneSolver,
	}
	addRunFlags(tuneCmd)
	tuneCmd.Flags().Float64SliceVar(&tuneDamping, "dampings", []float64{0.9, 0.95, 0.98}, "damping candidates")
	tuneCmd.Flags().Float64SliceVar(&tuneScale, "scales", []float64{0.2, 0.35, 0.5}, "scale factor candidates")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "relax across a range of one parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepParam,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepName, "name", "damping", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.8, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 0.99, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")

	trialsCmd := &cobra.Command{
		Use:   "trials [model]",
		Short: "relax under random seeds and count converged runs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTrials,
	}
	addRunFlags(trialsCmd)
	trialsCmd.Flags().IntVar(&numTrials, "n", 10, "number of trials")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a YAML scenario of sequential relaxations",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, presetsCmd, modelsCmd, generateCmd, compareCmd, tuneCmd, sweepCmd, trialsCmd, scenarioCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&modelFile, "model-file", "", "network file (yaml) instead of a built-in model")
	f.Int64Var(&seed, "seed", 0, "seed for procedural geometry")
	f.IntVar(&maxIter, "max-iter", 100000, "iteration budget")
	f.IntVar(&traceEvery, "trace-every", 10, "kinetic energy sampling interval")
	f.Float64Var(&tolerance, "tolerance", 1e-6, "node merge tolerance")
	f.StringToStringVar(&params, "param", nil, "model parameter name=value")

	f.Float64Var(&damping, "damping", 0.95, "velocity retention per iteration")
	f.StringVar(&timestepMode, "timestep", "auto", "timestep mode: fixed, auto, adaptive")
	f.Float64Var(&dt, "dt", 0, "timestep in fixed mode; otherwise the nominal step fictitious masses are built from")
	f.Float64Var(&scaleFactor, "scale", 0.35, "fraction of the safe timestep")
	f.StringVar(&massStrategy, "mass", "lumped", "mass strategy: lumped, fictitious")
	f.Float64Var(&gamma, "gamma", 1.0, "prestress weight of fictitious masses")
	f.StringVar(&compression, "compression", "rigid", "compression policy: rigid, cable")
	f.Float64Var(&gravity, "gravity", 9.81, "gravitational acceleration")
	f.Float64Var(&threshold, "threshold", 1e-9, "kinetic energy convergence threshold")
	f.Float64Var(&maxStep, "max-step", 0, "cap on node translation per iteration (0 disables)")
	f.BoolVar(&kineticDamping, "kinetic-damping", false, "reset velocities at kinetic energy peaks")
	f.IntVar(&workers, "workers", 1, "parallel workers per phase")
}

func newLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: verbosity})
}
