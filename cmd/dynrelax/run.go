package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/san-kum/dynrelax/internal/config"
	"github.com/san-kum/dynrelax/internal/experiment"
	"github.com/san-kum/dynrelax/internal/metrics"
	"github.com/san-kum/dynrelax/internal/models"
	"github.com/san-kum/dynrelax/internal/sim"
	"github.com/san-kum/dynrelax/internal/storage"
	"github.com/spf13/cobra"
)

// resolveConfig layers defaults, preset, config file and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	model := config.DefaultConfig().Model
	if len(args) > 0 {
		model = args[0]
	}
	cfg := config.ForModel(model)

	if preset != "" {
		p := config.GetPreset(cfg.Model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Model))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) > 0 {
			loaded.Model = args[0]
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("model-file") {
		cfg.ModelFile = modelFile
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("max-iter") {
		cfg.MaxIterations = maxIter
	}
	if flags.Changed("trace-every") {
		cfg.TraceEvery = traceEvery
	}
	if flags.Changed("tolerance") {
		cfg.Tolerance = tolerance
	}

	s := &cfg.Solver
	if flags.Changed("damping") {
		s.Damping = damping
	}
	if flags.Changed("timestep") {
		s.Timestep = timestepMode
	}
	if flags.Changed("dt") {
		s.Dt = dt
	}
	if flags.Changed("scale") {
		s.ScaleFactor = scaleFactor
	}
	if flags.Changed("mass") {
		s.Mass = massStrategy
	}
	if flags.Changed("gamma") {
		s.FictitiousGamma = gamma
	}
	if flags.Changed("compression") {
		s.Compression = compression
	}
	if flags.Changed("gravity") {
		s.Gravity = gravity
	}
	if flags.Changed("threshold") {
		s.EnergyThreshold = threshold
	}
	if flags.Changed("max-step") {
		s.MaxStep = maxStep
	}
	if flags.Changed("kinetic-damping") {
		s.KineticDamping = kineticDamping
	}
	if flags.Changed("workers") {
		s.Workers = workers
	}

	if err := applyParams(cfg, params); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyParams(cfg *config.Config, raw map[string]string) error {
	for name, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("param %s: %w", name, err)
		}
		cfg.SetParam(name, f)
	}
	return nil
}

func modelLabel(cfg *config.Config) string {
	if cfg.ModelFile != "" {
		return cfg.ModelFile
	}
	return cfg.Model
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runRelaxation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	log := newLogger()
	registry := experiment.NewRegistry()
	exp := experiment.New(cfg, registry, log)

	collector := metrics.NewCollector(prometheus.Labels{"model": modelLabel(cfg)})
	exp.AddObserver(collector)

	if err := exp.Setup(); err != nil {
		return err
	}

	net := exp.Network()
	fmt.Println(titleStyle.Render(fmt.Sprintf("relaxing %s", exp.Spec().Name)))
	fmt.Printf("%s %d nodes, %d bars, dt %.4g\n", labelStyle.Render("network"), net.NodeCount(), net.BarCount(), exp.Relaxer().Timestep())

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	result, runErr := exp.Run(ctx)
	elapsed := time.Since(start)
	if result == nil {
		return runErr
	}

	if mirror {
		result.Initial = models.Mirror(result.Initial)
		result.Positions = models.Mirror(result.Positions)
	}

	runID := ""
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err = st.Save(exp.Spec().Name, cfg, result)
		if err != nil {
			return err
		}
	}

	printSummary(result, runID, elapsed)

	if pushgateway != "" {
		if err := push.New(pushgateway, "dynrelax").Gatherer(collector.Registry).Push(); err != nil {
			log.Error(err, "push to gateway failed", "url", pushgateway)
		}
	}
	return runErr
}

func printSummary(result *sim.Result, runID string, elapsed time.Duration) {
	status := okStyle.Render("converged")
	if !result.Converged {
		status = warnStyle.Render("not converged")
	}

	fmt.Printf("%s %s in %d iterations (%v)\n", labelStyle.Render("status"), status, result.Iterations, elapsed.Round(time.Millisecond))
	if runID != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("run id"), runID)
	}
	if result.Restarts > 0 {
		fmt.Printf("%s %d\n", labelStyle.Render("restarts"), result.Restarts)
	}

	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println()
	fmt.Println(headerStyle.Render("metrics"))
	for _, name := range names {
		fmt.Printf("  %s %s\n", labelStyle.Render(name), valueStyle.Render(fmt.Sprintf("%.6g", result.Metrics[name])))
	}
}
