package automation

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/san-kum/dynrelax/internal/config"
	"github.com/san-kum/dynrelax/internal/experiment"
	"github.com/san-kum/dynrelax/internal/storage"
)

const scenarioYAML = `
name: bars
description: stretch a bar twice
steps:
  - model: single_bar
    preset: stretched
    save_as: soft
    params:
      load: 5
    solver:
      damping: 0.3
  - model: single_bar
    preset: stretched
    max_iterations: 3
`

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScenarioStepConfig(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if scenario.Name != "bars" || len(scenario.Steps) != 2 {
		t.Fatalf("unexpected scenario %+v", scenario)
	}

	cfg, err := scenario.Steps[0].Config()
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	want := config.GetPreset("single_bar", "stretched")
	want.Solver.Damping = 0.3
	want.Params["load"] = 5
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	step := ScenarioStep{Model: "single_bar", Preset: "bogus"}
	if _, err := step.Config(); err == nil {
		t.Error("expected unknown preset error")
	}

	step = ScenarioStep{Model: "cable_net"}
	cfg, err = step.Config()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(config.GetPreset("cable_net", "saddle"), cfg); diff != "" {
		t.Errorf("step without a preset should use the model default (-want +got):\n%s", diff)
	}
}

func TestRunScenario(t *testing.T) {
	scenario, err := LoadScenario(writeScenario(t))
	if err != nil {
		t.Fatal(err)
	}
	st := storage.New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatal(err)
	}

	results, err := RunScenario(context.Background(), scenario, experiment.NewRegistry(), st, logr.Discard())
	if err != nil {
		t.Fatalf("scenario failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0]
	if !first.Result.Converged || math.Abs(first.Result.Positions[1].X-1.005) > 1e-4 {
		t.Errorf("first step: converged=%v tip=%v", first.Result.Converged, first.Result.Positions[1])
	}
	if first.RunID == "" || first.Name != "soft" {
		t.Errorf("first step should be stored as soft, got %+v", first)
	}
	meta, err := st.Load(first.RunID)
	if err != nil {
		t.Fatalf("stored run missing: %v", err)
	}
	if meta.Solver.Damping != 0.3 {
		t.Errorf("stored damping %g, want 0.3", meta.Solver.Damping)
	}

	second := results[1]
	if second.RunID != "" || second.Result.Iterations != 3 || second.Result.Converged {
		t.Errorf("second step: %+v", second)
	}
}

func TestRunScenarioStopsOnError(t *testing.T) {
	scenario := &Scenario{Steps: []ScenarioStep{
		{Model: "single_bar", Preset: "static"},
		{Model: "no_such_model"},
		{Model: "single_bar"},
	}}
	results, err := RunScenario(context.Background(), scenario, experiment.NewRegistry(), nil, logr.Discard())
	if err == nil {
		t.Fatal("expected error from the second step")
	}
	if len(results) != 1 {
		t.Errorf("expected the first result before the failure, got %d", len(results))
	}
}

func TestRunSweep(t *testing.T) {
	base := config.GetPreset("single_bar", "stretched")
	sweep := &ParameterSweep{Base: base, ParamName: "load", ParamMin: 0, ParamMax: 20, NumSteps: 3}

	results, err := RunSweep(context.Background(), sweep, experiment.NewRegistry())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []float64{0, 0.01, 0.02} {
		r := results[i]
		if r.ParamValue != float64(i)*10 || !r.Converged {
			t.Errorf("point %d: %+v", i, r)
		}
		if math.Abs(r.MaxDisplacement-want) > 1e-4 {
			t.Errorf("point %d: displacement %g, want %g", i, r.MaxDisplacement, want)
		}
	}
	if _, ok := base.Params["load"]; !ok || base.Params["load"] != 10 {
		t.Error("sweep must not modify the base config")
	}

	sweep.NumSteps = 1
	if _, err := RunSweep(context.Background(), sweep, experiment.NewRegistry()); err == nil {
		t.Error("expected error for a single step sweep")
	}
}

func TestRunMonteCarlo(t *testing.T) {
	base := config.DefaultConfig()
	base.Model = "cable_net"
	base.MaxIterations = 50
	base.Params = map[string]float64{"nx": 3, "ny": 3, "seed": 1}

	mc := &MonteCarloConfig{Base: base, NumTrials: 3, Seed: 11}
	a, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry(), logr.Discard())
	if err != nil {
		t.Fatalf("monte carlo failed: %v", err)
	}
	b, err := RunMonteCarlo(context.Background(), mc, experiment.NewRegistry(), logr.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("seeded trials should repeat (-first +second):\n%s", diff)
	}
	if len(a) != 3 || a[0].Seed == a[1].Seed {
		t.Errorf("expected 3 trials with distinct seeds, got %+v", a)
	}
	if base.Params["seed"] != 1 {
		t.Error("trials must not modify the base params")
	}

	converged, unconverged := MonteCarloStats(a)
	if converged+unconverged != 3 {
		t.Errorf("stats do not add up: %d + %d", converged, unconverged)
	}
}
