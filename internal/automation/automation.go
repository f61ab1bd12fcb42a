package automation

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/san-kum/dynrelax/internal/config"
	"github.com/san-kum/dynrelax/internal/dynamo"
	"github.com/san-kum/dynrelax/internal/experiment"
	"github.com/san-kum/dynrelax/internal/sim"
	"github.com/san-kum/dynrelax/internal/storage"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted sequence of relaxations
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single relaxation in a scenario. Preset selects a base
// config; the other fields override it. Solver holds a partial solver
// section and only the keys present are applied.
type ScenarioStep struct {
	Model         string             `yaml:"model"`
	ModelFile     string             `yaml:"model_file"`
	Preset        string             `yaml:"preset"`
	Seed          int64              `yaml:"seed"`
	MaxIterations int                `yaml:"max_iterations"`
	Tolerance     float64            `yaml:"tolerance"`
	Params        map[string]float64 `yaml:"params"`
	Solver        yaml.Node          `yaml:"solver"`
	SaveAs        string             `yaml:"save_as"`
}

// StepResult pairs a scenario step with its outcome. RunID is set when the
// run was stored.
type StepResult struct {
	Name   string
	RunID  string
	Result *sim.Result
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}

	return &scenario, nil
}

// Config resolves the step into a full run configuration.
func (s *ScenarioStep) Config() (*config.Config, error) {
	model := config.DefaultConfig().Model
	if s.Model != "" {
		model = s.Model
	}
	cfg := config.ForModel(model)
	if s.Preset != "" {
		p := config.GetPreset(cfg.Model, s.Preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %s/%s", cfg.Model, s.Preset)
		}
		cfg = p
	}

	cfg.ModelFile = s.ModelFile
	if s.Seed != 0 {
		cfg.Seed = s.Seed
	}
	if s.MaxIterations > 0 {
		cfg.MaxIterations = s.MaxIterations
	}
	if s.Tolerance > 0 {
		cfg.Tolerance = s.Tolerance
	}
	for k, v := range s.Params {
		cfg.SetParam(k, v)
	}
	if !s.Solver.IsZero() {
		if err := s.Solver.Decode(&cfg.Solver); err != nil {
			return nil, fmt.Errorf("solver: %w", err)
		}
	}
	return cfg, nil
}

func (s *ScenarioStep) name() string {
	if s.SaveAs != "" {
		return s.SaveAs
	}
	if s.ModelFile != "" {
		return s.ModelFile
	}
	return s.Model
}

// RunScenario executes all steps in order and stops at the first failing
// one. Steps with save_as are written to st when st is not nil.
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, st *storage.Store, log logr.Logger) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i := range scenario.Steps {
		step := &scenario.Steps[i]
		log.Info("running step", "step", i+1, "of", len(scenario.Steps), "name", step.name())

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp := experiment.New(cfg, registry, log.WithValues("step", i+1))
		if err := exp.Setup(); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Name: step.name(), Result: result}
		if st != nil && step.SaveAs != "" {
			sr.RunID, err = st.Save(step.SaveAs, cfg, result)
			if err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// ParameterSweep relaxes the same base config across a range of one
// parameter, solver or model.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

// SweepResult holds the outcome of one sweep point
type SweepResult struct {
	ParamValue      float64
	Iterations      int
	Converged       bool
	KineticEnergy   float64
	MaxDisplacement float64
}

// RunSweep executes the sweep points concurrently with sim.Sweep.
func RunSweep(ctx context.Context, sweep *ParameterSweep, registry *experiment.Registry) ([]SweepResult, error) {
	if sweep.NumSteps < 2 {
		return nil, fmt.Errorf("sweep needs at least 2 steps, got %d", sweep.NumSteps)
	}

	paramStep := (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	values := make([]float64, sweep.NumSteps)
	jobs := make([]sim.Job, sweep.NumSteps)

	for i := range jobs {
		values[i] = sweep.ParamMin + float64(i)*paramStep
		cfg := sweep.Base.Clone()
		cfg.SetParam(sweep.ParamName, values[i])

		job, err := NewJob(fmt.Sprintf("%s=%g", sweep.ParamName, values[i]), cfg, registry)
		if err != nil {
			return nil, err
		}
		jobs[i] = job
	}

	runs, err := sim.Sweep(ctx, jobs)
	if err != nil {
		return nil, err
	}

	results := make([]SweepResult, len(runs))
	for i, r := range runs {
		results[i] = SweepResult{
			ParamValue:      values[i],
			Iterations:      r.Iterations,
			Converged:       r.Converged,
			KineticEnergy:   r.KineticEnergy,
			MaxDisplacement: r.Metrics["max_displacement"],
		}
	}
	return results, nil
}

// NewJob turns a run configuration into an independent sweep job. The
// network is generated inside the job.
func NewJob(name string, cfg *config.Config, registry *experiment.Registry) (sim.Job, error) {
	solver, err := cfg.Solver.SimConfig()
	if err != nil {
		return sim.Job{}, err
	}

	return sim.Job{
		Name: name,
		Build: func() (*dynamo.Network, error) {
			exp := experiment.New(cfg, registry, logr.Discard())
			spec, err := exp.BuildSpec()
			if err != nil {
				return nil, err
			}
			return spec.Build(cfg.Tolerance)
		},
		Config:  solver,
		Run:     cfg.RunConfig(),
		Metrics: registry.DefaultMetrics,
	}, nil
}

// MonteCarloConfig relaxes the base config under random seeds, which
// perturb models with procedural geometry.
type MonteCarloConfig struct {
	Base      *config.Config
	NumTrials int
	Seed      int64
}

// MonteCarloResult holds the outcome of one trial
type MonteCarloResult struct {
	TrialID    int
	Seed       int64
	Iterations int
	Converged  bool
	Residual   float64
}

// RunMonteCarlo executes the trials sequentially.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, registry *experiment.Registry, log logr.Logger) ([]MonteCarloResult, error) {
	results := make([]MonteCarloResult, 0, cfg.NumTrials)

	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for trial := 0; trial < cfg.NumTrials; trial++ {
		trialCfg := cfg.Base.Clone()
		trialCfg.Seed = rng.Int63n(1<<31) + 1
		delete(trialCfg.Params, "seed")

		exp := experiment.New(trialCfg, registry, log.WithValues("trial", trial))
		if err := exp.Setup(); err != nil {
			return nil, err
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}

		results = append(results, MonteCarloResult{
			TrialID:    trial,
			Seed:       trialCfg.Seed,
			Iterations: result.Iterations,
			Converged:  result.Converged,
			Residual:   result.Metrics["residual_force"],
		})

		if (trial+1)%10 == 0 {
			log.Info("monte carlo progress", "done", trial+1, "trials", cfg.NumTrials)
		}
	}

	return results, nil
}

// MonteCarloStats counts converged and unconverged trials
func MonteCarloStats(results []MonteCarloResult) (converged int, unconverged int) {
	for _, r := range results {
		if r.Converged {
			converged++
		} else {
			unconverged++
		}
	}
	return
}
