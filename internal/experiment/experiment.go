package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"github.com/san-kum/dynrelax/internal/config"
	"github.com/san-kum/dynrelax/internal/dynamo"
	"github.com/san-kum/dynrelax/internal/models"
	"github.com/san-kum/dynrelax/internal/sim"
)

// Experiment is one relaxation run described by a config: a model (built-in
// or from a network file), its parameters and the solver settings.
type Experiment struct {
	cfg      *config.Config
	registry *Registry
	log      logr.Logger

	spec      models.Spec
	net       *dynamo.Network
	relaxer   *sim.Relaxer
	observers []sim.Observer
}

func New(cfg *config.Config, registry *Registry, log logr.Logger) *Experiment {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Experiment{cfg: cfg, registry: registry, log: log}
}

// AddObserver registers o on the relaxer created by Setup.
func (e *Experiment) AddObserver(o sim.Observer) {
	e.observers = append(e.observers, o)
	if e.relaxer != nil {
		e.relaxer.AddObserver(o)
	}
}

// Setup generates the network and prepares the relaxer. Setup errors from
// network construction and solver validation are returned here.
func (e *Experiment) Setup() error {
	spec, err := e.BuildSpec()
	if err != nil {
		return err
	}

	net, err := spec.Build(e.cfg.Tolerance)
	if err != nil {
		return fmt.Errorf("build %s: %w", spec.Name, err)
	}

	solverCfg, err := e.cfg.Solver.SimConfig()
	if err != nil {
		return err
	}
	solverCfg.Logger = e.log.WithValues("model", spec.Name)

	r, err := sim.New(net, solverCfg)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", spec.Name, err)
	}
	for _, m := range e.registry.DefaultMetrics() {
		r.AddMetric(m)
	}
	for _, o := range e.observers {
		r.AddObserver(o)
	}

	e.spec, e.net, e.relaxer = spec, net, r
	return nil
}

// BuildSpec generates the network description without building it.
func (e *Experiment) BuildSpec() (models.Spec, error) {
	if e.cfg.ModelFile != "" {
		return models.LoadFile(e.cfg.ModelFile)
	}

	m, err := e.registry.GetModel(e.cfg.Model)
	if err != nil {
		return models.Spec{}, err
	}

	params := e.cfg.Params
	if _, ok := m.GetParams()["seed"]; ok && e.cfg.Seed != 0 {
		if _, set := params["seed"]; !set {
			params = e.cfg.Clone().Params
			if params == nil {
				params = make(map[string]float64)
			}
			params["seed"] = float64(e.cfg.Seed)
		}
	}
	if err := models.Apply(m, params); err != nil {
		return models.Spec{}, err
	}
	return m.Spec()
}

// Run relaxes the prepared network. Besides the relaxer's metrics the result
// carries iterations_to_converge, +Inf when the budget ran out.
func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.relaxer == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	result, err := e.relaxer.Run(ctx, e.cfg.RunConfig())
	if result != nil {
		if result.Converged {
			result.Metrics["iterations_to_converge"] = float64(result.Iterations)
		} else {
			result.Metrics["iterations_to_converge"] = math.Inf(1)
		}
	}
	return result, err
}

func (e *Experiment) Config() *config.Config   { return e.cfg }
func (e *Experiment) Spec() models.Spec        { return e.spec }
func (e *Experiment) Network() *dynamo.Network { return e.net }
func (e *Experiment) Relaxer() *sim.Relaxer    { return e.relaxer }
