package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"github.com/san-kum/dynrelax/internal/dynamo"
	"github.com/san-kum/dynrelax/internal/integrators"
	"github.com/san-kum/dynrelax/internal/metrics"
	"github.com/san-kum/dynrelax/internal/physics"
)

// Relaxer advances a network towards static equilibrium one iteration at a
// time. It owns the network exclusively until the caller stops stepping.
type Relaxer struct {
	net     *dynamo.Network
	cfg     Config
	integ   *integrators.DampedEuler
	monitor *metrics.Monitor
	log     logr.Logger

	metrics   []Metric
	observers []Observer

	// massDt is the nominal timestep fictitious masses are scaled by; dt is
	// the step the integrator takes.
	massDt float64
	dt     float64
	iter   int
	err    error
}

// New validates cfg against net, computes the initial masses and the working
// timestep. Any failure here is a setup error and no relaxer is returned.
func New(net *dynamo.Network, cfg Config) (*Relaxer, error) {
	if net == nil {
		return nil, &dynamo.SetupError{Entity: dynamo.EntityConfig, Quantity: "network", Wrapped: dynamo.ErrEmptyNetwork}
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	r := &Relaxer{
		net:     net,
		cfg:     cfg,
		integ:   &integrators.DampedEuler{Damping: cfg.Damping, MaxStep: cfg.MaxStep, Workers: cfg.Workers},
		monitor: metrics.NewMonitor(cfg.EnergyThreshold, cfg.KineticDamping),
		log:     log.WithName("relax"),
	}

	if err := r.setup(); err != nil {
		return nil, asSetupError(err)
	}

	for _, comp := range net.UnsupportedComponents() {
		r.log.Info("component has no supports and will drift under load", "nodes", len(comp), "firstNode", comp[0])
	}
	r.log.V(1).Info("network ready",
		"nodes", net.NodeCount(), "bars", net.BarCount(),
		"mass", cfg.MassStrategy.String(), "timestepMode", cfg.TimestepMode.String(), "dt", r.dt)

	return r, nil
}

func (r *Relaxer) setup() error {
	cfg := r.cfg

	if err := physics.EvaluateBarForces(r.net, cfg.Compression, cfg.Workers); err != nil {
		return err
	}

	r.massDt = cfg.Dt
	if cfg.MassStrategy == physics.MassFictitious && r.massDt == 0 {
		r.massDt = DefaultFictitiousDt
	}
	if err := r.estimateMasses(); err != nil {
		return err
	}
	return r.updateTimestep()
}

func (r *Relaxer) estimateMasses() error {
	physics.EstimateMasses(r.net, r.cfg.MassStrategy, r.massDt, r.cfg.FictitiousGamma, r.cfg.Workers)
	return physics.ValidateMasses(r.net)
}

// updateTimestep sets the working timestep from the current masses. Fixed
// mode takes Config.Dt as given.
func (r *Relaxer) updateTimestep() error {
	if r.cfg.TimestepMode == TimestepFixed {
		r.dt = r.cfg.Dt
		return nil
	}
	safe, err := physics.SafeTimestep(r.net)
	if err != nil {
		return err
	}
	r.dt = r.cfg.ScaleFactor * safe
	return nil
}

func (r *Relaxer) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Relaxer) AddObserver(o Observer) { r.observers = append(r.observers, o) }

func (r *Relaxer) Network() *dynamo.Network { return r.net }
func (r *Relaxer) Config() Config           { return r.cfg }

// Timestep is the working timestep of the next iteration.
func (r *Relaxer) Timestep() float64 { return r.dt }

// Iteration is the number of completed iterations.
func (r *Relaxer) Iteration() int { return r.iter }

func (r *Relaxer) KineticEnergy() float64 { return r.monitor.KineticEnergy() }
func (r *Relaxer) Restarts() int          { return r.monitor.Restarts() }

// HasConverged reports whether the kinetic energy of the last iteration fell
// below the configured threshold. It is false before the first Step.
func (r *Relaxer) HasConverged() bool { return r.monitor.Converged() }

// Err returns the error that aborted the run, if any.
func (r *Relaxer) Err() error { return r.err }

// Step performs one relaxation iteration. After a runtime degeneracy every
// further call returns the same error without touching the network.
func (r *Relaxer) Step() error {
	if r.err != nil {
		return r.err
	}

	s, err := r.step()
	if err != nil {
		var se *dynamo.SimulationError
		if errors.As(err, &se) {
			se.Step = r.iter
		}
		r.err = err
		r.log.Error(err, "relaxation aborted", "iteration", r.iter)
		return err
	}

	r.iter++
	if s.Restarted {
		r.log.V(2).Info("kinetic energy peak, velocities reset", "iteration", r.iter, "kineticEnergy", s.KineticEnergy)
	}
	for _, m := range r.metrics {
		m.Observe(r.net, s)
	}
	for _, o := range r.observers {
		o.OnStep(r.net, s)
	}
	return nil
}

func (r *Relaxer) step() (metrics.Sample, error) {
	net := r.net
	cfg := r.cfg
	sample := metrics.Sample{Iteration: r.iter + 1}

	if err := physics.UpdateBarGeometry(net, cfg.Workers); err != nil {
		return sample, err
	}
	if cfg.MassStrategy == physics.MassFictitious || cfg.TimestepMode == TimestepAdaptive {
		if err := r.estimateMasses(); err != nil {
			return sample, err
		}
	}
	if cfg.TimestepMode == TimestepAdaptive {
		if err := r.updateTimestep(); err != nil {
			return sample, err
		}
	}

	physics.UpdateAxialForces(net, cfg.Compression, cfg.Workers)
	physics.AccumulateNodalForces(net, cfg.Gravity, cfg.Workers)
	r.integ.Step(net, r.dt)

	if cfg.ValidateState {
		if err := validatePositions(net); err != nil {
			return sample, err
		}
	}

	sample.KineticEnergy, sample.Restarted = r.monitor.Observe(net)
	sample.Timestep = r.dt
	return sample, nil
}

func validatePositions(net *dynamo.Network) error {
	for i := range net.Nodes {
		p := net.Nodes[i].Position
		for _, v := range [3]float64{p.X, p.Y, p.Z} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &dynamo.SimulationError{Entity: dynamo.EntityNode, Index: i, Quantity: "position", Value: v, Wrapped: dynamo.ErrNonFinite}
			}
		}
	}
	return nil
}

func validateConfig(cfg Config) error {
	bad := func(name string, v float64) error {
		return &dynamo.SetupError{Entity: dynamo.EntityConfig, Quantity: name, Value: v, Wrapped: dynamo.ErrParameterBounds}
	}
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	if !finite(cfg.Damping) || cfg.Damping < 0 || cfg.Damping > 1 {
		return bad("damping", cfg.Damping)
	}
	if !finite(cfg.Dt) || cfg.Dt < 0 {
		return bad("dt", cfg.Dt)
	}
	if cfg.TimestepMode == TimestepFixed && cfg.Dt == 0 {
		return fmt.Errorf("%w: fixed timestep mode requires dt > 0", bad("dt", cfg.Dt))
	}
	if cfg.TimestepMode < TimestepFixed || cfg.TimestepMode > TimestepAdaptive {
		return bad("timestep_mode", float64(cfg.TimestepMode))
	}
	if cfg.MassStrategy != physics.MassLumped && cfg.MassStrategy != physics.MassFictitious {
		return bad("mass_strategy", float64(cfg.MassStrategy))
	}
	if cfg.Compression != physics.CompressionRigid && cfg.Compression != physics.CompressionCableOnly {
		return bad("compression", float64(cfg.Compression))
	}
	if cfg.TimestepMode != TimestepFixed && (!finite(cfg.ScaleFactor) || cfg.ScaleFactor <= 0 || cfg.ScaleFactor > 1) {
		return bad("scale_factor", cfg.ScaleFactor)
	}
	if !finite(cfg.FictitiousGamma) || cfg.FictitiousGamma < 0 {
		return bad("fictitious_gamma", cfg.FictitiousGamma)
	}
	if !finite(cfg.Gravity) {
		return bad("gravity", cfg.Gravity)
	}
	if !finite(cfg.EnergyThreshold) || cfg.EnergyThreshold <= 0 {
		return bad("energy_threshold", cfg.EnergyThreshold)
	}
	if !finite(cfg.MaxStep) || cfg.MaxStep < 0 {
		return bad("max_step", cfg.MaxStep)
	}
	if cfg.Workers < 0 {
		return bad("workers", float64(cfg.Workers))
	}
	return nil
}

// asSetupError reports a degeneracy found before the first iteration as a
// setup error, keeping the entity context.
func asSetupError(err error) error {
	var se *dynamo.SimulationError
	if errors.As(err, &se) {
		return &dynamo.SetupError{Entity: se.Entity, Index: se.Index, Quantity: se.Quantity, Value: se.Value, Wrapped: se.Wrapped}
	}
	return err
}
