package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

type RunConfig struct {
	MaxIterations int
	// TraceEvery samples the kinetic energy trace; 0 records nothing,
	// 1 records every iteration.
	TraceEvery int
}

func DefaultRunConfig() RunConfig {
	return RunConfig{MaxIterations: 100000, TraceEvery: 10}
}

// Run steps the relaxer until it converges, the iteration budget is spent,
// the context is canceled or a runtime degeneracy occurs. Not converging is
// not an error: the result carries Converged=false and the last geometry.
func (r *Relaxer) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", cfg.MaxIterations)
	}
	if cfg.TraceEvery < 0 {
		return nil, fmt.Errorf("trace interval must not be negative, got %d", cfg.TraceEvery)
	}

	for _, m := range r.metrics {
		m.Reset()
	}

	result := &Result{Metrics: make(map[string]float64)}
	if cfg.TraceEvery > 0 {
		n := cfg.MaxIterations/cfg.TraceEvery + 1
		if n > 4096 {
			n = 4096
		}
		result.Energy = make([]float64, 0, n)
		result.EnergyIterations = make([]int, 0, n)
	}

	var runErr error
	for i := 0; i < cfg.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			runErr = fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
		default:
		}
		if runErr != nil {
			break
		}

		if err := r.Step(); err != nil {
			runErr = err
			break
		}

		converged := r.HasConverged()
		if cfg.TraceEvery > 0 && (r.iter%cfg.TraceEvery == 0 || converged) {
			result.Energy = append(result.Energy, r.KineticEnergy())
			result.EnergyIterations = append(result.EnergyIterations, r.iter)
		}
		if converged {
			break
		}
	}

	r.fill(result)
	if result.Converged {
		r.log.Info("converged", "iterations", result.Iterations, "kineticEnergy", result.KineticEnergy)
	} else if runErr == nil {
		r.log.Info("iteration budget exhausted", "iterations", result.Iterations, "kineticEnergy", result.KineticEnergy)
	}
	return result, runErr
}

func (r *Relaxer) fill(result *Result) {
	net := r.net
	result.Iterations = r.iter
	result.Converged = r.HasConverged() && r.err == nil
	result.KineticEnergy = r.KineticEnergy()
	result.Timestep = r.dt
	result.Restarts = r.Restarts()

	result.Initial = make([]r3.Vec, net.NodeCount())
	for i := range net.Nodes {
		result.Initial[i] = net.Nodes[i].Initial
	}
	result.Positions = net.Positions()
	result.BarForces = make([]float64, net.BarCount())
	for i := range net.Bars {
		result.BarForces[i] = net.Bars[i].Force
	}

	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Metrics["iterations"] = float64(r.iter)
	result.Metrics["kinetic_energy"] = result.KineticEnergy
}
