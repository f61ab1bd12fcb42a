package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/dynrelax/internal/experiment"
)

// GridSearch evaluates every combination of parameter values and keeps the
// one minimizing a result metric. Typical use tunes solver settings such as
// damping and scale_factor against iterations_to_converge.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Candidates returns the number of combinations Search will try.
func (g *GridSearch) Candidates() int {
	if len(g.ranges) == 0 {
		return 0
	}
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search returns the best parameters and their metric value. Candidates that
// fail to build or run are skipped; if all of them fail the last error is
// returned.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("grid search: %d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}

	s := &search{build: buildExperiment, metric: metricName, best: math.Inf(1)}
	g.searchRecursive(ctx, 0, make(map[string]float64), s)

	if err := ctx.Err(); err != nil {
		return s.bestParams, s.best, err
	}
	if s.bestParams == nil {
		if s.lastErr == nil {
			s.lastErr = errors.New("grid search: no candidate produced a finite metric")
		}
		return nil, s.best, s.lastErr
	}
	return s.bestParams, s.best, nil
}

type search struct {
	build      func(map[string]float64) (*experiment.Experiment, error)
	metric     string
	best       float64
	bestParams map[string]float64
	lastErr    error
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current map[string]float64, s *search) {
	if ctx.Err() != nil {
		return
	}

	if depth == len(g.paramNames) {
		exp, err := s.build(current)
		if err != nil {
			s.lastErr = err
			return
		}

		result, err := exp.Run(ctx)
		if err != nil {
			s.lastErr = err
			return
		}

		val, ok := result.Metrics[s.metric]
		if !ok {
			s.lastErr = fmt.Errorf("grid search: result has no metric %q", s.metric)
			return
		}
		if val < s.best {
			s.best = val
			s.bestParams = make(map[string]float64, len(current))
			for k, v := range current {
				s.bestParams[k] = v
			}
		}
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.searchRecursive(ctx, depth+1, newParams, s)
	}
}
