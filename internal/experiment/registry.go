package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/dynrelax/internal/metrics"
	"github.com/san-kum/dynrelax/internal/models"
	"github.com/san-kum/dynrelax/internal/sim"
)

type Registry struct {
	models map[string]func() models.Model
}

func NewRegistry() *Registry {
	r := &Registry{
		models: make(map[string]func() models.Model),
	}

	r.models["single_bar"] = func() models.Model { return models.NewSingleBar() }
	r.models["hanging_chain"] = func() models.Model { return models.NewHangingChain() }
	r.models["cable_net"] = func() models.Model { return models.NewCableNet() }
	r.models["gridshell"] = func() models.Model { return models.NewGridshell() }

	return r
}

// Register adds or replaces a model factory.
func (r *Registry) Register(name string, fn func() models.Model) {
	r.models[name] = fn
}

func (r *Registry) GetModel(name string) (models.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s (available: %v)", name, r.ListModels())
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics() []sim.Metric {
	return []sim.Metric{
		metrics.NewPeakEnergy(),
		metrics.NewResidualForce(),
		metrics.NewMaxDisplacement(),
		metrics.NewSlackBars(),
	}
}
