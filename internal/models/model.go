package models

import (
	"fmt"
	"sort"

	"github.com/san-kum/dynrelax/internal/dynamo"
)

// Spec is the construction input of a network.
type Spec struct {
	Name      string
	Bars      []dynamo.BarSpec
	Points    []dynamo.PointSpec
	Tolerance float64
}

// Build assembles the network. A zero tolerance falls back to tol.
func (s Spec) Build(tol float64) (*dynamo.Network, error) {
	if s.Tolerance > 0 {
		tol = s.Tolerance
	}
	return dynamo.Build(s.Bars, s.Points, tol)
}

// Model generates a parametric network.
type Model interface {
	Name() string
	Spec() (Spec, error)
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Apply sets every entry of params on m.
func Apply(m Model, params map[string]float64) error {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := m.SetParam(name, params[name]); err != nil {
			return err
		}
	}
	return nil
}

func unknownParam(model, name string) error {
	return fmt.Errorf("%w: model %s has no parameter %q", dynamo.ErrParameterBounds, model, name)
}

func positiveInt(model, name string, v float64) (int, error) {
	n := int(v)
	if n < 1 || float64(n) != v {
		return 0, fmt.Errorf("%w: %s.%s must be a positive integer, got %g", dynamo.ErrParameterBounds, model, name, v)
	}
	return n, nil
}
