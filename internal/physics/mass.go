package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynrelax/internal/dynamo"
)

// MassStrategy selects how nodal integration masses are computed.
type MassStrategy int

const (
	// MassLumped uses the physical mass: point mass plus half of each
	// incident bar's weight per unit length times its current length.
	MassLumped MassStrategy = iota
	// MassFictitious uses M = dt²/2 · Σ (E·A/L0 + γ·|T0|/L), chosen for
	// stability rather than physical accuracy.
	MassFictitious
)

func (s MassStrategy) String() string {
	switch s {
	case MassLumped:
		return "lumped"
	case MassFictitious:
		return "fictitious"
	default:
		return fmt.Sprintf("mass(%d)", int(s))
	}
}

// ParseMassStrategy accepts "lumped" or "fictitious".
func ParseMassStrategy(s string) (MassStrategy, error) {
	switch s {
	case "", "lumped":
		return MassLumped, nil
	case "fictitious":
		return MassFictitious, nil
	}
	return 0, fmt.Errorf("%w: unknown mass strategy %q", dynamo.ErrParameterBounds, s)
}

// EstimateMasses overwrites Node.Mass for every node. dt and gamma are only
// read by MassFictitious. Bar lengths must be current.
func EstimateMasses(net *dynamo.Network, strategy MassStrategy, dt, gamma float64, workers int) {
	bars := net.Bars
	nodes := net.Nodes

	dynamo.ParallelFor(len(nodes), workers, minChunk, func(start, end int) {
		for i := start; i < end; i++ {
			var m float64
			switch strategy {
			case MassFictitious:
				sum := 0.0
				for _, inc := range net.ConnectedBars(i) {
					b := &bars[inc.Bar]
					sum += b.AxialStiffness()/b.RestLength + gamma*math.Abs(b.Prestress)/b.Length
				}
				m = 0.5 * dt * dt * sum
			default:
				m = nodes[i].PointMass
				for _, inc := range net.ConnectedBars(i) {
					b := &bars[inc.Bar]
					m += 0.5 * b.MassPerLength * b.Length
				}
			}
			nodes[i].Mass = m
		}
	})
}

// ValidateMasses reports the first movable node whose mass is not finite and
// strictly positive.
func ValidateMasses(net *dynamo.Network) error {
	for i := range net.Nodes {
		n := &net.Nodes[i]
		if !n.Movable() {
			continue
		}
		if math.IsNaN(n.Mass) || math.IsInf(n.Mass, 0) {
			return &dynamo.SimulationError{Entity: dynamo.EntityNode, Index: i, Quantity: "mass", Value: n.Mass, Wrapped: dynamo.ErrNonFinite}
		}
		if n.Mass <= 0 {
			return &dynamo.SimulationError{Entity: dynamo.EntityNode, Index: i, Quantity: "mass", Value: n.Mass, Wrapped: dynamo.ErrNonPositiveMass}
		}
	}
	return nil
}

// SafeTimestep returns sqrt(2·min(M/Ks)) over every incidence of a movable
// node. Locked and fully fixed nodes do not constrain the step.
func SafeTimestep(net *dynamo.Network) (float64, error) {
	minRatio := math.Inf(1)
	pairs := 0

	for i := range net.Nodes {
		n := &net.Nodes[i]
		if !n.Movable() {
			continue
		}
		for _, inc := range net.ConnectedBars(i) {
			ratio := n.Mass / net.Bars[inc.Bar].Stiffness
			if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
				return 0, &dynamo.SimulationError{Entity: dynamo.EntityNode, Index: i, Quantity: "mass/stiffness", Value: ratio, Wrapped: dynamo.ErrNoSafeTimestep}
			}
			pairs++
			minRatio = math.Min(minRatio, ratio)
		}
	}

	if pairs == 0 {
		return 0, &dynamo.SimulationError{Quantity: "movable_incidences", Value: 0, Wrapped: dynamo.ErrNoSafeTimestep}
	}
	return math.Sqrt(2 * minRatio), nil
}
