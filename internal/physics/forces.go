package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// minChunk keeps small networks on the calling goroutine.
const minChunk = 256

// CompressionPolicy decides what a bar does when its force turns negative.
type CompressionPolicy int

const (
	// CompressionRigid keeps compressive forces (struts, gridshell laths).
	CompressionRigid CompressionPolicy = iota
	// CompressionCableOnly clamps compressive forces to zero (slack cables).
	CompressionCableOnly
)

func (p CompressionPolicy) String() string {
	switch p {
	case CompressionRigid:
		return "rigid"
	case CompressionCableOnly:
		return "cable"
	default:
		return fmt.Sprintf("compression(%d)", int(p))
	}
}

// ParseCompressionPolicy accepts "rigid" or "cable".
func ParseCompressionPolicy(s string) (CompressionPolicy, error) {
	switch s {
	case "", "rigid":
		return CompressionRigid, nil
	case "cable", "cable_only":
		return CompressionCableOnly, nil
	}
	return 0, fmt.Errorf("%w: unknown compression policy %q", dynamo.ErrParameterBounds, s)
}

// EvaluateBarForces recomputes length, direction and axial force of every
// bar from the current node positions. Tension is positive.
func EvaluateBarForces(net *dynamo.Network, policy CompressionPolicy, workers int) error {
	if err := UpdateBarGeometry(net, workers); err != nil {
		return err
	}
	UpdateAxialForces(net, policy, workers)
	return nil
}

// UpdateBarGeometry recomputes length and direction of every bar from the
// current node positions. A zero or non-finite length is a runtime error
// naming the first such bar.
func UpdateBarGeometry(net *dynamo.Network, workers int) error {
	bars := net.Bars
	nodes := net.Nodes

	dynamo.ParallelFor(len(bars), workers, minChunk, func(start, end int) {
		for i := start; i < end; i++ {
			b := &bars[i]
			v := r3.Sub(nodes[b.End].Position, nodes[b.Start].Position)
			l := r3.Norm(v)

			b.Length = l
			if l > 0 {
				b.Direction = r3.Scale(1/l, v)
			}
		}
	})

	for i := range bars {
		l := bars[i].Length
		if l > 0 && !math.IsInf(l, 0) {
			continue
		}
		if l == 0 {
			return &dynamo.SimulationError{Entity: dynamo.EntityBar, Index: i, Quantity: "length", Value: l, Wrapped: dynamo.ErrZeroLengthBar}
		}
		return &dynamo.SimulationError{Entity: dynamo.EntityBar, Index: i, Quantity: "length", Value: l, Wrapped: dynamo.ErrNonFinite}
	}
	return nil
}

// UpdateAxialForces sets T = T0 + (L - L0)·Ks on every bar. Lengths must be
// current.
func UpdateAxialForces(net *dynamo.Network, policy CompressionPolicy, workers int) {
	bars := net.Bars

	dynamo.ParallelFor(len(bars), workers, minChunk, func(start, end int) {
		for i := start; i < end; i++ {
			b := &bars[i]
			t := b.Prestress + (b.Length-b.RestLength)*b.Stiffness
			if policy == CompressionCableOnly && t < 0 {
				t = 0
			}
			b.Force = t
		}
	})
}

// AccumulateNodalForces sets every node's net force to its external load,
// its point-mass weight, half the self-weight of each incident bar and the
// axial pull of each incident bar. It reads bar state written by
// EvaluateBarForces and must run after it.
func AccumulateNodalForces(net *dynamo.Network, gravity float64, workers int) {
	bars := net.Bars
	nodes := net.Nodes

	dynamo.ParallelFor(len(nodes), workers, minChunk, func(start, end int) {
		for i := start; i < end; i++ {
			n := &nodes[i]
			f := n.Load
			f.Z -= n.PointMass * gravity

			for _, inc := range net.ConnectedBars(i) {
				b := &bars[inc.Bar]
				f = r3.Add(f, r3.Scale(inc.Sign*b.Force, b.Direction))
				f.Z -= 0.5 * b.MassPerLength * b.RestLength * gravity
			}
			n.Force = f
		}
	})
}
