package metrics

import (
	"math"

	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Sample is what the relaxer reports after each iteration.
type Sample struct {
	Iteration     int
	KineticEnergy float64
	Timestep      float64
	Restarted     bool
}

// ResidualForce is the largest out-of-balance force on any free axis at the
// last observation. It goes to zero at equilibrium.
type ResidualForce struct {
	name  string
	value float64
}

func NewResidualForce() *ResidualForce {
	return &ResidualForce{name: "residual_force"}
}

func (r *ResidualForce) Name() string { return r.name }

func (r *ResidualForce) Observe(net *dynamo.Network, s Sample) {
	r.value = MaxResidual(net)
}

func (r *ResidualForce) Value() float64 { return r.value }

func (r *ResidualForce) Reset() { r.value = 0 }

// MaxResidual returns the largest free-axis force magnitude over all nodes.
func MaxResidual(net *dynamo.Network) float64 {
	max := 0.0
	for i := range net.Nodes {
		n := &net.Nodes[i]
		if !n.Movable() {
			continue
		}
		f := n.Force
		if n.Fixed.Has(dynamo.AxisX) {
			f.X = 0
		}
		if n.Fixed.Has(dynamo.AxisY) {
			f.Y = 0
		}
		if n.Fixed.Has(dynamo.AxisZ) {
			f.Z = 0
		}
		max = math.Max(max, r3.Norm(f))
	}
	return max
}

// MaxDisplacement is the largest distance any node has moved from its
// position at build time.
type MaxDisplacement struct {
	name  string
	value float64
}

func NewMaxDisplacement() *MaxDisplacement {
	return &MaxDisplacement{name: "max_displacement"}
}

func (d *MaxDisplacement) Name() string { return d.name }

func (d *MaxDisplacement) Observe(net *dynamo.Network, s Sample) {
	max := 0.0
	for i := range net.Nodes {
		n := &net.Nodes[i]
		max = math.Max(max, r3.Norm(r3.Sub(n.Position, n.Initial)))
	}
	d.value = max
}

func (d *MaxDisplacement) Value() float64 { return d.value }

func (d *MaxDisplacement) Reset() { d.value = 0 }
