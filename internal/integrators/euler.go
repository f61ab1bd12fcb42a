package integrators

import (
	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

const minChunk = 256

// DampedEuler is the explicit first-order scheme of dynamic relaxation:
//
//	a = F/M
//	v = c·v + a·dt
//	x = x + v·dt
//
// A Damping of 1 keeps all kinetic energy; lower values bleed it off.
type DampedEuler struct {
	Damping float64
	// MaxStep rescales any translation longer than it. Zero disables.
	MaxStep float64
	Workers int
}

func NewDampedEuler(damping float64) *DampedEuler {
	return &DampedEuler{Damping: damping}
}

// Step advances every node once. Forces must already be accumulated.
func (e *DampedEuler) Step(net *dynamo.Network, dt float64) {
	nodes := net.Nodes
	c := e.Damping

	dynamo.ParallelFor(len(nodes), e.Workers, minChunk, func(start, end int) {
		for i := start; i < end; i++ {
			n := &nodes[i]
			if !n.Movable() {
				EnforceVelocity(n)
				n.Translation = r3.Vec{}
				continue
			}

			n.Acceleration = r3.Scale(1/n.Mass, n.Force)
			n.Velocity = r3.Add(r3.Scale(c, n.Velocity), r3.Scale(dt, n.Acceleration))
			EnforceVelocity(n)

			t := r3.Scale(dt, n.Velocity)
			if e.MaxStep > 0 {
				if l := r3.Norm(t); l > e.MaxStep {
					t = r3.Scale(e.MaxStep/l, t)
				}
			}
			n.Translation = t
			EnforceTranslation(n)
			translate(n, n.Translation)
		}
	})
}

// Arrest zeroes every velocity and moves each node back by fraction of its
// last translation. Used when kinetic energy peaks.
func Arrest(net *dynamo.Network, fraction float64) {
	for i := range net.Nodes {
		n := &net.Nodes[i]
		n.Velocity = r3.Vec{}
		if !n.Movable() {
			continue
		}
		back := r3.Scale(-fraction, n.Translation)
		translate(n, back)
		n.Translation = r3.Add(n.Translation, back)
		EnforceTranslation(n)
	}
}

// translate moves the node along its free axes only, so fixed coordinates
// stay bit-for-bit unchanged.
func translate(n *dynamo.Node, t r3.Vec) {
	if !n.Fixed.Has(dynamo.AxisX) {
		n.Position.X += t.X
	}
	if !n.Fixed.Has(dynamo.AxisY) {
		n.Position.Y += t.Y
	}
	if !n.Fixed.Has(dynamo.AxisZ) {
		n.Position.Z += t.Z
	}
}
