package integrators

import (
	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// EnforceVelocity zeroes the velocity of locked nodes and the fixed-axis
// components of everyone else.
func EnforceVelocity(n *dynamo.Node) {
	n.Velocity = restrict(n.Velocity, n)
}

// EnforceTranslation applies the same rule to the last translation.
func EnforceTranslation(n *dynamo.Node) {
	n.Translation = restrict(n.Translation, n)
}

func restrict(v r3.Vec, n *dynamo.Node) r3.Vec {
	if n.Locked {
		return r3.Vec{}
	}
	if n.Fixed.Has(dynamo.AxisX) {
		v.X = 0
	}
	if n.Fixed.Has(dynamo.AxisY) {
		v.Y = 0
	}
	if n.Fixed.Has(dynamo.AxisZ) {
		v.Z = 0
	}
	return v
}
