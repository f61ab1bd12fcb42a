package dynamo

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Axis identifies a translational degree of freedom.
type Axis uint8

const (
	AxisX Axis = 1 << iota
	AxisY
	AxisZ
)

// Axes is a set of fixed translational axes.
type Axes uint8

const (
	NoAxes  Axes = 0
	AllAxes Axes = Axes(AxisX | AxisY | AxisZ)
)

// Has reports whether axis a is in the set.
func (s Axes) Has(a Axis) bool { return s&Axes(a) != 0 }

// With returns the set with a added.
func (s Axes) With(a Axis) Axes { return s | Axes(a) }

// ParseAxes reads a set such as "xz" or "XYZ". Unknown letters are ignored.
func ParseAxes(s string) Axes {
	var out Axes
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'x':
			out = out.With(AxisX)
		case 'y':
			out = out.With(AxisY)
		case 'z':
			out = out.With(AxisZ)
		}
	}
	return out
}

func (s Axes) String() string {
	var b strings.Builder
	if s.Has(AxisX) {
		b.WriteByte('x')
	}
	if s.Has(AxisY) {
		b.WriteByte('y')
	}
	if s.Has(AxisZ) {
		b.WriteByte('z')
	}
	return b.String()
}

// Node is a point mass of the network.
type Node struct {
	ID       int
	Position r3.Vec
	// Initial is the position at build time.
	Initial      r3.Vec
	Velocity     r3.Vec
	Acceleration r3.Vec
	Force        r3.Vec
	// Translation is the displacement applied by the last step.
	Translation r3.Vec

	// Mass is the integration mass chosen by the mass strategy.
	Mass float64
	// PointMass is an explicitly assigned physical mass carried by gravity.
	PointMass float64
	Load      r3.Vec

	Fixed  Axes
	Locked bool
}

// Movable reports whether the node has at least one free axis.
func (n *Node) Movable() bool {
	return !n.Locked && n.Fixed != AllAxes
}

// Bar is a two-node axial element. Start and End index the owning network's
// node array.
type Bar struct {
	ID    int
	Start int
	End   int

	RestLength    float64
	Area          float64
	Modulus       float64
	Prestress     float64
	MassPerLength float64
	// Stiffness is Ks = (E·A + T0) / L0, fixed once prestress is assigned.
	Stiffness float64

	// Length, Direction and Force are recomputed every iteration. Direction
	// is the unit vector from start to end.
	Length    float64
	Direction r3.Vec
	Force     float64
}

// AxialStiffness returns E·A.
func (b *Bar) AxialStiffness() float64 {
	return b.Modulus * b.Area
}

func (b *Bar) updateStiffness() {
	b.Stiffness = (b.AxialStiffness() + b.Prestress) / b.RestLength
}

// Incidence is one bar touching a node. Sign is +1 when the node is the bar's
// start and -1 when it is the end.
type Incidence struct {
	Bar  int
	Sign float64
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isFiniteVec(v r3.Vec) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}
