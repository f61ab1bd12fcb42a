package dynamo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// BarSpec describes a bar by its two endpoint positions and properties.
type BarSpec struct {
	Start         r3.Vec
	End           r3.Vec
	Area          float64
	Modulus       float64
	Prestress     float64
	MassPerLength float64
}

// PointSpec attaches supports, loads or mass to the node coinciding with
// Position.
type PointSpec struct {
	Position r3.Vec
	Locked   bool
	Fixed    Axes
	Load     r3.Vec
	Mass     float64
}

// Build assembles a network from bars and points. Endpoints closer than tol
// are merged into one node; the merge happens once, here, and is never
// revisited. Every setup error is reported before a network is returned.
func Build(bars []BarSpec, points []PointSpec, tol float64) (*Network, error) {
	if !isFinite(tol) || tol < 0 {
		return nil, &SetupError{Entity: EntityConfig, Quantity: "tolerance", Value: tol, Wrapped: ErrParameterBounds}
	}
	if len(bars) == 0 {
		return nil, &SetupError{Entity: EntityBar, Quantity: "count", Wrapped: ErrEmptyNetwork}
	}

	idx := newVertexIndex(tol)
	net := &Network{
		Bars:      make([]Bar, 0, len(bars)),
		tolerance: tol,
	}

	for i, spec := range bars {
		if err := validateBarSpec(i, spec); err != nil {
			return nil, err
		}

		start := idx.insert(spec.Start)
		end := idx.insert(spec.End)
		axis := r3.Sub(idx.pos[end], idx.pos[start])
		restLength := r3.Norm(axis)
		if start == end || restLength == 0 {
			return nil, &SetupError{Entity: EntityBar, Index: i, Quantity: "rest_length", Value: restLength, Wrapped: ErrZeroLengthBar}
		}

		b := Bar{
			ID:            i,
			Start:         start,
			End:           end,
			RestLength:    restLength,
			Area:          spec.Area,
			Modulus:       spec.Modulus,
			Prestress:     spec.Prestress,
			MassPerLength: spec.MassPerLength,
			Length:        restLength,
			Direction:     r3.Scale(1/restLength, axis),
			Force:         spec.Prestress,
		}
		b.updateStiffness()
		if !isFinite(b.Stiffness) || b.Stiffness <= 0 {
			return nil, &SetupError{Entity: EntityBar, Index: i, Quantity: "stiffness", Value: b.Stiffness, Wrapped: ErrNonPositiveStiffness}
		}
		net.Bars = append(net.Bars, b)
	}

	net.Nodes = make([]Node, len(idx.pos))
	for i, p := range idx.pos {
		net.Nodes[i] = Node{ID: i, Position: p, Initial: p}
	}
	net.index = idx

	for i, pt := range points {
		if !isFiniteVec(pt.Position) {
			return nil, &SetupError{Entity: EntityPoint, Index: i, Quantity: "position", Value: math.NaN(), Wrapped: ErrNonFinite}
		}
		if !isFiniteVec(pt.Load) {
			return nil, &SetupError{Entity: EntityPoint, Index: i, Quantity: "load", Value: math.NaN(), Wrapped: ErrNonFinite}
		}
		if !isFinite(pt.Mass) {
			return nil, &SetupError{Entity: EntityPoint, Index: i, Quantity: "mass", Value: pt.Mass, Wrapped: ErrNonFinite}
		}
		if pt.Mass < 0 {
			return nil, &SetupError{Entity: EntityPoint, Index: i, Quantity: "mass", Value: pt.Mass, Wrapped: ErrNonPositiveMass}
		}

		n, ok := idx.find(pt.Position)
		if !ok {
			return nil, &SetupError{Entity: EntityPoint, Index: i, Quantity: "position", Value: r3.Norm(pt.Position), Wrapped: ErrUnmatchedPoint}
		}

		node := &net.Nodes[n]
		node.Locked = node.Locked || pt.Locked
		node.Fixed |= pt.Fixed
		node.Load = r3.Add(node.Load, pt.Load)
		node.PointMass += pt.Mass
	}

	net.incidence = make([][]Incidence, len(net.Nodes))
	for i, b := range net.Bars {
		net.incidence[b.Start] = append(net.incidence[b.Start], Incidence{Bar: i, Sign: 1})
		net.incidence[b.End] = append(net.incidence[b.End], Incidence{Bar: i, Sign: -1})
	}

	return net, nil
}

func validateBarSpec(i int, spec BarSpec) error {
	if !isFiniteVec(spec.Start) {
		return &SetupError{Entity: EntityBar, Index: i, Quantity: "start", Value: math.NaN(), Wrapped: ErrNonFinite}
	}
	if !isFiniteVec(spec.End) {
		return &SetupError{Entity: EntityBar, Index: i, Quantity: "end", Value: math.NaN(), Wrapped: ErrNonFinite}
	}

	props := []struct {
		name     string
		value    float64
		signless bool
	}{
		{"area", spec.Area, false},
		{"modulus", spec.Modulus, false},
		{"mass_per_length", spec.MassPerLength, false},
		{"prestress", spec.Prestress, true},
	}
	for _, p := range props {
		if !isFinite(p.value) {
			return &SetupError{Entity: EntityBar, Index: i, Quantity: p.name, Value: p.value, Wrapped: ErrNonFinite}
		}
		if !p.signless && p.value < 0 {
			return &SetupError{Entity: EntityBar, Index: i, Quantity: p.name, Value: p.value, Wrapped: ErrInvalidProperty}
		}
	}
	return nil
}

// vertexIndex merges coincident points with a uniform hash grid whose cell
// size equals the tolerance, so a match is always in one of 27 cells.
type vertexIndex struct {
	tol   float64
	cells map[[3]int64][]int
	exact map[r3.Vec]int
	pos   []r3.Vec
}

func newVertexIndex(tol float64) *vertexIndex {
	v := &vertexIndex{tol: tol}
	if tol > 0 {
		v.cells = make(map[[3]int64][]int)
	} else {
		v.exact = make(map[r3.Vec]int)
	}
	return v
}

func (v *vertexIndex) cell(p r3.Vec) [3]int64 {
	return [3]int64{
		int64(math.Floor(p.X / v.tol)),
		int64(math.Floor(p.Y / v.tol)),
		int64(math.Floor(p.Z / v.tol)),
	}
}

// find returns the lowest-indexed vertex within tol of p.
func (v *vertexIndex) find(p r3.Vec) (int, bool) {
	if v.tol == 0 {
		i, ok := v.exact[p]
		return i, ok
	}

	c := v.cell(p)
	best := -1
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, i := range v.cells[[3]int64{c[0] + dx, c[1] + dy, c[2] + dz}] {
					if best >= 0 && i >= best {
						continue
					}
					if r3.Norm(r3.Sub(v.pos[i], p)) <= v.tol {
						best = i
					}
				}
			}
		}
	}
	return best, best >= 0
}

func (v *vertexIndex) insert(p r3.Vec) int {
	if i, ok := v.find(p); ok {
		return i
	}

	i := len(v.pos)
	v.pos = append(v.pos, p)
	if v.tol == 0 {
		v.exact[p] = i
	} else {
		c := v.cell(p)
		v.cells[c] = append(v.cells[c], i)
	}
	return i
}
