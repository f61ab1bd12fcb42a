package dynamo

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Network owns the nodes and bars of a relaxation model.
type Network struct {
	Nodes []Node
	Bars  []Bar

	incidence [][]Incidence
	index     *vertexIndex
	tolerance float64
}

func (n *Network) NodeCount() int { return len(n.Nodes) }
func (n *Network) BarCount() int  { return len(n.Bars) }

// Tolerance is the coincidence distance used at build time.
func (n *Network) Tolerance() float64 { return n.tolerance }

// ConnectedBars returns the bars incident to node i. The slice is shared and
// must not be modified.
func (n *Network) ConnectedBars(i int) []Incidence {
	return n.incidence[i]
}

// FindNode returns the node coinciding with p under the build tolerance.
func (n *Network) FindNode(p r3.Vec) (int, bool) {
	if n.index == nil {
		return -1, false
	}
	return n.index.find(p)
}

// BarVector returns the vector from the bar's start node to its end node at
// the current positions.
func (n *Network) BarVector(i int) r3.Vec {
	b := &n.Bars[i]
	return r3.Sub(n.Nodes[b.End].Position, n.Nodes[b.Start].Position)
}

// Positions returns a copy of the current node positions.
func (n *Network) Positions() []r3.Vec {
	out := make([]r3.Vec, len(n.Nodes))
	for i := range n.Nodes {
		out[i] = n.Nodes[i].Position
	}
	return out
}

// SetPrestress changes a bar's prestress and recomputes its stiffness.
func (n *Network) SetPrestress(i int, t0 float64) error {
	if i < 0 || i >= len(n.Bars) {
		return &SetupError{Entity: EntityBar, Index: i, Quantity: "index", Value: float64(i), Wrapped: ErrParameterBounds}
	}
	if !isFinite(t0) {
		return &SetupError{Entity: EntityBar, Index: i, Quantity: "prestress", Value: t0, Wrapped: ErrNonFinite}
	}

	b := &n.Bars[i]
	old := b.Prestress
	b.Prestress = t0
	b.updateStiffness()
	if !isFinite(b.Stiffness) || b.Stiffness <= 0 {
		ks := b.Stiffness
		b.Prestress = old
		b.updateStiffness()
		return &SetupError{Entity: EntityBar, Index: i, Quantity: "stiffness", Value: ks, Wrapped: ErrNonPositiveStiffness}
	}
	return nil
}

// Components returns the connected components as sorted node index lists,
// ordered by their smallest node index.
func (n *Network) Components() [][]int {
	g := simple.NewUndirectedGraph()
	for i := range n.Nodes {
		g.AddNode(simple.Node(i))
	}
	for _, b := range n.Bars {
		g.SetEdge(simple.Edge{F: simple.Node(b.Start), T: simple.Node(b.End)})
	}

	var comps [][]int
	for _, cc := range topo.ConnectedComponents(g) {
		ids := make([]int, len(cc))
		for j, node := range cc {
			ids[j] = int(node.ID())
		}
		sort.Ints(ids)
		comps = append(comps, ids)
	}
	sort.Slice(comps, func(a, b int) bool { return comps[a][0] < comps[b][0] })
	return comps
}

// UnsupportedComponents returns the components with no locked node and no
// fixed axis anywhere. Under load such a component translates without bound.
func (n *Network) UnsupportedComponents() [][]int {
	var out [][]int
	for _, comp := range n.Components() {
		supported := false
		for _, i := range comp {
			if n.Nodes[i].Locked || n.Nodes[i].Fixed != NoAxes {
				supported = true
				break
			}
		}
		if !supported {
			out = append(out, comp)
		}
	}
	return out
}
