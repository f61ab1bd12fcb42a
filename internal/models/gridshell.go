package models

import (
	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Gridshell is the hanging model of a triangulated lath grid supported along
// its two short edges. The relaxed shape, mirrored in z, is a funicular
// vault; run it with the rigid compression policy.
type Gridshell struct {
	Nx, Ny        int
	Spacing       float64
	Area          float64
	Modulus       float64
	MassPerLength float64
	NodeMass      float64
}

func NewGridshell() *Gridshell {
	return &Gridshell{
		Nx:            12,
		Ny:            6,
		Spacing:       0.5,
		Area:          1e-3,
		Modulus:       1e10,
		MassPerLength: 5.0,
	}
}

func (g *Gridshell) Name() string { return "gridshell" }

func (g *Gridshell) Spec() (Spec, error) {
	if _, err := positiveInt(g.Name(), "nx", float64(g.Nx)); err != nil {
		return Spec{}, err
	}
	if _, err := positiveInt(g.Name(), "ny", float64(g.Ny)); err != nil {
		return Spec{}, err
	}

	pos := gridPositions(g.Nx, g.Ny, g.Spacing, func(_, _ int, p r3.Vec) r3.Vec { return p })
	bar := dynamo.BarSpec{Area: g.Area, Modulus: g.Modulus, MassPerLength: g.MassPerLength}
	supported := func(i, _ int) bool { return i == 0 || i == g.Nx }

	points := boundaryLocks(pos, g.Nx, g.Ny, supported)
	if g.NodeMass > 0 {
		for i := 1; i < g.Nx; i++ {
			for j := 0; j <= g.Ny; j++ {
				points = append(points, dynamo.PointSpec{Position: pos[i][j], Mass: g.NodeMass})
			}
		}
	}

	return Spec{
		Name:   g.Name(),
		Bars:   gridBars(pos, g.Nx, g.Ny, bar, true),
		Points: points,
	}, nil
}

func (g *Gridshell) GetParams() map[string]float64 {
	return map[string]float64{
		"nx":              float64(g.Nx),
		"ny":              float64(g.Ny),
		"spacing":         g.Spacing,
		"area":            g.Area,
		"modulus":         g.Modulus,
		"mass_per_length": g.MassPerLength,
		"node_mass":       g.NodeMass,
	}
}

func (g *Gridshell) SetParam(name string, value float64) error {
	switch name {
	case "nx", "ny":
		n, err := positiveInt(g.Name(), name, value)
		if err != nil {
			return err
		}
		if name == "nx" {
			g.Nx = n
		} else {
			g.Ny = n
		}
	case "spacing":
		g.Spacing = value
	case "area":
		g.Area = value
	case "modulus":
		g.Modulus = value
	case "mass_per_length":
		g.MassPerLength = value
	case "node_mass":
		g.NodeMass = value
	default:
		return unknownParam(g.Name(), name)
	}
	return nil
}

// Mirror returns positions reflected through z = 0, turning a hanging shape
// into its standing counterpart.
func Mirror(positions []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(positions))
	for i, p := range positions {
		out[i] = r3.Vec{X: p.X, Y: p.Y, Z: -p.Z}
	}
	return out
}
