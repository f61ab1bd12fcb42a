package models

import (
	opensimplex "github.com/ojrac/opensimplex-go"
	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// CableNet is a rectangular prestressed cable grid whose boundary is locked
// on a hyperbolic paraboloid, z = Rise·(u² - v²) with u, v in [-1, 1].
// Interior nodes start flat, offset by seeded simplex noise of amplitude
// Jitter so that symmetric nets do not start on an unstable saddle.
type CableNet struct {
	Nx, Ny        int
	Spacing       float64
	Rise          float64
	Area          float64
	Modulus       float64
	Prestress     float64
	MassPerLength float64
	Jitter        float64
	Seed          int64
}

func NewCableNet() *CableNet {
	return &CableNet{
		Nx:            10,
		Ny:            10,
		Spacing:       1.0,
		Rise:          2.0,
		Area:          5e-5,
		Modulus:       1.6e11,
		Prestress:     5000,
		MassPerLength: 0.4,
		Jitter:        0.01,
		Seed:          1,
	}
}

func (c *CableNet) Name() string { return "cable_net" }

func (c *CableNet) Spec() (Spec, error) {
	if _, err := positiveInt(c.Name(), "nx", float64(c.Nx)); err != nil {
		return Spec{}, err
	}
	if _, err := positiveInt(c.Name(), "ny", float64(c.Ny)); err != nil {
		return Spec{}, err
	}

	noise := opensimplex.NewNormalized(c.Seed)
	pos := gridPositions(c.Nx, c.Ny, c.Spacing, func(i, j int, p r3.Vec) r3.Vec {
		if onBoundary(i, j, c.Nx, c.Ny) {
			u := 2*float64(i)/float64(c.Nx) - 1
			v := 2*float64(j)/float64(c.Ny) - 1
			p.Z = c.Rise * (u*u - v*v)
			return p
		}
		p.Z = c.Jitter * (2*noise.Eval2(p.X, p.Y) - 1)
		return p
	})

	bar := dynamo.BarSpec{Area: c.Area, Modulus: c.Modulus, Prestress: c.Prestress, MassPerLength: c.MassPerLength}
	return Spec{
		Name:   c.Name(),
		Bars:   gridBars(pos, c.Nx, c.Ny, bar, false),
		Points: boundaryLocks(pos, c.Nx, c.Ny, func(i, j int) bool { return onBoundary(i, j, c.Nx, c.Ny) }),
	}, nil
}

func (c *CableNet) GetParams() map[string]float64 {
	return map[string]float64{
		"nx":              float64(c.Nx),
		"ny":              float64(c.Ny),
		"spacing":         c.Spacing,
		"rise":            c.Rise,
		"area":            c.Area,
		"modulus":         c.Modulus,
		"prestress":       c.Prestress,
		"mass_per_length": c.MassPerLength,
		"jitter":          c.Jitter,
		"seed":            float64(c.Seed),
	}
}

func (c *CableNet) SetParam(name string, value float64) error {
	switch name {
	case "nx", "ny":
		n, err := positiveInt(c.Name(), name, value)
		if err != nil {
			return err
		}
		if name == "nx" {
			c.Nx = n
		} else {
			c.Ny = n
		}
	case "spacing":
		c.Spacing = value
	case "rise":
		c.Rise = value
	case "area":
		c.Area = value
	case "modulus":
		c.Modulus = value
	case "prestress":
		c.Prestress = value
	case "mass_per_length":
		c.MassPerLength = value
	case "jitter":
		c.Jitter = value
	case "seed":
		c.Seed = int64(value)
	default:
		return unknownParam(c.Name(), name)
	}
	return nil
}

func onBoundary(i, j, nx, ny int) bool {
	return i == 0 || j == 0 || i == nx || j == ny
}

// gridPositions lays out (nx+1)·(ny+1) nodes, row-major in j, and lets shape
// set each node's height.
func gridPositions(nx, ny int, spacing float64, shape func(i, j int, p r3.Vec) r3.Vec) [][]r3.Vec {
	pos := make([][]r3.Vec, nx+1)
	for i := 0; i <= nx; i++ {
		pos[i] = make([]r3.Vec, ny+1)
		for j := 0; j <= ny; j++ {
			pos[i][j] = shape(i, j, r3.Vec{X: float64(i) * spacing, Y: float64(j) * spacing})
		}
	}
	return pos
}

// gridBars connects grid neighbours, optionally with one diagonal per cell.
// Bars between two boundary-locked nodes are kept; they carry no motion but
// still load their end nodes.
func gridBars(pos [][]r3.Vec, nx, ny int, proto dynamo.BarSpec, diagonals bool) []dynamo.BarSpec {
	var bars []dynamo.BarSpec
	add := func(a, b r3.Vec) {
		spec := proto
		spec.Start, spec.End = a, b
		bars = append(bars, spec)
	}

	for i := 0; i <= nx; i++ {
		for j := 0; j <= ny; j++ {
			if i < nx {
				add(pos[i][j], pos[i+1][j])
			}
			if j < ny {
				add(pos[i][j], pos[i][j+1])
			}
			if diagonals && i < nx && j < ny {
				add(pos[i][j], pos[i+1][j+1])
			}
		}
	}
	return bars
}

func boundaryLocks(pos [][]r3.Vec, nx, ny int, locked func(i, j int) bool) []dynamo.PointSpec {
	var points []dynamo.PointSpec
	for i := 0; i <= nx; i++ {
		for j := 0; j <= ny; j++ {
			if locked(i, j) {
				points = append(points, dynamo.PointSpec{Position: pos[i][j], Locked: true})
			}
		}
	}
	return points
}
