package models

import (
	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// HangingChain is a straight line of bars between two locked anchors that
// sags under self-weight into a catenary.
type HangingChain struct {
	Segments      int
	Span          float64
	Area          float64
	Modulus       float64
	Prestress     float64
	MassPerLength float64
}

func NewHangingChain() *HangingChain {
	return &HangingChain{
		Segments:      20,
		Span:          10.0,
		Area:          1e-4,
		Modulus:       2e9,
		MassPerLength: 1.0,
	}
}

func (c *HangingChain) Name() string { return "hanging_chain" }

func (c *HangingChain) Spec() (Spec, error) {
	if _, err := positiveInt(c.Name(), "segments", float64(c.Segments)); err != nil {
		return Spec{}, err
	}

	step := c.Span / float64(c.Segments)
	bars := make([]dynamo.BarSpec, c.Segments)
	for i := range bars {
		bars[i] = dynamo.BarSpec{
			Start:         r3.Vec{X: float64(i) * step},
			End:           r3.Vec{X: float64(i+1) * step},
			Area:          c.Area,
			Modulus:       c.Modulus,
			Prestress:     c.Prestress,
			MassPerLength: c.MassPerLength,
		}
	}

	return Spec{
		Name: c.Name(),
		Bars: bars,
		Points: []dynamo.PointSpec{
			{Position: r3.Vec{}, Locked: true},
			{Position: bars[len(bars)-1].End, Locked: true},
		},
	}, nil
}

func (c *HangingChain) GetParams() map[string]float64 {
	return map[string]float64{
		"segments":        float64(c.Segments),
		"span":            c.Span,
		"area":            c.Area,
		"modulus":         c.Modulus,
		"prestress":       c.Prestress,
		"mass_per_length": c.MassPerLength,
	}
}

func (c *HangingChain) SetParam(name string, value float64) error {
	switch name {
	case "segments":
		n, err := positiveInt(c.Name(), name, value)
		if err != nil {
			return err
		}
		c.Segments = n
	case "span":
		c.Span = value
	case "area":
		c.Area = value
	case "modulus":
		c.Modulus = value
	case "prestress":
		c.Prestress = value
	case "mass_per_length":
		c.MassPerLength = value
	default:
		return unknownParam(c.Name(), name)
	}
	return nil
}
