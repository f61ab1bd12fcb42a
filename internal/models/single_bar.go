package models

import (
	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// SingleBar is one bar along X with its start locked and a point mass at the
// free end. An axial load stretches it by Load/Ks at equilibrium.
type SingleBar struct {
	Length    float64
	Area      float64
	Modulus   float64
	Prestress float64
	Load      float64
	Mass      float64
}

func NewSingleBar() *SingleBar {
	return &SingleBar{
		Length:  1.0,
		Area:    1.0,
		Modulus: 1000.0,
		Load:    10.0,
		Mass:    1.0,
	}
}

func (s *SingleBar) Name() string { return "single_bar" }

func (s *SingleBar) Spec() (Spec, error) {
	a := r3.Vec{}
	b := r3.Vec{X: s.Length}
	return Spec{
		Name: s.Name(),
		Bars: []dynamo.BarSpec{{
			Start: a, End: b,
			Area: s.Area, Modulus: s.Modulus, Prestress: s.Prestress,
		}},
		Points: []dynamo.PointSpec{
			{Position: a, Locked: true},
			{Position: b, Mass: s.Mass, Load: r3.Vec{X: s.Load}},
		},
	}, nil
}

func (s *SingleBar) GetParams() map[string]float64 {
	return map[string]float64{
		"length":    s.Length,
		"area":      s.Area,
		"modulus":   s.Modulus,
		"prestress": s.Prestress,
		"load":      s.Load,
		"mass":      s.Mass,
	}
}

func (s *SingleBar) SetParam(name string, value float64) error {
	switch name {
	case "length":
		s.Length = value
	case "area":
		s.Area = value
	case "modulus":
		s.Modulus = value
	case "prestress":
		s.Prestress = value
	case "load":
		s.Load = value
	case "mass":
		s.Mass = value
	default:
		return unknownParam(s.Name(), name)
	}
	return nil
}
