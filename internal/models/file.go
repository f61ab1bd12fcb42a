package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Vec3 is a YAML flow sequence [x, y, z].
type Vec3 [3]float64

func (v Vec3) Vec() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

func toVec3(p r3.Vec) Vec3 { return Vec3{p.X, p.Y, p.Z} }

// BarProps are section and material values. In a file they can be given
// once under defaults and overridden per bar.
type BarProps struct {
	Area          *float64 `yaml:"area,omitempty"`
	Modulus       *float64 `yaml:"modulus,omitempty"`
	Prestress     *float64 `yaml:"prestress,omitempty"`
	MassPerLength *float64 `yaml:"mass_per_length,omitempty"`
}

type BarEntry struct {
	Start    Vec3 `yaml:"start,flow"`
	End      Vec3 `yaml:"end,flow"`
	BarProps `yaml:",inline"`
}

type PointEntry struct {
	Position Vec3    `yaml:"position,flow"`
	Locked   bool    `yaml:"locked,omitempty"`
	Fixed    string  `yaml:"fixed,omitempty"`
	Load     *Vec3   `yaml:"load,omitempty,flow"`
	Mass     float64 `yaml:"mass,omitempty"`
}

// NetworkFile is the on-disk form of a Spec.
type NetworkFile struct {
	Name      string       `yaml:"name,omitempty"`
	Tolerance float64      `yaml:"tolerance,omitempty"`
	Defaults  BarProps     `yaml:"defaults,omitempty"`
	Bars      []BarEntry   `yaml:"bars"`
	Points    []PointEntry `yaml:"points,omitempty"`
}

// LoadFile reads a network description from a YAML file.
func LoadFile(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, err
	}

	var f NetworkFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Spec{}, fmt.Errorf("parse %s: %w", path, err)
	}

	spec := f.Spec()
	if spec.Name == "" {
		spec.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return spec, nil
}

// SaveFile writes spec as YAML. Every bar carries its own properties.
func SaveFile(path string, spec Spec) error {
	data, err := yaml.Marshal(FromSpec(spec))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (f *NetworkFile) Spec() Spec {
	spec := Spec{
		Name:      f.Name,
		Tolerance: f.Tolerance,
		Bars:      make([]dynamo.BarSpec, len(f.Bars)),
		Points:    make([]dynamo.PointSpec, len(f.Points)),
	}

	for i, b := range f.Bars {
		spec.Bars[i] = dynamo.BarSpec{
			Start:         b.Start.Vec(),
			End:           b.End.Vec(),
			Area:          pick(b.Area, f.Defaults.Area),
			Modulus:       pick(b.Modulus, f.Defaults.Modulus),
			Prestress:     pick(b.Prestress, f.Defaults.Prestress),
			MassPerLength: pick(b.MassPerLength, f.Defaults.MassPerLength),
		}
	}

	for i, p := range f.Points {
		pt := dynamo.PointSpec{
			Position: p.Position.Vec(),
			Locked:   p.Locked,
			Fixed:    dynamo.ParseAxes(p.Fixed),
			Mass:     p.Mass,
		}
		if p.Load != nil {
			pt.Load = p.Load.Vec()
		}
		spec.Points[i] = pt
	}
	return spec
}

func FromSpec(spec Spec) *NetworkFile {
	f := &NetworkFile{
		Name:      spec.Name,
		Tolerance: spec.Tolerance,
		Bars:      make([]BarEntry, len(spec.Bars)),
		Points:    make([]PointEntry, len(spec.Points)),
	}

	for i, b := range spec.Bars {
		b := b
		f.Bars[i] = BarEntry{
			Start: toVec3(b.Start),
			End:   toVec3(b.End),
			BarProps: BarProps{
				Area:          &b.Area,
				Modulus:       &b.Modulus,
				Prestress:     &b.Prestress,
				MassPerLength: &b.MassPerLength,
			},
		}
	}

	for i, p := range spec.Points {
		e := PointEntry{
			Position: toVec3(p.Position),
			Locked:   p.Locked,
			Fixed:    p.Fixed.String(),
			Mass:     p.Mass,
		}
		if p.Load != (r3.Vec{}) {
			load := toVec3(p.Load)
			e.Load = &load
		}
		f.Points[i] = e
	}
	return f
}

func pick(v, fallback *float64) float64 {
	if v != nil {
		return *v
	}
	if fallback != nil {
		return *fallback
	}
	return 0
}
