package config

import (
	"os"

	"github.com/san-kum/dynrelax/internal/physics"
	"github.com/san-kum/dynrelax/internal/sim"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDamping         = 0.95
	DefaultScaleFactor     = 0.35
	DefaultGravity         = 9.81
	DefaultEnergyThreshold = 1e-9
	DefaultMaxIterations   = 100000
	DefaultTraceEvery      = 10
	DefaultTolerance       = 1e-6
)

type Config struct {
	Model         string             `yaml:"model" json:"model"`
	ModelFile     string             `yaml:"model_file,omitempty" json:"model_file,omitempty"`
	Seed          int64              `yaml:"seed" json:"seed"`
	MaxIterations int                `yaml:"max_iterations" json:"max_iterations"`
	TraceEvery    int                `yaml:"trace_every" json:"trace_every"`
	Tolerance     float64            `yaml:"tolerance" json:"tolerance"`
	Solver        SolverConfig       `yaml:"solver" json:"solver"`
	Params        map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
}

// SolverConfig is the file form of sim.Config; enums are spelled out.
type SolverConfig struct {
	Damping         float64 `yaml:"damping" json:"damping"`
	Timestep        string  `yaml:"timestep" json:"timestep"`
	Dt              float64 `yaml:"dt,omitempty" json:"dt,omitempty"`
	ScaleFactor     float64 `yaml:"scale_factor" json:"scale_factor"`
	Mass            string  `yaml:"mass" json:"mass"`
	FictitiousGamma float64 `yaml:"fictitious_gamma" json:"fictitious_gamma"`
	Compression     string  `yaml:"compression" json:"compression"`
	Gravity         float64 `yaml:"gravity" json:"gravity"`
	EnergyThreshold float64 `yaml:"energy_threshold" json:"energy_threshold"`
	MaxStep         float64 `yaml:"max_step,omitempty" json:"max_step,omitempty"`
	KineticDamping  bool    `yaml:"kinetic_damping" json:"kinetic_damping"`
	Workers         int     `yaml:"workers" json:"workers"`
}

func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		Damping:         DefaultDamping,
		Timestep:        sim.TimestepAuto.String(),
		ScaleFactor:     DefaultScaleFactor,
		Mass:            physics.MassLumped.String(),
		FictitiousGamma: 1.0,
		Compression:     physics.CompressionRigid.String(),
		Gravity:         DefaultGravity,
		EnergyThreshold: DefaultEnergyThreshold,
		Workers:         1,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Model:         "single_bar",
		MaxIterations: DefaultMaxIterations,
		TraceEvery:    DefaultTraceEvery,
		Tolerance:     DefaultTolerance,
		Solver:        DefaultSolverConfig(),
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SimConfig converts the file form into a solver configuration. Range checks
// happen in sim.New.
func (s SolverConfig) SimConfig() (sim.Config, error) {
	mode, err := sim.ParseTimestepMode(s.Timestep)
	if err != nil {
		return sim.Config{}, err
	}
	mass, err := physics.ParseMassStrategy(s.Mass)
	if err != nil {
		return sim.Config{}, err
	}
	comp, err := physics.ParseCompressionPolicy(s.Compression)
	if err != nil {
		return sim.Config{}, err
	}

	cfg := sim.DefaultConfig()
	cfg.Damping = s.Damping
	cfg.TimestepMode = mode
	cfg.Dt = s.Dt
	cfg.ScaleFactor = s.ScaleFactor
	cfg.MassStrategy = mass
	cfg.FictitiousGamma = s.FictitiousGamma
	cfg.Compression = comp
	cfg.Gravity = s.Gravity
	cfg.EnergyThreshold = s.EnergyThreshold
	cfg.MaxStep = s.MaxStep
	cfg.KineticDamping = s.KineticDamping
	cfg.Workers = s.Workers
	return cfg, nil
}

func (c *Config) RunConfig() sim.RunConfig {
	return sim.RunConfig{MaxIterations: c.MaxIterations, TraceEvery: c.TraceEvery}
}

// SetParam sets a solver setting when name is one, otherwise a model
// parameter.
func (c *Config) SetParam(name string, value float64) {
	switch name {
	case "damping":
		c.Solver.Damping = value
	case "scale_factor":
		c.Solver.ScaleFactor = value
	case "dt":
		c.Solver.Dt = value
	case "fictitious_gamma":
		c.Solver.FictitiousGamma = value
	case "gravity":
		c.Solver.Gravity = value
	case "energy_threshold":
		c.Solver.EnergyThreshold = value
	case "max_step":
		c.Solver.MaxStep = value
	default:
		if c.Params == nil {
			c.Params = make(map[string]float64)
		}
		c.Params[name] = value
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	return &out
}
