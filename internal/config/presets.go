package config

import "sort"

func preset(model string, solver SolverConfig, maxIter int, params map[string]float64) *Config {
	cfg := DefaultConfig()
	cfg.Model = model
	cfg.Solver = solver
	cfg.MaxIterations = maxIter
	cfg.Params = params
	return cfg
}

func solver(mutate func(*SolverConfig)) SolverConfig {
	s := DefaultSolverConfig()
	mutate(&s)
	return s
}

var Presets = map[string]map[string]*Config{
	"single_bar": {
		"static": preset("single_bar", solver(func(s *SolverConfig) {
			s.Timestep, s.Dt, s.Damping, s.Gravity = "fixed", 0.01, 0.9, 0
		}), 1000, map[string]float64{"load": 0}),
		"stretched": preset("single_bar", solver(func(s *SolverConfig) {
			s.Damping, s.Gravity = 0.9, 0
		}), 20000, map[string]float64{"load": 10}),
	},
	"hanging_chain": {
		"catenary": preset("hanging_chain", solver(func(s *SolverConfig) {
			s.Damping = 0.98
		}), 200000, nil),
		"kinetic": preset("hanging_chain", solver(func(s *SolverConfig) {
			s.Damping, s.KineticDamping = 1.0, true
		}), 200000, nil),
	},
	"cable_net": {
		"saddle": preset("cable_net", solver(func(s *SolverConfig) {
			s.Damping, s.Compression = 0.97, "cable"
		}), 200000, nil),
		"fictitious": preset("cable_net", solver(func(s *SolverConfig) {
			s.Mass, s.Damping, s.Compression, s.KineticDamping = "fictitious", 1.0, "cable", true
		}), 50000, nil),
	},
	"gridshell": {
		"vault": preset("gridshell", solver(func(s *SolverConfig) {
			s.Damping, s.Timestep = 0.97, "adaptive"
		}), 200000, nil),
	},
}

// defaultPresets names the preset a model starts from when none is asked
// for.
var defaultPresets = map[string]string{
	"cable_net": "saddle",
}

// ForModel returns the starting configuration for model: a copy of its
// default preset when it has one, DefaultConfig otherwise.
func ForModel(model string) *Config {
	if name, ok := defaultPresets[model]; ok {
		return GetPreset(model, name)
	}
	cfg := DefaultConfig()
	cfg.Model = model
	return cfg
}

// DefaultPreset returns the name of model's default preset, or "".
func DefaultPreset(model string) string { return defaultPresets[model] }

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, name string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
