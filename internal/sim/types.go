package sim

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/san-kum/dynrelax/internal/dynamo"
	"github.com/san-kum/dynrelax/internal/metrics"
	"github.com/san-kum/dynrelax/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

// TimestepMode selects how the working timestep is obtained.
type TimestepMode int

const (
	// TimestepFixed uses Config.Dt as given.
	TimestepFixed TimestepMode = iota
	// TimestepAuto derives ScaleFactor·dt_safe once at setup.
	TimestepAuto
	// TimestepAdaptive re-derives masses and the safe timestep every iteration.
	// With fictitious masses, Config.Dt only scales the masses outside fixed
	// mode.
	TimestepAdaptive
)

func (m TimestepMode) String() string {
	switch m {
	case TimestepFixed:
		return "fixed"
	case TimestepAuto:
		return "auto"
	case TimestepAdaptive:
		return "adaptive"
	default:
		return fmt.Sprintf("timestep(%d)", int(m))
	}
}

// ParseTimestepMode accepts "fixed", "auto" or "adaptive".
func ParseTimestepMode(s string) (TimestepMode, error) {
	switch s {
	case "fixed":
		return TimestepFixed, nil
	case "", "auto":
		return TimestepAuto, nil
	case "adaptive":
		return TimestepAdaptive, nil
	}
	return 0, fmt.Errorf("%w: unknown timestep mode %q", dynamo.ErrParameterBounds, s)
}

// DefaultFictitiousDt is the nominal timestep fictitious masses are built
// from when Config.Dt is unset. In auto and adaptive modes the working
// timestep is still ScaleFactor times the safe estimate.
const DefaultFictitiousDt = 1.0

type Config struct {
	// Damping is the velocity retention c in v = c·v + a·dt, in [0, 1].
	Damping      float64
	TimestepMode TimestepMode
	Dt           float64
	ScaleFactor  float64

	MassStrategy    physics.MassStrategy
	FictitiousGamma float64
	Compression     physics.CompressionPolicy

	Gravity         float64
	EnergyThreshold float64
	// MaxStep caps the translation length per iteration. Zero disables.
	MaxStep        float64
	KineticDamping bool

	Workers       int
	ValidateState bool

	Logger logr.Logger
}

func DefaultConfig() Config {
	return Config{
		Damping:         0.95,
		TimestepMode:    TimestepAuto,
		ScaleFactor:     0.35,
		MassStrategy:    physics.MassLumped,
		FictitiousGamma: 1.0,
		Compression:     physics.CompressionRigid,
		Gravity:         9.81,
		EnergyThreshold: 1e-9,
		Workers:         1,
		ValidateState:   true,
	}
}

// Metric is sampled after every iteration of a run.
type Metric interface {
	Name() string
	Observe(net *dynamo.Network, s metrics.Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(net *dynamo.Network, s metrics.Sample)
}

// Result summarizes a run. Positions holds the last computed geometry even
// when the run did not converge or aborted.
type Result struct {
	Iterations    int
	Converged     bool
	KineticEnergy float64
	Timestep      float64
	Restarts      int

	// Energy is the kinetic energy trace sampled every TraceEvery
	// iterations, at the iterations listed in EnergyIterations.
	Energy           []float64
	EnergyIterations []int

	Initial   []r3.Vec
	Positions []r3.Vec
	BarForces []float64
	Metrics   map[string]float64
}
