package metrics

import (
	"math"

	"github.com/san-kum/dynrelax/internal/dynamo"
	"github.com/san-kum/dynrelax/internal/integrators"
	"gonum.org/v1/gonum/spatial/r3"
)

// KineticEnergy returns Σ ½·M·|v|² over all nodes.
func KineticEnergy(net *dynamo.Network) float64 {
	ke := 0.0
	for i := range net.Nodes {
		n := &net.Nodes[i]
		ke += 0.5 * n.Mass * r3.Norm2(n.Velocity)
	}
	return ke
}

// Monitor tracks kinetic energy once per iteration and decides convergence.
// With kinetic damping enabled it also restarts the motion from rest at each
// energy peak.
type Monitor struct {
	threshold      float64
	kineticDamping bool

	// last three samples, newest first
	history  [3]float64
	filled   int
	last     float64
	samples  int
	restarts int
}

func NewMonitor(threshold float64, kineticDamping bool) *Monitor {
	return &Monitor{threshold: threshold, kineticDamping: kineticDamping}
}

// Observe records the kinetic energy of the current state. When a peak is
// detected the velocities are zeroed, translations are rolled back by half a
// step and restarted is true. The returned energy is the sample taken before
// any restart.
func (m *Monitor) Observe(net *dynamo.Network) (ke float64, restarted bool) {
	ke = KineticEnergy(net)
	m.last = ke
	m.samples++

	m.history[2], m.history[1], m.history[0] = m.history[1], m.history[0], ke
	if m.filled < len(m.history) {
		m.filled++
	}

	if m.kineticDamping && m.filled == len(m.history) && m.history[2] < m.history[1] && m.history[1] > m.history[0] {
		integrators.Arrest(net, 0.5)
		m.restarts++
		m.history = [3]float64{}
		m.filled = 1
		return ke, true
	}
	return ke, false
}

// Converged reports whether the latest sample is below the threshold.
func (m *Monitor) Converged() bool {
	return m.samples > 0 && m.last < m.threshold
}

func (m *Monitor) KineticEnergy() float64 { return m.last }
func (m *Monitor) Samples() int           { return m.samples }
func (m *Monitor) Restarts() int          { return m.restarts }
func (m *Monitor) Threshold() float64     { return m.threshold }

func (m *Monitor) Reset() {
	m.history = [3]float64{}
	m.filled = 0
	m.last = 0
	m.samples = 0
	m.restarts = 0
}

// PeakEnergy records the largest kinetic energy observed during a run.
type PeakEnergy struct {
	name string
	peak float64
}

func NewPeakEnergy() *PeakEnergy {
	return &PeakEnergy{name: "peak_kinetic_energy"}
}

func (p *PeakEnergy) Name() string { return p.name }

func (p *PeakEnergy) Observe(net *dynamo.Network, s Sample) {
	p.peak = math.Max(p.peak, s.KineticEnergy)
}

func (p *PeakEnergy) Value() float64 { return p.peak }

func (p *PeakEnergy) Reset() { p.peak = 0 }
