package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/san-kum/dynrelax/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

func testNetwork(t *testing.T) *dynamo.Network {
	t.Helper()
	net, err := dynamo.Build(
		[]dynamo.BarSpec{{Start: r3.Vec{}, End: r3.Vec{X: 1}, Area: 1, Modulus: 1, Prestress: 1}},
		[]dynamo.PointSpec{{Position: r3.Vec{}, Locked: true}},
		0)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	net.Nodes[0].Mass = 1
	net.Nodes[1].Mass = 2
	return net
}

func TestKineticEnergy(t *testing.T) {
	net := testNetwork(t)
	if ke := KineticEnergy(net); ke != 0 {
		t.Errorf("expected zero energy at rest, got %g", ke)
	}

	net.Nodes[1].Velocity = r3.Vec{X: 3, Y: 4}
	if ke := KineticEnergy(net); ke != 25 {
		t.Errorf("expected 25, got %g", ke)
	}
}

func TestMonitorConvergence(t *testing.T) {
	net := testNetwork(t)
	m := NewMonitor(1e-6, false)

	if m.Converged() {
		t.Error("monitor should not report convergence before any sample")
	}

	net.Nodes[1].Velocity = r3.Vec{X: 1}
	m.Observe(net)
	if m.Converged() {
		t.Error("energy 1 should not be converged")
	}

	net.Nodes[1].Velocity = r3.Vec{}
	ke, restarted := m.Observe(net)
	if ke != 0 || restarted {
		t.Errorf("unexpected sample %g %v", ke, restarted)
	}
	if !m.Converged() {
		t.Error("zero energy should be converged")
	}
	if m.Samples() != 2 {
		t.Errorf("expected 2 samples, got %d", m.Samples())
	}

	m.Reset()
	if m.Converged() || m.Samples() != 0 {
		t.Error("reset should clear samples")
	}
}

func TestMonitorKineticDampingPeak(t *testing.T) {
	net := testNetwork(t)
	n := &net.Nodes[1]
	m := NewMonitor(1e-12, true)

	speeds := []float64{1, 2, 1.5}
	var restarted bool
	var ke float64
	for _, v := range speeds {
		n.Velocity = r3.Vec{X: v}
		n.Translation = r3.Vec{X: 0.2}
		n.Position = r3.Vec{X: 1.2}
		ke, restarted = m.Observe(net)
	}

	if !restarted {
		t.Fatal("expected a restart at the energy peak")
	}
	if ke != 0.5*2*1.5*1.5 {
		t.Errorf("reported energy should be the sample before reset, got %g", ke)
	}
	if n.Velocity != (r3.Vec{}) {
		t.Errorf("velocities should be zeroed, got %v", n.Velocity)
	}
	if math.Abs(n.Position.X-1.1) > 1e-15 {
		t.Errorf("expected half-step rollback to 1.1, got %g", n.Position.X)
	}
	if m.Restarts() != 1 {
		t.Errorf("expected 1 restart, got %d", m.Restarts())
	}
	if m.Converged() {
		t.Error("convergence is judged on the reported sample")
	}
}

func TestMonitorNoPeakWhileRising(t *testing.T) {
	net := testNetwork(t)
	m := NewMonitor(1e-12, true)
	for i := 1; i <= 5; i++ {
		net.Nodes[1].Velocity = r3.Vec{X: float64(i)}
		if _, restarted := m.Observe(net); restarted {
			t.Fatalf("unexpected restart at sample %d", i)
		}
	}
}

func TestResidualAndDisplacement(t *testing.T) {
	net := testNetwork(t)
	net.Nodes[0].Force = r3.Vec{X: 100}
	net.Nodes[1].Force = r3.Vec{X: 3, Z: 4}
	net.Nodes[1].Position = r3.Vec{X: 1, Y: 0.5}

	if r := MaxResidual(net); r != 5 {
		t.Errorf("expected residual 5 ignoring the locked node, got %g", r)
	}
	net.Nodes[1].Fixed = dynamo.ParseAxes("z")
	if r := MaxResidual(net); r != 3 {
		t.Errorf("expected residual 3 on free axes, got %g", r)
	}

	d := NewMaxDisplacement()
	d.Observe(net, Sample{})
	if d.Value() != 0.5 {
		t.Errorf("expected displacement 0.5, got %g", d.Value())
	}
	d.Reset()
	if d.Value() != 0 {
		t.Error("reset should clear the value")
	}
}

func TestSlackBars(t *testing.T) {
	net := testNetwork(t)
	s := NewSlackBars()

	s.Observe(net, Sample{})
	if s.Value() != 0 {
		t.Errorf("prestressed bar is not slack, got %g", s.Value())
	}

	net.Bars[0].Force = 0
	s.Observe(net, Sample{})
	if s.Value() != 1 {
		t.Errorf("expected all bars slack, got %g", s.Value())
	}
}

func TestPeakEnergy(t *testing.T) {
	p := NewPeakEnergy()
	for _, ke := range []float64{1, 4, 2} {
		p.Observe(nil, Sample{KineticEnergy: ke})
	}
	if p.Value() != 4 {
		t.Errorf("expected peak 4, got %g", p.Value())
	}
}

func TestCollector(t *testing.T) {
	net := testNetwork(t)
	c := NewCollector(prometheus.Labels{"model": "test"})

	c.OnStep(net, Sample{Iteration: 1, KineticEnergy: 0.5, Timestep: 0.01})
	c.OnStep(net, Sample{Iteration: 2, KineticEnergy: 0.25, Timestep: 0.01, Restarted: true})

	if v := testutil.ToFloat64(c.iterations); v != 2 {
		t.Errorf("expected 2 iterations, got %g", v)
	}
	if v := testutil.ToFloat64(c.restarts); v != 1 {
		t.Errorf("expected 1 restart, got %g", v)
	}
	if v := testutil.ToFloat64(c.kineticEnergy); v != 0.25 {
		t.Errorf("expected kinetic energy 0.25, got %g", v)
	}

	expected := `
# HELP dynrelax_bars Bars in the relaxed network.
# TYPE dynrelax_bars gauge
dynrelax_bars{model="test"} 1
`
	if err := testutil.GatherAndCompare(c.Registry, strings.NewReader(expected), "dynrelax_bars"); err != nil {
		t.Error(err)
	}
}
