package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/san-kum/dynrelax/internal/dynamo"
)

const namespace = "dynrelax"

// Collector exports relaxation progress as Prometheus metrics. It is an
// observer: register it on a relaxer and gather from Registry.
type Collector struct {
	Registry *prometheus.Registry

	iterations    prometheus.Counter
	restarts      prometheus.Counter
	kineticEnergy prometheus.Gauge
	timestep      prometheus.Gauge
	residual      prometheus.Gauge
	nodes         prometheus.Gauge
	bars          prometheus.Gauge
}

// NewCollector creates the metrics on a fresh registry. constLabels are
// attached to every series, e.g. the model name.
func NewCollector(constLabels prometheus.Labels) *Collector {
	c := &Collector{
		Registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "iterations_total",
			Help: "Relaxation iterations performed.", ConstLabels: constLabels,
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "kinetic_damping_restarts_total",
			Help: "Kinetic energy peaks that reset velocities.", ConstLabels: constLabels,
		}),
		kineticEnergy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "kinetic_energy",
			Help: "Kinetic energy after the latest iteration.", ConstLabels: constLabels,
		}),
		timestep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "timestep",
			Help: "Working timestep of the latest iteration.", ConstLabels: constLabels,
		}),
		residual: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "residual_force",
			Help: "Largest out-of-balance nodal force.", ConstLabels: constLabels,
		}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "nodes",
			Help: "Nodes in the relaxed network.", ConstLabels: constLabels,
		}),
		bars: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "bars",
			Help: "Bars in the relaxed network.", ConstLabels: constLabels,
		}),
	}

	c.Registry.MustRegister(c.iterations, c.restarts, c.kineticEnergy, c.timestep, c.residual, c.nodes, c.bars)
	return c
}

// OnStep implements the relaxer observer hook.
func (c *Collector) OnStep(net *dynamo.Network, s Sample) {
	c.iterations.Inc()
	if s.Restarted {
		c.restarts.Inc()
	}
	c.kineticEnergy.Set(s.KineticEnergy)
	c.timestep.Set(s.Timestep)
	c.residual.Set(MaxResidual(net))
	c.nodes.Set(float64(net.NodeCount()))
	c.bars.Set(float64(net.BarCount()))
}
