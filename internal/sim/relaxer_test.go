package sim

import (
	"context"
	"errors"
	"math"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/dynrelax/internal/dynamo"
	"github.com/san-kum/dynrelax/internal/metrics"
	"github.com/san-kum/dynrelax/internal/models"
	"github.com/san-kum/dynrelax/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

// loadedBar is A locked at the origin and B at end carrying mass and load,
// joined by a bar with E·A = 1000.
func loadedBar(end, load r3.Vec, mass float64) *dynamo.Network {
	net, err := buildLoadedBar(end, load, mass)
	Expect(err).NotTo(HaveOccurred())
	return net
}

func buildLoadedBar(end, load r3.Vec, mass float64) (*dynamo.Network, error) {
	return dynamo.Build(
		[]dynamo.BarSpec{{Start: r3.Vec{}, End: end, Area: 1, Modulus: 1000}},
		[]dynamo.PointSpec{
			{Position: r3.Vec{}, Locked: true},
			{Position: end, Load: load, Mass: mass},
		}, 0)
}

func cableNet(n int) *dynamo.Network {
	m := models.NewCableNet()
	Expect(models.Apply(m, map[string]float64{"nx": float64(n), "ny": float64(n)})).To(Succeed())
	spec, err := m.Spec()
	Expect(err).NotTo(HaveOccurred())
	net, err := spec.Build(1e-9)
	Expect(err).NotTo(HaveOccurred())
	return net
}

// hangingChain is a taut chain of unit segments between two locked anchors.
func hangingChain(segments int) *dynamo.Network {
	m := models.NewHangingChain()
	Expect(models.Apply(m, map[string]float64{"segments": float64(segments), "span": float64(segments)})).To(Succeed())
	spec, err := m.Spec()
	Expect(err).NotTo(HaveOccurred())
	net, err := spec.Build(1e-9)
	Expect(err).NotTo(HaveOccurred())
	return net
}

type sampleRecorder struct {
	samples []metrics.Sample
}

func (s *sampleRecorder) OnStep(_ *dynamo.Network, sample metrics.Sample) {
	s.samples = append(s.samples, sample)
}

var _ = Describe("Relaxer", func() {
	var cfg Config

	BeforeEach(func() {
		cfg = DefaultConfig()
		cfg.Gravity = 0
		cfg.Damping = 0.2
	})

	Describe("setup", func() {
		It("rejects a nil network", func() {
			_, err := New(nil, cfg)
			Expect(err).To(MatchError(dynamo.ErrEmptyNetwork))
		})

		DescribeTable("rejects out-of-range settings",
			func(mutate func(*Config), quantity string) {
				mutate(&cfg)
				_, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{}, 1), cfg)
				Expect(err).To(MatchError(dynamo.ErrParameterBounds))

				var se *dynamo.SetupError
				Expect(errors.As(err, &se)).To(BeTrue())
				Expect(se.Entity).To(Equal(dynamo.EntityConfig))
				Expect(se.Quantity).To(Equal(quantity))
			},
			Entry("damping above one", func(c *Config) { c.Damping = 1.5 }, "damping"),
			Entry("negative damping", func(c *Config) { c.Damping = -0.1 }, "damping"),
			Entry("fixed mode without dt", func(c *Config) { c.TimestepMode = TimestepFixed }, "dt"),
			Entry("negative dt", func(c *Config) { c.Dt = -1 }, "dt"),
			Entry("zero scale factor", func(c *Config) { c.ScaleFactor = 0 }, "scale_factor"),
			Entry("zero threshold", func(c *Config) { c.EnergyThreshold = 0 }, "energy_threshold"),
			Entry("NaN gravity", func(c *Config) { c.Gravity = math.NaN() }, "gravity"),
			Entry("unknown mass strategy", func(c *Config) { c.MassStrategy = 7 }, "mass_strategy"),
		)

		It("reports a massless movable node as a setup error", func() {
			net, err := dynamo.Build(
				[]dynamo.BarSpec{{Start: r3.Vec{}, End: r3.Vec{X: 1}, Area: 1, Modulus: 1}},
				[]dynamo.PointSpec{{Position: r3.Vec{}, Locked: true}}, 0)
			Expect(err).NotTo(HaveOccurred())

			_, err = New(net, cfg)
			Expect(err).To(MatchError(dynamo.ErrNonPositiveMass))

			var se *dynamo.SetupError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Entity).To(Equal(dynamo.EntityNode))
			Expect(se.Index).To(Equal(1))
		})

		It("fails to derive a timestep when nothing can move", func() {
			net, err := dynamo.Build(
				[]dynamo.BarSpec{{Start: r3.Vec{}, End: r3.Vec{X: 1}, Area: 1, Modulus: 1}},
				[]dynamo.PointSpec{{Position: r3.Vec{}, Locked: true}, {Position: r3.Vec{X: 1}, Fixed: dynamo.AllAxes}}, 0)
			Expect(err).NotTo(HaveOccurred())

			_, err = New(net, cfg)
			Expect(err).To(MatchError(dynamo.ErrNoSafeTimestep))

			cfg.TimestepMode = TimestepFixed
			cfg.Dt = 0.01
			_, err = New(net, cfg)
			Expect(err).NotTo(HaveOccurred())
		})

		It("derives the auto timestep from the safe estimate", func() {
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Timestep()).To(BeNumerically("~", 0.35*math.Sqrt(2.0/1000), 1e-15))
			Expect(r.HasConverged()).To(BeFalse())
			Expect(r.Iteration()).To(Equal(0))
		})

		It("scales the fictitious-mass timestep from the safe estimate", func() {
			cfg.MassStrategy = physics.MassFictitious
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{}, 0), cfg)
			Expect(err).NotTo(HaveOccurred())
			// M = 1²/2 · 1000 = 500, dt_safe = sqrt(2·500/1000) = 1.
			Expect(r.Network().Nodes[1].Mass).To(BeNumerically("~", 500, 1e-9))
			Expect(r.Timestep()).To(BeNumerically("~", 0.35*DefaultFictitiousDt, 1e-12))

			cfg.ScaleFactor = 0.1
			r, err = New(loadedBar(r3.Vec{X: 1}, r3.Vec{}, 0), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Timestep()).To(BeNumerically("~", 0.1, 1e-12))

			cfg.Dt = 0.5
			r, err = New(loadedBar(r3.Vec{X: 1}, r3.Vec{}, 0), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Network().Nodes[1].Mass).To(BeNumerically("~", 125, 1e-9))
			Expect(r.Timestep()).To(BeNumerically("~", 0.05, 1e-12))
		})

		It("takes the fictitious-mass timestep as given in fixed mode", func() {
			cfg.MassStrategy = physics.MassFictitious
			cfg.TimestepMode = TimestepFixed
			cfg.Dt = 0.5
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{}, 0), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Network().Nodes[1].Mass).To(BeNumerically("~", 125, 1e-9))
			Expect(r.Timestep()).To(Equal(0.5))
		})
	})

	Describe("equilibrium", func() {
		It("stretches a single bar by F/Ks", func() {
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{X: 10}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())

			res, err := r.Run(context.Background(), RunConfig{MaxIterations: 20000})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Converged).To(BeTrue())
			Expect(res.Positions[1].X).To(BeNumerically("~", 1.01, 2e-5))
			Expect(res.Positions[1].Y).To(Equal(0.0))
			Expect(res.BarForces[0]).To(BeNumerically("~", 10, 2e-2))
		})

		It("hangs a mass by m·g/Ks", func() {
			cfg.Gravity = 1
			cfg.TimestepMode = TimestepFixed
			cfg.Dt = 0.01

			r, err := New(loadedBar(r3.Vec{Z: -1}, r3.Vec{}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())

			res, err := r.Run(context.Background(), RunConfig{MaxIterations: 20000})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Converged).To(BeTrue())
			Expect(res.Positions[1].Z).To(BeNumerically("~", -1.001, 2e-5))
			Expect(res.Positions[0]).To(Equal(r3.Vec{}))
		})

		It("stops after one iteration when already balanced", func() {
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())

			res, err := r.Run(context.Background(), DefaultRunConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Converged).To(BeTrue())
			Expect(res.Iterations).To(Equal(1))
			Expect(res.KineticEnergy).To(Equal(0.0))
			Expect(res.Positions[1]).To(Equal(r3.Vec{X: 1}))
		})

		It("injects no energy into a balanced network", func() {
			cfg.Damping = 0.9
			cfg.TimestepMode = TimestepFixed
			cfg.Dt = 0.01

			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 1000; i++ {
				Expect(r.Step()).To(Succeed())
				Expect(r.KineticEnergy()).To(Equal(0.0))
			}
			Expect(r.Network().Nodes[1].Position).To(Equal(r3.Vec{X: 1}))
		})

		It("reaches the same geometry with fictitious masses", func() {
			cfg.MassStrategy = physics.MassFictitious
			cfg.Damping = 0.1

			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{X: 10}, 0), cfg)
			Expect(err).NotTo(HaveOccurred())

			res, err := r.Run(context.Background(), RunConfig{MaxIterations: 20000})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Converged).To(BeTrue())
			Expect(res.Positions[1].X).To(BeNumerically("~", 1.01, 2e-5))
		})

		DescribeTable("sags a chain under gravity with fictitious masses",
			func(mode TimestepMode) {
				cfg.Gravity = 9.81
				cfg.Damping = 0.95
				cfg.TimestepMode = mode

				lumped, err := New(hangingChain(4), cfg)
				Expect(err).NotTo(HaveOccurred())
				want, err := lumped.Run(context.Background(), RunConfig{MaxIterations: 200000})
				Expect(err).NotTo(HaveOccurred())
				Expect(want.Converged).To(BeTrue())

				cfg.MassStrategy = physics.MassFictitious
				r, err := New(hangingChain(4), cfg)
				Expect(err).NotTo(HaveOccurred())
				res, err := r.Run(context.Background(), RunConfig{MaxIterations: 200000})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Converged).To(BeTrue())

				lowest := 0.0
				for i, p := range res.Positions {
					Expect(p.Z).To(BeNumerically("<=", 0))
					Expect(r3.Norm(r3.Sub(p, want.Positions[i]))).To(BeNumerically("<", 1e-3))
					lowest = math.Min(lowest, p.Z)
				}
				// Inextensible-cable estimate of the sag is about 0.084.
				Expect(lowest).To(BeNumerically("~", -0.084, 0.02))
			},
			Entry("auto timestep", TimestepAuto),
			Entry("adaptive timestep", TimestepAdaptive),
		)

		It("converges undamped motion with kinetic damping", func() {
			cfg.Damping = 1
			cfg.KineticDamping = true

			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{X: 10}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())

			res, err := r.Run(context.Background(), RunConfig{MaxIterations: 20000})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Converged).To(BeTrue())
			Expect(res.Restarts).To(BeNumerically(">", 0))
			Expect(res.Positions[1].X).To(BeNumerically("~", 1.01, 1e-4))
		})

		It("stays converged when stepped further", func() {
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{X: 10}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())

			res, err := r.Run(context.Background(), RunConfig{MaxIterations: 20000})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Converged).To(BeTrue())

			before := r.Network().Nodes[1].Position
			for i := 0; i < 10; i++ {
				Expect(r.Step()).To(Succeed())
			}
			Expect(r.HasConverged()).To(BeTrue())
			Expect(r3.Norm(r3.Sub(r.Network().Nodes[1].Position, before))).To(BeNumerically("<", 1e-5))
		})
	})

	Describe("supports", func() {
		It("keeps fixed coordinates bit-for-bit", func() {
			cfg.Gravity = 9.81
			net, err := dynamo.Build(
				[]dynamo.BarSpec{
					{Start: r3.Vec{}, End: r3.Vec{X: 1}, Area: 1, Modulus: 100},
					{Start: r3.Vec{X: 1}, End: r3.Vec{X: 2}, Area: 1, Modulus: 100},
				},
				[]dynamo.PointSpec{
					{Position: r3.Vec{}, Locked: true},
					{Position: r3.Vec{X: 2}, Locked: true},
					{Position: r3.Vec{X: 1}, Fixed: dynamo.ParseAxes("z"), Load: r3.Vec{Y: 1}, Mass: 1},
				}, 0)
			Expect(err).NotTo(HaveOccurred())

			r, err := New(net, cfg)
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 500; i++ {
				Expect(r.Step()).To(Succeed())
				Expect(net.Nodes[1].Position.Z).To(Equal(0.0))
				Expect(net.Nodes[1].Velocity.Z).To(Equal(0.0))
			}
			Expect(net.Nodes[1].Position.Y).To(BeNumerically(">", 0))
		})

		It("never moves locked nodes", func() {
			cfg.Gravity = 9.81
			cfg.Damping = 0.95
			cfg.Compression = physics.CompressionCableOnly
			net := cableNet(8)

			r, err := New(net, cfg)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.Run(context.Background(), RunConfig{MaxIterations: 300})
			Expect(err).NotTo(HaveOccurred())

			locked := 0
			for _, n := range net.Nodes {
				if n.Locked {
					locked++
					Expect(n.Position).To(Equal(n.Initial))
					Expect(n.Velocity).To(Equal(r3.Vec{}))
				}
			}
			Expect(locked).To(Equal(4 * 8))
		})
	})

	Describe("kinetic energy", func() {
		It("is never negative and vanishes only at rest", func() {
			cfg.Gravity = 9.81
			cfg.Damping = 0.95
			net := cableNet(6)

			r, err := New(net, cfg)
			Expect(err).NotTo(HaveOccurred())
			rec := &sampleRecorder{}
			r.AddObserver(rec)

			for i := 0; i < 200; i++ {
				Expect(r.Step()).To(Succeed())
				ke := metrics.KineticEnergy(net)
				Expect(ke).To(BeNumerically(">=", 0))

				atRest := true
				for _, n := range net.Nodes {
					if n.Velocity != (r3.Vec{}) {
						atRest = false
						break
					}
				}
				Expect(ke == 0).To(Equal(atRest))
			}
			Expect(rec.samples).To(HaveLen(200))
			Expect(rec.samples[199].Iteration).To(Equal(200))
		})
	})

	Describe("determinism", func() {
		run := func(workers int) *Result {
			cfg.Gravity = 9.81
			cfg.Damping = 0.95
			cfg.Compression = physics.CompressionCableOnly
			cfg.Workers = workers

			r, err := New(cableNet(30), cfg)
			Expect(err).NotTo(HaveOccurred())
			res, err := r.Run(context.Background(), RunConfig{MaxIterations: 50, TraceEvery: 1})
			Expect(err).NotTo(HaveOccurred())
			return res
		}

		It("repeats runs exactly", func() {
			a, b := run(1), run(1)
			Expect(cmp.Diff(a, b)).To(BeEmpty())
		})

		It("matches serial results with parallel workers", func() {
			serial, parallel := run(1), run(4)
			Expect(cmp.Diff(serial.Positions, parallel.Positions)).To(BeEmpty())
			Expect(cmp.Diff(serial.BarForces, parallel.BarForces)).To(BeEmpty())
			Expect(cmp.Diff(serial.Energy, parallel.Energy)).To(BeEmpty())
		})
	})

	Describe("runtime degeneracy", func() {
		It("poisons the relaxer on a collapsed bar", func() {
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{X: 10}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Step()).To(Succeed())

			r.Network().Nodes[1].Position = r3.Vec{}
			err = r.Step()
			Expect(err).To(MatchError(dynamo.ErrZeroLengthBar))

			var se *dynamo.SimulationError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Step).To(Equal(1))
			Expect(se.Entity).To(Equal(dynamo.EntityBar))

			Expect(r.Step()).To(MatchError(err))
			Expect(r.Err()).To(MatchError(dynamo.ErrZeroLengthBar))
			Expect(r.Iteration()).To(Equal(1))
		})

		It("estimates fictitious masses from the current geometry", func() {
			cfg.MassStrategy = physics.MassFictitious
			net, err := dynamo.Build(
				[]dynamo.BarSpec{{Start: r3.Vec{}, End: r3.Vec{X: 1}, Area: 1, Modulus: 1000, Prestress: 100}},
				[]dynamo.PointSpec{{Position: r3.Vec{}, Locked: true}}, 0)
			Expect(err).NotTo(HaveOccurred())

			r, err := New(net, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(net.Nodes[1].Mass).To(BeNumerically("~", 0.5*(1000+100), 1e-9))

			net.Nodes[1].Position = r3.Vec{X: 2}
			Expect(r.Step()).To(Succeed())
			Expect(net.Nodes[1].Mass).To(BeNumerically("~", 0.5*(1000+100.0/2), 1e-9))
		})

		It("names the collapsed bar under fictitious masses", func() {
			cfg.MassStrategy = physics.MassFictitious
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{X: 10}, 0), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Step()).To(Succeed())

			r.Network().Nodes[1].Position = r3.Vec{}
			err = r.Step()
			Expect(err).To(MatchError(dynamo.ErrZeroLengthBar))

			var se *dynamo.SimulationError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Entity).To(Equal(dynamo.EntityBar))
			Expect(se.Index).To(Equal(0))
		})

		It("stops on non-finite positions", func() {
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())

			r.Network().Nodes[1].Load = r3.Vec{Y: math.Inf(1)}
			res, err := r.Run(context.Background(), DefaultRunConfig())
			Expect(err).To(MatchError(dynamo.ErrNonFinite))
			Expect(res).NotTo(BeNil())
			Expect(res.Converged).To(BeFalse())
		})
	})

	Describe("Run", func() {
		It("rejects an empty budget", func() {
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())
			_, err = r.Run(context.Background(), RunConfig{})
			Expect(err).To(HaveOccurred())
		})

		It("samples the energy trace and reports an exhausted budget", func() {
			cfg.Damping = 1
			cfg.EnergyThreshold = 1e-30
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{X: 10}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())
			r.AddMetric(metrics.NewPeakEnergy())

			res, err := r.Run(context.Background(), RunConfig{MaxIterations: 23, TraceEvery: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Converged).To(BeFalse())
			Expect(res.Iterations).To(Equal(23))
			Expect(res.EnergyIterations).To(Equal([]int{5, 10, 15, 20}))
			Expect(res.Energy).To(HaveLen(4))
			Expect(res.Metrics).To(HaveKeyWithValue("iterations", 23.0))
			Expect(res.Metrics["peak_kinetic_energy"]).To(BeNumerically(">", 0))
		})

		It("stops when the context is canceled", func() {
			r, err := New(loadedBar(r3.Vec{X: 1}, r3.Vec{X: 10}, 1), cfg)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			res, err := r.Run(ctx, DefaultRunConfig())
			Expect(err).To(MatchError(dynamo.ErrContextCanceled))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(res.Iterations).To(Equal(0))
		})
	})
})

var _ = Describe("Sweep", func() {
	job := func(name string, damping float64) Job {
		cfg := DefaultConfig()
		cfg.Gravity = 0
		cfg.Damping = damping
		return Job{
			Name: name,
			Build: func() (*dynamo.Network, error) {
				return buildLoadedBar(r3.Vec{X: 1}, r3.Vec{X: 10}, 1)
			},
			Config:  cfg,
			Run:     RunConfig{MaxIterations: 20000},
			Metrics: func() []Metric { return []Metric{metrics.NewResidualForce()} },
		}
	}

	It("returns results in job order", func() {
		results, err := Sweep(context.Background(), []Job{job("a", 0.2), job("b", 0.3)})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		for _, res := range results {
			Expect(res.Converged).To(BeTrue())
			Expect(res.Metrics).To(HaveKey("residual_force"))
		}
		Expect(results[0].Iterations).NotTo(Equal(results[1].Iterations))
	})

	It("reports the failing job", func() {
		bad := job("bad", 2)
		results, err := Sweep(context.Background(), []Job{job("ok", 0.2), bad})
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		Expect(err.Error()).To(ContainSubstring("bad"))
		Expect(results[0]).NotTo(BeNil())
	})
})
