// Package physics provides the force and mass kernels of dynamic relaxation.
//
// Each kernel is a single pass over a [dynamo.Network] and runs to
// completion before the next one starts:
//
//   - [EvaluateBarForces]: bar geometry then axial force T = T0 + (L - L0)·Ks,
//     also available as the two passes [UpdateBarGeometry] and [UpdateAxialForces]
//   - [AccumulateNodalForces]: loads, gravity, self-weight and bar pulls per node
//   - [EstimateMasses]: lumped physical or fictitious stability mass per node
//   - [SafeTimestep]: largest stable timestep of the explicit scheme
//
// Per-bar and per-node passes can be split across goroutines with the
// workers argument. Every index is written by exactly one goroutine and the
// per-node sums run in incidence order, so results do not depend on the
// worker count.
package physics
