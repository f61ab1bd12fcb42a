// Package dynamo provides the entity model for dynamic relaxation of bar-node
// networks.
//
// The package defines the plain data the relaxation loop operates on:
//
//   - [Node]: point mass with position, velocity, force and constraint state
//   - [Bar]: two-node axial element with rest length, prestress and stiffness
//   - [Network]: flat node and bar arrays with a precomputed incidence list
//   - [Build]: assembles a network from bar and point specifications
//
// # Example
//
//	net, err := dynamo.Build(bars, points, 1e-6)
//	if err != nil {
//	    return err
//	}
//	r, _ := sim.New(net, sim.DefaultConfig())
//	for !r.HasConverged() {
//	    if err := r.Step(); err != nil {
//	        return err
//	    }
//	}
//
// # Thread Safety
//
// A Network is owned by a single caller for the duration of a relaxation run.
// The node and bar collections are frozen after [Build]; only node kinematic
// state, forces and masses change afterwards.
package dynamo
