package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for network construction and relaxation.
var (
	// ErrEmptyNetwork indicates a network built from no bars.
	ErrEmptyNetwork = errors.New("dynamo: network has no bars")

	// ErrZeroLengthBar indicates a bar whose endpoints coincide at rest.
	ErrZeroLengthBar = errors.New("dynamo: zero-length bar")

	// ErrNonFinite indicates a NaN or Inf coordinate, property or state value.
	ErrNonFinite = errors.New("dynamo: non-finite value (NaN or Inf detected)")

	// ErrNonPositiveMass indicates a movable node without positive finite mass.
	ErrNonPositiveMass = errors.New("dynamo: non-positive mass")

	// ErrNonPositiveStiffness indicates a bar whose linear stiffness is not positive.
	ErrNonPositiveStiffness = errors.New("dynamo: non-positive bar stiffness")

	// ErrInvalidProperty indicates a negative area, modulus or mass density.
	ErrInvalidProperty = errors.New("dynamo: invalid bar property")

	// ErrUnmatchedPoint indicates a support or load point that coincides with no node.
	ErrUnmatchedPoint = errors.New("dynamo: point does not coincide with any node")

	// ErrNoSafeTimestep indicates no finite positive stable timestep exists.
	ErrNoSafeTimestep = errors.New("dynamo: no finite safe timestep")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrContextCanceled indicates the relaxation was interrupted.
	ErrContextCanceled = errors.New("dynamo: relaxation canceled by context")
)

// Entity kinds used in error context.
const (
	EntityNode   = "node"
	EntityBar    = "bar"
	EntityPoint  = "point"
	EntityConfig = "config"
)

// SetupError reports a construction-time failure with the offending entity.
type SetupError struct {
	Entity   string
	Index    int
	Quantity string
	Value    float64
	Wrapped  error
}

func (e *SetupError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("setup: %s=%g: %v", e.Quantity, e.Value, e.Wrapped)
	}
	return fmt.Sprintf("setup: %s %d %s=%g: %v", e.Entity, e.Index, e.Quantity, e.Value, e.Wrapped)
}

func (e *SetupError) Unwrap() error {
	return e.Wrapped
}

// SimulationError wraps a runtime degeneracy with iteration context.
type SimulationError struct {
	Step     int
	Entity   string
	Index    int
	Quantity string
	Value    float64
	Wrapped  error
}

func (e *SimulationError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("step %d: %s=%g: %v", e.Step, e.Quantity, e.Value, e.Wrapped)
	}
	return fmt.Sprintf("step %d: %s %d %s=%g: %v", e.Step, e.Entity, e.Index, e.Quantity, e.Value, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
