package solver

import (
	"errors"
	"fmt"

	"github.com/notargets/structmesh/engine"
)

var (
	// ErrInvalidUsage indicates an operation called against the instance's
	// mode (preconditioner vs solver) or the variant's capabilities. It is
	// detected locally, before any engine call.
	ErrInvalidUsage = errors.New("solver: invalid usage")
)

// ConfigurationError indicates an unrecognized solver type name.
type ConfigurationError struct {
	Name string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("solver: unrecognized solver type %q", e.Name)
}

// DimensionError indicates an array whose shape or classification does not
// match the solver's configured expectations.
type DimensionError struct {
	What     string
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("solver: %s mismatch: expected %d, got %d", e.What, e.Expected, e.Actual)
}

// EngineError wraps a non-zero status returned by the solver engine. The
// enclosing operation is fatal and is not retried; the engine objects it
// touched must not be reused without re-initialization.
type EngineError struct {
	Op     string
	Status engine.Status
	Desc   string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("solver: engine error %d in %s: %s", int(e.Status), e.Op, e.Desc)
}
