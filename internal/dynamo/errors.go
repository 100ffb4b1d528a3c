package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for assembly, evaluation and simulation.
var (
	// ErrConfiguration marks a defect in a model definition, detected at assembly time.
	ErrConfiguration = errors.New("dynamo: invalid model configuration")

	// ErrCycle indicates a cyclic dependency among derived quantities.
	ErrCycle = errors.New("dynamo: cyclic dependency among derived quantities")

	// ErrUnresolvedIdentifier indicates a formula referenced an unknown identifier.
	ErrUnresolvedIdentifier = errors.New("dynamo: unresolved identifier")

	// ErrNumeric indicates a division by zero or a domain error during evaluation.
	ErrNumeric = errors.New("dynamo: numeric error")

	// ErrInvalidState indicates a state vector with NaN or Inf values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrDimensionMismatch indicates mismatched vector or matrix dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")
)

// Configuration error kinds.
const (
	KindDuplicate      = "duplicate"
	KindInvalidName    = "invalid_name"
	KindMissingFormula = "missing_formula"
	KindUndefinedRef   = "undefined_reference"
	KindCycle          = "cycle"
	KindDimension      = "dimension"
	KindSyntax         = "syntax"
	KindEmpty          = "empty"
)

// ConfigError describes a fatal defect found while assembling a model.
type ConfigError struct {
	Kind      string
	Component string
	Name      string
	Detail    string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Component, e.Kind)
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// Is lets cycle errors match ErrCycle as well as ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrCycle && e.Kind == KindCycle
}

// EvalError is returned when a compiled formula fails on a particular state.
type EvalError struct {
	Formula string
	Ident   string
	Err     error
}

func (e *EvalError) Error() string {
	if e.Ident != "" {
		return fmt.Sprintf("%v: %q in %q", e.Err, e.Ident, e.Formula)
	}
	return fmt.Sprintf("%v in %q", e.Err, e.Formula)
}

func (e *EvalError) Unwrap() error { return e.Err }

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
