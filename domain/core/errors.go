package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Registry errors
	ErrLoad            = errors.New("equation load failed")
	ErrNotLoaded       = fmt.Errorf("%w: registry has no equations loaded", ErrLoad)
	ErrUnknownBehavior = errors.New("unknown behavior")

	// Evaluation errors
	ErrMissingCovariate = errors.New("missing covariate")
	ErrUnknownCovariate = errors.New("unknown covariate")
	ErrInvalidCovariate = errors.New("invalid covariate value")

	// Caller parameter errors
	ErrInvalidSampleCount = errors.New("invalid sample count")
	ErrInvalidGrid        = errors.New("invalid grid")
	ErrInvalidLevel       = errors.New("invalid credible level")
	ErrInvalidCoordinate  = errors.New("invalid coordinate")

	// Persistence errors
	ErrNotFound      = errors.New("resource not found")
	ErrGridNotFound  = fmt.Errorf("%w: forecast grid", ErrNotFound)
	ErrNoPersistence = errors.New("no forecast repository configured")
)

// Error constructors with context
func NewLoadError(reason string) error {
	return fmt.Errorf("%w: %s", ErrLoad, reason)
}

func NewEquationLoadError(label string, reason string) error {
	return fmt.Errorf("%w: behavior %q: %s", ErrLoad, label, reason)
}

func NewUnknownBehaviorError(label string) error {
	return fmt.Errorf("%w: %q is not registered", ErrUnknownBehavior, label)
}

func NewMissingCovariateError(label, factor string) error {
	return fmt.Errorf("%w: behavior %q requires %q which has no value and no default", ErrMissingCovariate, label, factor)
}

func NewUnknownCovariateError(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownCovariate, name)
}

func NewInvalidCovariateError(name string, value float64) error {
	return fmt.Errorf("%w: %q = %v", ErrInvalidCovariate, name, value)
}

func NewInvalidSampleCountError(count int) error {
	return fmt.Errorf("%w: sample_count must be >= 1, got %d", ErrInvalidSampleCount, count)
}

func NewInvalidGridError(field string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidGrid, field, reason)
}

func NewInvalidLevelError(level float64) error {
	return fmt.Errorf("%w: must be in (0,1), got %v", ErrInvalidLevel, level)
}

func NewInvalidCoordinateError(latitude, longitude float64) error {
	return fmt.Errorf("%w: (%v, %v) is outside [-90,90] x [-180,180]", ErrInvalidCoordinate, latitude, longitude)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsLoadError(err error) bool {
	return errors.Is(err, ErrLoad)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownBehavior)
}

// IsInvalidParameter reports errors caused by caller-supplied parameters that are
// rejected before any computation starts.
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidSampleCount) ||
		errors.Is(err, ErrInvalidGrid) ||
		errors.Is(err, ErrInvalidLevel) ||
		errors.Is(err, ErrInvalidCoordinate) ||
		errors.Is(err, ErrUnknownCovariate) ||
		errors.Is(err, ErrInvalidCovariate)
}

func IsEvaluationError(err error) bool {
	return errors.Is(err, ErrMissingCovariate)
}
