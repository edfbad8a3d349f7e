package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Simulation contract errors
	ErrStatShapeMismatch = errors.New("statistic matrix shape mismatch")
	ErrSimulationFailed  = errors.New("simulation failed")

	// Configuration errors
	ErrUnknownFamily       = errors.New("unknown bound family")
	ErrInvalidFamilyParams = errors.New("invalid bound family parameters")
	ErrUnknownModel        = errors.New("unknown simulation model")

	// Input errors
	ErrInvalidTile     = errors.New("invalid tile")
	ErrEmptyGrid       = errors.New("grid has no tiles")
	ErrInvalidArgument = errors.New("invalid argument")

	// Not found errors
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)
)

// StatShapeError reports a simulation model that returned the wrong number of
// tiles or simulations. It matches ErrStatShapeMismatch under errors.Is.
type StatShapeError struct {
	WantTiles, WantSims int
	GotTiles, GotSims   int
}

func (e *StatShapeError) Error() string {
	if e.GotTiles != e.WantTiles {
		return fmt.Sprintf("%s: sim_batch returned test statistics for %d tiles but %d tiles were expected",
			ErrStatShapeMismatch, e.GotTiles, e.WantTiles)
	}
	return fmt.Sprintf("%s: sim_batch returned test statistics for %d simulations but %d simulations were expected",
		ErrStatShapeMismatch, e.GotSims, e.WantSims)
}

func (e *StatShapeError) Is(target error) bool {
	return target == ErrStatShapeMismatch
}

// Error constructors with context
func NewStatShapeError(wantTiles, wantSims, gotTiles, gotSims int) error {
	return &StatShapeError{WantTiles: wantTiles, WantSims: wantSims, GotTiles: gotTiles, GotSims: gotSims}
}

func NewUnknownFamilyError(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownFamily, name)
}

func NewFamilyParamsError(family, reason string) error {
	return fmt.Errorf("%w for %s: %s", ErrInvalidFamilyParams, family, reason)
}

func NewUnknownModelError(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownModel, name)
}

func NewInvalidTileError(index int, reason string) error {
	return fmt.Errorf("%w %d: %s", ErrInvalidTile, index, reason)
}

func NewInvalidArgumentError(field string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidArgument, field, reason)
}

func NewSimulationError(k int, err error) error {
	return fmt.Errorf("%w for K=%d: %w", ErrSimulationFailed, k, err)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsShapeError(err error) bool {
	return errors.Is(err, ErrStatShapeMismatch)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrUnknownFamily) ||
		errors.Is(err, ErrInvalidFamilyParams) ||
		errors.Is(err, ErrUnknownModel)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidTile) ||
		errors.Is(err, ErrEmptyGrid) ||
		errors.Is(err, ErrInvalidArgument)
}
