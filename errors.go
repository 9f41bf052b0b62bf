package problemcache

import (
	"errors"
	"fmt"
)

var (
	// ErrDeleteRefused is returned when the underlying provider refused to delete a problem.
	ErrDeleteRefused = errors.New("problem deletion refused by provider")

	// ErrNoSources is returned when a MultipleSources is constructed without any child source.
	ErrNoSources = errors.New("at least one source must be given")
)

// InvalidProblemError indicates that a problem record is invalid,
// e.g. its id is already cached or the provider rejected the id.
type InvalidProblemError struct {
	// ProblemID is the id of the invalid problem.
	ProblemID string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *InvalidProblemError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid problem %q", e.ProblemID)
	}
	return fmt.Sprintf("invalid problem %q: %s", e.ProblemID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InvalidProblemError) Unwrap() error {
	return e.Err
}

// UnavailableSourceError indicates that the underlying provider
// cannot currently be reached.
type UnavailableSourceError struct {
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *UnavailableSourceError) Error() string {
	if e.Err == nil {
		return "problem source is unavailable"
	}
	return fmt.Sprintf("problem source is unavailable: %s", e.Err)
}

// Unwrap returns the underlying cause.
func (e *UnavailableSourceError) Unwrap() error {
	return e.Err
}

// isSkippableConstructionError reports whether a problem construction failure
// should be tolerated during cache population.
func isSkippableConstructionError(err error) bool {
	var invalid *InvalidProblemError
	var unavailable *UnavailableSourceError
	return errors.As(err, &invalid) || errors.As(err, &unavailable)
}
