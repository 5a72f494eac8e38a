package pipeline

import "errors"

var (
	// ErrInvalidRequest is returned for submissions or reverifications with
	// missing or unusable input
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTargetMismatch is returned when a reverification names a different
	// target domain than the analysis it belongs to
	ErrTargetMismatch = errors.New("target domain does not match analysis")
	// ErrUnavailable is returned when an analysis could not be scheduled
	ErrUnavailable = errors.New("analysis could not be scheduled")
)
