package calibration

import "errors"

var (
	// ErrInvalidStops means a stop table is unsorted, mismatched or too short.
	ErrInvalidStops = errors.New("invalid calibration stops")

	// ErrOutOfRange means a value lies outside the calibrated domain.
	ErrOutOfRange = errors.New("value outside calibration range")

	// ErrNoSegment means no bracketing segment holds an in-range value.
	// Unreachable for validated tables.
	ErrNoSegment = errors.New("no calibration segment for value")
)
