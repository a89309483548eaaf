package controller

import "errors"

var (
	// ErrUnavailable is returned when no driver is bound or its bounds are unknown.
	ErrUnavailable = errors.New("controller unavailable")
	// ErrHardwareWrite is returned when the device rejected a write.
	ErrHardwareWrite = errors.New("hardware write failed")
	// ErrUnknownAxis is returned by Registry lookups for unregistered names.
	ErrUnknownAxis = errors.New("unknown axis")
)
