// Package permissions checks OS-level capture consent before a device is
// opened.
package permissions

import (
	"errors"
	"fmt"
)

// ErrNotGranted is returned when the OS has not authorized capture
var ErrNotGranted = errors.New("permission not granted")

// Status mirrors the platform authorization states
type Status int

const (
	StatusNotDetermined Status = iota
	StatusRestricted
	StatusDenied
	StatusAuthorized
)

func (s Status) String() string {
	switch s {
	case StatusRestricted:
		return "restricted"
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	default:
		return "not-determined"
	}
}

// RequireMicrophone returns nil when microphone capture is authorized.
// An undetermined status triggers the system prompt and still fails; the
// caller retries once the user answered.
func RequireMicrophone() error {
	status := microphoneStatus()
	if status == StatusAuthorized {
		return nil
	}
	if status == StatusNotDetermined {
		requestMicrophone()
	}
	return fmt.Errorf("%w: microphone %s", ErrNotGranted, status)
}
