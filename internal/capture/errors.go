package capture

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported recording format")
	ErrSurfaceNotFound   = errors.New("display surface not found")
	ErrInsecureOrigin    = errors.New("capture requires a secure origin or localhost")
	ErrPermissionDenied  = errors.New("media permission denied")
	ErrDeviceError       = errors.New("media device error")
	ErrRecorderFault     = errors.New("recorder fault")
	ErrInvalidState      = errors.New("invalid session state")
	ErrNoRecording       = errors.New("no recording available")
)

// Kind classifies a session error so callers can branch on it without
// string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedFormat
	KindSurfaceNotFound
	KindInsecureOrigin
	KindPermissionDenied
	KindDeviceError
	KindRecorderFault
	KindInvalidState
	KindNoRecording
)

var kindErrors = []struct {
	kind Kind
	err  error
}{
	{KindUnsupportedFormat, ErrUnsupportedFormat},
	{KindSurfaceNotFound, ErrSurfaceNotFound},
	{KindInsecureOrigin, ErrInsecureOrigin},
	{KindPermissionDenied, ErrPermissionDenied},
	{KindDeviceError, ErrDeviceError},
	{KindRecorderFault, ErrRecorderFault},
	{KindInvalidState, ErrInvalidState},
	{KindNoRecording, ErrNoRecording},
}

// KindOf returns the Kind of err, or KindUnknown
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, ke := range kindErrors {
		if errors.Is(err, ke.err) {
			return ke.kind
		}
	}
	return KindUnknown
}

func (k Kind) String() string {
	switch k {
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindSurfaceNotFound:
		return "SurfaceNotFound"
	case KindInsecureOrigin:
		return "InsecureOrigin"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindDeviceError:
		return "DeviceError"
	case KindRecorderFault:
		return "RecorderFault"
	case KindInvalidState:
		return "InvalidState"
	case KindNoRecording:
		return "NoRecording"
	default:
		return "Unknown"
	}
}
