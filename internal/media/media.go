package media

import (
	"context"
	"errors"
	"net/url"
	"time"
)

var (
	// ErrPermissionDenied is returned by a host when the user or the
	// platform refuses access to a capture device.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrDeviceNotFound is returned when no device satisfies the constraints
	// or the device failed to open.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrNotFound is returned by a SurfaceLocator for an unknown selector.
	ErrNotFound = errors.New("not found")
)

// Capabilities answers whether the host can record a MIME type
type Capabilities interface {
	IsTypeSupported(mimeType string) bool
}

// VideoConstraints requests a video track of the given size
type VideoConstraints struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Constraints mirrors the {video:{width,height}, audio:true} request shape.
// A nil Video requests no video track.
type Constraints struct {
	Audio bool              `json:"audio"`
	Video *VideoConstraints `json:"video,omitempty"`
}

// TrackKind is "audio" or "video"
type TrackKind string

const (
	KindAudio TrackKind = "audio"
	KindVideo TrackKind = "video"
)

// Track describes one track of a live stream
type Track struct {
	Kind  TrackKind
	Label string
}

// Stream is a live media stream owned by whoever acquired it
type Stream interface {
	ID() string
	Tracks() []Track
	// Stop ends every track. Safe to call more than once.
	Stop() error
}

// Devices is the stream-acquisition and recorder-construction port
type Devices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
	NewRecorder(s Stream, opts RecorderOptions) (Recorder, error)
}

// Surface is a display element a stream can be bound to for live preview
type Surface interface {
	SetAutoplay(v bool) error
	SetMuted(v bool) error
	// SetSource binds s to the surface. A nil stream clears the binding.
	SetSource(s Stream) error
}

// SurfaceLocator finds surfaces by selector
type SurfaceLocator interface {
	Locate(ctx context.Context, selector string) (Surface, error)
}

// OriginProvider reports the origin the capture runs under
type OriginProvider interface {
	Origin() (*url.URL, error)
}

// Host bundles every port a capture session needs
type Host interface {
	Capabilities
	Devices
	SurfaceLocator
	OriginProvider
}

// RecorderState is the recorder's own state string
type RecorderState string

const (
	StateInactive  RecorderState = "inactive"
	StateRecording RecorderState = "recording"
	StatePaused    RecorderState = "paused"
)

// EventType names a recorder event
type EventType string

const (
	EventDataAvailable EventType = "dataavailable"
	EventError         EventType = "error"
	EventWarning       EventType = "warning"
	EventStart         EventType = "start"
	EventPause         EventType = "pause"
	EventResume        EventType = "resume"
	EventStop          EventType = "stop"
)

// Event is delivered by a recorder to its handler. Data is set for
// dataavailable, Err for error and warning.
type Event struct {
	Type EventType
	Data []byte
	Err  error
}

// EventHandler receives recorder events in emission order
type EventHandler func(Event)

// RecorderOptions configures a new recorder
type RecorderOptions struct {
	MimeType string
	Handler  EventHandler
}

// Recorder is the host's media recorder.
//
// Stop returns once the final dataavailable event and the stop event have
// been delivered to the handler. Stopping an inactive recorder does nothing.
type Recorder interface {
	Start(timeslice time.Duration) error
	Stop(ctx context.Context) error
	Pause() error
	Resume() error
	State() RecorderState
}
