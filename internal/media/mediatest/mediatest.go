// Package mediatest provides a scriptable in-memory media.Host for tests.
package mediatest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/petems/camrec/internal/media"
)

// Host is a fake media.Host. Zero value supports nothing and has no
// surfaces; use NewHost for a usable default.
type Host struct {
	mu sync.Mutex

	Types      map[string]bool
	Surfaces   map[string]*Surface
	OriginURL  string
	DenyAccess bool
	DeviceErr  error
	// RecorderErr fails NewRecorder
	RecorderErr error

	Constraints []media.Constraints
	Streams     []*Stream
	Recorders   []*Recorder
	Lookups     int
}

// NewHost returns a host that supports video/webm, serves a #cam surface and
// runs on https://example.test.
func NewHost() *Host {
	return &Host{
		Types:     map[string]bool{"video/webm": true},
		Surfaces:  map[string]*Surface{"#cam": {}},
		OriginURL: "https://example.test/",
	}
}

func (h *Host) IsTypeSupported(mimeType string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Types[media.BaseType(mimeType)] || h.Types[mimeType]
}

func (h *Host) Locate(ctx context.Context, selector string) (media.Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Lookups++
	s, ok := h.Surfaces[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", media.ErrNotFound, selector)
	}
	return s, nil
}

func (h *Host) Origin() (*url.URL, error) {
	return url.Parse(h.OriginURL)
}

func (h *Host) GetUserMedia(ctx context.Context, c media.Constraints) (media.Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Constraints = append(h.Constraints, c)

	if h.DenyAccess {
		return nil, fmt.Errorf("%w: NotAllowedError", media.ErrPermissionDenied)
	}
	if h.DeviceErr != nil {
		return nil, h.DeviceErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &Stream{id: fmt.Sprintf("stream-%d", len(h.Streams)+1)}
	if c.Audio {
		s.tracks = append(s.tracks, media.Track{Kind: media.KindAudio, Label: "fake microphone"})
	}
	if c.Video != nil {
		s.tracks = append(s.tracks, media.Track{Kind: media.KindVideo, Label: "fake camera"})
	}
	h.Streams = append(h.Streams, s)
	return s, nil
}

func (h *Host) NewRecorder(s media.Stream, opts media.RecorderOptions) (media.Recorder, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.RecorderErr != nil {
		return nil, h.RecorderErr
	}
	r := &Recorder{opts: opts, state: media.StateInactive}
	h.Recorders = append(h.Recorders, r)
	return r, nil
}

// LastRecorder returns the most recently created recorder, or nil
func (h *Host) LastRecorder() *Recorder {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.Recorders) == 0 {
		return nil
	}
	return h.Recorders[len(h.Recorders)-1]
}

// Surface records every attribute the session sets on it
type Surface struct {
	// UnbindErr fails SetSource(nil)
	UnbindErr error

	mu       sync.Mutex
	autoplay bool
	muted    bool
	source   media.Stream
	binds    int
}

func (s *Surface) SetAutoplay(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoplay = v
	return nil
}

func (s *Surface) SetMuted(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = v
	return nil
}

func (s *Surface) SetSource(st media.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == nil && s.UnbindErr != nil {
		return s.UnbindErr
	}
	s.source = st
	s.binds++
	return nil
}

// Autoplay reports the autoplay attribute
func (s *Surface) Autoplay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoplay
}

// Muted reports the muted attribute
func (s *Surface) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Source returns the bound stream
func (s *Surface) Source() media.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Stream is a fake live stream
type Stream struct {
	id     string
	tracks []media.Track

	mu      sync.Mutex
	stopped bool
}

func (s *Stream) ID() string            { return s.id }
func (s *Stream) Tracks() []media.Track { return s.tracks }

func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// Stopped reports whether Stop was called
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Recorder is a fake recorder. Tests push data with Emit while it records;
// Stop delivers any Tail chunks before the stop event, like a real encoder
// flushing its last segment.
type Recorder struct {
	opts media.RecorderOptions

	mu        sync.Mutex
	state     media.RecorderState
	timeslice time.Duration
	starts    int
	stops     int

	Tail [][]byte
}

func (r *Recorder) Start(timeslice time.Duration) error {
	r.mu.Lock()
	if r.state != media.StateInactive {
		r.mu.Unlock()
		return fmt.Errorf("recorder already %s", r.state)
	}
	r.state = media.StateRecording
	r.timeslice = timeslice
	r.starts++
	r.mu.Unlock()

	r.dispatch(media.Event{Type: media.EventStart})
	return nil
}

func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.state == media.StateInactive {
		r.mu.Unlock()
		return nil
	}
	r.state = media.StateInactive
	r.stops++
	tail := r.Tail
	r.Tail = nil
	r.mu.Unlock()

	for _, chunk := range tail {
		r.dispatch(media.Event{Type: media.EventDataAvailable, Data: chunk})
	}
	r.dispatch(media.Event{Type: media.EventStop})
	return nil
}

func (r *Recorder) Pause() error {
	r.mu.Lock()
	if r.state != media.StateRecording {
		r.mu.Unlock()
		return fmt.Errorf("cannot pause while %s", r.state)
	}
	r.state = media.StatePaused
	r.mu.Unlock()

	r.dispatch(media.Event{Type: media.EventPause})
	return nil
}

func (r *Recorder) Resume() error {
	r.mu.Lock()
	if r.state != media.StatePaused {
		r.mu.Unlock()
		return fmt.Errorf("cannot resume while %s", r.state)
	}
	r.state = media.StateRecording
	r.mu.Unlock()

	r.dispatch(media.Event{Type: media.EventResume})
	return nil
}

func (r *Recorder) State() media.RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetState forces the reported state, for mirroring checks
func (r *Recorder) SetState(s media.RecorderState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

// Emit delivers an event to the session's handler
func (r *Recorder) Emit(e media.Event) {
	r.dispatch(e)
}

// EmitData delivers a dataavailable event
func (r *Recorder) EmitData(data []byte) {
	r.dispatch(media.Event{Type: media.EventDataAvailable, Data: data})
}

// Timeslice returns the timeslice passed to the last Start
func (r *Recorder) Timeslice() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timeslice
}

// MimeType returns the MIME type the recorder was created with
func (r *Recorder) MimeType() string {
	return r.opts.MimeType
}

// Stops counts Stop calls that actually stopped an active recorder
func (r *Recorder) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

func (r *Recorder) dispatch(e media.Event) {
	if r.opts.Handler != nil {
		r.opts.Handler(e)
	}
}
