// Package capture owns one capture lifecycle: permission, stream, record,
// stop, blob. The host platform is reached only through the media ports, so
// the same session drives a browser, a native device or a test fake.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/camrec/internal/blob"
	"github.com/petems/camrec/internal/media"
)

// Phase is the session's lifecycle position
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseSurfaceBound
	PhaseStreamAcquired
	PhaseRecording
	PhaseStopped
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseSurfaceBound:
		return "surface-bound"
	case PhaseStreamAcquired:
		return "stream-acquired"
	case PhaseRecording:
		return "recording"
	case PhaseStopped:
		return "stopped"
	case PhaseClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// Session-level event types reported to observers next to the recorder's own
const (
	EventReady     = "ready"
	EventFinalized = "finalized"
	EventFailed    = "failed"
)

// Event is what an Observer sees
type Event struct {
	Type  string
	State media.RecorderState
	Size  int
	Link  string
	Err   error
	Time  time.Time
}

// Observer receives lifecycle hooks. Calls may come from host goroutines and
// must not call back into the session.
type Observer interface {
	OnEvent(e Event)
}

// Config wires a session to its host
type Config struct {
	Options      Options
	Capabilities media.Capabilities
	Devices      media.Devices
	Surfaces     media.SurfaceLocator
	Origin       media.OriginProvider
	// Blobs holds finalized recordings. Nil gets a private store.
	Blobs    *blob.Store
	Logger   zerolog.Logger
	Observer Observer
}

// HostConfig fills every port from a single host
func HostConfig(opts Options, h media.Host, blobs *blob.Store, log zerolog.Logger) Config {
	return Config{
		Options:      opts,
		Capabilities: h,
		Devices:      h,
		Surfaces:     h,
		Origin:       h,
		Blobs:        blobs,
		Logger:       log,
	}
}

// Session drives one recording from surface binding to a finalized blob.
// A stopped session cannot record again; create a new one.
type Session struct {
	opts     Options
	caps     media.Capabilities
	devices  media.Devices
	surface  media.Surface
	blobs    *blob.Store
	log      zerolog.Logger
	observer Observer

	mu        sync.Mutex
	phase     Phase
	acquiring bool
	stream    media.Stream
	recorder  media.Recorder
	last      *blob.Blob
	link      string

	chunkMu sync.Mutex
	chunks  [][]byte
}

// New validates the configuration and binds the display surface.
func New(ctx context.Context, cfg Config) (*Session, error) {
	opts := cfg.Options.withDefaults()

	log := cfg.Logger.With().
		Str("component", "capture").
		Str("selector", opts.Selector).
		Logger()
	if !opts.Logging {
		log = log.Level(zerolog.WarnLevel)
	}

	s := &Session{
		opts:     opts,
		caps:     cfg.Capabilities,
		devices:  cfg.Devices,
		blobs:    cfg.Blobs,
		log:      log,
		observer: cfg.Observer,
	}

	if !s.caps.IsTypeSupported(opts.MimeType) {
		return nil, s.fail(fmt.Errorf("%w: %s", ErrUnsupportedFormat, opts.MimeType), "MIME type is not recordable")
	}

	surface, err := cfg.Surfaces.Locate(ctx, opts.Selector)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: %s: %w", ErrSurfaceNotFound, opts.Selector, err), "Display surface lookup failed")
	}

	origin, err := cfg.Origin.Origin()
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: %w", ErrInsecureOrigin, err), "Origin unavailable")
	}
	if !secureOrigin(origin.Scheme, origin.Hostname()) {
		return nil, s.fail(fmt.Errorf("%w: %s", ErrInsecureOrigin, origin), "Insecure origin")
	}

	if err := surface.SetAutoplay(true); err != nil {
		return nil, s.fail(fmt.Errorf("%w: set autoplay: %w", ErrSurfaceNotFound, err), "Failed to configure surface")
	}
	if err := surface.SetMuted(true); err != nil {
		return nil, s.fail(fmt.Errorf("%w: set muted: %w", ErrSurfaceNotFound, err), "Failed to configure surface")
	}

	if s.blobs == nil {
		s.blobs = blob.NewStore(origin.Scheme + "://" + origin.Host)
	}
	s.surface = surface
	s.phase = PhaseSurfaceBound

	s.log.Info().
		Int("width", opts.Width).
		Int("height", opts.Height).
		Str("mime_type", opts.MimeType).
		Msg("Surface bound")

	return s, nil
}

// Acquire requests the media stream, binds it to the surface and prepares
// the recorder. On failure the session stays surface-bound and Acquire may
// be retried. Nothing times out here; cancel ctx to give up.
func (s *Session) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseSurfaceBound || s.acquiring {
		phase := s.phase
		s.mu.Unlock()
		return s.fail(fmt.Errorf("%w: acquire while %s", ErrInvalidState, phase), "Acquire rejected")
	}
	s.acquiring = true
	s.mu.Unlock()

	constraints := media.Constraints{Audio: true}
	if !s.opts.AudioOnly {
		constraints.Video = &media.VideoConstraints{Width: s.opts.Width, Height: s.opts.Height}
	}

	s.log.Debug().Bool("video", constraints.Video != nil).Msg("Requesting user media")
	stream, err := s.devices.GetUserMedia(ctx, constraints)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquiring = false

	if err != nil {
		if errors.Is(err, media.ErrPermissionDenied) {
			return s.fail(fmt.Errorf("%w: %w", ErrPermissionDenied, err), "Media permission denied")
		}
		return s.fail(fmt.Errorf("%w: %w", ErrDeviceError, err), "Failed to acquire media stream")
	}

	if s.phase != PhaseSurfaceBound {
		stream.Stop()
		return s.fail(fmt.Errorf("%w: session %s during acquire", ErrInvalidState, s.phase), "Acquire abandoned")
	}

	if err := s.surface.SetSource(stream); err != nil {
		stream.Stop()
		return s.fail(fmt.Errorf("%w: bind stream: %w", ErrDeviceError, err), "Failed to bind stream to surface")
	}

	rec, err := s.devices.NewRecorder(stream, media.RecorderOptions{
		MimeType: s.opts.MimeType,
		Handler:  s.handleEvent,
	})
	if err != nil {
		if unbindErr := s.surface.SetSource(nil); unbindErr != nil {
			s.log.Warn().Err(unbindErr).Msg("Failed to unbind surface")
		}
		stream.Stop()
		return s.fail(fmt.Errorf("%w: create recorder: %w", ErrRecorderFault, err), "Failed to create recorder")
	}

	s.stream = stream
	s.recorder = rec
	s.phase = PhaseStreamAcquired

	s.log.Info().
		Str("stream", stream.ID()).
		Int("tracks", len(stream.Tracks())).
		Msg("Media stream acquired")
	s.notify(Event{Type: EventReady, State: media.StateInactive})

	return nil
}

// IsReady reports whether a stream has been acquired
func (s *Session) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Start begins recording. Chunks from any earlier attempt are discarded.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseStreamAcquired {
		return s.fail(fmt.Errorf("%w: start while %s", ErrInvalidState, s.phase), "Start rejected")
	}

	s.chunkMu.Lock()
	s.chunks = nil
	s.chunkMu.Unlock()

	if err := s.recorder.Start(Timeslice); err != nil {
		return s.fail(fmt.Errorf("%w: start: %w", ErrRecorderFault, err), "Failed to start recorder")
	}
	s.phase = PhaseRecording

	s.log.Info().Dur("timeslice", Timeslice).Msg("Recording started")
	return nil
}

// Pause suspends a running recording
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseRecording || s.recorder.State() != media.StateRecording {
		return s.fail(fmt.Errorf("%w: pause while %s", ErrInvalidState, s.stateLocked()), "Pause rejected")
	}
	if err := s.recorder.Pause(); err != nil {
		return s.fail(fmt.Errorf("%w: pause: %w", ErrRecorderFault, err), "Failed to pause recorder")
	}
	return nil
}

// Resume continues a paused recording
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseRecording || s.recorder.State() != media.StatePaused {
		return s.fail(fmt.Errorf("%w: resume while %s", ErrInvalidState, s.stateLocked()), "Resume rejected")
	}
	if err := s.recorder.Resume(); err != nil {
		return s.fail(fmt.Errorf("%w: resume: %w", ErrRecorderFault, err), "Failed to resume recorder")
	}
	return nil
}

// Stop stops the recorder, concatenates the buffered chunks into a blob and
// returns a link to it. The link minted by the previous Stop is released
// first. onDone, if set, is called once with the link.
//
// Stopping again without a new Start rebuilds the blob from the same chunks.
func (s *Session) Stop(ctx context.Context, onDone func(link string)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseStreamAcquired, PhaseRecording, PhaseStopped:
	default:
		return "", s.fail(fmt.Errorf("%w: stop while %s", ErrInvalidState, s.phase), "Stop rejected")
	}

	if s.recorder.State() != media.StateInactive {
		if err := s.recorder.Stop(ctx); err != nil {
			return "", s.fail(fmt.Errorf("%w: stop: %w", ErrRecorderFault, err), "Failed to stop recorder")
		}
	}

	s.chunkMu.Lock()
	b := blob.New(s.opts.MimeType, s.chunks)
	count := len(s.chunks)
	s.chunkMu.Unlock()

	if s.link != "" {
		if err := s.blobs.Revoke(s.link); err != nil && !errors.Is(err, blob.ErrUnknownLink) {
			s.log.Warn().Err(err).Str("link", s.link).Msg("Failed to release previous link")
		}
	}

	s.last = b
	s.link = s.blobs.Mint(b)
	s.phase = PhaseStopped

	s.log.Info().
		Str("size", blob.HumanSize(b.Size())).
		Int("chunks", count).
		Str("link", s.link).
		Msg("Recording finalized")
	s.notify(Event{Type: EventFinalized, State: s.recorder.State(), Size: b.Size(), Link: s.link})

	if onDone != nil {
		onDone(s.link)
	}
	return s.link, nil
}

// LinkToFile mints a fresh link to the last recording. The caller owns the
// link and should hand it back to Release.
func (s *Session) LinkToFile() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last == nil {
		return "", ErrNoRecording
	}
	return s.blobs.Mint(s.last), nil
}

// Release revokes a link returned by LinkToFile
func (s *Session) Release(link string) error {
	return s.blobs.Revoke(link)
}

// Blob returns the last finalized recording, or nil
func (s *Session) Blob() *blob.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// State mirrors the recorder's state, or inactive when there is none yet
func (s *Session) State() media.RecorderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() media.RecorderState {
	if s.recorder == nil {
		return media.StateInactive
	}
	return s.recorder.State()
}

// Phase returns the lifecycle phase
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Options returns the effective options, defaults applied
func (s *Session) Options() Options {
	return s.opts
}

// SupportedTypes asks the host which candidate types it can record
func (s *Session) SupportedTypes() []string {
	return SupportedTypes(s.caps)
}

// SupportedTypes filters CandidateTypes through caps
func SupportedTypes(caps media.Capabilities) []string {
	var out []string
	for _, t := range CandidateTypes {
		if caps.IsTypeSupported(t) {
			out = append(out, t)
		}
	}
	return out
}

// Close stops the recorder and the stream, unbinds the surface and releases
// the session's link. The session is unusable afterwards.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseClosed {
		return nil
	}

	var errs []error
	if s.recorder != nil && s.recorder.State() != media.StateInactive {
		if err := s.recorder.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop recorder: %w", err))
		}
	}
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream: %w", err))
		}
		if err := s.surface.SetSource(nil); err != nil {
			errs = append(errs, fmt.Errorf("unbind surface: %w", err))
		}
	}
	if s.link != "" {
		if err := s.blobs.Revoke(s.link); err != nil {
			s.log.Warn().Err(err).Str("link", s.link).Msg("Failed to release link")
		}
		s.link = ""
	}
	s.phase = PhaseClosed

	if err := errors.Join(errs...); err != nil {
		s.log.Error().Err(err).Msg("Session closed with errors")
		return err
	}
	s.log.Debug().Msg("Session closed")
	return nil
}

func (s *Session) handleEvent(e media.Event) {
	switch e.Type {
	case media.EventDataAvailable:
		if len(e.Data) == 0 {
			return
		}
		chunk := append([]byte(nil), e.Data...)
		s.chunkMu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.chunkMu.Unlock()
		return
	case media.EventError:
		err := fmt.Errorf("%w: %w", ErrRecorderFault, eventErr(e))
		s.log.Error().Err(err).Msg("Recorder error")
		s.notify(Event{Type: string(e.Type), Err: err})
		return
	case media.EventWarning:
		err := fmt.Errorf("%w: %w", ErrRecorderFault, eventErr(e))
		s.log.Warn().Err(err).Msg("Recorder warning")
		s.notify(Event{Type: string(e.Type), Err: err})
		return
	}

	var state media.RecorderState
	switch e.Type {
	case media.EventStart, media.EventResume:
		state = media.StateRecording
	case media.EventPause:
		state = media.StatePaused
	default:
		state = media.StateInactive
	}
	s.log.Debug().Str("event", string(e.Type)).Msg("Recorder event")
	s.notify(Event{Type: string(e.Type), State: state})
}

// fail is the session's error sink: every failure is logged here before it
// is returned.
func (s *Session) fail(err error, msg string) error {
	s.log.Error().Err(err).Str("kind", KindOf(err).String()).Msg(msg)
	s.notify(Event{Type: EventFailed, Err: err})
	return err
}

func (s *Session) notify(e Event) {
	if s.observer == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	s.observer.OnEvent(e)
}

func eventErr(e media.Event) error {
	if e.Err != nil {
		return e.Err
	}
	return errors.New(string(e.Type))
}

// secureOrigin accepts https, and any scheme on localhost or a loopback IP
func secureOrigin(scheme, host string) bool {
	if strings.EqualFold(scheme, "https") {
		return true
	}
	host = strings.ToLower(host)
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	return false
}
