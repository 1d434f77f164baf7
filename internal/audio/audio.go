// Package audio is the native capture host: microphone input through
// PortAudio, recorded as WAV.
package audio

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/camrec/internal/config"
	"github.com/petems/camrec/internal/media"
	"github.com/petems/camrec/internal/permissions"
)

// MimeType is the only type the native recorder produces
const MimeType = "audio/wav"

// DefaultMonitor selects the default output device as preview surface
const DefaultMonitor = "default"

// Device represents an audio device
type Device struct {
	ID      string
	Name    string
	Default bool
}

// Host implements media.Host on top of PortAudio
type Host struct {
	cfg    config.AudioConfig
	log    zerolog.Logger
	permit func() error

	mu       sync.Mutex
	monitors map[string]*Monitor
}

var _ media.Host = (*Host)(nil)

// New initializes PortAudio. Call Close when done.
func New(cfg config.AudioConfig, log zerolog.Logger) (*Host, error) {
	if err := initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &Host{
		cfg:      cfg,
		log:      log.With().Str("component", "audio").Logger(),
		permit:   permissions.RequireMicrophone,
		monitors: make(map[string]*Monitor),
	}, nil
}

func (h *Host) IsTypeSupported(mimeType string) bool {
	return media.BaseType(mimeType) == MimeType
}

// Origin is always localhost: capture happens in this process
func (h *Host) Origin() (*url.URL, error) {
	return &url.URL{Scheme: "http", Host: "localhost"}, nil
}

// Locate resolves a monitor surface by output device name, or "default"
func (h *Host) Locate(ctx context.Context, selector string) (media.Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.monitors[selector]; ok {
		return m, nil
	}

	name, err := findOutputDevice(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: monitor %q: %v", media.ErrNotFound, selector, err)
	}

	m := &Monitor{name: name}
	h.monitors[selector] = m
	h.log.Debug().Str("selector", selector).Str("device", name).Msg("Monitor located")
	return m, nil
}

func (h *Host) GetUserMedia(ctx context.Context, c media.Constraints) (media.Stream, error) {
	if c.Video != nil {
		return nil, fmt.Errorf("%w: no video input on the native host", media.ErrDeviceNotFound)
	}
	if !c.Audio {
		return nil, fmt.Errorf("%w: no tracks requested", media.ErrDeviceNotFound)
	}
	if err := h.permit(); err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrPermissionDenied, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := openInput(h.cfg, h.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrDeviceNotFound, err)
	}
	return s, nil
}

func (h *Host) NewRecorder(s media.Stream, opts media.RecorderOptions) (media.Recorder, error) {
	if !h.IsTypeSupported(opts.MimeType) {
		return nil, fmt.Errorf("unsupported MIME type %q", opts.MimeType)
	}
	src, ok := s.(sampleSource)
	if !ok {
		return nil, fmt.Errorf("stream %s was not opened by this host", s.ID())
	}
	return newPCMRecorder(src, opts.Handler), nil
}

// Close releases PortAudio
func (h *Host) Close() error {
	return terminate()
}

// Monitor is a preview surface backed by an output device. The session
// always mutes it, so binding only tracks which stream is live.
type Monitor struct {
	name string

	mu       sync.Mutex
	autoplay bool
	muted    bool
	source   media.Stream
}

func (m *Monitor) SetAutoplay(v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoplay = v
	return nil
}

func (m *Monitor) SetMuted(v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = v
	return nil
}

func (m *Monitor) SetSource(s media.Stream) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s != nil && !m.muted {
		return fmt.Errorf("monitor %s: unmuted playback is not supported", m.name)
	}
	m.source = s
	return nil
}

// Source returns the bound stream, if any
func (m *Monitor) Source() media.Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}
