package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/petems/camrec/internal/blob"
	"github.com/petems/camrec/internal/capture"
	"github.com/petems/camrec/internal/config"
	"github.com/petems/camrec/internal/media"
	"github.com/rs/zerolog"
)

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetProcessing()
	SetError()
}

type Config struct {
	Host          media.Host
	Blobs         *blob.Store
	Options       capture.Options
	Config        *config.Config // Optional - persisted on format changes
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater    // Optional - can be nil
	Observer      capture.Observer // Optional - can be nil
}

// App runs one recording at a time. Every recording gets a fresh session;
// starting a new one closes the previous session and releases its link.
type App struct {
	host     media.Host
	blobs    *blob.Store
	cfg      *config.Config
	log      zerolog.Logger
	status   StatusUpdater
	observer capture.Observer

	mu        sync.Mutex
	opts      capture.Options
	session   *capture.Session
	recording bool
	lastLink  string
}

func New(cfg Config) *App {
	blobs := cfg.Blobs
	if blobs == nil {
		blobs = blob.NewStore("http://localhost")
	}
	return &App{
		host:     cfg.Host,
		blobs:    blobs,
		cfg:      cfg.Config,
		log:      cfg.Logger,
		status:   cfg.StatusUpdater,
		observer: cfg.Observer,
		opts:     cfg.Options,
	}
}

// StartRecording binds a new session, acquires the stream and starts
// recording. It is a no-op while already recording.
func (a *App) StartRecording(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked(ctx)
}

func (a *App) startLocked(ctx context.Context) error {
	if a.recording {
		return nil
	}

	a.log.Info().Str("mime_type", a.opts.MimeType).Msg("Starting recording")
	a.closeSessionLocked(ctx)

	sc := capture.HostConfig(a.opts, a.host, a.blobs, a.log)
	sc.Observer = a.observer

	session, err := capture.New(ctx, sc)
	if err != nil {
		return a.failLocked(err, "Failed to create session")
	}
	if err := session.Acquire(ctx); err != nil {
		session.Close(ctx)
		return a.failLocked(err, "Failed to acquire stream")
	}
	if err := session.Start(); err != nil {
		session.Close(ctx)
		return a.failLocked(err, "Failed to start recorder")
	}

	a.session = session
	a.recording = true
	if a.status != nil {
		a.status.SetRecording()
	}
	return nil
}

// StopRecording finalizes the current recording and returns its link
func (a *App) StopRecording(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopLocked(ctx)
}

func (a *App) stopLocked(ctx context.Context) (string, error) {
	if !a.recording {
		return "", capture.ErrNoRecording
	}

	a.log.Info().Msg("Stopping recording")
	a.recording = false
	if a.status != nil {
		a.status.SetProcessing()
	}

	link, err := a.session.Stop(ctx, nil)
	if err != nil {
		return "", a.failLocked(err, "Failed to finalize recording")
	}

	a.lastLink = link
	if a.status != nil {
		a.status.SetIdle()
	}
	return link, nil
}

// Toggle starts a recording when idle and stops it otherwise. The link is
// empty when a recording was started.
func (a *App) Toggle(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recording {
		return a.stopLocked(ctx)
	}
	return "", a.startLocked(ctx)
}

func (a *App) failLocked(err error, msg string) error {
	a.log.Error().Err(err).Str("kind", capture.KindOf(err).String()).Msg(msg)
	if a.status != nil {
		a.status.SetError()
	}
	return err
}

func (a *App) closeSessionLocked(ctx context.Context) {
	if a.session == nil {
		return
	}
	if err := a.session.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close previous session")
	}
	a.session = nil
	a.lastLink = ""
}

func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recording {
		if _, err := a.stopLocked(ctx); err != nil {
			a.log.Warn().Err(err).Msg("Failed to finalize recording on shutdown")
		}
	}
	a.closeSessionLocked(ctx)
	return nil
}

func (a *App) IsRecording() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording
}

// LastLink returns the link of the last finished recording, or ""
func (a *App) LastLink() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastLink
}

// Blobs returns the store recordings are published to
func (a *App) Blobs() *blob.Store {
	return a.blobs
}

// SupportedTypes queries the host live
func (a *App) SupportedTypes() []string {
	return capture.SupportedTypes(a.host)
}

// MimeType returns the format new recordings use
func (a *App) MimeType() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opts.MimeType
}

// Tray actions

// SetMimeType switches the recording format and persists only that field
func (a *App) SetMimeType(mimeType string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.recording {
		return fmt.Errorf("cannot change format while recording")
	}
	if !a.host.IsTypeSupported(mimeType) {
		return fmt.Errorf("%w: %s", capture.ErrUnsupportedFormat, mimeType)
	}

	a.opts.MimeType = mimeType
	if a.cfg == nil {
		return nil
	}
	return a.cfg.Update(func(c *config.Config) {
		c.Capture.MimeType = mimeType
	})
}
