// Package browser is the Chrome capture host. It drives a real page's
// navigator.mediaDevices and MediaRecorder over the DevTools protocol.
package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
	"github.com/ysmood/gson"

	"github.com/petems/camrec/internal/config"
	"github.com/petems/camrec/internal/media"
)

// Host implements media.Host against one page of a launched Chrome
type Host struct {
	browser *rod.Browser
	page    *rod.Page
	timeout time.Duration
	log     zerolog.Logger
	unbind  func() error

	mu        sync.Mutex
	recorders map[string]*recorder
}

var _ media.Host = (*Host)(nil)

// New launches Chrome, opens pageURL and installs the page runtime.
// The browser is configured with:
//   - fake media streams when cfg.FakeDevices is set (no real camera/mic)
//   - auto-granted media permissions
//   - autoplay without user gesture
func New(cfg config.BrowserConfig, pageURL string, log zerolog.Logger) (*Host, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("use-fake-ui-for-media-stream").
		Set("autoplay-policy", "no-user-gesture-required")
	if cfg.FakeDevices {
		l = l.Set("use-fake-device-for-media-stream")
	}
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch Chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to Chrome: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	h := &Host{
		browser:   b,
		timeout:   timeout,
		log:       log.With().Str("component", "browser").Logger(),
		recorders: make(map[string]*recorder),
	}
	if err := h.open(pageURL); err != nil {
		b.Close()
		return nil, err
	}
	return h, nil
}

func (h *Host) open(pageURL string) error {
	page, err := h.browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", pageURL, err)
	}
	if err := page.Timeout(h.timeout).WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", pageURL, err)
	}

	unbind, err := page.Expose(emitBinding, h.onEmit)
	if err != nil {
		return fmt.Errorf("failed to expose event binding: %w", err)
	}
	if _, err := page.Eval(bootstrapJS); err != nil {
		unbind()
		return fmt.Errorf("failed to install page runtime: %w", err)
	}

	h.page = page
	h.unbind = unbind
	h.log.Info().Str("url", pageURL).Msg("Capture page ready")
	return nil
}

// Close shuts the browser down. Always call this to avoid orphaned Chrome
// processes.
func (h *Host) Close() error {
	if h.unbind != nil {
		h.unbind()
	}
	if h.browser != nil {
		return h.browser.Close()
	}
	return nil
}

func (h *Host) eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := h.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.JSON{}, fmt.Errorf("eval failed: %w", err)
	}
	return res.Value, nil
}

func (h *Host) IsTypeSupported(mimeType string) bool {
	v, err := h.eval(context.Background(), `(t) => typeof MediaRecorder !== 'undefined' && MediaRecorder.isTypeSupported(t)`, mimeType)
	if err != nil {
		h.log.Warn().Err(err).Str("mime_type", mimeType).Msg("Capability query failed")
		return false
	}
	return v.Bool()
}

func (h *Host) Origin() (*url.URL, error) {
	v, err := h.eval(context.Background(), `() => location.href`)
	if err != nil {
		return nil, err
	}
	return url.Parse(v.Str())
}

func (h *Host) Locate(ctx context.Context, selector string) (media.Surface, error) {
	has, el, err := h.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", media.ErrNotFound, selector)
	}
	// The element inherits ctx from the lookup. Sessions unbind the surface
	// long after that ctx ends, so tie it to the page instead.
	return &surface{el: el.Context(h.page.GetContext())}, nil
}

func (h *Host) GetUserMedia(ctx context.Context, c media.Constraints) (media.Stream, error) {
	v, err := h.eval(ctx, `(c) => window.__camrec.getUserMedia(c)`, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrDeviceNotFound, err)
	}

	if name := v.Get("error").Str(); name != "" {
		return nil, fmt.Errorf("%w: %s: %s", mapDOMError(name), name, v.Get("message").Str())
	}

	s := &stream{host: h, id: v.Get("id").Str()}
	for _, t := range v.Get("tracks").Arr() {
		s.tracks = append(s.tracks, media.Track{
			Kind:  media.TrackKind(t.Get("kind").Str()),
			Label: t.Get("label").Str(),
		})
	}
	h.log.Debug().Str("stream", s.id).Int("tracks", len(s.tracks)).Msg("getUserMedia resolved")
	return s, nil
}

func (h *Host) NewRecorder(s media.Stream, opts media.RecorderOptions) (media.Recorder, error) {
	v, err := h.eval(context.Background(), `(s, t) => window.__camrec.newRecorder(s, t)`, s.ID(), opts.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to create MediaRecorder: %w", err)
	}

	r := &recorder{host: h, id: v.Str(), handler: opts.Handler}
	h.mu.Lock()
	h.recorders[r.id] = r
	h.mu.Unlock()
	return r, nil
}

// onEmit receives every page-side recorder event
func (h *Host) onEmit(msg gson.JSON) (interface{}, error) {
	id := msg.Get("recorder").Str()

	h.mu.Lock()
	r, ok := h.recorders[id]
	h.mu.Unlock()
	if !ok {
		return nil, nil
	}

	e := media.Event{Type: media.EventType(msg.Get("type").Str())}
	switch e.Type {
	case media.EventDataAvailable:
		data, err := base64.StdEncoding.DecodeString(msg.Get("data").Str())
		if err != nil {
			e = media.Event{Type: media.EventError, Err: fmt.Errorf("decode chunk: %w", err)}
			break
		}
		e.Data = data
	case media.EventError, media.EventWarning:
		e.Err = errors.New(msg.Get("message").Str())
	}

	r.deliver(e)
	return nil, nil
}

// mapDOMError classifies getUserMedia rejections
func mapDOMError(name string) error {
	switch name {
	case "NotAllowedError", "SecurityError", "PermissionDeniedError":
		return media.ErrPermissionDenied
	default:
		return media.ErrDeviceNotFound
	}
}

type surface struct {
	el *rod.Element
}

func (s *surface) SetAutoplay(v bool) error {
	_, err := s.el.Eval(`function (v) { this.autoplay = v }`, v)
	return err
}

func (s *surface) SetMuted(v bool) error {
	_, err := s.el.Eval(`function (v) { this.muted = v }`, v)
	return err
}

func (s *surface) SetSource(st media.Stream) error {
	id := ""
	if st != nil {
		id = st.ID()
	}
	_, err := s.el.Eval(`function (id) { this.srcObject = id ? (window.__camrec.streams[id] || null) : null }`, id)
	return err
}

type stream struct {
	host   *Host
	id     string
	tracks []media.Track
}

func (s *stream) ID() string            { return s.id }
func (s *stream) Tracks() []media.Track { return s.tracks }

func (s *stream) Stop() error {
	_, err := s.host.eval(context.Background(), `(id) => window.__camrec.stopStream(id)`, s.id)
	return err
}

type recorder struct {
	host    *Host
	id      string
	handler media.EventHandler

	mu      sync.Mutex
	stopped chan struct{}
}

func (r *recorder) Start(timeslice time.Duration) error {
	_, err := r.host.eval(context.Background(), `(id, ms) => window.__camrec.recorders[id].start(ms)`, r.id, timeslice.Milliseconds())
	return err
}

func (r *recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	wait := make(chan struct{})
	r.stopped = wait
	r.mu.Unlock()

	v, err := r.host.eval(ctx, `(id) => window.__camrec.stopRecorder(id)`, r.id)
	if err != nil {
		return err
	}
	if !v.Bool() {
		return nil
	}

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *recorder) Pause() error {
	_, err := r.host.eval(context.Background(), `(id) => window.__camrec.recorders[id].pause()`, r.id)
	return err
}

func (r *recorder) Resume() error {
	_, err := r.host.eval(context.Background(), `(id) => window.__camrec.recorders[id].resume()`, r.id)
	return err
}

func (r *recorder) State() media.RecorderState {
	v, err := r.host.eval(context.Background(), `(id) => window.__camrec.recorders[id].state`, r.id)
	if err != nil {
		r.host.log.Warn().Err(err).Str("recorder", r.id).Msg("State query failed")
		return media.StateInactive
	}
	return media.RecorderState(v.Str())
}

// deliver forwards e and releases a pending Stop once the stop event was
// handled
func (r *recorder) deliver(e media.Event) {
	if r.handler != nil {
		r.handler(e)
	}
	if e.Type != media.EventStop {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped != nil {
		close(r.stopped)
		r.stopped = nil
	}
}
