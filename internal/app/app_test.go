package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/petems/camrec/internal/blob"
	"github.com/petems/camrec/internal/capture"
	"github.com/petems/camrec/internal/config"
	"github.com/petems/camrec/internal/media"
	"github.com/petems/camrec/internal/media/mediatest"
	"github.com/rs/zerolog"
)

// Mock implementations for testing
type mockStatus struct {
	mu    sync.Mutex
	calls []string
}

func (m *mockStatus) record(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, s)
}

func (m *mockStatus) SetIdle()       { m.record("idle") }
func (m *mockStatus) SetRecording()  { m.record("recording") }
func (m *mockStatus) SetProcessing() { m.record("processing") }
func (m *mockStatus) SetError()      { m.record("error") }

func (m *mockStatus) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1]
}

type mockObserver struct {
	mu     sync.Mutex
	events []string
}

func (m *mockObserver) OnEvent(e capture.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e.Type)
}

func newTestApp(t *testing.T, host *mediatest.Host) (*App, *mockStatus, *blob.Store) {
	t.Helper()
	status := &mockStatus{}
	store := blob.NewStore("https://example.test")
	app := New(Config{
		Host:          host,
		Blobs:         store,
		Options:       capture.OptionsFromSelector("#cam"),
		Logger:        zerolog.Nop(),
		StatusUpdater: status,
	})
	return app, status, store
}

func TestStartStopRecording(t *testing.T) {
	host := mediatest.NewHost()
	app, status, store := newTestApp(t, host)
	ctx := context.Background()

	// Initially not recording
	if app.IsRecording() {
		t.Error("App should not be recording initially")
	}

	if err := app.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !app.IsRecording() {
		t.Error("App should be recording after StartRecording")
	}
	if status.last() != "recording" {
		t.Errorf("expected status recording, got %q", status.last())
	}

	host.LastRecorder().EmitData([]byte("frame"))

	link, err := app.StopRecording(ctx)
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if app.IsRecording() {
		t.Error("App should not be recording after StopRecording")
	}
	if app.LastLink() != link {
		t.Errorf("LastLink = %q, want %q", app.LastLink(), link)
	}
	if status.last() != "idle" {
		t.Errorf("expected status idle, got %q", status.last())
	}

	b, ok := store.Lookup(link)
	if !ok {
		t.Fatal("link should resolve in the store")
	}
	if string(b.Bytes()) != "frame" {
		t.Errorf("blob = %q, want %q", b.Bytes(), "frame")
	}
}

func TestStartRecordingTwiceIsNoop(t *testing.T) {
	host := mediatest.NewHost()
	app, _, _ := newTestApp(t, host)
	ctx := context.Background()

	if err := app.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := app.StartRecording(ctx); err != nil {
		t.Fatalf("second StartRecording: %v", err)
	}
	if len(host.Recorders) != 1 {
		t.Errorf("expected 1 recorder, got %d", len(host.Recorders))
	}
}

func TestStopWithoutRecording(t *testing.T) {
	app, _, _ := newTestApp(t, mediatest.NewHost())

	_, err := app.StopRecording(context.Background())
	if !errors.Is(err, capture.ErrNoRecording) {
		t.Errorf("expected ErrNoRecording, got %v", err)
	}
}

func TestToggle(t *testing.T) {
	app, _, _ := newTestApp(t, mediatest.NewHost())
	ctx := context.Background()

	link, err := app.Toggle(ctx)
	if err != nil {
		t.Fatalf("Toggle (start): %v", err)
	}
	if link != "" || !app.IsRecording() {
		t.Errorf("first toggle should start recording without a link, got %q", link)
	}

	link, err = app.Toggle(ctx)
	if err != nil {
		t.Fatalf("Toggle (stop): %v", err)
	}
	if link == "" || app.IsRecording() {
		t.Error("second toggle should stop recording and return a link")
	}
}

func TestNewRecordingReleasesPreviousLink(t *testing.T) {
	host := mediatest.NewHost()
	app, _, store := newTestApp(t, host)
	ctx := context.Background()

	if err := app.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	first, err := app.StopRecording(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := app.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Lookup(first); ok {
		t.Error("previous link should be released when a new recording starts")
	}
	if app.LastLink() != "" {
		t.Errorf("LastLink should be cleared, got %q", app.LastLink())
	}
	if !host.Streams[0].Stopped() {
		t.Error("previous stream should be stopped")
	}
	if len(host.Recorders) != 2 {
		t.Errorf("each recording should get its own recorder, got %d", len(host.Recorders))
	}
}

func TestStartRecordingErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *mediatest.Host)
		want  error
	}{
		{
			name:  "permission denied",
			setup: func(h *mediatest.Host) { h.DenyAccess = true },
			want:  capture.ErrPermissionDenied,
		},
		{
			name:  "missing surface",
			setup: func(h *mediatest.Host) { h.Surfaces = nil },
			want:  capture.ErrSurfaceNotFound,
		},
		{
			name:  "insecure origin",
			setup: func(h *mediatest.Host) { h.OriginURL = "http://example.test/" },
			want:  capture.ErrInsecureOrigin,
		},
		{
			name:  "device error",
			setup: func(h *mediatest.Host) { h.DeviceErr = media.ErrDeviceNotFound },
			want:  capture.ErrDeviceError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := mediatest.NewHost()
			tt.setup(host)
			app, status, _ := newTestApp(t, host)

			err := app.StartRecording(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if app.IsRecording() {
				t.Error("App should not be recording after a failed start")
			}
			if status.last() != "error" {
				t.Errorf("expected status error, got %q", status.last())
			}
		})
	}
}

func TestObserverReceivesSessionEvents(t *testing.T) {
	obs := &mockObserver{}
	app := New(Config{
		Host:     mediatest.NewHost(),
		Options:  capture.OptionsFromSelector("#cam"),
		Logger:   zerolog.Nop(),
		Observer: obs,
	})
	ctx := context.Background()

	if err := app.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := app.StopRecording(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{capture.EventReady, string(media.EventStart), string(media.EventStop), capture.EventFinalized}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.events) != len(want) {
		t.Fatalf("events = %v, want %v", obs.events, want)
	}
	for i := range want {
		if obs.events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, obs.events[i], want[i])
		}
	}
}

func TestShutdownFinalizesRecording(t *testing.T) {
	host := mediatest.NewHost()
	app, _, store := newTestApp(t, host)
	ctx := context.Background()

	if err := app.StartRecording(ctx); err != nil {
		t.Fatal(err)
	}
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if app.IsRecording() {
		t.Error("App should not be recording after shutdown")
	}
	if store.Len() != 0 {
		t.Errorf("shutdown should release every link, %d left", store.Len())
	}
	if !host.Streams[0].Stopped() {
		t.Error("stream should be stopped on shutdown")
	}
}

func TestSupportedTypesIsLive(t *testing.T) {
	host := mediatest.NewHost()
	app, _, _ := newTestApp(t, host)

	if got := app.SupportedTypes(); len(got) == 0 || got[0] != "video/webm" {
		t.Errorf("unexpected supported types %v", got)
	}

	host.Types["video/mp4"] = true
	found := false
	for _, typ := range app.SupportedTypes() {
		if typ == "video/mp4" {
			found = true
		}
	}
	if !found {
		t.Error("newly supported type should be reported")
	}
}

func TestSetMimeType(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	host := mediatest.NewHost()
	host.Types["video/mp4"] = true
	cfg := config.Default()
	app := New(Config{
		Host:    host,
		Options: capture.OptionsFromSelector("#cam"),
		Config:  cfg,
		Logger:  zerolog.Nop(),
	})

	if err := app.SetMimeType("video/mpeg"); !errors.Is(err, capture.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	if err := app.SetMimeType("video/mp4"); err != nil {
		t.Fatalf("SetMimeType: %v", err)
	}
	if app.MimeType() != "video/mp4" || cfg.Capture.MimeType != "video/mp4" {
		t.Errorf("format not applied: app=%q config=%q", app.MimeType(), cfg.Capture.MimeType)
	}

	loaded, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Capture.MimeType != "video/mp4" {
		t.Errorf("format not persisted, got %q", loaded.Capture.MimeType)
	}

	if err := app.StartRecording(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := app.SetMimeType("video/webm"); err == nil {
		t.Error("changing format while recording should fail")
	}
}

func TestSetMimeTypePersistsOnlyFormat(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("CAMREC_HOST", "native")
	t.Setenv("CAMREC_ADDR", "0.0.0.0:9999")

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	cfg.Capture.Selector = "#flag"

	host := mediatest.NewHost()
	host.Types["video/mp4"] = true
	app := New(Config{
		Host:    host,
		Options: capture.OptionsFromSelector("#cam"),
		Config:  cfg,
		Logger:  zerolog.Nop(),
	})

	if err := app.SetMimeType("video/mp4"); err != nil {
		t.Fatalf("SetMimeType: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	var onDisk config.Config
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}

	want := config.Default()
	if onDisk.Capture.MimeType != "video/mp4" {
		t.Errorf("format not persisted, got %q", onDisk.Capture.MimeType)
	}
	if onDisk.Host != want.Host || onDisk.Server.Addr != want.Server.Addr {
		t.Errorf("environment overrides leaked into the file: host=%q addr=%q", onDisk.Host, onDisk.Server.Addr)
	}
	if onDisk.Capture.Selector != want.Capture.Selector {
		t.Errorf("flag override leaked into the file: selector=%q", onDisk.Capture.Selector)
	}
}
