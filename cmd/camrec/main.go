package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"

	"github.com/petems/camrec/internal/app"
	"github.com/petems/camrec/internal/audio"
	"github.com/petems/camrec/internal/blob"
	"github.com/petems/camrec/internal/browser"
	"github.com/petems/camrec/internal/capture"
	"github.com/petems/camrec/internal/config"
	"github.com/petems/camrec/internal/logging"
	"github.com/petems/camrec/internal/media"
	"github.com/petems/camrec/internal/server"
	"github.com/petems/camrec/internal/tray"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

// host is a media.Host that holds a browser or PortAudio
type host interface {
	media.Host
	io.Closer
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: camrec [flags] [command]

Commands:
  tray            run the tray UI (default)
  record [-d 5s]  record once, print the download URL and keep serving
  types           print the formats the host can record
  devices         list microphones (native host)

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	// Load config from XDG/Library/AppData
	cfg, err := config.Load()
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// CLI flags override the config file and environment
	flag.StringVar(&cfg.Host, "host", cfg.Host, "capture host: browser or native")
	flag.StringVar(&cfg.Capture.Selector, "selector", cfg.Capture.Selector, "display surface selector")
	flag.IntVar(&cfg.Capture.Width, "width", cfg.Capture.Width, "video width")
	flag.IntVar(&cfg.Capture.Height, "height", cfg.Capture.Height, "video height")
	flag.StringVar(&cfg.Capture.MimeType, "mime", cfg.Capture.MimeType, "recording MIME type")
	flag.Usage = usage
	flag.Parse()

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start rebinds the origin to the listening address
	store := blob.NewStore("http://localhost")
	srv := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}, store, log)
	if _, err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx)
	}()

	h, err := newHost(cfg, srv.URL()+"/", log)
	if err != nil {
		log.Fatal().Err(err).Str("host", cfg.Host).Msg("Failed to initialize capture host")
	}
	defer h.Close()

	cmd := flag.Arg(0)
	args := flag.Args()
	if len(args) > 0 {
		args = args[1:]
	}

	switch cmd {
	case "types":
		for _, t := range capture.SupportedTypes(h) {
			fmt.Println(t)
		}
	case "devices":
		err = listDevices(h)
	case "record":
		err = runRecord(ctx, args, cfg, h, store, srv, log)
	case "", "tray":
		err = runTray(ctx, cfg, h, store, srv, log)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error().Err(err).Str("kind", capture.KindOf(err).String()).Msg("camrec failed")
		os.Exit(1)
	}
}

func newHost(cfg *config.Config, pageURL string, log zerolog.Logger) (host, error) {
	switch cfg.Host {
	case config.HostNative:
		return audio.New(cfg.Audio, log)
	default:
		return browser.New(cfg.Browser, pageURL, log)
	}
}

// captureOptions maps the config onto session options. The native host has
// no camera, so it records audio from the input into its output monitor.
func captureOptions(cfg *config.Config) capture.Options {
	opts := capture.Options{
		Selector: cfg.Capture.Selector,
		Width:    cfg.Capture.Width,
		Height:   cfg.Capture.Height,
		MimeType: cfg.Capture.MimeType,
		Logging:  cfg.Capture.Logging,
	}
	if cfg.Host == config.HostNative {
		opts.AudioOnly = true
		opts.Selector = cfg.Audio.Monitor
		opts.MimeType = audio.MimeType
	}
	return opts
}

func listDevices(h host) error {
	ah, ok := h.(*audio.Host)
	if !ok {
		return fmt.Errorf("devices requires -host %s", config.HostNative)
	}
	devices, err := ah.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Printf("%s %s\n", mark, d.Name)
	}
	return nil
}

func runRecord(ctx context.Context, args []string, cfg *config.Config, h host, store *blob.Store, srv *server.Server, log zerolog.Logger) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	duration := fs.Duration("d", 5*time.Second, "recording duration")
	open := fs.Bool("o", false, "open the recording in the default browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	application := app.New(app.Config{
		Host:     h,
		Blobs:    store,
		Options:  captureOptions(cfg),
		Config:   cfg,
		Logger:   log,
		Observer: srv.Hub(),
	})
	defer application.Shutdown(context.Background())

	if err := application.StartRecording(ctx); err != nil {
		return err
	}
	log.Info().Dur("duration", *duration).Msg("Recording")

	select {
	case <-time.After(*duration):
	case <-ctx.Done():
		log.Info().Msg("Interrupted, finalizing recording")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	link, err := application.StopRecording(stopCtx)
	if err != nil {
		return err
	}

	url := srv.DownloadURL(link)
	fmt.Println(url)
	if *open {
		launcher.Open(url)
	}

	if ctx.Err() != nil {
		return nil
	}
	log.Info().Str("url", url).Msg("Serving recording, press Ctrl+C to exit")
	<-ctx.Done()
	return nil
}

func runTray(ctx context.Context, cfg *config.Config, h host, store *blob.Store, srv *server.Server, log zerolog.Logger) error {
	// Create tray UI first (we'll pass it to app)
	trayUI := tray.New(nil, cfg, srv.URL(), Version, Commit, log) // App reference set below

	// Create app with tray as status updater
	application := app.New(app.Config{
		Host:          h,
		Blobs:         store,
		Options:       captureOptions(cfg),
		Config:        cfg,
		Logger:        log,
		StatusUpdater: trayUI,
		Observer:      srv.Hub(),
	})

	// Set app reference in tray
	trayUI.SetApp(application)

	log.Info().Str("preview", srv.URL()).Msg("camrec starting...")

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Shutdown error")
		}
		h.Close()
		os.Exit(0)
	}()

	// Start tray UI - MUST run on main thread
	return trayUI.Run(ctx)
}
