// Package server serves the capture preview page, recorded blobs and the
// session event stream.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/camrec/internal/blob"
)

// Config holds server configuration options.
type Config struct {
	Addr         string        // Listen address (e.g. "localhost:8421" or "localhost:0")
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout
}

// DefaultConfig returns a configuration bound to a random loopback port
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the local HTTP endpoint the browser host navigates to.
type Server struct {
	httpServer *http.Server
	hub        *Hub
	blobs      *blob.Store
	log        zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	addr     string
	running  bool
}

// New creates a server. It is not listening until Start.
func New(cfg Config, blobs *blob.Store, log zerolog.Logger) *Server {
	log = log.With().Str("component", "server").Logger()
	hub := NewHub(blobs, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(previewPage))
	})
	mux.Handle(blob.PathPrefix, blobs)
	mux.Handle("/events", hub)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		hub:   hub,
		blobs: blobs,
		log:   log,
	}
}

// Start begins listening and returns the actual address (useful with port 0).
// Blob links minted afterwards use that address. Serving happens in a
// goroutine.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = ln
	s.addr = ln.Addr().String()
	s.running = true

	// Links carry the bound address
	s.blobs.SetOrigin("http://" + s.addr)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	s.log.Info().Str("addr", s.addr).Msg("Server listening")
	return s.addr, nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the listening address, or "" before Start
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the base http URL, or "" before Start
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	return "http://" + addr
}

// DownloadURL maps a blob link to its absolute http URL
func (s *Server) DownloadURL(link string) string {
	return s.URL() + s.blobs.HTTPPath(link)
}

// Hub returns the event hub, to be passed to sessions as their observer
func (s *Server) Hub() *Hub {
	return s.hub
}
