// Package web serves the intake form over HTTP: an HTML page that posts to
// the record store, a JSON API over the same operations, and the CSV export
// download.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/smileynet/fiche/internal/contact"
	"github.com/smileynet/fiche/internal/store"
)

// RecordStore is the subset of *store.Store the web surface drives.
type RecordStore interface {
	Load() (store.Collection, error)
	Submit(contact.Candidate) (store.Confirmation, error)
	ExportSnapshot() (store.Snapshot, error)
}

// Options holds HTTP server timeouts.
type Options struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server routes HTTP requests to the record store.
type Server struct {
	store RecordStore
	page  *template.Template
	log   zerolog.Logger
}

// New creates a Server. The form page is parsed from pageName in assets.
func New(s RecordStore, assets fs.FS, pageName string, log zerolog.Logger) (*Server, error) {
	src, err := fs.ReadFile(assets, pageName)
	if err != nil {
		return nil, fmt.Errorf("web: reading template %s: %w", pageName, err)
	}
	page, err := template.New(pageName).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("web: parsing template %s: %w", pageName, err)
	}
	return &Server{
		store: s,
		page:  page,
		log:   log.With().Str("component", "web").Logger(),
	}, nil
}

// Handler returns the router with logging and recovery middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger(s.log), recoverer(s.log))

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/contacts", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/contacts", s.handleList).Methods(http.MethodGet)
	r.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(w, http.StatusNotFound, "not found")
	})
	return r
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within opts.ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener, opts Options) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web: serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	s.log.Info().Dur("timeout", opts.ShutdownTimeout).Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("web: shutting down: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string, opts Options) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, opts)
}
