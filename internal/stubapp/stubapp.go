// Package stubapp serves a self-contained copy of the client onboarding flow
// (role selection, invite code entry, biometric scan) so the verification
// driver can run without the real application.
package stubapp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options tunes the flow's timing and faults.
type Options struct {
	// ValidatingDelay is how long the submit button reads "Validating...".
	ValidatingDelay time.Duration
	// ScanDelay is how long the biometric screen reads "Authenticating...".
	ScanDelay time.Duration
	// MinCodeLength keeps the submit button disabled for shorter codes.
	MinCodeLength int
	// SkipValidating jumps from submit straight to the biometric screen
	// without ever rendering "Validating...".
	SkipValidating bool
}

// DefaultOptions mirrors the timings of the real application.
func DefaultOptions() Options {
	return Options{
		ValidatingDelay: time.Second,
		ScanDelay:       2 * time.Second,
		MinCodeLength:   6,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ValidatingDelay <= 0 {
		o.ValidatingDelay = d.ValidatingDelay
	}
	if o.ScanDelay <= 0 {
		o.ScanDelay = d.ScanDelay
	}
	if o.MinCodeLength <= 0 {
		o.MinCodeLength = d.MinCodeLength
	}
	return o
}

// New returns the stub's router.
func New(opts Options, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	var page bytes.Buffer
	if err := pageTemplate.Execute(&page, pageData{
		ValidatingMS:   opts.ValidatingDelay.Milliseconds(),
		ScanMS:         opts.ScanDelay.Milliseconds(),
		MinCodeLength:  opts.MinCodeLength,
		SkipValidating: opts.SkipValidating,
	}); err != nil {
		// The template is static; failure here is a programming error
		panic(fmt.Sprintf("rendering stub page: %v", err))
	}
	body := page.Bytes()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	r.With(middleware.NoCache).Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	})

	return r
}

// requestLogger logs each request at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("stub request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Server runs the stub on a TCP address.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	logger *slog.Logger
}

// Listen binds addr (":0" picks a free port) without serving yet.
func Listen(addr string, opts Options, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &Server{
		srv: &http.Server{
			Handler:           New(opts, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		ln:     ln,
		logger: logger,
	}, nil
}

// URL returns the base URL the stub is reachable at.
func (s *Server) URL() string {
	addr := s.ln.Addr().(*net.TCPAddr)
	host := "localhost"
	if !addr.IP.IsUnspecified() {
		host = addr.IP.String()
	}
	return "http://" + net.JoinHostPort(host, fmt.Sprint(addr.Port))
}

// Serve handles requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.ln)
	}()
	s.logger.Info("stub app listening", "url", s.URL())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving stub: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("stopping stub app")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down stub: %w", err)
	}
	return nil
}
