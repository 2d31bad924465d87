package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/nguyendn/wwwhisper/internal/infra/tlscert"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// Options configures the listener.
type Options struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// TLS, when set, serves HTTPS with its current certificate.
	TLS *tlscert.Reloader
}

// Server is the wwwhisper HTTP(S) listener.
type Server struct {
	httpServer *http.Server
	tls        *tlscert.Reloader
	logger     logger.Logger
}

// New creates a server for handler.
func New(opts Options, handler http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	srv := &http.Server{
		Addr:              opts.Address,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       opts.IdleTimeout,
	}
	if opts.TLS != nil {
		srv.TLSConfig = opts.TLS.TLSConfig()
	}
	return &Server{httpServer: srv, tls: opts.TLS, logger: log}
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", "address", ln.Addr().String(), "tls", s.tls != nil)

	var err error
	if s.tls != nil {
		err = s.httpServer.ServeTLS(ln, "", "")
	} else {
		err = s.httpServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe binds the configured address and serves.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
