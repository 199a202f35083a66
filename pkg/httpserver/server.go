package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrymomot/flowstate/pkg/logger"
)

type options struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	signals         bool
	logger          *slog.Logger
	startHooks      []Hook
	stopHooks       []Hook
}

// Server runs an http.Server until its context ends, a termination signal
// arrives or Shutdown is called, then drains in-flight requests.
type Server struct {
	opts options

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	stopOnce sync.Once
	stopErr  error
}

func New(opts ...Option) *Server {
	o := options{
		addr:            ":8080",
		shutdownTimeout: 10 * time.Second,
		signals:         true,
		logger:          logger.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{opts: o}
}

// Addr returns the bound listener address, or the configured one before Run.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.addr
}

// Run binds the listener and serves handler until shutdown. A nil handler
// answers 404 to everything. A Server runs at most once.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, ErrAlreadyRunning)
	}
	ln, err := net.Listen("tcp", s.opts.addr)
	if err != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, err)
	}
	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  s.opts.readTimeout,
		WriteTimeout: s.opts.writeTimeout,
		IdleTimeout:  s.opts.idleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		ErrorLog:     slog.NewLogLogger(s.opts.logger.Handler(), slog.LevelWarn),
	}
	s.srv, s.listener = srv, ln
	s.mu.Unlock()

	addr := ln.Addr().String()
	s.opts.logger.InfoContext(ctx, "http server listening", slog.String("addr", addr))
	for _, h := range s.opts.startHooks {
		h(s.opts.logger, addr)
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		_ = ln.Close()
		errCh <- err
	}()

	var sig chan os.Signal
	if s.opts.signals {
		sig = make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)
	}

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		s.opts.logger.InfoContext(ctx, "context done, shutting down")
		_ = s.Shutdown(context.WithoutCancel(ctx))
		serveErr = <-errCh
	case v := <-sig:
		s.opts.logger.InfoContext(ctx, "signal received, shutting down", slog.String("signal", v.String()))
		_ = s.Shutdown(context.WithoutCancel(ctx))
		serveErr = <-errCh
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, serveErr)
	}
	return nil
}

// Shutdown drains the server within the shutdown timeout. Calls before Run
// or after the first one are no-ops returning the first result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, addr := s.srv, s.opts.addr
	if s.listener != nil {
		addr = s.listener.Addr().String()
	}
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
		defer cancel()

		start := time.Now()
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.stopErr = errors.Join(ErrShutdown, err)
			s.opts.logger.ErrorContext(ctx, "http server shutdown failed", logger.Error(err))
		} else {
			s.opts.logger.InfoContext(ctx, "http server stopped", logger.Duration(time.Since(start)))
		}
		for _, h := range s.opts.stopHooks {
			h(s.opts.logger, addr)
		}
	})
	return s.stopErr
}
