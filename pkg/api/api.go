package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/flowstate/pkg/httpserver"
	"github.com/dmitrymomot/flowstate/pkg/logger"
	"github.com/dmitrymomot/flowstate/pkg/registry"
)

// DefaultMaxPayload caps action request bodies.
const DefaultMaxPayload int64 = 1 << 20

type options struct {
	logger        *slog.Logger
	checks        []httpserver.Check
	healthTimeout time.Duration
	metrics       http.Handler
	maxPayload    int64
}

// Option configures the API handler.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReadinessCheck adds a dependency probed by GET /health/ready.
func WithReadinessCheck(name string, fn func(context.Context) error) Option {
	return func(o *options) {
		if fn != nil {
			o.checks = append(o.checks, httpserver.Check{Name: name, Fn: fn})
		}
	}
}

func WithHealthTimeout(d time.Duration) Option {
	return func(o *options) { o.healthTimeout = d }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) { o.metrics = h }
}

// WithMaxPayload limits the JSON payload accepted by action endpoints.
func WithMaxPayload(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPayload = n
		}
	}
}

// New returns the HTTP surface of reg:
//
//	POST   /machines                          create a machine with a UUID name
//	GET    /machines/{name}                   current state, previous state, actions
//	GET    /machines/{name}/history           audit log
//	POST   /machines/{name}/actions/{action}  take action with an optional JSON payload
//	POST   /machines/{name}/next              take the only available action
//	POST   /machines/{name}/reset             back to the initial state
//	DELETE /machines/{name}[?purge=true]      forget the instance, optionally its history
//	GET    /health/live, /health/ready        probes
//	GET    /metrics                           when WithMetricsHandler is set
//
// Machine names are created on first use, matching registry.Get.
func New(reg *registry.Registry, opts ...Option) http.Handler {
	o := options{
		logger:        logger.Discard(),
		healthTimeout: 2 * time.Second,
		maxPayload:    DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(&o)
	}

	h := &handlers{reg: reg, log: o.logger, maxPayload: o.maxPayload}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(accessLog(o.logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { h.fail(w, r, ErrNotFound) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { h.fail(w, r, ErrMethodNotAllowed) })

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(o.logger, o.healthTimeout, o.checks...))
	if o.metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.metrics)
	}

	r.Route("/machines", func(r chi.Router) {
		r.Post("/", h.create)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.show)
			r.Delete("/", h.remove)
			r.Get("/history", h.history)
			r.Post("/actions/{action}", h.do)
			r.Post("/next", h.next)
			r.Post("/reset", h.reset)
		})
	})

	return r
}

func accessLog(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.DebugContext(r.Context(), "http request",
				logger.Component("api"),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				logger.Duration(time.Since(start)),
			)
		})
	}
}
