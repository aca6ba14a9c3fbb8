package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dutyroster/scheduler/internal/logging"
	"github.com/dutyroster/scheduler/internal/metrics"
	"github.com/dutyroster/scheduler/internal/repository"
)

var serverLog = logging.GetLogger("httpapi.server")

// Server wires the chi router, health endpoints, and the version-scoped
// schedule routes, trimmed from wisbric-nightowl's internal/httpserver.
// NewServer shape down to what this single-tenant, unauthenticated service
// needs: no OIDC, no tenant resolution, no Redis.
type Server struct {
	Router    *chi.Mux
	startedAt time.Time
}

// NewServer builds the HTTP server and mounts the schedule routes.
func NewServer(repo repository.Repository, solver SolverSettings, corsOrigins []string) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		startedAt: time.Now(),
	}

	s.Router.Use(middleware.RequestID)
	s.Router.Use(requestLogger(serverLog))
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.All()...)
	s.Router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	handler := NewScheduleHandler(repo, solver)
	s.Router.Mount("/versions", handler.Routes())

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Truncate(time.Second).String(),
	})
}

// requestLogger logs each request's method, path, status and latency at
// debug level once it completes, the zerolog equivalent of wisbric's
// slog-based Logger middleware.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("latency", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
