// Package web exposes the research service over HTTP: the REST surface, the
// admin endpoints and the live progress WebSocket.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"cyber-research-service/internal/infra/fanout"
	"cyber-research-service/internal/infra/logging"
	"cyber-research-service/internal/infra/redis"
	"cyber-research-service/internal/usecase"
)

type Server struct {
	uc      usecase.ResearchUseCase
	hub     *fanout.Hub
	auth    *AuthManager
	limiter *redis.RateLimiter
	limit   int
	log     *zerolog.Logger
}

// NewServer wires the HTTP surface. limiter may be nil, which disables
// submission rate limiting.
func NewServer(uc usecase.ResearchUseCase, hub *fanout.Hub, auth *AuthManager, limiter *redis.RateLimiter, submitPerMinute int, log *zerolog.Logger) *Server {
	return &Server{uc: uc, hub: hub, auth: auth, limiter: limiter, limit: submitPerMinute, log: log}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Route("/research", func(r chi.Router) {
			r.With(s.rateLimit).Post("/", s.handleSubmit)
			r.Get("/{id}/status", s.handleStatus)
			r.Get("/{id}/result", s.handleResult)
			r.Get("/{id}/workflow", s.handleWorkflow)

			r.Group(func(r chi.Router) {
				r.Use(s.adminOnly)
				r.Get("/", s.handleList)
				r.Delete("/{id}", s.handleDelete)
			})
		})
	})

	r.Get("/ws/research/{id}", s.handleWS)
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		l := logging.With(ctx, s.log)
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		l.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// adminOnly guards the endpoints that expose or mutate other callers'
// sessions.
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies the fixed-window submission limit keyed by caller IP.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		ok, err := s.limiter.Allow(r.Context(), redis.SubmitKey(r.RemoteAddr), s.limit, time.Minute)
		if err != nil {
			// Redis being down should not block submissions.
			s.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			writeError(w, http.StatusTooManyRequests, "submission rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
