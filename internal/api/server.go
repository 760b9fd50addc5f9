// Package api provides the HTTP server for pawpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/lostpaws/pawpoints/internal/app/notify"
	"github.com/lostpaws/pawpoints/internal/app/progression"
	"github.com/lostpaws/pawpoints/internal/domain"
	"github.com/lostpaws/pawpoints/internal/health"
)

// Server is the pawpoints HTTP API server.
type Server struct {
	engine         *progression.Engine
	outbox         *notify.Outbox
	health         *health.Checker
	limiter        *RateLimiter
	metricsEnabled bool
	version        string
	log            *logrus.Entry
}

// NewServer creates a new API server. A nil outbox disables the
// notification routes.
func NewServer(engine *progression.Engine, outbox *notify.Outbox, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		engine:  engine,
		outbox:  outbox,
		version: "dev",
		log:     logger.WithField("component", "api"),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth reports the checker's latest statuses on /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetRateLimiter limits write endpoints per user.
func (s *Server) SetRateLimiter(rl *RateLimiter) { s.limiter = rl }

// SetVersion sets the version reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if s.limiter != nil {
					r.Use(s.limiter.Handler)
				}
				r.Post("/reports", s.handleReport)
				r.Post("/helps", s.handleHelp)
				r.Post("/challenges/{challengeID}/complete", s.handleCompleteChallenge)
			})
			r.Get("/level", s.handleLevel)
			r.Get("/progress", s.handleProgress)
			if s.outbox != nil {
				r.Get("/notifications", s.handleNotifications)
			}
		})
		r.Get("/leaderboard", s.handleLeaderboard)
		if s.outbox != nil {
			r.Post("/notifications/{id}/shown", s.handleNotificationShown)
		}
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errorType(status),
		},
	})
}

func errorType(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status == http.StatusNotFound:
		return "not_found"
	case status >= 500:
		return "unavailable"
	default:
		return "invalid_request"
	}
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidChallengeID),
		errors.Is(err, domain.ErrUnknownScope),
		errors.Is(err, domain.ErrNoCandidates):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStoreTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail logs server-side failures and writes the mapped error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.WithError(err).WithFields(logrus.Fields{
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Warn("request failed")
	}
	writeError(w, status, err.Error())
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
