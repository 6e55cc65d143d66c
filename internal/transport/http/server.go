package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"live-session-engine/internal/app"
	"live-session-engine/internal/logging"
)

// Server exposes the live service as a JSON polling API.
type Server struct {
	svc         *app.LiveService
	auth        *Authenticator
	log         *zap.Logger
	corsOrigins []string
}

type ServerOption func(*Server)

func WithLogger(l *zap.Logger) ServerOption {
	return func(s *Server) { s.log = logging.OrNop(l) }
}

func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) { s.corsOrigins = origins }
}

func NewServer(svc *app.LiveService, auth *Authenticator, opts ...ServerOption) *Server {
	if auth == nil {
		auth = NewAuthenticator("")
	}
	s := &Server{svc: svc, auth: auth, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Timeout(30 * time.Second))
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-User-ID", "X-User-Role"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware(s.handleError))

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Get("/state", s.handleInstructorState)
			r.Post("/questions", s.handleBroadcast)
			r.Post("/questions/end", s.handleEndQuestion)
			r.Post("/timer/extend", s.handleExtendTimer)
			r.Post("/participants/{participantID}/kick", s.handleKick)
			r.Post("/end", s.handleEndSession)
			r.Get("/results", s.handleResults)
			r.Put("/visibility", s.handleSessionVisibility)
		})

		r.Route("/live/{code}", func(r chi.Router) {
			r.Post("/join", s.handleJoin)
			r.Get("/state", s.handleStudentState)
			r.Post("/responses", s.handleSubmit)
			r.Post("/leave", s.handleLeave)
		})

		r.Route("/classes/{classID}", func(r chi.Router) {
			r.Get("/leaderboard", s.handleLeaderboard)
			r.Get("/progress/me", s.handleMyProgress)
			r.Get("/progress/{studentID}", s.handleStudentProgress)
			r.Post("/progress/{studentID}/adjust", s.handleAdjust)
			r.Get("/point-settings", s.handleGetPointSettings)
			r.Put("/point-settings", s.handlePutPointSettings)
			r.Put("/visibility", s.handleClassVisibility)
		})

		r.Put("/instructors/{instructorID}/visibility", s.handleInstructorVisibility)
	})
	return r
}
