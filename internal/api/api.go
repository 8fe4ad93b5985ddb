// Package api provides the operational HTTP API for ProfileFlow.
//
// It exposes session inspection, session abandonment and submission retrieval
// endpoints, plus a health check and an optional inbound webhook mount.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/OpenHaul/ProfileFlow/internal/flow"
	"github.com/OpenHaul/ProfileFlow/internal/models"
	"github.com/OpenHaul/ProfileFlow/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Server timeouts
const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Server is the operational HTTP API server.
type Server struct {
	engine  *flow.Engine
	st      store.Store
	httpSrv *http.Server
}

// NewServer creates an API server bound to addr. webhook, when non-nil, is
// mounted at POST /webhook/twilio for inbound Twilio messages.
func NewServer(addr string, engine *flow.Engine, st store.Store, webhook http.HandlerFunc) *Server {
	s := &Server{engine: engine, st: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", s.handleHealth)
	r.Route("/sessions/{userID}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Post("/abandon", s.handleAbandonSession)
	})
	r.Get("/submissions", s.handleListSubmissions)
	r.Get("/submissions/{userID}", s.handleGetSubmission)
	if webhook != nil {
		r.Post("/webhook/twilio", webhook)
	}

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	return s
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	slog.Info("API server starting", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Debug("API server shutting down")
	return s.httpSrv.Shutdown(ctx)
}

// Handler returns the server's HTTP handler (for tests).
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	session, err := s.st.GetSession(userID)
	if err != nil {
		slog.Error("API GetSession failed", "error", err, "userID", userID)
		renderError(w, r, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		renderError(w, r, http.StatusNotFound, "session not found")
		return
	}
	render.JSON(w, r, session)
}

func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.engine.Abandon(r.Context(), userID); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			renderError(w, r, http.StatusNotFound, "session not found")
			return
		}
		if errors.Is(err, models.ErrSessionTerminated) {
			renderError(w, r, http.StatusConflict, "session already terminated")
			return
		}
		slog.Error("API Abandon failed", "error", err, "userID", userID)
		renderError(w, r, http.StatusInternalServerError, "failed to abandon session")
		return
	}
	slog.Info("API session abandoned", "userID", userID)
	render.JSON(w, r, map[string]string{"status": "abandoned"})
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	records, err := s.st.ListSubmissions()
	if err != nil {
		slog.Error("API ListSubmissions failed", "error", err)
		renderError(w, r, http.StatusInternalServerError, "failed to list submissions")
		return
	}
	if records == nil {
		records = []models.SubmissionRecord{}
	}
	render.JSON(w, r, records)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	record, err := s.st.GetSubmission(userID)
	if err != nil {
		slog.Error("API GetSubmission failed", "error", err, "userID", userID)
		renderError(w, r, http.StatusInternalServerError, "failed to load submission")
		return
	}
	if record == nil {
		renderError(w, r, http.StatusNotFound, "submission not found")
		return
	}
	render.JSON(w, r, record)
}

func renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": message})
}
