package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"live-session-engine/internal/app"
	"live-session-engine/internal/domain"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	sess, err := s.svc.CreateSession(r.Context(), callerFrom(r.Context()), req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.GetSession(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleInstructorState(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.InstructorState(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req app.BroadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	sess, err := s.svc.BroadcastQuestion(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "sessionID"), req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndQuestion(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.EndQuestion(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"summary": sum})
}

func (s *Server) handleExtendTimer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	sess, err := s.svc.ExtendTimer(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "sessionID"), req.Seconds)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	sess, err := s.svc.KickParticipant(r.Context(), callerFrom(r.Context()),
		chi.URLParam(r, "sessionID"), chi.URLParam(r, "participantID"), req.Reason)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.EndSession(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Results(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSessionVisibility(w http.ResponseWriter, r *http.Request) {
	s.saveVisibility(w, r, domain.ScopeSession, chi.URLParam(r, "sessionID"))
}

func (s *Server) handleClassVisibility(w http.ResponseWriter, r *http.Request) {
	s.saveVisibility(w, r, domain.ScopeClass, chi.URLParam(r, "classID"))
}

func (s *Server) handleInstructorVisibility(w http.ResponseWriter, r *http.Request) {
	s.saveVisibility(w, r, domain.ScopeInstructor, chi.URLParam(r, "instructorID"))
}

func (s *Server) saveVisibility(w http.ResponseWriter, r *http.Request, scope domain.SettingsScope, id string) {
	v := domain.DefaultVisibilitySettings()
	if err := decodeJSON(r, &v); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.svc.UpdateVisibility(r.Context(), callerFrom(r.Context()), scope, id, v); err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
