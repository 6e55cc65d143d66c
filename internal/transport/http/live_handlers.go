package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"live-session-engine/internal/app"
)

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req app.JoinRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	res, err := s.svc.Join(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "code"), req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStudentState(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.StudentState(r.Context(), callerFrom(r.Context()),
		chi.URLParam(r, "code"), r.URL.Query().Get("participantId"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req app.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	fb, err := s.svc.SubmitResponse(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "code"), req)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantID string `json:"participantId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.svc.Leave(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "code"), req.ParticipantID); err != nil {
		s.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
