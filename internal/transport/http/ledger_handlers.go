package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"live-session-engine/internal/domain"
)

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := domain.LeaderboardScope{
		ClassID:    chi.URLParam(r, "classID"),
		RosterID:   q.Get("rosterId"),
		Unassigned: q.Get("unassigned") == "true",
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.handleError(w, r, NewBadRequestError("limit must be a non-negative integer"))
			return
		}
		scope.Limit = n
	}
	lb, err := s.svc.Leaderboard(r.Context(), callerFrom(r.Context()), scope)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (s *Server) handleMyProgress(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.MyProgress(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "classID"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStudentProgress(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.StudentProgress(r.Context(), callerFrom(r.Context()),
		chi.URLParam(r, "classID"), chi.URLParam(r, "studentID"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta  int    `json:"delta"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.handleError(w, r, err)
		return
	}
	entry, err := s.svc.AdjustPoints(r.Context(), callerFrom(r.Context()),
		chi.URLParam(r, "classID"), chi.URLParam(r, "studentID"), req.Delta, req.Reason)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleGetPointSettings(w http.ResponseWriter, r *http.Request) {
	if !callerFrom(r.Context()).IsInstructor() {
		s.handleError(w, r, domain.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.PointSettings(r.Context(), chi.URLParam(r, "classID")))
}

func (s *Server) handlePutPointSettings(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "classID")
	p := s.svc.PointSettings(r.Context(), classID)
	if err := decodeJSON(r, &p); err != nil {
		s.handleError(w, r, err)
		return
	}
	if err := s.svc.UpdatePointSettings(r.Context(), callerFrom(r.Context()), classID, p); err != nil {
		s.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
