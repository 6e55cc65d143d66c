package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"live-session-engine/internal/domain"
)

const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeClosed       = "SESSION_CLOSED"
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
)

// AppError is an error with the HTTP status and code it is reported with.
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewBadRequestError(message string) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message, Status: http.StatusBadRequest}
}

func NewInternalError(err error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: "internal server error", Status: http.StatusInternalServerError, Err: err}
}

// toAppError maps domain sentinels to their HTTP representation.
func toAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	status, code := http.StatusInternalServerError, ErrCodeInternal
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, domain.ErrDuplicateCode),
		errors.Is(err, domain.ErrSessionEnded),
		errors.Is(err, domain.ErrNoActiveQuestion):
		status, code = http.StatusConflict, ErrCodeConflict
	case errors.Is(err, domain.ErrSessionClosed):
		status, code = http.StatusGone, ErrCodeClosed
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrParticipantKicked):
		status, code = http.StatusForbidden, ErrCodeForbidden
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidAnswerShape):
		status, code = http.StatusBadRequest, ErrCodeValidation
	}
	if status == http.StatusInternalServerError {
		return NewInternalError(err)
	}
	return &AppError{Code: code, Message: err.Error(), Status: status, Err: err}
}

// handleError writes the JSON error envelope. 5xx is logged at error, 4xx at warn.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := toAppError(err)
	log := s.log.With(zap.String("method", r.Method), zap.String("path", r.URL.Path))
	if appErr.Status >= 500 {
		log.Error("server error", zap.Error(appErr))
	} else {
		log.Warn("client error", zap.String("code", appErr.Code), zap.Error(appErr))
	}

	writeJSON(w, appErr.Status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return NewBadRequestError("invalid JSON body: " + err.Error())
	}
	return nil
}
