package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/scoring"
)

// CreateSessionRequest carries what an instructor supplies to open a session.
// An empty code is generated.
type CreateSessionRequest struct {
	Code    string `json:"sessionCode"`
	Title   string `json:"title"`
	ClassID string `json:"classId,omitempty"`
}

// CreateSession opens a waiting session owned by the caller.
func (s *LiveService) CreateSession(ctx context.Context, caller domain.Caller, req CreateSessionRequest) (*domain.Session, error) {
	if !caller.IsInstructor() {
		return nil, domain.ErrUnauthorized
	}
	code := domain.NormalizeCode(req.Code)
	if code == "" {
		code = s.generateCode()
	}
	if strings.ContainsAny(code, " \t\n/") {
		return nil, fmt.Errorf("%w: session code must not contain spaces or slashes", domain.ErrInvalidRequest)
	}

	sess := domain.NewSession(s.newID(), code, req.Title, caller.ID, req.ClassID, s.now())
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("code", sess.Code),
		zap.String("class_id", sess.ClassID),
	)
	return sess, nil
}

// GetSession returns the full session document to its instructor.
func (s *LiveService) GetSession(ctx context.Context, caller domain.Caller, sessionID string) (*domain.Session, error) {
	return s.owned(ctx, caller, sessionID)
}

// BroadcastRequest names a bank question or carries an inline one. Points and TimeLimitSeconds
// override the question's own values when set.
type BroadcastRequest struct {
	QuestionID       string           `json:"questionId,omitempty"`
	Question         *domain.Question `json:"question,omitempty"`
	Points           *int             `json:"points,omitempty"`
	TimeLimitSeconds *int             `json:"timeLimitSeconds,omitempty"`
}

// BroadcastQuestion makes a question live. The question bank is consulted only here.
func (s *LiveService) BroadcastQuestion(ctx context.Context, caller domain.Caller, sessionID string, req BroadcastRequest) (*domain.Session, error) {
	current, err := s.owned(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	if current.Ended() {
		return nil, domain.ErrSessionEnded
	}

	q, err := s.resolveQuestion(ctx, req)
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(q)
	if err != nil {
		return nil, err
	}
	if req.Points != nil {
		snap.Points = *req.Points
	}
	if req.TimeLimitSeconds != nil {
		snap.TimeLimitSeconds = *req.TimeLimitSeconds
	}
	if snap.Points < 0 || snap.TimeLimitSeconds < 0 {
		return nil, fmt.Errorf("%w: points and time limit must not be negative", domain.ErrInvalidRequest)
	}

	sess, err := s.mutate(ctx, caller, sessionID, func(sess *domain.Session) error {
		return sess.Broadcast(snap, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("question broadcast",
		zap.String("session_id", sessionID),
		zap.String("question_id", snap.QuestionID),
		zap.Int("time_limit_seconds", snap.TimeLimitSeconds),
	)
	return sess, nil
}

func (s *LiveService) resolveQuestion(ctx context.Context, req BroadcastRequest) (domain.Question, error) {
	if req.Question != nil {
		q := *req.Question
		if strings.TrimSpace(q.ID) == "" || strings.TrimSpace(q.Text) == "" {
			return domain.Question{}, fmt.Errorf("%w: inline question needs id and text", domain.ErrInvalidRequest)
		}
		return q, nil
	}
	if strings.TrimSpace(req.QuestionID) == "" {
		return domain.Question{}, fmt.Errorf("%w: questionId or question is required", domain.ErrInvalidRequest)
	}
	if s.questions == nil {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return s.questions.GetQuestion(ctx, req.QuestionID)
}

// snapshotOf decodes the bank's raw correct answer once into its tagged form.
func snapshotOf(q domain.Question) (domain.QuestionSnapshot, error) {
	correct, err := domain.ParseAnswer(q.CorrectAnswer)
	if err != nil {
		return domain.QuestionSnapshot{}, fmt.Errorf("%w: question %s has no usable correct answer: %v", domain.ErrInvalidRequest, q.ID, err)
	}
	qType := q.Type
	if qType == "" {
		qType = domain.QuestionMultipleChoice
	}
	return domain.QuestionSnapshot{
		QuestionID:       q.ID,
		Text:             q.Text,
		Type:             qType,
		Options:          append([]string(nil), q.Options...),
		CorrectAnswer:    correct,
		Points:           q.Points,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}, nil
}

// EndQuestion closes the live question and returns its feedback summary.
// A nil summary means nothing was live.
func (s *LiveService) EndQuestion(ctx context.Context, caller domain.Caller, sessionID string) (*scoring.QuestionSummary, error) {
	var closed *domain.LiveQuestion
	sess, err := s.mutate(ctx, caller, sessionID, func(sess *domain.Session) error {
		var err error
		closed, err = sess.EndQuestion()
		return err
	})
	if err != nil {
		return nil, err
	}
	if closed == nil {
		return nil, nil
	}

	responses, err := s.sessions.Responses(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	sum, err := scoring.SummarizeQuestion(sess, closed.QuestionID, responses, s.pointSettings(ctx, sess.ClassID))
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

// ExtendTimer adds seconds to the live question.
func (s *LiveService) ExtendTimer(ctx context.Context, caller domain.Caller, sessionID string, deltaSeconds int) (*domain.Session, error) {
	return s.mutate(ctx, caller, sessionID, func(sess *domain.Session) error {
		return sess.ExtendTimer(deltaSeconds)
	})
}

// KickParticipant removes a participant from play.
func (s *LiveService) KickParticipant(ctx context.Context, caller domain.Caller, sessionID, participantID, reason string) (*domain.Session, error) {
	sess, err := s.mutate(ctx, caller, sessionID, func(sess *domain.Session) error {
		return sess.Kick(participantID, reason, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("participant kicked", zap.String("session_id", sessionID), zap.String("participant_id", participantID))
	return sess, nil
}

// EndSession ends the session and finalizes scores into the ledger when it belongs to a class.
// Ending an ended session is a no-op that returns it; a finalization left incomplete by
// earlier ledger failures is retried.
func (s *LiveService) EndSession(ctx context.Context, caller domain.Caller, sessionID string) (*domain.Session, error) {
	sess, err := s.mutate(ctx, caller, sessionID, func(sess *domain.Session) error {
		sess.End(s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !sess.Gamified() || sess.Scored {
		return sess, nil
	}

	if err := s.finalize(ctx, sess); err != nil {
		s.log.Error("finalization incomplete", zap.String("session_id", sessionID), zap.Error(err))
		return sess, nil
	}
	scored, err := s.sessions.Update(ctx, sessionID, func(doc *domain.Session) error {
		if doc.Scored {
			return errAlreadyScored
		}
		doc.Scored = true
		at := s.now()
		doc.ScoredAt = &at
		return nil
	})
	if errors.Is(err, errAlreadyScored) {
		return s.sessions.Get(ctx, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return scored, nil
}

var errAlreadyScored = errors.New("session already scored")

// SessionResults is the instructor's per-participant tally.
type SessionResults struct {
	SessionID string               `json:"sessionId"`
	Status    domain.SessionStatus `json:"status"`
	Scored    bool                 `json:"scored"`
	Results   []scoring.Result     `json:"results"`
}

// Results scores the session on demand. It works before the end as a running tally.
func (s *LiveService) Results(ctx context.Context, caller domain.Caller, sessionID string) (SessionResults, error) {
	sess, err := s.owned(ctx, caller, sessionID)
	if err != nil {
		return SessionResults{}, err
	}
	responses, err := s.sessions.Responses(ctx, sessionID)
	if err != nil {
		return SessionResults{}, fmt.Errorf("load responses: %w", err)
	}
	return SessionResults{
		SessionID: sess.ID,
		Status:    sess.Status,
		Scored:    sess.Scored,
		Results:   scoring.Score(sess, responses, s.pointSettings(ctx, sess.ClassID)),
	}, nil
}
