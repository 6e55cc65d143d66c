package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/scoring"
	"live-session-engine/internal/visibility"
)

// JoinRequest is what a device sends to join by code.
type JoinRequest struct {
	DisplayName       string `json:"displayName"`
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
	ParticipantID     string `json:"participantId,omitempty"`
}

// JoinResult identifies the participant record the device should poll with.
type JoinResult struct {
	SessionID   string             `json:"sessionId"`
	SessionCode string             `json:"sessionCode"`
	Title       string             `json:"title"`
	Participant domain.Participant `json:"participant"`
}

// Join attaches the caller to the session with the given code.
func (s *LiveService) Join(ctx context.Context, caller domain.Caller, code string, req JoinRequest) (JoinResult, error) {
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return JoinResult{}, err
	}
	if sess.Ended() {
		return JoinResult{}, domain.ErrSessionClosed
	}

	var joined domain.Participant
	sess, err = s.sessions.Update(ctx, sess.ID, func(doc *domain.Session) error {
		p, err := doc.Join(domain.JoinRequest{
			ParticipantID:     strings.TrimSpace(req.ParticipantID),
			StudentID:         caller.StudentID(),
			DisplayName:       req.DisplayName,
			DeviceFingerprint: strings.TrimSpace(req.DeviceFingerprint),
		}, s.newID, s.now())
		if err != nil {
			return err
		}
		joined = *p
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}
	s.touch(ctx, sess.ID, joined.ParticipantID)
	s.log.Debug("participant joined",
		zap.String("session_id", sess.ID),
		zap.String("participant_id", joined.ParticipantID),
		zap.Bool("anonymous", joined.Anonymous()),
	)
	return JoinResult{SessionID: sess.ID, SessionCode: sess.Code, Title: sess.Title, Participant: joined}, nil
}

// Leave marks the participant as gone. Records are kept.
func (s *LiveService) Leave(ctx context.Context, caller domain.Caller, code, participantID string) error {
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if err := checkParticipantOwner(sess, caller, participantID); err != nil {
		return err
	}
	_, err = s.sessions.Update(ctx, sess.ID, func(doc *domain.Session) error {
		return doc.Leave(participantID, s.now())
	})
	return err
}

// SubmitRequest is one answer. Answer is the raw JSON value.
type SubmitRequest struct {
	ParticipantID string `json:"participantId"`
	QuestionID    string `json:"questionId"`
	Answer        any    `json:"answer"`
}

// SubmitResponse appends an answer and returns provisional feedback. Malformed answers are
// accepted and scored as incorrect. Streak bonuses appear only in the final tally.
func (s *LiveService) SubmitResponse(ctx context.Context, caller domain.Caller, code string, req SubmitRequest) (visibility.AnswerFeedback, error) {
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return visibility.AnswerFeedback{}, err
	}
	if err := checkCanRespond(sess, req.ParticipantID, req.QuestionID); err != nil {
		return visibility.AnswerFeedback{}, err
	}
	if err := checkParticipantOwner(sess, caller, req.ParticipantID); err != nil {
		return visibility.AnswerFeedback{}, err
	}

	ans, err := domain.ParseAnswer(req.Answer)
	if err != nil {
		s.log.Debug("malformed answer recorded as incorrect",
			zap.String("session_id", sess.ID),
			zap.String("participant_id", req.ParticipantID),
			zap.Error(err),
		)
		ans = domain.AnswerValue{}
	}
	resp := domain.Response{
		ParticipantID: req.ParticipantID,
		QuestionID:    req.QuestionID,
		Answer:        ans,
		SubmittedAt:   s.now(),
	}
	err = s.sessions.AppendResponse(ctx, sess.ID, resp, func(doc *domain.Session) error {
		return checkCanRespond(doc, req.ParticipantID, req.QuestionID)
	})
	if err != nil {
		return visibility.AnswerFeedback{}, err
	}
	s.touch(ctx, sess.ID, req.ParticipantID)

	attempts := 1
	if all, err := s.sessions.Responses(ctx, sess.ID); err == nil {
		attempts = 0
		for _, r := range all {
			if r.ParticipantID == req.ParticipantID && r.QuestionID == req.QuestionID {
				attempts++
			}
		}
	}
	snap, _ := sess.Snapshot(req.QuestionID, resp.SubmittedAt)
	out, _ := scoring.Evaluate(snap, resp, attempts, 0, s.pointSettings(ctx, sess.ClassID))
	settings := s.visibilityFor(ctx, sess.ID, sess.ClassID, sess.InstructorID)
	return visibility.Feedback(caller, settings, out), nil
}

func checkCanRespond(sess *domain.Session, participantID, questionID string) error {
	if sess.Ended() {
		return domain.ErrSessionClosed
	}
	p, err := sess.Participant(participantID)
	if err != nil {
		return err
	}
	if p.Status == domain.ParticipantKicked {
		return domain.ErrParticipantKicked
	}
	if !sess.WasSent(questionID) {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// checkParticipantOwner stops one authenticated student acting for another's record.
func checkParticipantOwner(sess *domain.Session, caller domain.Caller, participantID string) error {
	p, err := sess.Participant(participantID)
	if err != nil {
		return err
	}
	if caller.IsInstructor() || p.StudentID == "" {
		return nil
	}
	if p.StudentID != caller.StudentID() {
		return domain.ErrUnauthorized
	}
	return nil
}

// touch records activity. Failures only delay liveness, so they are logged and dropped.
func (s *LiveService) touch(ctx context.Context, sessionID, participantID string) {
	if err := s.sessions.Touch(ctx, sessionID, participantID, s.now()); err != nil {
		s.log.Warn("activity touch failed",
			zap.String("session_id", sessionID),
			zap.String("participant_id", participantID),
			zap.Error(err),
		)
	}
}

// sweep folds recorded activity in and marks idle participants inactive. It only writes when
// something is stale, so concurrent polls rarely contend.
func (s *LiveService) sweep(ctx context.Context, sess *domain.Session) (*domain.Session, error) {
	if sess.Ended() {
		return sess, nil
	}
	activity, err := s.sessions.Activity(ctx, sess.ID)
	if err != nil {
		return sess, fmt.Errorf("read activity: %w", err)
	}
	probe := sess.Clone()
	probe.ApplyActivity(activity)
	if len(probe.StaleParticipants(s.now(), s.staleAfter)) == 0 {
		return probe, nil
	}

	swept := 0
	updated, err := s.sessions.Update(ctx, sess.ID, func(doc *domain.Session) error {
		if doc.Ended() {
			return nil
		}
		doc.ApplyActivity(activity)
		swept = doc.SweepStale(s.now(), s.staleAfter)
		return nil
	})
	if err != nil {
		return sess, err
	}
	if swept > 0 {
		s.log.Debug("stale participants swept", zap.String("session_id", sess.ID), zap.Int("count", swept))
	}
	return updated, nil
}

// SweepStale runs the stale sweep over every live session and returns how many were checked.
func (s *LiveService) SweepStale(ctx context.Context) (int, error) {
	ids, err := s.sessions.ListLive(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		sess, err := s.sessions.Get(ctx, id)
		if err != nil {
			s.log.Warn("sweep: load session", zap.String("session_id", id), zap.Error(err))
			continue
		}
		if _, err := s.sweep(ctx, sess); err != nil {
			s.log.Warn("sweep failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	return len(ids), nil
}
