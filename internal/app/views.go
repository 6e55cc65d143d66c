package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/scoring"
)

// StudentQuestion is the live question as a participant sees it: no correct answer, labels
// derived from option order, remaining time computed now.
type StudentQuestion struct {
	QuestionID       string                 `json:"questionId"`
	Text             string                 `json:"text"`
	Type             domain.QuestionType    `json:"type"`
	Options          []domain.LabeledOption `json:"options,omitempty"`
	TimeLimitSeconds int                    `json:"timeLimitSeconds"`
	RemainingSeconds int                    `json:"remainingSeconds"`
	Expired          bool                   `json:"expired"`
	Answered         bool                   `json:"answered"`
}

// StudentView is the poll response for one participant.
type StudentView struct {
	SessionID       string               `json:"sessionId"`
	SessionCode     string               `json:"sessionCode"`
	Title           string               `json:"title"`
	Status          domain.SessionStatus `json:"status"`
	Participant     *domain.Participant  `json:"participant,omitempty"`
	CurrentQuestion *StudentQuestion     `json:"currentQuestion"`
	QuestionsSent   int                  `json:"questionsSent"`
	// Result is the participant's tally once the session has ended.
	Result     *scoring.Result `json:"result,omitempty"`
	ServerTime time.Time       `json:"serverTime"`
}

// StudentState is the participant poll. It records activity and runs the opportunistic sweep.
func (s *LiveService) StudentState(ctx context.Context, caller domain.Caller, code, participantID string) (StudentView, error) {
	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		return StudentView{}, err
	}

	var self *domain.Participant
	if participantID != "" {
		if err := checkParticipantOwner(sess, caller, participantID); err != nil {
			return StudentView{}, err
		}
		if !sess.Ended() {
			s.touch(ctx, sess.ID, participantID)
		}
	}
	if swept, err := s.sweep(ctx, sess); err == nil {
		sess = swept
	} else {
		s.log.Warn("poll sweep failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	if participantID != "" {
		p, err := sess.Participant(participantID)
		if err != nil {
			return StudentView{}, err
		}
		cp := *p
		self = &cp
	}

	now := s.now()
	view := StudentView{
		SessionID:     sess.ID,
		SessionCode:   sess.Code,
		Title:         sess.Title,
		Status:        sess.Status,
		Participant:   self,
		QuestionsSent: len(sess.QuestionsSent),
		ServerTime:    now,
	}

	var responses []domain.Response
	if self != nil && (sess.CurrentQuestion != nil || sess.Ended()) {
		if responses, err = s.sessions.Responses(ctx, sess.ID); err != nil {
			return StudentView{}, fmt.Errorf("load responses: %w", err)
		}
	}

	if q := sess.CurrentQuestion; q != nil {
		sq := &StudentQuestion{
			QuestionID:       q.QuestionID,
			Text:             q.Text,
			Type:             q.Type,
			Options:          domain.LabelOptions(q.Options),
			TimeLimitSeconds: q.TimeLimitSeconds,
			RemainingSeconds: q.RemainingSeconds(now),
			Expired:          q.Expired(now),
		}
		if self != nil {
			_, sq.Answered = scoring.LatestAnswers(responses, q.QuestionID)[self.ParticipantID]
		}
		view.CurrentQuestion = sq
	}

	if sess.Ended() && self != nil {
		for _, res := range scoring.Score(sess, responses, s.pointSettings(ctx, sess.ClassID)) {
			if res.ParticipantID == self.ParticipantID {
				r := res
				settings := s.visibilityFor(ctx, sess.ID, sess.ClassID, sess.InstructorID)
				if !settings.ShowPointsOnAnswer {
					r.Points = 0
					r.Outcomes = nil
				}
				view.Result = &r
				break
			}
		}
	}
	return view, nil
}

// InstructorQuestion is the live question with its answer and running counts.
type InstructorQuestion struct {
	domain.QuestionSnapshot
	Labels           []domain.LabeledOption `json:"labels,omitempty"`
	StartedAt        time.Time              `json:"startedAt"`
	RemainingSeconds int                    `json:"remainingSeconds"`
	Expired          bool                   `json:"expired"`
	Responses        int                    `json:"responses"`
	Distribution     map[string]int         `json:"distribution"`
}

// InstructorView is the instructor's dashboard poll.
type InstructorView struct {
	Session         *domain.Session                  `json:"session"`
	Participants    []domain.Participant             `json:"participants"`
	StatusCounts    map[domain.ParticipantStatus]int `json:"statusCounts"`
	CurrentQuestion *InstructorQuestion              `json:"currentQuestion"`
	ServerTime      time.Time                        `json:"serverTime"`
}

// InstructorState returns the dashboard for the owning instructor.
func (s *LiveService) InstructorState(ctx context.Context, caller domain.Caller, sessionID string) (InstructorView, error) {
	sess, err := s.owned(ctx, caller, sessionID)
	if err != nil {
		return InstructorView{}, err
	}
	if swept, err := s.sweep(ctx, sess); err == nil {
		sess = swept
	}

	now := s.now()
	view := InstructorView{
		Session:      sess,
		Participants: sess.SortedParticipants(),
		StatusCounts: sess.CountByStatus(),
		ServerTime:   now,
	}
	if q := sess.CurrentQuestion; q != nil {
		responses, err := s.sessions.Responses(ctx, sess.ID)
		if err != nil {
			return InstructorView{}, fmt.Errorf("load responses: %w", err)
		}
		latest := scoring.LatestAnswers(responses, q.QuestionID)
		view.CurrentQuestion = &InstructorQuestion{
			QuestionSnapshot: q.QuestionSnapshot,
			Labels:           domain.LabelOptions(q.Options),
			StartedAt:        q.StartedAt,
			RemainingSeconds: q.RemainingSeconds(now),
			Expired:          q.Expired(now),
			Responses:        len(latest),
			Distribution:     scoring.Distribution(q.QuestionSnapshot, latest),
		}
	}
	return view, nil
}
