package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/scoring"
)

// finalize writes every eligible participant's session result to the ledger.
// Participants are independent: one failure is logged and collected while the rest proceed.
func (s *LiveService) finalize(ctx context.Context, sess *domain.Session) error {
	responses, err := s.sessions.Responses(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("load responses: %w", err)
	}
	settings := s.pointSettings(ctx, sess.ClassID)
	results := scoring.Score(sess, responses, settings)

	var (
		mu      sync.Mutex
		failed  []error
		awarded int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.finalizeConcurrency)
	for _, res := range results {
		res := res
		g.Go(func() error {
			applied, err := s.award(gctx, sess, res, settings)
			log := s.log.With(
				zap.String("session_id", sess.ID),
				zap.String("participant_id", res.ParticipantID),
			)
			switch {
			case errors.Is(err, domain.ErrLedgerWriteSkipped):
				log.Info("ledger write skipped", zap.Error(err))
			case err != nil:
				log.Error("ledger write failed", zap.Error(err))
				mu.Lock()
				failed = append(failed, fmt.Errorf("participant %s: %w", res.ParticipantID, err))
				mu.Unlock()
			case applied:
				mu.Lock()
				awarded++
				mu.Unlock()
			}
			// never cancel the siblings
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info("session finalized",
		zap.String("session_id", sess.ID),
		zap.Int("participants", len(results)),
		zap.Int("awarded", awarded),
		zap.Int("failed", len(failed)),
	)
	return errors.Join(failed...)
}

// award writes one result. Anonymous, silent or unenrolled participants are skipped.
func (s *LiveService) award(ctx context.Context, sess *domain.Session, res scoring.Result, settings domain.PointSettings) (bool, error) {
	if res.StudentID == "" {
		return false, fmt.Errorf("%w: anonymous participant", domain.ErrLedgerWriteSkipped)
	}
	if res.Answered == 0 {
		return false, fmt.Errorf("%w: no scored responses", domain.ErrLedgerWriteSkipped)
	}
	if s.roster == nil {
		return false, fmt.Errorf("%w: no roster configured", domain.ErrLedgerWriteSkipped)
	}
	enrollment, err := s.roster.Enrollment(ctx, sess.ClassID, res.StudentID)
	if err != nil {
		return false, fmt.Errorf("enrollment lookup: %w", err)
	}
	if !enrollment.Enrolled {
		return false, fmt.Errorf("%w: student %s not enrolled in %s", domain.ErrLedgerWriteSkipped, res.StudentID, sess.ClassID)
	}

	_, applied, err := s.ledger.ApplyAward(ctx, domain.Award{
		SessionID:              sess.ID,
		ClassID:                sess.ClassID,
		StudentID:              res.StudentID,
		RosterID:               enrollment.RosterID,
		DisplayName:            res.DisplayName,
		Points:                 res.Points,
		Outcomes:               res.Outcomes,
		ResetStreakOnIncorrect: settings.ResetStreakOnIncorrect,
		AwardedAt:              s.now(),
	})
	return applied, err
}
