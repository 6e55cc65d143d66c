package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/progress"
	"live-session-engine/internal/visibility"
)

// Leaderboard ranks a class scope. Students must be enrolled and see the gated view.
func (s *LiveService) Leaderboard(ctx context.Context, caller domain.Caller, scope domain.LeaderboardScope) (domain.Leaderboard, error) {
	scope.ClassID = strings.TrimSpace(scope.ClassID)
	if scope.ClassID == "" {
		return domain.Leaderboard{}, fmt.Errorf("%w: classId is required", domain.ErrInvalidRequest)
	}
	if err := s.checkClassReader(ctx, caller, scope.ClassID); err != nil {
		return domain.Leaderboard{}, err
	}
	entries, err := s.ledger.List(ctx, scope)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	lb := progress.Build(entries, scope, caller.StudentID(), s.now())
	return visibility.Leaderboard(caller, s.visibilityFor(ctx, "", scope.ClassID, ""), lb), nil
}

// MyProgress returns the caller's own ledger entry with its level curve and rank.
// A student with no entry yet sees a fresh level-1 view.
func (s *LiveService) MyProgress(ctx context.Context, caller domain.Caller, classID string) (progress.View, error) {
	studentID := caller.StudentID()
	if studentID == "" {
		return progress.View{}, domain.ErrUnauthorized
	}
	if err := s.checkClassReader(ctx, caller, classID); err != nil {
		return progress.View{}, err
	}
	return s.progressView(ctx, caller, classID, studentID)
}

// StudentProgress is MyProgress for an instructor looking at one student.
func (s *LiveService) StudentProgress(ctx context.Context, caller domain.Caller, classID, studentID string) (progress.View, error) {
	if !caller.IsInstructor() {
		return progress.View{}, domain.ErrUnauthorized
	}
	return s.progressView(ctx, caller, classID, studentID)
}

func (s *LiveService) progressView(ctx context.Context, caller domain.Caller, classID, studentID string) (progress.View, error) {
	entry, err := s.ledger.Get(ctx, classID, studentID)
	if errors.Is(err, domain.ErrNotFound) {
		entry = progress.NewEntry(classID, studentID, s.now())
	} else if err != nil {
		return progress.View{}, err
	}

	above, err := s.ledger.CountAbove(ctx, domain.LeaderboardScope{ClassID: classID}, entry.TotalPoints)
	if err != nil {
		return progress.View{}, err
	}
	curve := progress.CurveFor(entry.TotalPoints)
	view := progress.View{Entry: entry, Curve: &curve, Rank: above + 1}
	return visibility.Progress(caller, s.visibilityFor(ctx, "", classID, ""), view), nil
}

// AdjustPoints applies a manual correction. It is the only way totalPoints can decrease.
func (s *LiveService) AdjustPoints(ctx context.Context, caller domain.Caller, classID, studentID string, delta int, reason string) (domain.ProgressEntry, error) {
	if !caller.IsInstructor() {
		return domain.ProgressEntry{}, domain.ErrUnauthorized
	}
	if delta == 0 || strings.TrimSpace(classID) == "" || strings.TrimSpace(studentID) == "" {
		return domain.ProgressEntry{}, fmt.Errorf("%w: classId, studentId and a non-zero delta are required", domain.ErrInvalidRequest)
	}
	if err := s.checkClassInstructor(ctx, caller, classID); err != nil {
		return domain.ProgressEntry{}, err
	}
	enrollment, err := s.roster.Enrollment(ctx, classID, studentID)
	if err != nil {
		return domain.ProgressEntry{}, fmt.Errorf("enrollment lookup: %w", err)
	}
	if !enrollment.Enrolled {
		return domain.ProgressEntry{}, fmt.Errorf("%w: student %s is not enrolled in class %s", domain.ErrNotFound, studentID, classID)
	}
	entry, err := s.ledger.Adjust(ctx, domain.Adjustment{
		ClassID:      classID,
		StudentID:    studentID,
		Delta:        delta,
		Reason:       strings.TrimSpace(reason),
		InstructorID: caller.ID,
		At:           s.now(),
		RosterID:     enrollment.RosterID,
	})
	if err != nil {
		return domain.ProgressEntry{}, err
	}
	s.log.Info("points adjusted",
		zap.String("class_id", classID),
		zap.String("student_id", studentID),
		zap.Int("delta", delta),
		zap.String("instructor_id", caller.ID),
	)
	return entry, nil
}

// CleanupLedger removes ledger entries that have no student identity.
func (s *LiveService) CleanupLedger(ctx context.Context) (int, error) {
	n, err := s.ledger.DeleteOrphans(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("ledger cleanup", zap.Int("deleted", n))
	return n, nil
}

// UpdateVisibility stores visibility settings for a scope. Session scope requires owning the
// session and class scope requires teaching the class.
func (s *LiveService) UpdateVisibility(ctx context.Context, caller domain.Caller, scope domain.SettingsScope, id string, v domain.VisibilitySettings) error {
	if !caller.IsInstructor() {
		return domain.ErrUnauthorized
	}
	switch scope {
	case domain.ScopeSession:
		if _, err := s.owned(ctx, caller, id); err != nil {
			return err
		}
	case domain.ScopeInstructor:
		if id != caller.ID {
			return domain.ErrUnauthorized
		}
	case domain.ScopeClass:
		if err := s.checkClassInstructor(ctx, caller, id); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown settings scope %q", domain.ErrInvalidRequest, scope)
	}
	return s.settings.SaveVisibility(ctx, scope, id, v)
}

// UpdatePointSettings stores the point system for a class.
func (s *LiveService) UpdatePointSettings(ctx context.Context, caller domain.Caller, classID string, p domain.PointSettings) error {
	if !caller.IsInstructor() {
		return domain.ErrUnauthorized
	}
	if p.PointsPerCorrect < 0 || p.SpeedBonus < 0 || p.SpeedThresholdMs < 0 || p.FirstTryBonus < 0 ||
		p.StreakBonus < 0 || p.StreakBonusMinStreak < 0 || p.IncorrectPenalty < 0 {
		return fmt.Errorf("%w: point settings must not be negative", domain.ErrInvalidRequest)
	}
	if err := s.checkClassInstructor(ctx, caller, classID); err != nil {
		return err
	}
	return s.settings.SavePointSettings(ctx, classID, p)
}

// PointSettings returns the effective point system for a class.
func (s *LiveService) PointSettings(ctx context.Context, classID string) domain.PointSettings {
	return s.pointSettings(ctx, classID)
}

// checkClassInstructor requires an instructor the roster lists for the class.
// Without a roster nobody can manage class-level state.
func (s *LiveService) checkClassInstructor(ctx context.Context, caller domain.Caller, classID string) error {
	if !caller.IsInstructor() || s.roster == nil {
		return domain.ErrUnauthorized
	}
	teaches, err := s.roster.Teaches(ctx, classID, caller.ID)
	if err != nil {
		return fmt.Errorf("instructor lookup: %w", err)
	}
	if !teaches {
		return domain.ErrUnauthorized
	}
	return nil
}

// checkClassReader lets instructors through and requires students to be enrolled.
func (s *LiveService) checkClassReader(ctx context.Context, caller domain.Caller, classID string) error {
	if caller.IsInstructor() {
		return nil
	}
	studentID := caller.StudentID()
	if studentID == "" {
		return domain.ErrUnauthorized
	}
	if s.roster == nil {
		return nil
	}
	enrollment, err := s.roster.Enrollment(ctx, classID, studentID)
	if err != nil {
		return fmt.Errorf("enrollment lookup: %w", err)
	}
	if !enrollment.Enrolled {
		return domain.ErrUnauthorized
	}
	return nil
}
