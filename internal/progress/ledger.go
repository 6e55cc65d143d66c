package progress

import (
	"strings"
	"time"

	"live-session-engine/internal/domain"
)

// NewEntry creates the lazily-initialized ledger row for a student in a class.
func NewEntry(classID, studentID string, now time.Time) domain.ProgressEntry {
	return domain.ProgressEntry{
		StudentID:    studentID,
		ClassID:      classID,
		Level:        1,
		Achievements: make(map[string]bool),
		Badges:       make(map[string]bool),
		JoinDate:     now,
		UpdatedAt:    now,
	}
}

// Apply folds a finalized session award into e and returns the newly unlocked ids.
// A negative session total never lowers totalPoints.
func Apply(e *domain.ProgressEntry, award domain.Award, now time.Time) []string {
	if award.Points > 0 {
		e.TotalPoints += award.Points
	}
	for _, o := range award.Outcomes {
		e.QuestionsAnswered++
		if o.Correct {
			e.CorrectAnswers++
			e.CurrentStreak++
			if e.CurrentStreak > e.BestStreak {
				e.BestStreak = e.CurrentStreak
			}
		} else if award.ResetStreakOnIncorrect {
			e.CurrentStreak = 0
		}
	}
	e.SessionsPlayed++
	if name := strings.TrimSpace(award.DisplayName); name != "" {
		e.DisplayName = name
	}
	if award.RosterID != "" {
		e.RosterID = award.RosterID
	}
	recompute(e, now)
	return Unlock(e, &award)
}

// Adjust applies a manual instructor correction. totalPoints is floored at zero.
func Adjust(e *domain.ProgressEntry, delta int, now time.Time) []string {
	e.TotalPoints += delta
	if e.TotalPoints < 0 {
		e.TotalPoints = 0
	}
	recompute(e, now)
	return Unlock(e, nil)
}

func recompute(e *domain.ProgressEntry, now time.Time) {
	e.Level = Level(e.TotalPoints)
	e.Experience = Experience(e.TotalPoints)
	e.Accuracy = accuracy(e.CorrectAnswers, e.QuestionsAnswered)
	if e.JoinDate.IsZero() {
		e.JoinDate = now
	}
	e.UpdatedAt = now
}

func accuracy(correct, answered int) float64 {
	if answered == 0 {
		return 0
	}
	return float64(correct) / float64(answered)
}
