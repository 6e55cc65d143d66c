// Package visibility filters computed results down to what a student caller may see.
// Instructors always see everything.
package visibility

import (
	"fmt"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/progress"
)

// Resolve picks the most specific settings document: session, then class, then instructor.
// With nothing configured the fully visible defaults apply.
func Resolve(session, class, instructor *domain.VisibilitySettings) domain.VisibilitySettings {
	for _, s := range []*domain.VisibilitySettings{session, class, instructor} {
		if s != nil {
			return *s
		}
	}
	return domain.DefaultVisibilitySettings()
}

// AnswerFeedback is what a participant sees right after submitting.
type AnswerFeedback struct {
	QuestionID string `json:"questionId"`
	Accepted   bool   `json:"accepted"`
	Correct    bool   `json:"correct"`
	Points     *int   `json:"points,omitempty"`
	SpeedBonus *int   `json:"speedBonus,omitempty"`
	Attempts   int    `json:"attempts"`
}

// Feedback shapes a provisional outcome. Points are withheld unless showPointsOnAnswer.
func Feedback(caller domain.Caller, s domain.VisibilitySettings, out domain.Outcome) AnswerFeedback {
	fb := AnswerFeedback{
		QuestionID: out.QuestionID,
		Accepted:   true,
		Correct:    out.Correct,
		Attempts:   out.Attempts,
	}
	if caller.IsInstructor() || s.ShowPointsOnAnswer {
		points, speed := out.Points, out.SpeedBonus
		fb.Points = &points
		fb.SpeedBonus = &speed
	}
	return fb
}

// Leaderboard hides what the settings withhold from a student. The caller's own row is never
// anonymized or stripped.
func Leaderboard(caller domain.Caller, s domain.VisibilitySettings, lb domain.Leaderboard) domain.Leaderboard {
	if caller.IsInstructor() {
		return lb
	}
	self := caller.StudentID()
	out := domain.Leaderboard{Scope: lb.Scope, GeneratedAt: lb.GeneratedAt, Entries: make([]domain.LeaderboardEntry, 0, len(lb.Entries))}
	for i, row := range lb.Entries {
		mine := self != "" && row.StudentID == self
		if !s.ShowLeaderboard && !mine {
			continue
		}
		if !mine {
			if !s.ShowOthersStats {
				row.Accuracy = 0
				row.BestStreak = 0
				row.CorrectAnswers = 0
				row.Level = 0
				row.Hidden = true
			}
			if s.AnonymizeStudents {
				row.StudentID = ""
				row.DisplayName = fmt.Sprintf("Student %d", i+1)
			}
		}
		if !s.ShowRank {
			row.Rank = 0
		}
		if !s.ShowLevel {
			row.Level = 0
		}
		row.IsSelf = mine
		out.Entries = append(out.Entries, row)
	}
	return out
}

// Progress hides rank and level details from a student's own progress view.
func Progress(caller domain.Caller, s domain.VisibilitySettings, v progress.View) progress.View {
	if caller.IsInstructor() {
		return v
	}
	if !s.ShowRank {
		v.Rank = 0
	}
	if !s.ShowLevel {
		v.Curve = nil
		v.Entry.Level = 0
		v.Entry.Experience = 0
	}
	return v
}
