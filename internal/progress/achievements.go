package progress

import "live-session-engine/internal/domain"

// Kind separates long-running achievements from per-session badges.
type Kind string

const (
	KindAchievement Kind = "achievement"
	KindBadge       Kind = "badge"
)

// Definition is one unlockable. award is nil when the entry changed outside a session.
type Definition struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	check       func(e *domain.ProgressEntry, award *domain.Award) bool
}

const perfectSessionMinAnswers = 3

// Catalog lists every unlockable in evaluation order.
var Catalog = []Definition{
	{
		ID: "first_correct", Kind: KindAchievement,
		Title: "First Steps", Description: "Answer a question correctly",
		check: func(e *domain.ProgressEntry, _ *domain.Award) bool { return e.CorrectAnswers >= 1 },
	},
	{
		ID: "streak_5", Kind: KindAchievement,
		Title: "On Fire", Description: "Reach a streak of 5",
		check: func(e *domain.ProgressEntry, _ *domain.Award) bool { return e.BestStreak >= 5 },
	},
	{
		ID: "streak_10", Kind: KindAchievement,
		Title: "Unstoppable", Description: "Reach a streak of 10",
		check: func(e *domain.ProgressEntry, _ *domain.Award) bool { return e.BestStreak >= 10 },
	},
	{
		ID: "century", Kind: KindAchievement,
		Title: "Century", Description: "Earn 100 points",
		check: func(e *domain.ProgressEntry, _ *domain.Award) bool { return e.TotalPoints >= 100 },
	},
	{
		ID: "level_5", Kind: KindAchievement,
		Title: "Rising Star", Description: "Reach level 5",
		check: func(e *domain.ProgressEntry, _ *domain.Award) bool { return e.Level >= 5 },
	},
	{
		ID: "perfect_session", Kind: KindBadge,
		Title: "Perfect Session", Description: "Answer every question correctly in a session of at least 3",
		check: func(_ *domain.ProgressEntry, a *domain.Award) bool {
			if a == nil || len(a.Outcomes) < perfectSessionMinAnswers {
				return false
			}
			for _, o := range a.Outcomes {
				if !o.Correct {
					return false
				}
			}
			return true
		},
	},
	{
		ID: "sessions_10", Kind: KindBadge,
		Title: "Regular", Description: "Play 10 sessions",
		check: func(e *domain.ProgressEntry, _ *domain.Award) bool { return e.SessionsPlayed >= 10 },
	},
}

// Unlock evaluates the catalog against e and records anything new. Unlocks are never revoked.
func Unlock(e *domain.ProgressEntry, award *domain.Award) []string {
	if e.Achievements == nil {
		e.Achievements = make(map[string]bool)
	}
	if e.Badges == nil {
		e.Badges = make(map[string]bool)
	}
	var unlocked []string
	for _, def := range Catalog {
		set := e.Achievements
		if def.Kind == KindBadge {
			set = e.Badges
		}
		if set[def.ID] || !def.check(e, award) {
			continue
		}
		set[def.ID] = true
		unlocked = append(unlocked, def.ID)
	}
	return unlocked
}
