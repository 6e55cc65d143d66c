package progress

import (
	"sort"
	"time"

	"live-session-engine/internal/domain"
)

// Less is the leaderboard order: totalPoints desc, accuracy desc, joinDate asc, studentId asc.
func Less(a, b domain.ProgressEntry) bool {
	if a.TotalPoints != b.TotalPoints {
		return a.TotalPoints > b.TotalPoints
	}
	if a.Accuracy != b.Accuracy {
		return a.Accuracy > b.Accuracy
	}
	if !a.JoinDate.Equal(b.JoinDate) {
		return a.JoinDate.Before(b.JoinDate)
	}
	return a.StudentID < b.StudentID
}

// InScope reports whether e belongs to the scope's class and roster filter.
func InScope(e domain.ProgressEntry, scope domain.LeaderboardScope) bool {
	if e.ClassID != scope.ClassID {
		return false
	}
	switch {
	case scope.Unassigned:
		return e.RosterID == ""
	case scope.RosterID != "":
		return e.RosterID == scope.RosterID
	}
	return true
}

// Rank is count(entries with strictly more points) + 1. Ties share a rank.
func Rank(entries []domain.ProgressEntry, totalPoints int) int {
	above := 0
	for _, e := range entries {
		if e.TotalPoints > totalPoints {
			above++
		}
	}
	return above + 1
}

// Build orders the in-scope entries and assigns ranks. selfID marks the caller's row.
func Build(entries []domain.ProgressEntry, scope domain.LeaderboardScope, selfID string, now time.Time) domain.Leaderboard {
	scoped := make([]domain.ProgressEntry, 0, len(entries))
	for _, e := range entries {
		if InScope(e, scope) {
			scoped = append(scoped, e)
		}
	}
	sort.Slice(scoped, func(i, j int) bool { return Less(scoped[i], scoped[j]) })

	rows := make([]domain.LeaderboardEntry, 0, len(scoped))
	rank := 0
	for i, e := range scoped {
		// sorted by points desc, so the first row of a points group carries the shared rank
		if i == 0 || e.TotalPoints != scoped[i-1].TotalPoints {
			rank = i + 1
		}
		if scope.Limit > 0 && len(rows) >= scope.Limit && e.StudentID != selfID {
			continue
		}
		rows = append(rows, domain.LeaderboardEntry{
			Rank:           rank,
			StudentID:      e.StudentID,
			DisplayName:    e.DisplayName,
			TotalPoints:    e.TotalPoints,
			Level:          e.Level,
			Accuracy:       e.Accuracy,
			BestStreak:     e.BestStreak,
			CorrectAnswers: e.CorrectAnswers,
			JoinDate:       e.JoinDate,
			IsSelf:         selfID != "" && e.StudentID == selfID,
		})
	}
	return domain.Leaderboard{Scope: scope, Entries: rows, GeneratedAt: now}
}
