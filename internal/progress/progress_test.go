package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/progress"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestLevelCurve(t *testing.T) {
	testCases := []struct {
		total int
		level int
	}{
		{total: -5, level: 1},
		{total: 0, level: 1},
		{total: 99, level: 1},
		{total: 100, level: 2},
		{total: 399, level: 2},
		{total: 400, level: 3},
		{total: 1600, level: 5},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.level, progress.Level(tc.total), "total=%d", tc.total)
	}

	c := progress.CurveFor(150)
	assert.Equal(t, 2, c.Level)
	assert.Equal(t, 100, c.LevelFloor)
	assert.Equal(t, 400, c.NextLevelThreshold)
	assert.Equal(t, 250, c.PointsToNextLevel)
	assert.Equal(t, 50, c.Experience)
	assert.InDelta(t, 50.0/300.0, c.LevelProgress, 1e-9)
}

func TestLevelIsPure(t *testing.T) {
	for total := 0; total < 5000; total += 37 {
		lvl := progress.Level(total)
		assert.GreaterOrEqual(t, lvl, 1)
		assert.GreaterOrEqual(t, total, progress.LevelFloor(lvl))
		assert.Less(t, total, progress.NextLevelThreshold(lvl))
		assert.Equal(t, lvl, progress.Level(total))
	}
}

func outcomes(correct ...bool) []domain.Outcome {
	out := make([]domain.Outcome, len(correct))
	for i, c := range correct {
		out[i] = domain.Outcome{QuestionID: string(rune('a' + i)), Correct: c}
	}
	return out
}

func TestApplyAccumulates(t *testing.T) {
	e := progress.NewEntry("class-1", "stu-1", now)
	unlocked := progress.Apply(&e, domain.Award{
		Points:                 95,
		DisplayName:            "Ada",
		RosterID:               "r1",
		Outcomes:               outcomes(true, true, false, true),
		ResetStreakOnIncorrect: true,
	}, now)

	assert.Equal(t, 95, e.TotalPoints)
	assert.Equal(t, 1, e.Level)
	assert.Equal(t, 95, e.Experience)
	assert.Equal(t, 4, e.QuestionsAnswered)
	assert.Equal(t, 3, e.CorrectAnswers)
	assert.InDelta(t, 0.75, e.Accuracy, 1e-9)
	assert.Equal(t, 1, e.CurrentStreak)
	assert.Equal(t, 2, e.BestStreak)
	assert.Equal(t, 1, e.SessionsPlayed)
	assert.Equal(t, "Ada", e.DisplayName)
	assert.Equal(t, "r1", e.RosterID)
	assert.Equal(t, []string{"first_correct"}, unlocked)

	unlocked = progress.Apply(&e, domain.Award{Points: 10, Outcomes: outcomes(true, true, true), ResetStreakOnIncorrect: true}, now.Add(time.Hour))
	assert.Equal(t, 105, e.TotalPoints)
	assert.Equal(t, 2, e.Level)
	assert.Equal(t, 5, e.Experience)
	assert.Equal(t, 4, e.CurrentStreak)
	assert.ElementsMatch(t, []string{"century", "perfect_session"}, unlocked)
	assert.Equal(t, "Ada", e.DisplayName)
	assert.Equal(t, now, e.JoinDate)
}

func TestApplyNeverLowersPoints(t *testing.T) {
	e := progress.NewEntry("class-1", "stu-1", now)
	e.TotalPoints = 50
	progress.Apply(&e, domain.Award{Points: -8, Outcomes: outcomes(false, false)}, now)
	assert.Equal(t, 50, e.TotalPoints)
	assert.Equal(t, 2, e.QuestionsAnswered)
}

func TestStreakSurvivesWhenResetDisabled(t *testing.T) {
	e := progress.NewEntry("class-1", "stu-1", now)
	progress.Apply(&e, domain.Award{Outcomes: outcomes(true, true, false, true, true, true), ResetStreakOnIncorrect: false}, now)
	assert.Equal(t, 5, e.CurrentStreak)
	assert.Equal(t, 5, e.BestStreak)
	assert.True(t, e.Achievements["streak_5"])
}

func TestAdjustFloorsAtZeroAndKeepsUnlocks(t *testing.T) {
	e := progress.NewEntry("class-1", "stu-1", now)
	progress.Adjust(&e, 120, now)
	assert.True(t, e.Achievements["century"])
	assert.Equal(t, 2, e.Level)

	progress.Adjust(&e, -500, now)
	assert.Equal(t, 0, e.TotalPoints)
	assert.Equal(t, 1, e.Level)
	assert.True(t, e.Achievements["century"], "unlocks are never revoked")
}

func TestUnlockIsIdempotent(t *testing.T) {
	e := progress.NewEntry("class-1", "stu-1", now)
	e.CorrectAnswers = 1
	require.Equal(t, []string{"first_correct"}, progress.Unlock(&e, nil))
	assert.Empty(t, progress.Unlock(&e, nil))
}

func entry(id string, points int, acc float64, joined time.Duration, roster string) domain.ProgressEntry {
	return domain.ProgressEntry{
		StudentID:   id,
		ClassID:     "class-1",
		RosterID:    roster,
		DisplayName: id,
		TotalPoints: points,
		Level:       progress.Level(points),
		Accuracy:    acc,
		JoinDate:    now.Add(joined),
	}
}

func TestLeaderboardAccuracyBreaksTies(t *testing.T) {
	entries := []domain.ProgressEntry{
		entry("low-acc", 100, 0.5, 0, ""),
		entry("high-acc", 100, 0.9, time.Hour, ""),
	}
	lb := progress.Build(entries, domain.LeaderboardScope{ClassID: "class-1"}, "", now)
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, "high-acc", lb.Entries[0].StudentID)
	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, 1, lb.Entries[1].Rank, "coarse rank is shared on equal points")
}

func TestLeaderboardOrderIsTotal(t *testing.T) {
	entries := []domain.ProgressEntry{
		entry("c", 50, 0.5, 0, ""),
		entry("b", 50, 0.5, 0, ""),
		entry("a", 50, 0.5, time.Minute, ""),
		entry("d", 80, 0.1, 0, ""),
	}
	lb := progress.Build(entries, domain.LeaderboardScope{ClassID: "class-1"}, "a", now)

	ids := make([]string, 0, len(lb.Entries))
	for _, row := range lb.Entries {
		ids = append(ids, row.StudentID)
	}
	assert.Equal(t, []string{"d", "b", "c", "a"}, ids)
	assert.Equal(t, []int{1, 2, 2, 2}, []int{lb.Entries[0].Rank, lb.Entries[1].Rank, lb.Entries[2].Rank, lb.Entries[3].Rank})
	assert.True(t, lb.Entries[3].IsSelf)
	assert.Equal(t, 2, progress.Rank(entries, 50))
}

func TestLeaderboardScopes(t *testing.T) {
	entries := []domain.ProgressEntry{
		entry("r1-a", 10, 1, 0, "r1"),
		entry("r2-a", 20, 1, 0, "r2"),
		entry("none", 30, 1, 0, ""),
		{StudentID: "other-class", ClassID: "class-2", TotalPoints: 99},
	}

	all := progress.Build(entries, domain.LeaderboardScope{ClassID: "class-1"}, "", now)
	assert.Len(t, all.Entries, 3)

	r1 := progress.Build(entries, domain.LeaderboardScope{ClassID: "class-1", RosterID: "r1"}, "", now)
	require.Len(t, r1.Entries, 1)
	assert.Equal(t, "r1-a", r1.Entries[0].StudentID)

	un := progress.Build(entries, domain.LeaderboardScope{ClassID: "class-1", Unassigned: true}, "", now)
	require.Len(t, un.Entries, 1)
	assert.Equal(t, "none", un.Entries[0].StudentID)
}

func TestLeaderboardLimitKeepsSelf(t *testing.T) {
	entries := []domain.ProgressEntry{
		entry("a", 30, 1, 0, ""),
		entry("b", 20, 1, 0, ""),
		entry("c", 10, 1, 0, ""),
	}
	lb := progress.Build(entries, domain.LeaderboardScope{ClassID: "class-1", Limit: 1}, "c", now)
	require.Len(t, lb.Entries, 2)
	assert.Equal(t, "a", lb.Entries[0].StudentID)
	assert.Equal(t, "c", lb.Entries[1].StudentID)
	assert.Equal(t, 3, lb.Entries[1].Rank)
}
