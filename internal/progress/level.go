// Package progress holds the pure math behind the progress ledger: levels, award application,
// achievements and leaderboard ordering. Storage lives in the infra packages.
package progress

import (
	"math"

	"live-session-engine/internal/domain"
)

const pointsPerLevelUnit = 100

// Level is max(1, 1+floor(sqrt(total/100))).
func Level(totalPoints int) int {
	if totalPoints <= 0 {
		return 1
	}
	lvl := 1 + int(math.Floor(math.Sqrt(float64(totalPoints)/pointsPerLevelUnit)))
	if lvl < 1 {
		return 1
	}
	return lvl
}

// LevelFloor is the total needed to reach level: 100*(level-1)^2.
func LevelFloor(level int) int {
	if level <= 1 {
		return 0
	}
	return pointsPerLevelUnit * (level - 1) * (level - 1)
}

// NextLevelThreshold is the total needed for level+1: 100*level^2.
func NextLevelThreshold(level int) int {
	if level < 1 {
		level = 1
	}
	return pointsPerLevelUnit * level * level
}

// Experience is the points earned inside the current level.
func Experience(totalPoints int) int {
	if totalPoints < 0 {
		totalPoints = 0
	}
	return totalPoints - LevelFloor(Level(totalPoints))
}

// Curve is the derived view of a total. None of it is stored.
type Curve struct {
	Level              int     `json:"level"`
	Experience         int     `json:"experience"`
	LevelFloor         int     `json:"levelFloor"`
	NextLevelThreshold int     `json:"nextLevelThresholdPoints"`
	PointsToNextLevel  int     `json:"pointsToNextLevel"`
	LevelProgress      float64 `json:"levelProgress"`
}

// CurveFor derives level progress for a total.
func CurveFor(totalPoints int) Curve {
	if totalPoints < 0 {
		totalPoints = 0
	}
	lvl := Level(totalPoints)
	floor := LevelFloor(lvl)
	next := NextLevelThreshold(lvl)
	c := Curve{
		Level:              lvl,
		Experience:         totalPoints - floor,
		LevelFloor:         floor,
		NextLevelThreshold: next,
		PointsToNextLevel:  next - totalPoints,
	}
	if span := next - floor; span > 0 {
		c.LevelProgress = float64(c.Experience) / float64(span)
	}
	return c
}

// View is a student's progress as returned to callers. Rank and Curve may be withheld.
type View struct {
	Entry domain.ProgressEntry `json:"entry"`
	Curve *Curve               `json:"curve,omitempty"`
	Rank  int                  `json:"rank,omitempty"`
}

// NewView derives the full view for an entry ranked within scope.
func NewView(e domain.ProgressEntry, scope []domain.ProgressEntry) View {
	c := CurveFor(e.TotalPoints)
	return View{Entry: e, Curve: &c, Rank: Rank(scope, e.TotalPoints)}
}
