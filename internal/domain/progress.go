package domain

import "time"

// ProgressEntry is the durable per (student, class) gamification state.
type ProgressEntry struct {
	StudentID         string          `json:"studentId"`
	ClassID           string          `json:"classId"`
	RosterID          string          `json:"rosterId,omitempty"`
	DisplayName       string          `json:"displayName"`
	TotalPoints       int             `json:"totalPoints"`
	Level             int             `json:"level"`
	Experience        int             `json:"experience"`
	CurrentStreak     int             `json:"currentStreak"`
	BestStreak        int             `json:"bestStreak"`
	QuestionsAnswered int             `json:"questionsAnswered"`
	CorrectAnswers    int             `json:"correctAnswers"`
	Accuracy          float64         `json:"accuracy"`
	SessionsPlayed    int             `json:"sessionsPlayed"`
	Achievements      map[string]bool `json:"achievements"`
	Badges            map[string]bool `json:"badges"`
	JoinDate          time.Time       `json:"joinDate"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Outcome is the scored result of one (participant, question) pair.
type Outcome struct {
	QuestionID    string    `json:"questionId"`
	Correct       bool      `json:"correct"`
	BasePoints    int       `json:"basePoints"`
	SpeedBonus    int       `json:"speedBonus"`
	FirstTryBonus int       `json:"firstTryBonus"`
	StreakBonus   int       `json:"streakBonus"`
	Points        int       `json:"points"`
	Attempts      int       `json:"attempts"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// Award is a finalized session result for one student, written to the ledger exactly once.
type Award struct {
	SessionID   string    `json:"sessionId"`
	ClassID     string    `json:"classId"`
	StudentID   string    `json:"studentId"`
	RosterID    string    `json:"rosterId,omitempty"`
	DisplayName string    `json:"displayName"`
	Points      int       `json:"points"`
	Outcomes    []Outcome `json:"outcomes"`
	// ResetStreakOnIncorrect mirrors the point system in force when the session was scored.
	ResetStreakOnIncorrect bool      `json:"resetStreakOnIncorrect"`
	AwardedAt              time.Time `json:"awardedAt"`
}

// Adjustment is a manual instructor change to a student's points.
type Adjustment struct {
	ClassID      string    `json:"classId"`
	StudentID    string    `json:"studentId"`
	Delta        int       `json:"delta"`
	Reason       string    `json:"reason"`
	InstructorID string    `json:"instructorId"`
	At           time.Time `json:"at"`
	// RosterID is the student's roster at the time of the adjustment. Empty keeps the entry's roster.
	RosterID string `json:"rosterId,omitempty"`
}

// LeaderboardScope selects ledger entries for a class. Unassigned selects entries without a roster.
type LeaderboardScope struct {
	ClassID    string `json:"classId"`
	RosterID   string `json:"rosterId,omitempty"`
	Unassigned bool   `json:"unassigned,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank           int       `json:"rank"`
	StudentID      string    `json:"studentId,omitempty"`
	DisplayName    string    `json:"displayName"`
	TotalPoints    int       `json:"totalPoints"`
	Level          int       `json:"level,omitempty"`
	Accuracy       float64   `json:"accuracy"`
	BestStreak     int       `json:"bestStreak"`
	CorrectAnswers int       `json:"correctAnswers"`
	JoinDate       time.Time `json:"joinDate"`
	IsSelf         bool      `json:"isSelf,omitempty"`
	// Hidden marks a row whose stats were withheld by visibility settings.
	Hidden bool `json:"hidden,omitempty"`
}

// Leaderboard is an ordered ranking over a scope.
type Leaderboard struct {
	Scope       LeaderboardScope   `json:"scope"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generatedAt"`
}
