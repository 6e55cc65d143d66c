package domain

import "time"

// Role is the caller class supplied by the identity provider.
type Role string

const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
	RoleAnonymous  Role = "anonymous"
)

// Caller is the trusted identity attached to every call.
type Caller struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (c Caller) IsInstructor() bool { return c.Role == RoleInstructor && c.ID != "" }

// StudentID returns the identity usable for the progress ledger, or "" for anonymous callers.
func (c Caller) StudentID() string {
	if c.Role == RoleStudent {
		return c.ID
	}
	return ""
}

// QuestionType tags how answers are compared.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionNumeric        QuestionType = "numeric"
)

// Question is a content-bank item. CorrectAnswer is whatever the authoring tool stored.
type Question struct {
	ID               string       `json:"id"`
	Text             string       `json:"text"`
	Type             QuestionType `json:"type"`
	Options          []string     `json:"options,omitempty"`
	CorrectAnswer    any          `json:"correctAnswer"`
	Points           int          `json:"points"`
	TimeLimitSeconds int          `json:"timeLimitSeconds"`
}

// QuestionSnapshot is the immutable copy of a question as broadcast.
type QuestionSnapshot struct {
	QuestionID       string       `json:"questionId"`
	Text             string       `json:"text"`
	Type             QuestionType `json:"type"`
	Options          []string     `json:"options,omitempty"`
	CorrectAnswer    AnswerValue  `json:"correctAnswer"`
	Points           int          `json:"points"`
	TimeLimitSeconds int          `json:"timeLimitSeconds"`
	SentAt           time.Time    `json:"sentAt"`
}

// LiveQuestion is the current-question pointer. Its time limit is the only mutable part.
type LiveQuestion struct {
	QuestionSnapshot
	StartedAt time.Time `json:"startedAt"`
}

type SessionStatus string

const (
	SessionWaiting SessionStatus = "waiting"
	SessionActive  SessionStatus = "active"
	SessionEnded   SessionStatus = "ended"
)

type ParticipantStatus string

const (
	ParticipantActive   ParticipantStatus = "active"
	ParticipantInactive ParticipantStatus = "inactive"
	ParticipantLeft     ParticipantStatus = "left"
	ParticipantKicked   ParticipantStatus = "kicked"
)

// Participant is one device or identity attached to a session.
type Participant struct {
	ParticipantID     string            `json:"participantId"`
	StudentID         string            `json:"studentId,omitempty"`
	DisplayName       string            `json:"displayName"`
	DeviceFingerprint string            `json:"deviceFingerprint,omitempty"`
	JoinedAt          time.Time         `json:"joinedAt"`
	LastActivityAt    time.Time         `json:"lastActivityAt"`
	LeftAt            *time.Time        `json:"leftAt,omitempty"`
	Status            ParticipantStatus `json:"status"`
	KickReason        string            `json:"kickReason,omitempty"`
}

func (p Participant) Anonymous() bool { return p.StudentID == "" }

// Response is one entry of the append-only response log.
type Response struct {
	ParticipantID string      `json:"participantId"`
	QuestionID    string      `json:"questionId"`
	Answer        AnswerValue `json:"answer"`
	SubmittedAt   time.Time   `json:"submittedAt"`
}

// Session is one live event. Responses live in a separate append-only log owned by the store.
type Session struct {
	ID              string                  `json:"id"`
	Code            string                  `json:"sessionCode"`
	Title           string                  `json:"title"`
	InstructorID    string                  `json:"instructorId"`
	ClassID         string                  `json:"classId,omitempty"`
	Status          SessionStatus           `json:"status"`
	CurrentQuestion *LiveQuestion           `json:"currentQuestion"`
	QuestionsSent   []QuestionSnapshot      `json:"questionsSent"`
	Participants    map[string]*Participant `json:"participants"`
	JoinCount       int                     `json:"joinCount"`
	CreatedAt       time.Time               `json:"createdAt"`
	StartedAt       *time.Time              `json:"startedAt,omitempty"`
	EndedAt         *time.Time              `json:"endedAt,omitempty"`
	Scored          bool                    `json:"scored"`
	ScoredAt        *time.Time              `json:"scoredAt,omitempty"`
}

// PointSettings is the per-class point system. Zero values are not defaults; use DefaultPointSettings.
type PointSettings struct {
	PointsPerCorrect       int  `json:"pointsPerCorrect" yaml:"pointsPerCorrect"`
	SpeedBonus             int  `json:"speedBonus" yaml:"speedBonus"`
	SpeedThresholdMs       int  `json:"speedThresholdMs" yaml:"speedThresholdMs"`
	FirstTryBonus          int  `json:"firstTryBonus" yaml:"firstTryBonus"`
	StreakBonus            int  `json:"streakBonus" yaml:"streakBonus"`
	StreakBonusMinStreak   int  `json:"streakBonusMinStreak" yaml:"streakBonusMinStreak"`
	IncorrectPenalty       int  `json:"incorrectPenalty" yaml:"incorrectPenalty"`
	ResetStreakOnIncorrect bool `json:"resetStreakOnIncorrect" yaml:"resetStreakOnIncorrect"`
}

func DefaultPointSettings() PointSettings {
	return PointSettings{
		PointsPerCorrect:       10,
		SpeedBonus:             1,
		SpeedThresholdMs:       5000,
		FirstTryBonus:          0,
		StreakBonus:            0,
		StreakBonusMinStreak:   3,
		IncorrectPenalty:       0,
		ResetStreakOnIncorrect: true,
	}
}

// VisibilitySettings controls what a student caller may see.
type VisibilitySettings struct {
	ShowLeaderboard    bool `json:"showLeaderboard"`
	ShowOthersStats    bool `json:"showOthersStats"`
	ShowPointsOnAnswer bool `json:"showPointsOnAnswer"`
	ShowRank           bool `json:"showRank"`
	ShowLevel          bool `json:"showLevel"`
	AnonymizeStudents  bool `json:"anonymizeStudents"`
}

func DefaultVisibilitySettings() VisibilitySettings {
	return VisibilitySettings{
		ShowLeaderboard:    true,
		ShowOthersStats:    true,
		ShowPointsOnAnswer: true,
		ShowRank:           true,
		ShowLevel:          true,
		AnonymizeStudents:  false,
	}
}

// SettingsScope names where a settings document is attached.
type SettingsScope string

const (
	ScopeSession    SettingsScope = "session"
	ScopeClass      SettingsScope = "class"
	ScopeInstructor SettingsScope = "instructor"
)

// Enrollment is the roster oracle's answer for a (class, student) pair.
type Enrollment struct {
	Enrolled bool   `json:"enrolled"`
	RosterID string `json:"rosterId,omitempty"`
}
