package app

import (
	"context"
	"time"

	"live-session-engine/internal/domain"
)

// SessionRepository abstracts how live sessions are stored (in-memory, Redis).
// Update applies fn to a private copy and persists it atomically; readers see the
// document before or after, never in between. fn errors abort the write.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	GetByCode(ctx context.Context, code string) (*domain.Session, error)
	Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error)
	// AppendResponse appends to the session's response log if check accepts the current document.
	AppendResponse(ctx context.Context, sessionID string, r domain.Response, check func(*domain.Session) error) error
	Responses(ctx context.Context, sessionID string) ([]domain.Response, error)
	// Touch records participant activity without rewriting the session document.
	Touch(ctx context.Context, sessionID, participantID string, at time.Time) error
	Activity(ctx context.Context, sessionID string) (map[string]time.Time, error)
	// ListLive returns ids of sessions that have not ended.
	ListLive(ctx context.Context) ([]string, error)
}

// LedgerRepository persists progress entries.
type LedgerRepository interface {
	// ApplyAward folds an award into the student's entry once per (session, class, student).
	// applied is false when the award was already recorded.
	ApplyAward(ctx context.Context, award domain.Award) (entry domain.ProgressEntry, applied bool, err error)
	Adjust(ctx context.Context, adj domain.Adjustment) (domain.ProgressEntry, error)
	Get(ctx context.Context, classID, studentID string) (domain.ProgressEntry, error)
	List(ctx context.Context, scope domain.LeaderboardScope) ([]domain.ProgressEntry, error)
	// CountAbove counts in-scope entries with strictly more points.
	CountAbove(ctx context.Context, scope domain.LeaderboardScope, points int) (int, error)
	DeleteOrphans(ctx context.Context) (int, error)
}

// QuestionBank loads question content (from cache/backing store).
type QuestionBank interface {
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// Roster answers enrollment and teaching questions for a class.
type Roster interface {
	Enrollment(ctx context.Context, classID, studentID string) (domain.Enrollment, error)
	// Teaches reports whether the instructor manages the class.
	Teaches(ctx context.Context, classID, instructorID string) (bool, error)
}

// SettingsRepository supplies instructor-configured settings. A nil result means not configured.
type SettingsRepository interface {
	Visibility(ctx context.Context, scope domain.SettingsScope, id string) (*domain.VisibilitySettings, error)
	SaveVisibility(ctx context.Context, scope domain.SettingsScope, id string, s domain.VisibilitySettings) error
	PointSettings(ctx context.Context, classID string) (*domain.PointSettings, error)
	SavePointSettings(ctx context.Context, classID string, s domain.PointSettings) error
}
