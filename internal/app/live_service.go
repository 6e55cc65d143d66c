package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/logging"
	"live-session-engine/internal/visibility"
)

const (
	defaultStaleAfter          = 5 * time.Minute
	defaultFinalizeConcurrency = 8
	generatedCodeLength        = 6
)

// LiveService contains the live session and gamification use cases.
type LiveService struct {
	sessions  SessionRepository
	ledger    LedgerRepository
	questions QuestionBank
	roster    Roster
	settings  SettingsRepository

	log                 *zap.Logger
	now                 func() time.Time
	newID               func() string
	points              domain.PointSettings
	staleAfter          time.Duration
	finalizeConcurrency int
}

// Option configures a LiveService.
type Option func(*LiveService)

// WithClock is mostly for tests that need deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *LiveService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *LiveService) { s.newID = newID }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *LiveService) { s.log = logging.OrNop(l) }
}

// WithPointDefaults sets the point system used for classes without their own settings.
func WithPointDefaults(p domain.PointSettings) Option {
	return func(s *LiveService) { s.points = p }
}

// WithStaleAfter sets how long a participant may stay silent before the sweep marks them inactive.
func WithStaleAfter(d time.Duration) Option {
	return func(s *LiveService) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithFinalizeConcurrency bounds concurrent ledger writes during finalization.
func WithFinalizeConcurrency(n int) Option {
	return func(s *LiveService) {
		if n > 0 {
			s.finalizeConcurrency = n
		}
	}
}

func NewLiveService(sessions SessionRepository, ledger LedgerRepository, questions QuestionBank, roster Roster, settings SettingsRepository, opts ...Option) *LiveService {
	s := &LiveService{
		sessions:            sessions,
		ledger:              ledger,
		questions:           questions,
		roster:              roster,
		settings:            settings,
		log:                 zap.NewNop(),
		now:                 time.Now,
		newID:               uuid.NewString,
		points:              domain.DefaultPointSettings(),
		staleAfter:          defaultStaleAfter,
		finalizeConcurrency: defaultFinalizeConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// mutate runs fn against the session after checking the caller owns it.
func (s *LiveService) mutate(ctx context.Context, caller domain.Caller, sessionID string, fn func(*domain.Session) error) (*domain.Session, error) {
	if !caller.IsInstructor() {
		return nil, domain.ErrUnauthorized
	}
	return s.sessions.Update(ctx, sessionID, func(sess *domain.Session) error {
		if !sess.OwnedBy(caller) {
			return domain.ErrUnauthorized
		}
		return fn(sess)
	})
}

// owned loads a session for its instructor.
func (s *LiveService) owned(ctx context.Context, caller domain.Caller, sessionID string) (*domain.Session, error) {
	if !caller.IsInstructor() {
		return nil, domain.ErrUnauthorized
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.OwnedBy(caller) {
		return nil, domain.ErrUnauthorized
	}
	return sess, nil
}

// pointSettings resolves the class point system, falling back to the configured defaults.
func (s *LiveService) pointSettings(ctx context.Context, classID string) domain.PointSettings {
	if classID == "" || s.settings == nil {
		return s.points
	}
	ps, err := s.settings.PointSettings(ctx, classID)
	if err != nil {
		s.log.Warn("point settings lookup failed, using defaults", zap.String("class_id", classID), zap.Error(err))
		return s.points
	}
	if ps == nil {
		return s.points
	}
	return *ps
}

// visibilityFor resolves session -> class -> instructor settings. Lookup failures fall back to
// the next scope.
func (s *LiveService) visibilityFor(ctx context.Context, sessionID, classID, instructorID string) domain.VisibilitySettings {
	if s.settings == nil {
		return domain.DefaultVisibilitySettings()
	}
	lookup := func(scope domain.SettingsScope, id string) *domain.VisibilitySettings {
		if id == "" {
			return nil
		}
		v, err := s.settings.Visibility(ctx, scope, id)
		if err != nil {
			s.log.Warn("visibility lookup failed", zap.String("scope", string(scope)), zap.String("id", id), zap.Error(err))
			return nil
		}
		return v
	}
	return visibility.Resolve(
		lookup(domain.ScopeSession, sessionID),
		lookup(domain.ScopeClass, classID),
		lookup(domain.ScopeInstructor, instructorID),
	)
}

func (s *LiveService) generateCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:generatedCodeLength])
}
