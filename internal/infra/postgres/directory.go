package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-session-engine/internal/domain"
)

// Roster answers enrollment lookups from the enrollments table.
type Roster struct {
	pool *pgxpool.Pool
}

func NewRoster(pool *pgxpool.Pool) *Roster {
	return &Roster{pool: pool}
}

func (r *Roster) Enrollment(ctx context.Context, classID, studentID string) (domain.Enrollment, error) {
	var rosterID string
	err := r.pool.QueryRow(ctx,
		`SELECT roster_id FROM enrollments WHERE class_id = $1 AND student_id = $2`,
		classID, studentID,
	).Scan(&rosterID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Enrollment{}, nil
	}
	if err != nil {
		return domain.Enrollment{}, fmt.Errorf("load enrollment: %w", err)
	}
	return domain.Enrollment{Enrolled: true, RosterID: rosterID}, nil
}

// Enroll adds or moves a student within a class.
func (r *Roster) Enroll(ctx context.Context, classID, studentID, rosterID string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO enrollments (class_id, student_id, roster_id)
VALUES ($1, $2, $3)
ON CONFLICT (class_id, student_id) DO UPDATE SET roster_id = EXCLUDED.roster_id`,
		classID, studentID, rosterID)
	return err
}

func (r *Roster) Teaches(ctx context.Context, classID, instructorID string) (bool, error) {
	var teaches bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM class_instructors WHERE class_id = $1 AND instructor_id = $2)`,
		classID, instructorID,
	).Scan(&teaches)
	if err != nil {
		return false, fmt.Errorf("load class instructor: %w", err)
	}
	return teaches, nil
}

// AssignInstructor lets an instructor manage a class.
func (r *Roster) AssignInstructor(ctx context.Context, classID, instructorID string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO class_instructors (class_id, instructor_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`,
		classID, instructorID)
	return err
}

// SettingsStore persists visibility settings per scope and point settings per class as JSONB.
type SettingsStore struct {
	pool *pgxpool.Pool
}

func NewSettingsStore(pool *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{pool: pool}
}

func (s *SettingsStore) Visibility(ctx context.Context, scope domain.SettingsScope, id string) (*domain.VisibilitySettings, error) {
	var v domain.VisibilitySettings
	ok, err := s.load(ctx, &v,
		`SELECT settings FROM visibility_settings WHERE scope = $1 AND scope_id = $2`, string(scope), id)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func (s *SettingsStore) SaveVisibility(ctx context.Context, scope domain.SettingsScope, id string, v domain.VisibilitySettings) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO visibility_settings (scope, scope_id, settings, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (scope, scope_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`,
		string(scope), id, string(data))
	return err
}

func (s *SettingsStore) PointSettings(ctx context.Context, classID string) (*domain.PointSettings, error) {
	var p domain.PointSettings
	ok, err := s.load(ctx, &p, `SELECT settings FROM point_settings WHERE class_id = $1`, classID)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (s *SettingsStore) SavePointSettings(ctx context.Context, classID string, p domain.PointSettings) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO point_settings (class_id, settings, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (class_id) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`,
		classID, string(data))
	return err
}

func (s *SettingsStore) load(ctx context.Context, dst any, query string, args ...any) (bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load settings: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode settings: %w", err)
	}
	return true, nil
}
