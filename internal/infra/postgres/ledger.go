package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/progress"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var entryColumns = []string{
	"class_id", "student_id", "roster_id", "display_name", "total_points", "level", "experience",
	"current_streak", "best_streak", "questions_answered", "correct_answers", "accuracy",
	"sessions_played", "achievements", "badges", "join_date", "updated_at",
}

// Ledger is the durable progress ledger. Each award is recorded under its
// (session, class, student) key in the same transaction that folds it in.
type Ledger struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool, clock: time.Now}
}

func (l *Ledger) ApplyAward(ctx context.Context, award domain.Award) (domain.ProgressEntry, bool, error) {
	now := award.AwardedAt
	if now.IsZero() {
		now = l.clock()
	}

	var (
		entry   domain.ProgressEntry
		applied bool
	)
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
INSERT INTO ledger_awards (session_id, class_id, student_id, points, awarded_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT DO NOTHING`,
			award.SessionID, award.ClassID, award.StudentID, award.Points, now)
		if err != nil {
			return fmt.Errorf("record award: %w", err)
		}
		if tag.RowsAffected() == 0 {
			entry, err = l.lockEntry(ctx, tx, award.ClassID, award.StudentID, now)
			return err
		}

		entry, err = l.lockEntry(ctx, tx, award.ClassID, award.StudentID, now)
		if err != nil {
			return err
		}
		progress.Apply(&entry, award, now)
		applied = true
		return l.saveEntry(ctx, tx, entry)
	})
	if err != nil {
		return domain.ProgressEntry{}, false, err
	}
	return entry, applied, nil
}

func (l *Ledger) Adjust(ctx context.Context, adj domain.Adjustment) (domain.ProgressEntry, error) {
	now := adj.At
	if now.IsZero() {
		now = l.clock()
	}

	var entry domain.ProgressEntry
	err := l.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		entry, err = l.lockEntry(ctx, tx, adj.ClassID, adj.StudentID, now)
		if err != nil {
			return err
		}
		if adj.RosterID != "" {
			entry.RosterID = adj.RosterID
		}
		progress.Adjust(&entry, adj.Delta, now)
		if err := l.saveEntry(ctx, tx, entry); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
INSERT INTO ledger_adjustments (class_id, student_id, delta, reason, instructor_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			adj.ClassID, adj.StudentID, adj.Delta, adj.Reason, adj.InstructorID, now)
		if err != nil {
			return fmt.Errorf("record adjustment: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.ProgressEntry{}, err
	}
	return entry, nil
}

func (l *Ledger) Get(ctx context.Context, classID, studentID string) (domain.ProgressEntry, error) {
	query, args, err := psql.Select(entryColumns...).
		From("progress_ledger").
		Where(sq.Eq{"class_id": classID, "student_id": studentID}).
		ToSql()
	if err != nil {
		return domain.ProgressEntry{}, err
	}
	entry, err := scanEntry(l.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ProgressEntry{}, domain.ErrNotFound
	}
	return entry, err
}

func (l *Ledger) List(ctx context.Context, scope domain.LeaderboardScope) ([]domain.ProgressEntry, error) {
	query, args, err := scoped(psql.Select(entryColumns...).From("progress_ledger"), scope).
		OrderBy("total_points DESC", "accuracy DESC", "join_date ASC", "student_id ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []domain.ProgressEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (l *Ledger) CountAbove(ctx context.Context, scope domain.LeaderboardScope, points int) (int, error) {
	query, args, err := scoped(psql.Select("COUNT(*)").From("progress_ledger"), scope).
		Where(sq.Gt{"total_points": points}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := l.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count above: %w", err)
	}
	return n, nil
}

func (l *Ledger) DeleteOrphans(ctx context.Context) (int, error) {
	tag, err := l.pool.Exec(ctx, `DELETE FROM progress_ledger WHERE btrim(student_id) = ''`)
	if err != nil {
		return 0, fmt.Errorf("delete orphans: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Adjustments returns the audit trail for a student, oldest first.
func (l *Ledger) Adjustments(ctx context.Context, classID, studentID string) ([]domain.Adjustment, error) {
	rows, err := l.pool.Query(ctx, `
SELECT class_id, student_id, delta, reason, instructor_id, created_at
FROM ledger_adjustments
WHERE class_id = $1 AND student_id = $2
ORDER BY id`, classID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Adjustment
	for rows.Next() {
		var a domain.Adjustment
		if err := rows.Scan(&a.ClassID, &a.StudentID, &a.Delta, &a.Reason, &a.InstructorID, &a.At); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scoped(b sq.SelectBuilder, scope domain.LeaderboardScope) sq.SelectBuilder {
	b = b.Where(sq.Eq{"class_id": scope.ClassID})
	switch {
	case scope.Unassigned:
		b = b.Where(sq.Eq{"roster_id": ""})
	case scope.RosterID != "":
		b = b.Where(sq.Eq{"roster_id": scope.RosterID})
	}
	return b
}

// lockEntry creates the row if needed and locks it for the rest of the transaction.
func (l *Ledger) lockEntry(ctx context.Context, tx pgx.Tx, classID, studentID string, now time.Time) (domain.ProgressEntry, error) {
	_, err := tx.Exec(ctx, `
INSERT INTO progress_ledger (class_id, student_id, join_date, updated_at)
VALUES ($1, $2, $3, $3)
ON CONFLICT DO NOTHING`, classID, studentID, now)
	if err != nil {
		return domain.ProgressEntry{}, fmt.Errorf("init ledger entry: %w", err)
	}
	query, args, err := psql.Select(entryColumns...).
		From("progress_ledger").
		Where(sq.Eq{"class_id": classID, "student_id": studentID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return domain.ProgressEntry{}, err
	}
	return scanEntry(tx.QueryRow(ctx, query, args...))
}

func (l *Ledger) saveEntry(ctx context.Context, tx pgx.Tx, e domain.ProgressEntry) error {
	achievements, err := json.Marshal(e.Achievements)
	if err != nil {
		return err
	}
	badges, err := json.Marshal(e.Badges)
	if err != nil {
		return err
	}
	query, args, err := psql.Update("progress_ledger").
		SetMap(map[string]interface{}{
			"roster_id":          e.RosterID,
			"display_name":       e.DisplayName,
			"total_points":       e.TotalPoints,
			"level":              e.Level,
			"experience":         e.Experience,
			"current_streak":     e.CurrentStreak,
			"best_streak":        e.BestStreak,
			"questions_answered": e.QuestionsAnswered,
			"correct_answers":    e.CorrectAnswers,
			"accuracy":           e.Accuracy,
			"sessions_played":    e.SessionsPlayed,
			"achievements":       string(achievements),
			"badges":             string(badges),
			"join_date":          e.JoinDate,
			"updated_at":         e.UpdatedAt,
		}).
		Where(sq.Eq{"class_id": e.ClassID, "student_id": e.StudentID}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save ledger entry: %w", err)
	}
	return nil
}

func (l *Ledger) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanEntry(row pgx.Row) (domain.ProgressEntry, error) {
	var (
		e                    domain.ProgressEntry
		achievements, badges []byte
	)
	err := row.Scan(
		&e.ClassID, &e.StudentID, &e.RosterID, &e.DisplayName, &e.TotalPoints, &e.Level, &e.Experience,
		&e.CurrentStreak, &e.BestStreak, &e.QuestionsAnswered, &e.CorrectAnswers, &e.Accuracy,
		&e.SessionsPlayed, &achievements, &badges, &e.JoinDate, &e.UpdatedAt,
	)
	if err != nil {
		return domain.ProgressEntry{}, err
	}
	e.Achievements = make(map[string]bool)
	e.Badges = make(map[string]bool)
	if len(achievements) > 0 {
		if err := json.Unmarshal(achievements, &e.Achievements); err != nil {
			return domain.ProgressEntry{}, fmt.Errorf("decode achievements: %w", err)
		}
	}
	if len(badges) > 0 {
		if err := json.Unmarshal(badges, &e.Badges); err != nil {
			return domain.ProgressEntry{}, fmt.Errorf("decode badges: %w", err)
		}
	}
	e.JoinDate = e.JoinDate.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, nil
}
