package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/progress"
)

// LedgerStore is an in-memory progress ledger.
type LedgerStore struct {
	mu          sync.RWMutex
	clock       func() time.Time
	entries     map[ledgerKey]domain.ProgressEntry
	awards      map[awardKey]struct{}
	adjustments []domain.Adjustment
}

type ledgerKey struct {
	classID   string
	studentID string
}

type awardKey struct {
	sessionID string
	classID   string
	studentID string
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		clock:   time.Now,
		entries: make(map[ledgerKey]domain.ProgressEntry),
		awards:  make(map[awardKey]struct{}),
	}
}

func (l *LedgerStore) ApplyAward(_ context.Context, award domain.Award) (domain.ProgressEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey{classID: award.ClassID, studentID: award.StudentID}
	ak := awardKey{sessionID: award.SessionID, classID: award.ClassID, studentID: award.StudentID}
	if _, done := l.awards[ak]; done {
		return copyEntry(l.entries[key]), false, nil
	}

	now := award.AwardedAt
	if now.IsZero() {
		now = l.clock()
	}
	entry, ok := l.entries[key]
	if !ok {
		entry = progress.NewEntry(award.ClassID, award.StudentID, now)
	} else {
		entry = copyEntry(entry)
	}
	progress.Apply(&entry, award, now)

	l.entries[key] = entry
	l.awards[ak] = struct{}{}
	return copyEntry(entry), true, nil
}

func (l *LedgerStore) Adjust(_ context.Context, adj domain.Adjustment) (domain.ProgressEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := adj.At
	if now.IsZero() {
		now = l.clock()
	}
	key := ledgerKey{classID: adj.ClassID, studentID: adj.StudentID}
	entry, ok := l.entries[key]
	if !ok {
		entry = progress.NewEntry(adj.ClassID, adj.StudentID, now)
	} else {
		entry = copyEntry(entry)
	}
	if adj.RosterID != "" {
		entry.RosterID = adj.RosterID
	}
	progress.Adjust(&entry, adj.Delta, now)
	l.entries[key] = entry
	l.adjustments = append(l.adjustments, adj)
	return copyEntry(entry), nil
}

// Adjustments returns the audit trail for a student, oldest first.
func (l *LedgerStore) Adjustments(classID, studentID string) []domain.Adjustment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Adjustment
	for _, a := range l.adjustments {
		if a.ClassID == classID && a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out
}

func (l *LedgerStore) Get(_ context.Context, classID, studentID string) (domain.ProgressEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.entries[ledgerKey{classID: classID, studentID: studentID}]
	if !ok {
		return domain.ProgressEntry{}, domain.ErrNotFound
	}
	return copyEntry(entry), nil
}

func (l *LedgerStore) List(_ context.Context, scope domain.LeaderboardScope) ([]domain.ProgressEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.ProgressEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if progress.InScope(e, scope) {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return progress.Less(out[i], out[j]) })
	return out, nil
}

func (l *LedgerStore) CountAbove(_ context.Context, scope domain.LeaderboardScope, points int) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, e := range l.entries {
		if progress.InScope(e, scope) && e.TotalPoints > points {
			n++
		}
	}
	return n, nil
}

func (l *LedgerStore) DeleteOrphans(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k := range l.entries {
		if k.studentID == "" {
			delete(l.entries, k)
			n++
		}
	}
	return n, nil
}

// Seed stores an entry as-is. Used by tests and demos.
func (l *LedgerStore) Seed(e domain.ProgressEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[ledgerKey{classID: e.ClassID, studentID: e.StudentID}] = copyEntry(e)
}

func copyEntry(e domain.ProgressEntry) domain.ProgressEntry {
	e.Achievements = copySet(e.Achievements)
	e.Badges = copySet(e.Badges)
	return e
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
