package memory

import (
	"context"
	"sync"

	"live-session-engine/internal/domain"
)

// Roster is an in-memory enrollment oracle.
type Roster struct {
	mu       sync.RWMutex
	enrolled map[ledgerKey]string
	teachers map[teacherKey]struct{}
}

type teacherKey struct {
	classID      string
	instructorID string
}

func NewRoster() *Roster {
	return &Roster{
		enrolled: make(map[ledgerKey]string),
		teachers: make(map[teacherKey]struct{}),
	}
}

// AssignInstructor lets an instructor manage a class.
func (r *Roster) AssignInstructor(classID, instructorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teachers[teacherKey{classID: classID, instructorID: instructorID}] = struct{}{}
}

func (r *Roster) Teaches(_ context.Context, classID, instructorID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.teachers[teacherKey{classID: classID, instructorID: instructorID}]
	return ok, nil
}

// Enroll adds a student to a class, optionally within a roster.
func (r *Roster) Enroll(classID, studentID, rosterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enrolled[ledgerKey{classID: classID, studentID: studentID}] = rosterID
}

func (r *Roster) Enrollment(_ context.Context, classID, studentID string) (domain.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rosterID, ok := r.enrolled[ledgerKey{classID: classID, studentID: studentID}]
	if !ok {
		return domain.Enrollment{}, nil
	}
	return domain.Enrollment{Enrolled: true, RosterID: rosterID}, nil
}

// SettingsStore keeps instructor-configured settings in memory.
type SettingsStore struct {
	mu         sync.RWMutex
	visibility map[settingsKey]domain.VisibilitySettings
	points     map[string]domain.PointSettings
}

type settingsKey struct {
	scope domain.SettingsScope
	id    string
}

func NewSettingsStore() *SettingsStore {
	return &SettingsStore{
		visibility: make(map[settingsKey]domain.VisibilitySettings),
		points:     make(map[string]domain.PointSettings),
	}
}

func (s *SettingsStore) Visibility(_ context.Context, scope domain.SettingsScope, id string) (*domain.VisibilitySettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visibility[settingsKey{scope: scope, id: id}]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *SettingsStore) SaveVisibility(_ context.Context, scope domain.SettingsScope, id string, v domain.VisibilitySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visibility[settingsKey{scope: scope, id: id}] = v
	return nil
}

func (s *SettingsStore) PointSettings(_ context.Context, classID string) (*domain.PointSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.points[classID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *SettingsStore) SavePointSettings(_ context.Context, classID string, p domain.PointSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[classID] = p
	return nil
}
