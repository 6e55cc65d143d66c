package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// NormalizeCode uppercases and trims a human-entered session code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NewSession builds a waiting session.
func NewSession(id, code, title, instructorID, classID string, now time.Time) *Session {
	return &Session{
		ID:            id,
		Code:          NormalizeCode(code),
		Title:         strings.TrimSpace(title),
		InstructorID:  instructorID,
		ClassID:       strings.TrimSpace(classID),
		Status:        SessionWaiting,
		QuestionsSent: []QuestionSnapshot{},
		Participants:  make(map[string]*Participant),
		CreatedAt:     now,
	}
}

// OwnedBy reports whether the caller is the owning instructor.
func (s *Session) OwnedBy(c Caller) bool {
	return c.IsInstructor() && c.ID == s.InstructorID
}

func (s *Session) Ended() bool { return s.Status == SessionEnded }

// Gamified reports whether results of this session feed the progress ledger.
func (s *Session) Gamified() bool { return s.ClassID != "" }

// Broadcast makes snap the live question. waiting -> active on the first broadcast.
func (s *Session) Broadcast(snap QuestionSnapshot, now time.Time) error {
	if s.Ended() {
		return ErrSessionEnded
	}
	snap.SentAt = now
	snap.Options = append([]string(nil), snap.Options...)
	if s.Status == SessionWaiting {
		s.Status = SessionActive
		started := now
		s.StartedAt = &started
	}
	s.QuestionsSent = append(s.QuestionsSent, snap)
	s.CurrentQuestion = &LiveQuestion{QuestionSnapshot: snap, StartedAt: now}
	return nil
}

// EndQuestion clears the live question and returns what was live, if anything.
func (s *Session) EndQuestion() (*LiveQuestion, error) {
	if s.Ended() {
		return nil, ErrSessionEnded
	}
	prev := s.CurrentQuestion
	s.CurrentQuestion = nil
	return prev, nil
}

// ExtendTimer adds delta seconds to the live question's limit.
func (s *Session) ExtendTimer(deltaSeconds int) error {
	if s.Ended() {
		return ErrSessionEnded
	}
	if deltaSeconds <= 0 {
		return fmt.Errorf("%w: extension must be positive", ErrInvalidRequest)
	}
	if s.CurrentQuestion == nil {
		return ErrNoActiveQuestion
	}
	s.CurrentQuestion.TimeLimitSeconds += deltaSeconds
	return nil
}

// End moves the session to its terminal state. It reports false if it was already ended.
func (s *Session) End(now time.Time) bool {
	if s.Ended() {
		return false
	}
	s.Status = SessionEnded
	s.CurrentQuestion = nil
	ended := now
	s.EndedAt = &ended
	return true
}

// Snapshot returns the snapshot a response to questionID was scored against:
// the latest broadcast of that question sent no later than at.
func (s *Session) Snapshot(questionID string, at time.Time) (QuestionSnapshot, bool) {
	var (
		found QuestionSnapshot
		ok    bool
	)
	for _, q := range s.QuestionsSent {
		if q.QuestionID != questionID {
			continue
		}
		if !ok || !q.SentAt.After(at) {
			found, ok = q, true
		}
	}
	return found, ok
}

// WasSent reports whether questionID appears in the broadcast log.
func (s *Session) WasSent(questionID string) bool {
	_, ok := s.Snapshot(questionID, time.Time{})
	return ok
}

// JoinRequest describes an incoming join.
type JoinRequest struct {
	ParticipantID     string
	StudentID         string
	DisplayName       string
	DeviceFingerprint string
}

// Join attaches a participant, reusing an earlier record for the same identity when one exists.
func (s *Session) Join(req JoinRequest, newID func() string, now time.Time) (*Participant, error) {
	if s.Ended() {
		return nil, ErrSessionClosed
	}
	if s.Participants == nil {
		s.Participants = make(map[string]*Participant)
	}

	p := s.findReturning(req)
	if p != nil {
		if p.Status == ParticipantKicked {
			return nil, ErrParticipantKicked
		}
	} else {
		p = &Participant{
			ParticipantID:     newID(),
			StudentID:         req.StudentID,
			DeviceFingerprint: req.DeviceFingerprint,
			JoinedAt:          now,
		}
		s.Participants[p.ParticipantID] = p
	}

	if name := strings.TrimSpace(req.DisplayName); name != "" {
		p.DisplayName = name
	}
	if p.DisplayName == "" {
		p.DisplayName = fmt.Sprintf("Guest %d", len(s.Participants))
	}
	if p.DeviceFingerprint == "" {
		p.DeviceFingerprint = req.DeviceFingerprint
	}
	p.Status = ParticipantActive
	p.LastActivityAt = now
	p.LeftAt = nil
	s.JoinCount++
	return p, nil
}

func (s *Session) findReturning(req JoinRequest) *Participant {
	if req.ParticipantID != "" {
		if p, ok := s.Participants[req.ParticipantID]; ok {
			if p.StudentID == req.StudentID {
				return p
			}
		}
	}
	if req.StudentID != "" {
		var match *Participant
		for _, p := range s.sortedParticipants() {
			if p.StudentID == req.StudentID {
				// prefer the active record if several exist
				if match == nil || p.Status == ParticipantActive {
					match = p
				}
			}
		}
		return match
	}
	if req.DeviceFingerprint != "" {
		for _, p := range s.sortedParticipants() {
			if p.Anonymous() && p.DeviceFingerprint == req.DeviceFingerprint {
				return p
			}
		}
	}
	return nil
}

// Leave marks a participant as having left.
func (s *Session) Leave(participantID string, now time.Time) error {
	if s.Ended() {
		return ErrSessionClosed
	}
	p, ok := s.Participants[participantID]
	if !ok {
		return ErrParticipantNotFound
	}
	if p.Status == ParticipantKicked {
		return nil
	}
	p.Status = ParticipantLeft
	left := now
	p.LeftAt = &left
	return nil
}

// Kick removes a participant from play. The record is kept for attendance stats.
func (s *Session) Kick(participantID, reason string, now time.Time) error {
	if s.Ended() {
		return ErrSessionEnded
	}
	p, ok := s.Participants[participantID]
	if !ok {
		return ErrParticipantNotFound
	}
	p.Status = ParticipantKicked
	p.KickReason = strings.TrimSpace(reason)
	left := now
	p.LeftAt = &left
	return nil
}

// Participant returns the participant or ErrParticipantNotFound.
func (s *Session) Participant(participantID string) (*Participant, error) {
	p, ok := s.Participants[participantID]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	return p, nil
}

// ApplyActivity folds out-of-band activity marks into LastActivityAt. Marks never move time backward.
func (s *Session) ApplyActivity(activity map[string]time.Time) {
	for id, at := range activity {
		if p, ok := s.Participants[id]; ok && at.After(p.LastActivityAt) {
			p.LastActivityAt = at
		}
	}
}

// StaleParticipants lists active participants idle for longer than threshold.
func (s *Session) StaleParticipants(now time.Time, threshold time.Duration) []string {
	if threshold <= 0 {
		return nil
	}
	cutoff := now.Add(-threshold)
	var ids []string
	for _, p := range s.sortedParticipants() {
		if p.Status == ParticipantActive && p.LastActivityAt.Before(cutoff) {
			ids = append(ids, p.ParticipantID)
		}
	}
	return ids
}

// SweepStale marks idle active participants inactive and returns how many changed.
func (s *Session) SweepStale(now time.Time, threshold time.Duration) int {
	stale := s.StaleParticipants(now, threshold)
	for _, id := range stale {
		p := s.Participants[id]
		p.Status = ParticipantInactive
		left := now
		p.LeftAt = &left
	}
	return len(stale)
}

// SortedParticipants returns participants ordered by join time then id.
func (s *Session) SortedParticipants() []Participant {
	ps := s.sortedParticipants()
	out := make([]Participant, 0, len(ps))
	for _, p := range ps {
		out = append(out, *p)
	}
	return out
}

func (s *Session) sortedParticipants() []*Participant {
	ps := make([]*Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
			return ps[i].JoinedAt.Before(ps[j].JoinedAt)
		}
		return ps[i].ParticipantID < ps[j].ParticipantID
	})
	return ps
}

// CountByStatus tallies participants per status.
func (s *Session) CountByStatus() map[ParticipantStatus]int {
	counts := make(map[ParticipantStatus]int, 4)
	for _, p := range s.Participants {
		counts[p.Status]++
	}
	return counts
}

// Clone returns a deep copy so stores can hand out snapshots readers cannot mutate.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.CurrentQuestion != nil {
		cq := *s.CurrentQuestion
		cq.Options = append([]string(nil), s.CurrentQuestion.Options...)
		c.CurrentQuestion = &cq
	}
	c.QuestionsSent = make([]QuestionSnapshot, len(s.QuestionsSent))
	for i, q := range s.QuestionsSent {
		q.Options = append([]string(nil), q.Options...)
		c.QuestionsSent[i] = q
	}
	c.Participants = make(map[string]*Participant, len(s.Participants))
	for id, p := range s.Participants {
		cp := *p
		if p.LeftAt != nil {
			left := *p.LeftAt
			cp.LeftAt = &left
		}
		c.Participants[id] = &cp
	}
	c.StartedAt = copyTime(s.StartedAt)
	c.EndedAt = copyTime(s.EndedAt)
	c.ScoredAt = copyTime(s.ScoredAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
