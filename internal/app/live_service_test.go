package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"live-session-engine/internal/app"
	"live-session-engine/internal/domain"
	"live-session-engine/internal/infra/memory"
)

var (
	instructor = domain.Caller{ID: "inst-1", Role: domain.RoleInstructor}
	otherInst  = domain.Caller{ID: "inst-2", Role: domain.RoleInstructor}
	ada        = domain.Caller{ID: "stu-ada", Role: domain.RoleStudent}
	grace      = domain.Caller{ID: "stu-grace", Role: domain.RoleStudent}
	guest      = domain.Caller{Role: domain.RoleAnonymous}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	service  *app.LiveService
	sessions *memory.SessionStore
	ledger   *memory.LedgerStore
	roster   *memory.Roster
	settings *memory.SettingsStore
	clock    *testClock
}

func newHarness(t *testing.T, roster app.Roster) *harness {
	t.Helper()
	h := &harness{
		sessions: memory.NewSessionStore(),
		ledger:   memory.NewLedgerStore(),
		roster:   memory.NewRoster(),
		settings: memory.NewSettingsStore(),
		clock:    &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
	}
	h.roster.Enroll("class-1", ada.ID, "period-1")
	h.roster.Enroll("class-1", grace.ID, "")
	h.roster.AssignInstructor("class-1", instructor.ID)
	if roster == nil {
		roster = h.roster
	}

	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(map[string]domain.Question{
		"capital": {
			ID:               "capital",
			Text:             "Capital of France?",
			Type:             domain.QuestionMultipleChoice,
			Options:          []string{"Berlin", "Madrid", "Paris", "Rome"},
			CorrectAnswer:    2,
			TimeLimitSeconds: 30,
		},
		"sky": {
			ID:            "sky",
			Text:          "The sky is blue",
			Type:          domain.QuestionTrueFalse,
			CorrectAnswer: "true",
		},
	}), time.Minute)

	n := 0
	h.service = app.NewLiveService(h.sessions, h.ledger, bank, roster, h.settings,
		app.WithClock(h.clock.Now),
		app.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	return h
}

func (h *harness) create(t *testing.T, code, classID string) *domain.Session {
	t.Helper()
	sess, err := h.service.CreateSession(context.Background(), instructor, app.CreateSessionRequest{Code: code, Title: "Geography", ClassID: classID})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func (h *harness) broadcast(t *testing.T, sessionID, questionID string) {
	t.Helper()
	if _, err := h.service.BroadcastQuestion(context.Background(), instructor, sessionID, app.BroadcastRequest{QuestionID: questionID}); err != nil {
		t.Fatalf("broadcast %s: %v", questionID, err)
	}
}

func (h *harness) join(t *testing.T, caller domain.Caller, code, name string) string {
	t.Helper()
	res, err := h.service.Join(context.Background(), caller, code, app.JoinRequest{DisplayName: name, DeviceFingerprint: "dev-" + name})
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return res.Participant.ParticipantID
}

func (h *harness) submit(t *testing.T, caller domain.Caller, code, pid, qid string, answer any) bool {
	t.Helper()
	fb, err := h.service.SubmitResponse(context.Background(), caller, code, app.SubmitRequest{ParticipantID: pid, QuestionID: qid, Answer: answer})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return fb.Correct
}

func TestLetterAnswerEarnsSpeedBonus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "abc123", "class-1")
	p1 := h.join(t, ada, "ABC123", "Ada")
	h.broadcast(t, sess.ID, "capital")

	h.clock.Advance(3 * time.Second)
	fb, err := h.service.SubmitResponse(ctx, ada, "abc123", app.SubmitRequest{ParticipantID: p1, QuestionID: "capital", Answer: "C"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !fb.Correct || fb.Points == nil || *fb.Points != 11 {
		t.Fatalf("expected correct with 11 points, got %+v", fb)
	}

	if _, err := h.service.EndSession(ctx, instructor, sess.ID); err != nil {
		t.Fatalf("end session: %v", err)
	}
	entry, err := h.ledger.Get(ctx, "class-1", ada.ID)
	if err != nil {
		t.Fatalf("ledger entry: %v", err)
	}
	if entry.TotalPoints != 11 || entry.CorrectAnswers != 1 || entry.RosterID != "period-1" {
		t.Fatalf("unexpected ledger entry %+v", entry)
	}
}

func TestExtendTimerAddsToRemaining(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "TIMER1", "")
	pid := h.join(t, guest, "TIMER1", "Guest")
	h.broadcast(t, sess.ID, "capital")

	h.clock.Advance(25 * time.Second)
	if _, err := h.service.ExtendTimer(ctx, instructor, sess.ID, 15); err != nil {
		t.Fatalf("extend: %v", err)
	}
	view, err := h.service.StudentState(ctx, guest, "TIMER1", pid)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if view.CurrentQuestion == nil || view.CurrentQuestion.RemainingSeconds != 20 {
		t.Fatalf("expected 20s remaining, got %+v", view.CurrentQuestion)
	}
	if got := view.CurrentQuestion.Options[2]; got.Label != "C" || got.Text != "Paris" {
		t.Fatalf("unexpected option label %+v", got)
	}
}

func TestAnonymousParticipantGetsFeedbackButNoLedgerEntry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "ANON01", "class-1")
	pid := h.join(t, guest, "ANON01", "Guest")
	h.broadcast(t, sess.ID, "capital")

	if !h.submit(t, guest, "ANON01", pid, "capital", 2) {
		t.Fatalf("expected correct feedback")
	}
	if _, err := h.service.EndSession(ctx, instructor, sess.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	entries, _ := h.ledger.List(ctx, domain.LeaderboardScope{ClassID: "class-1"})
	if len(entries) != 0 {
		t.Fatalf("expected no ledger entries, got %+v", entries)
	}
}

func TestEndSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "TWICE1", "class-1")
	pid := h.join(t, ada, "TWICE1", "Ada")
	h.broadcast(t, sess.ID, "capital")
	h.submit(t, ada, "TWICE1", pid, "capital", "Paris")

	first, err := h.service.EndSession(ctx, instructor, sess.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !first.Scored || first.Status != domain.SessionEnded {
		t.Fatalf("expected ended and scored, got %+v", first)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.service.EndSession(ctx, instructor, sess.ID); err != nil {
				t.Errorf("duplicate end: %v", err)
			}
		}()
	}
	wg.Wait()

	entry, _ := h.ledger.Get(ctx, "class-1", ada.ID)
	if entry.TotalPoints != 11 || entry.SessionsPlayed != 1 {
		t.Fatalf("duplicate end changed ledger: %+v", entry)
	}
}

func TestConcurrentFirstEndsAwardOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "RACE01", "class-1")
	pid := h.join(t, ada, "RACE01", "Ada")
	h.broadcast(t, sess.ID, "capital")
	h.submit(t, ada, "RACE01", pid, "capital", "C")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.service.EndSession(ctx, instructor, sess.ID)
		}()
	}
	wg.Wait()

	entry, _ := h.ledger.Get(ctx, "class-1", ada.ID)
	if entry.TotalPoints != 11 || entry.SessionsPlayed != 1 {
		t.Fatalf("racing ends double-awarded: %+v", entry)
	}
}

func TestNothingMutatesAfterEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "DONE01", "")
	pid := h.join(t, guest, "DONE01", "Guest")
	h.broadcast(t, sess.ID, "capital")
	if _, err := h.service.EndSession(ctx, instructor, sess.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	if _, err := h.service.BroadcastQuestion(ctx, instructor, sess.ID, app.BroadcastRequest{QuestionID: "sky"}); !errors.Is(err, domain.ErrSessionEnded) {
		t.Fatalf("broadcast after end: expected ErrSessionEnded, got %v", err)
	}
	if _, err := h.service.ExtendTimer(ctx, instructor, sess.ID, 10); !errors.Is(err, domain.ErrSessionEnded) {
		t.Fatalf("extend after end: expected ErrSessionEnded, got %v", err)
	}
	if _, err := h.service.Join(ctx, guest, "DONE01", app.JoinRequest{DisplayName: "Late"}); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("join after end: expected ErrSessionClosed, got %v", err)
	}
	if _, err := h.service.SubmitResponse(ctx, guest, "DONE01", app.SubmitRequest{ParticipantID: pid, QuestionID: "capital", Answer: 2}); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("submit after end: expected ErrSessionClosed, got %v", err)
	}

	got, _ := h.service.GetSession(ctx, instructor, sess.ID)
	if got.Status != domain.SessionEnded || got.CurrentQuestion != nil {
		t.Fatalf("unexpected ended session %+v", got)
	}
}

func TestOwnershipAndRoles(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if _, err := h.service.CreateSession(ctx, ada, app.CreateSessionRequest{Code: "X1"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("student create: expected ErrUnauthorized, got %v", err)
	}
	sess := h.create(t, "OWNED1", "")
	if _, err := h.service.BroadcastQuestion(ctx, otherInst, sess.ID, app.BroadcastRequest{QuestionID: "capital"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("foreign broadcast: expected ErrUnauthorized, got %v", err)
	}
	if _, err := h.service.CreateSession(ctx, instructor, app.CreateSessionRequest{Code: "owned1"}); !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("duplicate code: expected ErrDuplicateCode, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "VALID1", "")
	pid := h.join(t, ada, "VALID1", "Ada")
	h.broadcast(t, sess.ID, "sky")

	if _, err := h.service.SubmitResponse(ctx, ada, "VALID1", app.SubmitRequest{ParticipantID: pid, QuestionID: "capital", Answer: 2}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	if _, err := h.service.SubmitResponse(ctx, ada, "VALID1", app.SubmitRequest{ParticipantID: "ghost", QuestionID: "sky", Answer: true}); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
	if _, err := h.service.SubmitResponse(ctx, grace, "VALID1", app.SubmitRequest{ParticipantID: pid, QuestionID: "sky", Answer: true}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for someone else's record, got %v", err)
	}

	fb, err := h.service.SubmitResponse(ctx, ada, "VALID1", app.SubmitRequest{ParticipantID: pid, QuestionID: "sky", Answer: "maybe"})
	if err != nil {
		t.Fatalf("malformed answer must not fail: %v", err)
	}
	if fb.Correct || !fb.Accepted {
		t.Fatalf("expected accepted incorrect answer, got %+v", fb)
	}
}

func TestKickedParticipantIsLockedOut(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "KICK01", "")
	pid := h.join(t, ada, "KICK01", "Ada")
	h.broadcast(t, sess.ID, "sky")

	if _, err := h.service.KickParticipant(ctx, instructor, sess.ID, pid, "disruptive"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if _, err := h.service.SubmitResponse(ctx, ada, "KICK01", app.SubmitRequest{ParticipantID: pid, QuestionID: "sky", Answer: true}); !errors.Is(err, domain.ErrParticipantKicked) {
		t.Fatalf("expected ErrParticipantKicked, got %v", err)
	}
	if _, err := h.service.Join(ctx, ada, "KICK01", app.JoinRequest{DisplayName: "Ada"}); !errors.Is(err, domain.ErrParticipantKicked) {
		t.Fatalf("expected rejoin refused, got %v", err)
	}
}

func TestPollSweepsIdleParticipants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "SWEEP1", "")
	idle := h.join(t, ada, "SWEEP1", "Ada")
	busy := h.join(t, grace, "SWEEP1", "Grace")

	h.clock.Advance(4 * time.Minute)
	if _, err := h.service.StudentState(ctx, grace, "SWEEP1", busy); err != nil {
		t.Fatalf("poll: %v", err)
	}
	h.clock.Advance(2 * time.Minute)
	if _, err := h.service.StudentState(ctx, grace, "SWEEP1", busy); err != nil {
		t.Fatalf("poll: %v", err)
	}

	view, err := h.service.InstructorState(ctx, instructor, sess.ID)
	if err != nil {
		t.Fatalf("instructor view: %v", err)
	}
	statuses := map[string]domain.ParticipantStatus{}
	for _, p := range view.Participants {
		statuses[p.ParticipantID] = p.Status
	}
	if statuses[idle] != domain.ParticipantInactive || statuses[busy] != domain.ParticipantActive {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
	if view.StatusCounts[domain.ParticipantInactive] != 1 {
		t.Fatalf("expected one inactive, got %+v", view.StatusCounts)
	}
}

func TestEndQuestionSummaryAndInstructorView(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "SUMM01", "")
	p1 := h.join(t, ada, "SUMM01", "Ada")
	p2 := h.join(t, grace, "SUMM01", "Grace")
	h.broadcast(t, sess.ID, "capital")
	h.submit(t, ada, "SUMM01", p1, "capital", "c")
	h.submit(t, grace, "SUMM01", p2, "capital", "A")

	view, err := h.service.InstructorState(ctx, instructor, sess.ID)
	if err != nil {
		t.Fatalf("instructor view: %v", err)
	}
	if view.CurrentQuestion == nil || view.CurrentQuestion.Responses != 2 || view.CurrentQuestion.Distribution["C"] != 1 {
		t.Fatalf("unexpected live question view %+v", view.CurrentQuestion)
	}

	sum, err := h.service.EndQuestion(ctx, instructor, sess.ID)
	if err != nil {
		t.Fatalf("end question: %v", err)
	}
	if sum == nil || sum.Correct != 1 || sum.Responses != 2 || sum.CorrectAnswer != "C" {
		t.Fatalf("unexpected summary %+v", sum)
	}
	again, err := h.service.EndQuestion(ctx, instructor, sess.ID)
	if err != nil || again != nil {
		t.Fatalf("second end question should be a no-op, got %+v, %v", again, err)
	}

	got, _ := h.service.GetSession(ctx, instructor, sess.ID)
	if got.Status != domain.SessionActive {
		t.Fatalf("end question must not change status, got %s", got.Status)
	}
}

func TestUnenrolledStudentIsSkipped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	outsider := domain.Caller{ID: "stu-outsider", Role: domain.RoleStudent}
	sess := h.create(t, "ROSTER", "class-1")
	pid := h.join(t, outsider, "ROSTER", "Outsider")
	h.broadcast(t, sess.ID, "capital")
	h.submit(t, outsider, "ROSTER", pid, "capital", 2)

	ended, err := h.service.EndSession(ctx, instructor, sess.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !ended.Scored {
		t.Fatalf("skips are not failures; session should be scored")
	}
	if _, err := h.ledger.Get(ctx, "class-1", outsider.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no ledger entry, got %v", err)
	}
}

type flakyRoster struct {
	app.Roster
	mu      sync.Mutex
	failFor string
}

func (r *flakyRoster) Enrollment(ctx context.Context, classID, studentID string) (domain.Enrollment, error) {
	r.mu.Lock()
	fail := studentID == r.failFor
	r.mu.Unlock()
	if fail {
		return domain.Enrollment{}, errors.New("roster unavailable")
	}
	return r.Roster.Enrollment(ctx, classID, studentID)
}

func TestFinalizationIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	base := memory.NewRoster()
	base.Enroll("class-1", ada.ID, "")
	base.Enroll("class-1", grace.ID, "")
	roster := &flakyRoster{Roster: base, failFor: grace.ID}
	h := newHarness(t, roster)

	sess := h.create(t, "FLAKY1", "class-1")
	p1 := h.join(t, ada, "FLAKY1", "Ada")
	p2 := h.join(t, grace, "FLAKY1", "Grace")
	h.broadcast(t, sess.ID, "capital")
	h.submit(t, ada, "FLAKY1", p1, "capital", 2)
	h.submit(t, grace, "FLAKY1", p2, "capital", 2)

	ended, err := h.service.EndSession(ctx, instructor, sess.ID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Scored {
		t.Fatalf("session with a failed ledger write must stay unscored")
	}
	if _, err := h.ledger.Get(ctx, "class-1", ada.ID); err != nil {
		t.Fatalf("ada should be awarded despite grace's failure: %v", err)
	}

	roster.mu.Lock()
	roster.failFor = ""
	roster.mu.Unlock()

	ended, err = h.service.EndSession(ctx, instructor, sess.ID)
	if err != nil || !ended.Scored {
		t.Fatalf("retry should complete scoring: %+v %v", ended, err)
	}
	adaEntry, _ := h.ledger.Get(ctx, "class-1", ada.ID)
	graceEntry, _ := h.ledger.Get(ctx, "class-1", grace.ID)
	if adaEntry.TotalPoints != 11 || graceEntry.TotalPoints != 11 {
		t.Fatalf("retry must not double-award: ada=%d grace=%d", adaEntry.TotalPoints, graceEntry.TotalPoints)
	}
}

func TestLeaderboardTieBrokenByAccuracy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	joined := h.clock.Now()
	h.ledger.Seed(domain.ProgressEntry{ClassID: "class-1", StudentID: ada.ID, DisplayName: "Ada", TotalPoints: 100, Accuracy: 0.6, JoinDate: joined})
	h.ledger.Seed(domain.ProgressEntry{ClassID: "class-1", StudentID: grace.ID, DisplayName: "Grace", TotalPoints: 100, Accuracy: 0.9, JoinDate: joined.Add(time.Hour)})

	lb, err := h.service.Leaderboard(ctx, ada, domain.LeaderboardScope{ClassID: "class-1"})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].StudentID != grace.ID {
		t.Fatalf("expected grace first, got %+v", lb.Entries)
	}
	if !lb.Entries[1].IsSelf {
		t.Fatalf("expected caller row marked")
	}

	outsider := domain.Caller{ID: "stu-outsider", Role: domain.RoleStudent}
	if _, err := h.service.Leaderboard(ctx, outsider, domain.LeaderboardScope{ClassID: "class-1"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unenrolled student refused, got %v", err)
	}
}

func TestLeaderboardRespectsClassVisibility(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.ledger.Seed(domain.ProgressEntry{ClassID: "class-1", StudentID: ada.ID, DisplayName: "Ada", TotalPoints: 10})
	h.ledger.Seed(domain.ProgressEntry{ClassID: "class-1", StudentID: grace.ID, DisplayName: "Grace", TotalPoints: 20})

	s := domain.DefaultVisibilitySettings()
	s.AnonymizeStudents = true
	if err := h.service.UpdateVisibility(ctx, instructor, domain.ScopeClass, "class-1", s); err != nil {
		t.Fatalf("update visibility: %v", err)
	}

	lb, _ := h.service.Leaderboard(ctx, ada, domain.LeaderboardScope{ClassID: "class-1"})
	if lb.Entries[0].DisplayName == "Grace" || lb.Entries[0].StudentID != "" {
		t.Fatalf("expected anonymized row, got %+v", lb.Entries[0])
	}
	full, _ := h.service.Leaderboard(ctx, instructor, domain.LeaderboardScope{ClassID: "class-1"})
	if full.Entries[0].DisplayName != "Grace" {
		t.Fatalf("instructor must see names, got %+v", full.Entries[0])
	}
}

func TestMyProgressAndAdjust(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	view, err := h.service.MyProgress(ctx, ada, "class-1")
	if err != nil {
		t.Fatalf("my progress: %v", err)
	}
	if view.Entry.Level != 1 || view.Rank != 1 || view.Curve == nil || view.Curve.NextLevelThreshold != 100 {
		t.Fatalf("unexpected fresh view %+v", view)
	}

	if _, err := h.service.AdjustPoints(ctx, ada, "class-1", ada.ID, 50, "self-serve"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("students cannot adjust, got %v", err)
	}
	entry, err := h.service.AdjustPoints(ctx, instructor, "class-1", ada.ID, 150, "bonus project")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if entry.TotalPoints != 150 || entry.Level != 2 || !entry.Achievements["century"] {
		t.Fatalf("unexpected adjusted entry %+v", entry)
	}

	view, _ = h.service.MyProgress(ctx, ada, "class-1")
	if view.Curve.Experience != 50 || view.Curve.PointsToNextLevel != 250 {
		t.Fatalf("unexpected curve %+v", view.Curve)
	}
	if _, err := h.service.MyProgress(ctx, guest, "class-1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("anonymous callers have no progress, got %v", err)
	}
}

func TestAdjustRequiresEnrollment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	if _, err := h.service.AdjustPoints(ctx, instructor, "class-1", "stu-typo", 50, "bonus"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unenrolled student, got %v", err)
	}
	lb, err := h.service.Leaderboard(ctx, instructor, domain.LeaderboardScope{ClassID: "class-1"})
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 0 {
		t.Fatalf("expected no ledger rows, got %+v", lb.Entries)
	}

	entry, err := h.service.AdjustPoints(ctx, instructor, "class-1", ada.ID, 20, "participation")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if entry.RosterID != "period-1" {
		t.Fatalf("expected roster period-1 on new entry, got %q", entry.RosterID)
	}
	period, _ := h.service.Leaderboard(ctx, instructor, domain.LeaderboardScope{ClassID: "class-1", RosterID: "period-1"})
	if len(period.Entries) != 1 || period.Entries[0].StudentID != ada.ID {
		t.Fatalf("expected ada in period-1, got %+v", period.Entries)
	}
	unassigned, _ := h.service.Leaderboard(ctx, instructor, domain.LeaderboardScope{ClassID: "class-1", Unassigned: true})
	if len(unassigned.Entries) != 0 {
		t.Fatalf("expected no unassigned rows, got %+v", unassigned.Entries)
	}
}

func TestClassManagementRequiresTeaching(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)

	ps := domain.DefaultPointSettings()
	ps.PointsPerCorrect = 500
	if err := h.service.UpdatePointSettings(ctx, otherInst, "class-1", ps); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for point settings, got %v", err)
	}
	if got := h.service.PointSettings(ctx, "class-1"); got.PointsPerCorrect == 500 {
		t.Fatalf("point settings must be unchanged, got %+v", got)
	}
	if err := h.service.UpdateVisibility(ctx, otherInst, domain.ScopeClass, "class-1", domain.DefaultVisibilitySettings()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for class visibility, got %v", err)
	}
	if _, err := h.service.AdjustPoints(ctx, otherInst, "class-1", ada.ID, 50, "bonus"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for adjustment, got %v", err)
	}
	if _, err := h.ledger.Get(ctx, "class-1", ada.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no ledger entry, got %v", err)
	}

	if err := h.service.UpdatePointSettings(ctx, instructor, "class-1", ps); err != nil {
		t.Fatalf("assigned instructor update: %v", err)
	}
}

func TestClassPointSettingsApply(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	ps := domain.DefaultPointSettings()
	ps.PointsPerCorrect = 20
	ps.SpeedBonus = 0
	if err := h.service.UpdatePointSettings(ctx, instructor, "class-1", ps); err != nil {
		t.Fatalf("update points: %v", err)
	}

	sess := h.create(t, "POINTS", "class-1")
	pid := h.join(t, ada, "POINTS", "Ada")
	h.broadcast(t, sess.ID, "sky")
	h.submit(t, ada, "POINTS", pid, "sky", true)
	if _, err := h.service.EndSession(ctx, instructor, sess.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	entry, _ := h.ledger.Get(ctx, "class-1", ada.ID)
	if entry.TotalPoints != 20 {
		t.Fatalf("expected class point settings, got %d", entry.TotalPoints)
	}
}

func TestRejoinReusesParticipant(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "REJOIN", "")
	first := h.join(t, ada, "REJOIN", "Ada")
	if err := h.service.Leave(ctx, ada, "REJOIN", first); err != nil {
		t.Fatalf("leave: %v", err)
	}
	second := h.join(t, ada, "REJOIN", "Ada")
	if first != second {
		t.Fatalf("expected same participant, got %s and %s", first, second)
	}
	got, _ := h.service.GetSession(ctx, instructor, sess.ID)
	if got.JoinCount != 2 || len(got.Participants) != 1 {
		t.Fatalf("unexpected join bookkeeping: count=%d participants=%d", got.JoinCount, len(got.Participants))
	}
}

func TestSweepStaleAcrossSessions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	sess := h.create(t, "BGSWP1", "")
	h.join(t, guest, "BGSWP1", "Guest")
	h.clock.Advance(10 * time.Minute)

	n, err := h.service.SweepStale(ctx)
	if err != nil || n != 1 {
		t.Fatalf("sweep: n=%d err=%v", n, err)
	}
	got, _ := h.service.GetSession(ctx, instructor, sess.ID)
	for _, p := range got.Participants {
		if p.Status != domain.ParticipantInactive {
			t.Fatalf("expected inactive, got %s", p.Status)
		}
	}
}
