package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-session-engine/internal/domain"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	sess := domain.NewSession("s1", "abc123", "Quiz", "inst", "", t0)
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, domain.NewSession("s2", " ABC123 ", "Other", "inst", "", t0)); !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}

	got, err := store.GetByCode(ctx, "Abc123")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if got.ID != "s1" {
		t.Fatalf("expected s1, got %s", got.ID)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStoreUpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	if err := store.Create(ctx, domain.NewSession("s1", "ABC123", "Quiz", "inst", "", t0)); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "s1", func(s *domain.Session) error {
				s.JoinCount++
				return nil
			})
			if err != nil {
				t.Errorf("update: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := store.Get(ctx, "s1")
	if got.JoinCount != 50 {
		t.Fatalf("expected 50 joins, got %d", got.JoinCount)
	}
}

func TestSessionStoreFailedUpdateLeavesDocument(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	_ = store.Create(ctx, domain.NewSession("s1", "ABC123", "Quiz", "inst", "", t0))

	boom := errors.New("boom")
	_, err := store.Update(ctx, "s1", func(s *domain.Session) error {
		s.Title = "changed"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	got, _ := store.Get(ctx, "s1")
	if got.Title != "Quiz" {
		t.Fatalf("document changed by failed update: %q", got.Title)
	}
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	_ = store.Create(ctx, domain.NewSession("s1", "ABC123", "Quiz", "inst", "", t0))

	got, _ := store.Get(ctx, "s1")
	got.Title = "mutated"
	again, _ := store.Get(ctx, "s1")
	if again.Title != "Quiz" {
		t.Fatalf("store shares state with caller")
	}
}

func TestSessionStoreResponsesAndActivity(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	_ = store.Create(ctx, domain.NewSession("s1", "ABC123", "Quiz", "inst", "", t0))

	r := domain.Response{ParticipantID: "p1", QuestionID: "q1", Answer: domain.IndexAnswer(1), SubmittedAt: t0}
	if err := store.AppendResponse(ctx, "s1", r, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	rejected := errors.New("closed")
	if err := store.AppendResponse(ctx, "s1", r, func(*domain.Session) error { return rejected }); !errors.Is(err, rejected) {
		t.Fatalf("expected check error, got %v", err)
	}
	got, _ := store.Responses(ctx, "s1")
	if len(got) != 1 {
		t.Fatalf("expected 1 response, got %d", len(got))
	}

	_ = store.Touch(ctx, "s1", "p1", t0.Add(time.Minute))
	_ = store.Touch(ctx, "s1", "p1", t0)
	marks, _ := store.Activity(ctx, "s1")
	if !marks["p1"].Equal(t0.Add(time.Minute)) {
		t.Fatalf("activity moved backward: %v", marks["p1"])
	}
}

func TestSessionStoreListLive(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	_ = store.Create(ctx, domain.NewSession("s1", "A1", "Quiz", "inst", "", t0))
	_ = store.Create(ctx, domain.NewSession("s2", "A2", "Quiz", "inst", "", t0))
	_, _ = store.Update(ctx, "s2", func(s *domain.Session) error {
		s.End(t0)
		return nil
	})

	ids, _ := store.ListLive(ctx)
	if len(ids) != 1 || ids[0] != "s1" {
		t.Fatalf("expected only s1 live, got %v", ids)
	}
}
