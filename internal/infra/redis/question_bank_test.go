package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/infra/memory"
)

type countingLoader struct {
	memory.QuestionLoader
	calls int32
}

func (c *countingLoader) LoadQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.QuestionLoader.LoadQuestion(ctx, questionID)
}

func TestQuestionBankCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{QuestionLoader: memory.NewStaticQuestionLoader(map[string]domain.Question{
		"capital": {
			ID:            "capital",
			Text:          "Capital of France?",
			Type:          domain.QuestionMultipleChoice,
			Options:       []string{"Berlin", "Madrid", "Paris"},
			CorrectAnswer: float64(2),
			Points:        10,
		},
	})}
	bank := NewQuestionBank(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	q, err := bank.GetQuestion(ctx, "capital")
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if q.Text != "Capital of France?" || len(q.Options) != 3 {
		t.Fatalf("unexpected question %+v", q)
	}
	if !mr.Exists("live:question:capital") {
		t.Fatalf("expected question to be cached")
	}
	if ttl := mr.TTL("live:question:capital"); ttl < time.Minute || ttl > 66*time.Second {
		t.Fatalf("expected ttl with jitter, got %v", ttl)
	}

	if _, err := bank.GetQuestion(ctx, "capital"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if calls := atomic.LoadInt32(&loader.calls); calls != 1 {
		t.Fatalf("expected 1 loader call, got %d", calls)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := bank.GetQuestion(ctx, "capital"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if calls := atomic.LoadInt32(&loader.calls); calls != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", calls)
	}
}

func TestQuestionBankMissIsNotCached(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	bank := NewQuestionBank(newClient(mr), memory.NewStaticQuestionLoader(nil), time.Minute)
	if _, err := bank.GetQuestion(context.Background(), "nope"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	if mr.Exists("live:question:nope") {
		t.Fatalf("misses must not be cached")
	}
}
