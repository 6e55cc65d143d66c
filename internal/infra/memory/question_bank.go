package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"live-session-engine/internal/domain"
)

// QuestionLoader fetches question content from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// QuestionBank caches questions with TTL to avoid repeated backing-store hits at broadcast time.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestion),
	}
}

func (b *QuestionBank) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if q, ok := b.cached(questionID, b.clock()); ok {
		return q, nil
	}

	result, err, _ := b.sf.Do(questionID, func() (interface{}, error) {
		now := b.clock()
		if q, ok := b.cached(questionID, now); ok {
			return q, nil
		}

		q, err := b.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		b.mu.Lock()
		b.cache[questionID] = cachedQuestion{
			question:  q,
			expiresAt: now.Add(b.ttlWithJitterLocked()),
		}
		b.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (b *QuestionBank) cached(questionID string, now time.Time) (domain.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if entry, ok := b.cache[questionID]; ok && entry.expiresAt.After(now) {
		return entry.question, true
	}
	return domain.Question{}, false
}

// ttlWithJitterLocked adds up to 10% jitter to spread expirations. Caller holds b.mu.
func (b *QuestionBank) ttlWithJitterLocked() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by an in-memory map (useful for tests/demos).
type StaticQuestionLoader struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
}

func NewStaticQuestionLoader(questions map[string]domain.Question) *StaticQuestionLoader {
	if questions == nil {
		questions = make(map[string]domain.Question)
	}
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestion(_ context.Context, questionID string) (domain.Question, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if q, ok := l.questions[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

// Put adds or replaces a question.
func (l *StaticQuestionLoader) Put(q domain.Question) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.questions[q.ID] = q
}
