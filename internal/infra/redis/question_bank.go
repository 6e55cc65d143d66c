package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"live-session-engine/internal/domain"
	"live-session-engine/internal/infra/memory"
)

// QuestionBank caches question content in Redis so every instance shares one warm copy.
type QuestionBank struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if q, ok, err := b.cached(ctx, questionID); err != nil {
		return domain.Question{}, err
	} else if ok {
		return q, nil
	}

	result, err, _ := b.sf.Do(questionID, func() (interface{}, error) {
		if q, ok, err := b.cached(ctx, questionID); err != nil {
			return domain.Question{}, err
		} else if ok {
			return q, nil
		}

		q, err := b.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}
		data, err := json.Marshal(q)
		if err != nil {
			return domain.Question{}, fmt.Errorf("encode question: %w", err)
		}
		if err := b.client.Set(ctx, b.key(questionID), data, b.ttlWithJitter()).Err(); err != nil {
			return domain.Question{}, err
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (b *QuestionBank) cached(ctx context.Context, questionID string) (domain.Question, bool, error) {
	raw, err := b.client.Get(ctx, b.key(questionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Question{}, false, nil
	}
	if err != nil {
		return domain.Question{}, false, err
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, false, fmt.Errorf("decode question %s: %w", questionID, err)
	}
	return q, true, nil
}

// ttlWithJitter adds up to 10% jitter to avoid synchronized expirations.
func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

func (b *QuestionBank) key(questionID string) string {
	return "live:question:" + questionID
}
