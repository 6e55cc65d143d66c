package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"live-session-engine/internal/domain"
)

const (
	maxTxRetries   = 64
	minTxBackoff   = 2 * time.Millisecond
	maxTxBackoff   = 100 * time.Millisecond
	sessionLockSet = 64
)

// ErrContention is returned when an optimistic update keeps losing to concurrent writers.
var ErrContention = errors.New("session update contention")

// SessionStore keeps live sessions in Redis so any instance can serve any poll.
// Layout:
//
//	live:session:{id}             JSON session document (WATCH/MULTI updates)
//	live:session:code:{CODE}      session id, claimed with SETNX
//	live:session:{id}:ended       set once the session has ended
//	live:session:{id}:responses   append-only response log (RPUSH)
//	live:session:{id}:activity    participantId -> unix nanos of last activity (HSET)
//	live:sessions                 ids of sessions that have not ended
//
// Writers to one session in the same process queue on a local lock, so WATCH only
// races against other instances.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	locks  [sessionLockSet]sync.Mutex
}

// appendResponseScript pushes a response unless the session is gone or has ended.
// KEYS: doc, ended marker, responses. ARGV: response JSON, ttl in ms.
var appendResponseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
redis.call('RPUSH', KEYS[3], ARGV[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[3], ttl)
end
return 1
`)

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	claimed, err := s.client.SetNX(ctx, s.codeKey(sess.Code), sess.ID, s.ttl).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return domain.ErrDuplicateCode
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(sess.ID), data, s.ttl)
		pipe.SAdd(ctx, liveSetKey, sess.ID)
		return nil
	})
	if err != nil {
		// release the code so it can be claimed again
		if delErr := s.client.Del(context.WithoutCancel(ctx), s.codeKey(sess.Code), s.docKey(sess.ID)).Err(); delErr != nil {
			return errors.Join(err, fmt.Errorf("release code: %w", delErr))
		}
		return err
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, s.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(id, raw)
}

func (s *SessionStore) GetByCode(ctx context.Context, code string) (*domain.Session, error) {
	id, err := s.client.Get(ctx, s.codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *SessionStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	key := s.docKey(id)
	var updated *domain.Session
	txf := func(tx *redis.Tx) error {
		doc, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			if s.ttl > 0 {
				pipe.Expire(ctx, s.codeKey(doc.Code), s.ttl)
			}
			if doc.Ended() {
				pipe.Set(ctx, s.endedKey(id), 1, s.ttl)
				pipe.SRem(ctx, liveSetKey, id)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = doc
		return nil
	}

	if err := s.watch(ctx, txf, key); err != nil {
		return nil, err
	}
	return updated, nil
}

// AppendResponse runs check against the current document, then pushes the response
// in one script that refuses sessions which ended in the meantime. It does not WATCH
// the document, so joins and sweeps never abort a submission.
func (s *SessionStore) AppendResponse(ctx context.Context, sessionID string, r domain.Response, check func(*domain.Session) error) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if check != nil {
		doc, err := s.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := check(doc); err != nil {
			return err
		}
	}
	keys := []string{s.docKey(sessionID), s.endedKey(sessionID), s.responsesKey(sessionID)}
	res, err := appendResponseScript.Run(ctx, s.client, keys, data, s.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("append response: %w", err)
	}
	switch res {
	case -1:
		return domain.ErrSessionNotFound
	case 0:
		return domain.ErrSessionClosed
	}
	return nil
}

func (s *SessionStore) Responses(ctx context.Context, sessionID string) ([]domain.Response, error) {
	raws, err := s.client.LRange(ctx, s.responsesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Response, 0, len(raws))
	for _, raw := range raws {
		var r domain.Response
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode response in %s: %w", sessionID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SessionStore) Touch(ctx context.Context, sessionID, participantID string, at time.Time) error {
	key := s.activityKey(sessionID)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, participantID, at.UnixNano())
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SessionStore) Activity(ctx context.Context, sessionID string) (map[string]time.Time, error) {
	raw, err := s.client.HGetAll(ctx, s.activityKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(raw))
	for pid, v := range raw {
		nanos, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[pid] = time.Unix(0, nanos).UTC()
	}
	return out, nil
}

func (s *SessionStore) ListLive(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, liveSetKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// watch runs txf under WATCH on key. When another writer got there first it waits a
// jittered, doubling backoff and tries again until ctx is done.
func (s *SessionStore) watch(ctx context.Context, txf func(*redis.Tx) error, key string) error {
	backoff := minTxBackoff
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		wait := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2)+1))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if backoff < maxTxBackoff {
			backoff *= 2
		}
	}
	return ErrContention
}

func (s *SessionStore) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%sessionLockSet]
}

func (s *SessionStore) load(ctx context.Context, tx *redis.Tx, id string) (*domain.Session, error) {
	raw, err := tx.Get(ctx, s.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession(id, raw)
}

func decodeSession(id string, raw []byte) (*domain.Session, error) {
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.Participants == nil {
		sess.Participants = make(map[string]*domain.Participant)
	}
	if sess.QuestionsSent == nil {
		sess.QuestionsSent = []domain.QuestionSnapshot{}
	}
	return &sess, nil
}

const liveSetKey = "live:sessions"

func (s *SessionStore) docKey(id string) string {
	return "live:session:" + id
}

func (s *SessionStore) codeKey(code string) string {
	return "live:session:code:" + domain.NormalizeCode(code)
}

func (s *SessionStore) endedKey(id string) string {
	return "live:session:" + id + ":ended"
}

func (s *SessionStore) responsesKey(id string) string {
	return "live:session:" + id + ":responses"
}

func (s *SessionStore) activityKey(id string) string {
	return "live:session:" + id + ":activity"
}
