package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"live-session-engine/internal/app"
	"live-session-engine/internal/config"
	"live-session-engine/internal/domain"
	"live-session-engine/internal/infra/memory"
	"live-session-engine/internal/infra/postgres"
	redisstore "live-session-engine/internal/infra/redis"
)

// backends holds the connections a service was built on.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
}

func (b backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

// buildService wires stores by config: Redis for live state when an address is set,
// Postgres for the ledger, roster, settings and questions when a URL is set, memory otherwise.
func buildService(ctx context.Context, cfg config.Config, log *zap.Logger) (*app.LiveService, backends, error) {
	var b backends
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, backends{}, err
		}
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, backends{}, err
		}
		b.pool = pool
	}

	var (
		sessions app.SessionRepository  = memory.NewSessionStore()
		ledger   app.LedgerRepository   = memory.NewLedgerStore()
		roster   app.Roster             = memory.NewRoster()
		settings app.SettingsRepository = memory.NewSettingsStore()
		loader   memory.QuestionLoader  = memory.NewStaticQuestionLoader(sampleQuestions())
	)
	if b.pool != nil {
		ledger = postgres.NewLedger(b.pool)
		roster = postgres.NewRoster(b.pool)
		settings = postgres.NewSettingsStore(b.pool)
		loader = postgres.NewQuestionLoader(b.pool)
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionBank = memory.NewQuestionBank(loader, questionTTL)
	if b.redis != nil {
		sessions = redisstore.NewSessionStore(b.redis, config.TTLDuration(cfg.Redis.TTL, 12*time.Hour))
		questions = redisstore.NewQuestionBank(b.redis, loader, questionTTL)
	}

	log.Info("stores configured",
		zap.Bool("redis", b.redis != nil),
		zap.Bool("postgres", b.pool != nil),
	)
	svc := app.NewLiveService(sessions, ledger, questions, roster, settings,
		app.WithLogger(log),
		app.WithPointDefaults(cfg.Scoring),
		app.WithStaleAfter(config.TTLDuration(cfg.Session.StaleAfter, 5*time.Minute)),
		app.WithFinalizeConcurrency(cfg.Finalize.Concurrency),
	)
	return svc, b, nil
}

// sampleQuestions seeds the in-memory bank so a bare start can run a session end to end.
func sampleQuestions() map[string]domain.Question {
	return map[string]domain.Question{
		"sample-capital": {
			ID:               "sample-capital",
			Text:             "What is the capital of France?",
			Type:             domain.QuestionMultipleChoice,
			Options:          []string{"Berlin", "Madrid", "Paris", "Rome"},
			CorrectAnswer:    2,
			TimeLimitSeconds: 30,
		},
		"sample-sum": {
			ID:            "sample-sum",
			Text:          "2 + 2 = 4",
			Type:          domain.QuestionTrueFalse,
			CorrectAnswer: true,
		},
	}
}
