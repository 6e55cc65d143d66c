package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"live-session-engine/internal/domain"
)

type Config struct {
	Server struct {
		Port         string   `yaml:"port"`
		ReadTimeout  string   `yaml:"readTimeout"`
		WriteTimeout string   `yaml:"writeTimeout"`
		CORSOrigins  []string `yaml:"corsOrigins"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Auth struct {
		// JWTSecret enables bearer-token identity. Empty means identity comes from headers.
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
	Session struct {
		StaleAfter    string `yaml:"staleAfter"`
		SweepInterval string `yaml:"sweepInterval"`
	} `yaml:"session"`
	Scoring  domain.PointSettings `yaml:"scoring"`
	Finalize struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"finalize"`
}

// Default is the configuration used when no file is present: in-memory stores on :8080.
func Default() Config {
	cfg := Config{Scoring: domain.DefaultPointSettings()}
	cfg.Server.Port = "8080"
	cfg.Server.ReadTimeout = "15s"
	cfg.Server.WriteTimeout = "15s"
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Log.Level = "info"
	cfg.Redis.TTL = "12h"
	cfg.Questions.TTL = "10m"
	cfg.Session.StaleAfter = "5m"
	cfg.Session.SweepInterval = "1m"
	cfg.Finalize.Concurrency = 8
	return cfg
}

// Load reads YAML config from path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Postgres.URL, "DATABASE_URL")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitTrim(v, ",")
	}
}

// Validate reports every invalid value at once.
func (c Config) Validate() error {
	var errs []error
	for name, raw := range map[string]string{
		"server.readTimeout":    c.Server.ReadTimeout,
		"server.writeTimeout":   c.Server.WriteTimeout,
		"redis.ttl":             c.Redis.TTL,
		"questions.ttl":         c.Questions.TTL,
		"session.staleAfter":    c.Session.StaleAfter,
		"session.sweepInterval": c.Session.SweepInterval,
	} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, raw))
		}
	}
	if c.Finalize.Concurrency < 0 {
		errs = append(errs, errors.New("finalize.concurrency must not be negative"))
	}
	s := c.Scoring
	if s.PointsPerCorrect < 0 || s.SpeedBonus < 0 || s.SpeedThresholdMs < 0 || s.FirstTryBonus < 0 ||
		s.StreakBonus < 0 || s.StreakBonusMinStreak < 0 || s.IncorrectPenalty < 0 {
		errs = append(errs, errors.New("scoring values must not be negative"))
	}
	return errors.Join(errs...)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
