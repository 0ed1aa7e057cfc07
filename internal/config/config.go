// Package config loads the Janus configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/janus-audit/janus/internal/domain"
)

// Load reads configuration from the given YAML file, falling back to
// tier defaults when the path is empty or the file does not exist.
// JANUS_* environment variables override file values last.
func Load(path string) (*domain.Config, error) {
	cfg := domain.DefaultConfig()
	if tier := os.Getenv("JANUS_TIER"); tier == string(domain.TierPro) {
		cfg = domain.ProConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Scoring.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *domain.Config) {
	if v := os.Getenv("JANUS_TIER"); v != "" {
		cfg.Tier = domain.Tier(v)
	}
	if v := os.Getenv("JANUS_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("JANUS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("JANUS_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("JANUS_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("JANUS_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("JANUS_POSTGRES_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Repository.PostgresPort = p
		}
	}
	if v := os.Getenv("JANUS_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("JANUS_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("JANUS_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("JANUS_REDIS_ADDR"); v != "" {
		cfg.Cache.Type = "redis"
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("JANUS_NATS_URL"); v != "" {
		cfg.EventBus.Type = "nats"
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("JANUS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("JANUS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
