package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/janus-audit/janus/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Tier != domain.TierCommunity {
		t.Errorf("Tier = %s, want community", cfg.Tier)
	}
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("Driver = %s, want sqlite", cfg.Repository.Driver)
	}
	if cfg.Scoring.Thresholds.Reporting() != 30 {
		t.Errorf("reporting threshold = %v, want 30", cfg.Scoring.Thresholds.Reporting())
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load("/nonexistent/janus.yaml")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "janus.yaml")
	data := `
server:
  host: 127.0.0.1
  port: 9090
scoring:
  flagThreshold: 55
  thresholds:
    low: 0
    medium: 25
    high: 50
    critical: 75
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Scoring.FlagThreshold != 55 {
		t.Errorf("FlagThreshold = %v, want 55", cfg.Scoring.FlagThreshold)
	}
	if cfg.Scoring.Thresholds.Medium != 25 {
		t.Errorf("Medium floor = %v, want 25", cfg.Scoring.Thresholds.Medium)
	}
	// Fields absent from the file keep their defaults
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("Driver = %s, want sqlite", cfg.Repository.Driver)
	}
}

func TestLoadInvalidScoring(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "janus.yaml")
	data := `
scoring:
  thresholds:
    low: 50
    medium: 30
    high: 20
    critical: 10
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() accepted descending risk floors")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JANUS_PORT", "7070")
	t.Setenv("JANUS_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %s, want debug", cfg.Logging.Level)
	}
}

func TestProTierEnv(t *testing.T) {
	t.Setenv("JANUS_TIER", "pro")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Tier != domain.TierPro {
		t.Errorf("Tier = %s, want pro", cfg.Tier)
	}
	if cfg.Repository.Driver != "postgres" {
		t.Errorf("Driver = %s, want postgres", cfg.Repository.Driver)
	}
	if cfg.EventBus.Type != "nats" {
		t.Errorf("EventBus = %s, want nats", cfg.EventBus.Type)
	}
}
