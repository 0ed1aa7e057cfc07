package domain

import (
	"fmt"
	"math"
)

// Config holds the complete Janus configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" yaml:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier" yaml:"tier"`

	// Scoring holds the meta-engine weights and thresholds.
	Scoring ScoringConfig `json:"scoring" yaml:"scoring"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Cache      CacheConfig      `json:"cache" yaml:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" yaml:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
}

// ScoringConfig holds the weighted aggregation parameters.
type ScoringConfig struct {
	// Weights maps each detection module to its share of the meta score.
	// Weights over absent modules are renormalized per transaction.
	Weights map[ModuleID]float64 `json:"weights" yaml:"weights"`

	// FlagThreshold is the per-module score at or above which a module
	// counts toward the correlation bonus.
	FlagThreshold float64 `json:"flagThreshold" yaml:"flagThreshold"`

	// CorrelationBonus is added to the weighted mean when at least
	// CorrelationMinFlagged modules are flagged. The sum caps at 100.
	CorrelationBonus     float64 `json:"correlationBonus" yaml:"correlationBonus"`
	CorrelationMinFlagged int    `json:"correlationMinFlagged" yaml:"correlationMinFlagged"`

	// Thresholds are the ascending risk band floors.
	Thresholds RiskThresholds `json:"thresholds" yaml:"thresholds"`

	// PriorityAmountScale multiplies log10(amount+1) in the case
	// priority formula.
	PriorityAmountScale float64 `json:"priorityAmountScale" yaml:"priorityAmountScale"`
}

// RiskThresholds are ascending band floors on the 0-100 scale. A score
// lands in the highest band whose floor it reaches. The Medium floor
// doubles as the reporting threshold: cases open at MEDIUM and above.
type RiskThresholds struct {
	Low      float64 `json:"low" yaml:"low"`
	Medium   float64 `json:"medium" yaml:"medium"`
	High     float64 `json:"high" yaml:"high"`
	Critical float64 `json:"critical" yaml:"critical"`
}

// Level maps a meta score onto its risk band.
func (t RiskThresholds) Level(score float64) RiskLevel {
	switch {
	case score >= t.Critical:
		return RiskCritical
	case score >= t.High:
		return RiskHigh
	case score >= t.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Reporting returns the score floor at which a case is opened.
func (t RiskThresholds) Reporting() float64 { return t.Medium }

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	ReadTimeout  int    `json:"readTimeout" yaml:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" yaml:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	ServiceName  string `json:"serviceName" yaml:"serviceName"`
	ExporterType string `json:"exporterType" yaml:"exporterType"` // stdout, otlp
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultWeights returns the stock module weights. Financial and
// network irregularities carry the most signal in procurement fraud.
func DefaultWeights() map[ModuleID]float64 {
	return map[ModuleID]float64{
		ModuleFinancial: 0.25,
		ModuleTemporal:  0.20,
		ModuleNetwork:   0.25,
		ModuleNLP:       0.15,
		ModuleCitizen:   0.15,
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Scoring: ScoringConfig{
			Weights:               DefaultWeights(),
			FlagThreshold:         60,
			CorrelationBonus:      10,
			CorrelationMinFlagged: 3,
			Thresholds:            RiskThresholds{Low: 0, Medium: 30, High: 50, Critical: 70},
			PriorityAmountScale:   1.0,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./janus.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "janus",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "janus",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}

// Validate checks the scoring configuration. Weight or threshold errors
// are fatal at startup; a misweighted engine must not score anything.
func (c *ScoringConfig) Validate() error {
	if len(c.Weights) == 0 {
		return fmt.Errorf("%w: no weights configured", ErrInvalidWeights)
	}
	var sum float64
	for id, w := range c.Weights {
		if !ValidModule(id) {
			return fmt.Errorf("%w: unknown module %q", ErrInvalidWeights, id)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("%w: module %q weight %v", ErrInvalidWeights, id, w)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("%w: weights sum to %v", ErrInvalidWeights, sum)
	}
	t := c.Thresholds
	for _, v := range []float64{t.Low, t.Medium, t.High, t.Critical} {
		if math.IsNaN(v) || v < 0 || v > 100 {
			return fmt.Errorf("%w: floor %v outside [0,100]", ErrInvalidThresholds, v)
		}
	}
	if !(t.Low < t.Medium && t.Medium < t.High && t.High < t.Critical) {
		return fmt.Errorf("%w: floors must be strictly ascending", ErrInvalidThresholds)
	}
	if c.FlagThreshold < 0 || c.FlagThreshold > 100 {
		return fmt.Errorf("%w: flag threshold %v outside [0,100]", ErrInvalidThresholds, c.FlagThreshold)
	}
	if c.CorrelationMinFlagged < 1 {
		return fmt.Errorf("%w: correlation minimum must be at least 1", ErrInvalidThresholds)
	}
	return nil
}
