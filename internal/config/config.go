// Package config defines all configuration structures for invoicegate.
// No I/O or parsing logic lives here; loading is in loader.go and default
// values in defaults.go.
package config

import (
	"fmt"
	"time"

	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters for the signature store.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	SignatureTTL time.Duration `mapstructure:"signature_ttl"`
}

// KafkaConfig holds producer/consumer parameters for decision events.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	GroupID      string        `mapstructure:"group_id"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// ReasoningConfig holds the optional reasoning-collaborator parameters.
// When Enabled is false (or APIKey empty) the engine uses the no-op
// fallback and every decision is purely algorithmic.
type ReasoningConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetricsConfig holds Prometheus exposition parameters.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MatchWeights are the per-dimension weights of the match scorer.
// They must sum to 1.0.
type MatchWeights struct {
	Vendor    float64 `mapstructure:"vendor"`
	Amount    float64 `mapstructure:"amount"`
	Date      float64 `mapstructure:"date"`
	LineItems float64 `mapstructure:"line_items"`
}

// RiskWeights are the sub-score weights of the risk aggregator.
// They must sum to 1.0.
type RiskWeights struct {
	Duplicate float64 `mapstructure:"duplicate"`
	Vendor    float64 `mapstructure:"vendor"`
	Price     float64 `mapstructure:"price"`
	Amount    float64 `mapstructure:"amount"`
	Pattern   float64 `mapstructure:"pattern"`
}

// EngineConfig carries every threshold and weight of the decision engine.
// All constants are empirically chosen and exposed here for calibration
// against real data; nothing in the engine reads ambient global state.
type EngineConfig struct {
	// MinExtractionConfidence gates the first workflow transition: below it
	// the run aborts as "extraction incomplete".
	MinExtractionConfidence float64 `mapstructure:"min_extraction_confidence"`

	// CandidateAmountTolerance is the relative band around the invoice total
	// within which open purchase orders are proposed as candidates.
	CandidateAmountTolerance float64 `mapstructure:"candidate_amount_tolerance"`

	// DateWindowDays is the gap, in days, over which the date sub-score
	// decays linearly from 1.0 to 0.0.
	DateWindowDays int `mapstructure:"date_window_days"`

	MatchWeights MatchWeights `mapstructure:"match_weights"`

	// Match-type classification thresholds on the overall score.
	ExactMatchThreshold   float64 `mapstructure:"exact_match_threshold"`
	FuzzyMatchThreshold   float64 `mapstructure:"fuzzy_match_threshold"`
	PartialMatchThreshold float64 `mapstructure:"partial_match_threshold"`

	// ApprovalScoreThreshold: below it a match always requires approval.
	ApprovalScoreThreshold float64 `mapstructure:"approval_score_threshold"`

	// Ambiguous band in which the optional reasoning collaborator may be
	// consulted for the approve-vs-review call.
	AmbiguousBandLow  float64 `mapstructure:"ambiguous_band_low"`
	AmbiguousBandHigh float64 `mapstructure:"ambiguous_band_high"`

	// Line-item pairing tolerances.
	LineSimilarityThreshold float64 `mapstructure:"line_similarity_threshold"`
	QuantityTolerance       float64 `mapstructure:"quantity_tolerance"`
	PriceTolerance          float64 `mapstructure:"price_tolerance"`

	// Amount-discrepancy severity bands (relative deviation).
	MinorAmountDeviation    float64 `mapstructure:"minor_amount_deviation"`
	CriticalAmountDeviation float64 `mapstructure:"critical_amount_deviation"`

	// Duplicate detection: fuzzy window.
	DuplicateAmountTolerance float64 `mapstructure:"duplicate_amount_tolerance"`
	DuplicateDateWindowDays  int     `mapstructure:"duplicate_date_window_days"`

	// Vendor risk scoring.
	FraudFlagIncrement     float64 `mapstructure:"fraud_flag_increment"`
	CleanHistoryMinVolume  int     `mapstructure:"clean_history_min_volume"`
	CleanHistoryRiskCredit float64 `mapstructure:"clean_history_risk_credit"`

	// PriceAnomalyThreshold is the relative deviation above the historical
	// average unit price at which a line item is flagged.
	PriceAnomalyThreshold float64 `mapstructure:"price_anomaly_threshold"`

	RiskWeights RiskWeights `mapstructure:"risk_weights"`

	// Risk level thresholds on the aggregated score.
	CriticalRiskThreshold float64 `mapstructure:"critical_risk_threshold"`
	HighRiskThreshold     float64 `mapstructure:"high_risk_threshold"`
	MediumRiskThreshold   float64 `mapstructure:"medium_risk_threshold"`
}

// Config is the root configuration object.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Kafka     KafkaConfig       `mapstructure:"kafka"`
	Reasoning ReasoningConfig   `mapstructure:"reasoning"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Engine    EngineConfig      `mapstructure:"engine"`
	Log       logging.LogConfig `mapstructure:"log"`
}

const weightSumEpsilon = 1e-6

// Validate checks cross-field consistency. It must be called after
// ApplyDefaults so that unset fields have been filled.
func (c *Config) Validate() error {
	e := c.Engine

	if e.MinExtractionConfidence < 0 || e.MinExtractionConfidence > 1 {
		return fmt.Errorf("engine.min_extraction_confidence must be in [0,1], got %v", e.MinExtractionConfidence)
	}
	if e.CandidateAmountTolerance <= 0 || e.CandidateAmountTolerance >= 1 {
		return fmt.Errorf("engine.candidate_amount_tolerance must be in (0,1), got %v", e.CandidateAmountTolerance)
	}
	if e.DateWindowDays <= 0 {
		return fmt.Errorf("engine.date_window_days must be positive, got %d", e.DateWindowDays)
	}

	mw := e.MatchWeights
	if sum := mw.Vendor + mw.Amount + mw.Date + mw.LineItems; diff(sum, 1.0) > weightSumEpsilon {
		return fmt.Errorf("engine.match_weights must sum to 1.0, got %v", sum)
	}
	rw := e.RiskWeights
	if sum := rw.Duplicate + rw.Vendor + rw.Price + rw.Amount + rw.Pattern; diff(sum, 1.0) > weightSumEpsilon {
		return fmt.Errorf("engine.risk_weights must sum to 1.0, got %v", sum)
	}

	if !(e.ExactMatchThreshold > e.FuzzyMatchThreshold && e.FuzzyMatchThreshold > e.PartialMatchThreshold) {
		return fmt.Errorf("engine match thresholds must be strictly ordered exact > fuzzy > partial")
	}
	if !(e.CriticalRiskThreshold > e.HighRiskThreshold && e.HighRiskThreshold > e.MediumRiskThreshold) {
		return fmt.Errorf("engine risk thresholds must be strictly ordered critical > high > medium")
	}
	if e.AmbiguousBandLow >= e.AmbiguousBandHigh {
		return fmt.Errorf("engine.ambiguous_band_low must be below ambiguous_band_high")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0,65535], got %d", c.Server.Port)
	}
	if c.Reasoning.Enabled && c.Reasoning.APIKey == "" {
		return fmt.Errorf("reasoning.api_key is required when reasoning is enabled")
	}
	if c.Reasoning.Enabled && c.Reasoning.Timeout <= 0 {
		return fmt.Errorf("reasoning.timeout must be positive when reasoning is enabled")
	}
	return nil
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
