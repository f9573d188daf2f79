package config

import "time"

// Default value constants. The scoring constants are empirically chosen
// starting points, not fixed law; deployments tune them in config.yaml and
// the loader hot-reloads the engine section on change.
const (
	DefaultServerPort      = 8080
	DefaultServerMode      = "release"
	DefaultShutdownTimeout = 30 * time.Second

	DefaultDBHost        = "localhost"
	DefaultDBPort        = 5432
	DefaultDBName        = "invoicegate"
	DefaultDBUser        = "invoicegate"
	DefaultDBSSLMode     = "disable"
	DefaultDBMaxConns    = 25
	DefaultMigrationPath = "migrations"

	DefaultRedisAddr    = "localhost:6379"
	DefaultKeyPrefix    = "invgate"
	DefaultSignatureTTL = 365 * 24 * time.Hour

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "invoicegate-workers"

	DefaultReasoningModel   = "gpt-4o-mini"
	DefaultReasoningTimeout = 5 * time.Second

	DefaultMetricsPath = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// Fields already set by the caller are left unchanged so that explicit
// configuration always wins. Must be called before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = DefaultDBSSLMode
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDBMaxConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = DefaultMigrationPath
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Redis.SignatureTTL == 0 {
		cfg.Redis.SignatureTTL = DefaultSignatureTTL
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = 3
	}

	if cfg.Reasoning.Model == "" {
		cfg.Reasoning.Model = DefaultReasoningModel
	}
	if cfg.Reasoning.Timeout == 0 {
		cfg.Reasoning.Timeout = DefaultReasoningTimeout
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	applyEngineDefaults(&cfg.Engine)
}

func applyEngineDefaults(e *EngineConfig) {
	if e.MinExtractionConfidence == 0 {
		e.MinExtractionConfidence = 0.70
	}
	if e.CandidateAmountTolerance == 0 {
		e.CandidateAmountTolerance = 0.20
	}
	if e.DateWindowDays == 0 {
		e.DateWindowDays = 90
	}

	if e.MatchWeights == (MatchWeights{}) {
		e.MatchWeights = MatchWeights{Vendor: 0.30, Amount: 0.30, Date: 0.10, LineItems: 0.30}
	}
	if e.ExactMatchThreshold == 0 {
		e.ExactMatchThreshold = 0.95
	}
	if e.FuzzyMatchThreshold == 0 {
		e.FuzzyMatchThreshold = 0.80
	}
	if e.PartialMatchThreshold == 0 {
		e.PartialMatchThreshold = 0.60
	}
	if e.ApprovalScoreThreshold == 0 {
		e.ApprovalScoreThreshold = 0.90
	}
	if e.AmbiguousBandLow == 0 {
		e.AmbiguousBandLow = 0.65
	}
	if e.AmbiguousBandHigh == 0 {
		e.AmbiguousBandHigh = 0.90
	}

	if e.LineSimilarityThreshold == 0 {
		e.LineSimilarityThreshold = 0.55
	}
	if e.QuantityTolerance == 0 {
		e.QuantityTolerance = 0.10
	}
	if e.PriceTolerance == 0 {
		e.PriceTolerance = 0.10
	}

	if e.MinorAmountDeviation == 0 {
		e.MinorAmountDeviation = 0.02
	}
	if e.CriticalAmountDeviation == 0 {
		e.CriticalAmountDeviation = 0.10
	}

	if e.DuplicateAmountTolerance == 0 {
		e.DuplicateAmountTolerance = 0.01
	}
	if e.DuplicateDateWindowDays == 0 {
		e.DuplicateDateWindowDays = 7
	}

	if e.FraudFlagIncrement == 0 {
		e.FraudFlagIncrement = 0.25
	}
	if e.CleanHistoryMinVolume == 0 {
		e.CleanHistoryMinVolume = 50
	}
	if e.CleanHistoryRiskCredit == 0 {
		e.CleanHistoryRiskCredit = 0.10
	}

	if e.PriceAnomalyThreshold == 0 {
		e.PriceAnomalyThreshold = 0.50
	}

	if e.RiskWeights == (RiskWeights{}) {
		e.RiskWeights = RiskWeights{Duplicate: 0.35, Vendor: 0.20, Price: 0.20, Amount: 0.15, Pattern: 0.10}
	}
	if e.CriticalRiskThreshold == 0 {
		e.CriticalRiskThreshold = 0.80
	}
	if e.HighRiskThreshold == 0 {
		e.HighRiskThreshold = 0.55
	}
	if e.MediumRiskThreshold == 0 {
		e.MediumRiskThreshold = 0.30
	}
}

// NewDefaultConfig returns a Config populated entirely from defaults.
// Entrypoints fall back to it when no config file is present.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
