package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Engines receive the
// relevant sub-config per call; nothing here is mutated at runtime.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Escalation EscalationConfig `yaml:"escalation" mapstructure:"escalation"`
	Evaluation EvaluationConfig `yaml:"evaluation" mapstructure:"evaluation"`
	Lock       LockConfig       `yaml:"lock" mapstructure:"lock"`
	Notify     NotifyConfig     `yaml:"notify" mapstructure:"notify"`
	Events     EventsConfig     `yaml:"events" mapstructure:"events"`
	Scheduler  SchedulerConfig  `yaml:"scheduler" mapstructure:"scheduler"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig configures the redis connection backing the request lock.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// TierPolicy maps a composite-score threshold to a notification channel and
// wait-time budget. Tiers are ordered best (1) to worst (5); an advisor
// lands in the first tier whose MinScore its composite meets.
type TierPolicy struct {
	Tier        int     `yaml:"tier" mapstructure:"tier"`
	MinScore    float64 `yaml:"min_score" mapstructure:"min_score"`
	Channel     string  `yaml:"channel" mapstructure:"channel"`
	WaitMinutes int     `yaml:"wait_minutes" mapstructure:"wait_minutes"`
}

// EscalationConfig configures advisor scoring and tiering.
type EscalationConfig struct {
	ProximityWeight   float64 `yaml:"proximity_weight" mapstructure:"proximity_weight"`
	ActivityWeight    float64 `yaml:"activity_weight" mapstructure:"activity_weight"`
	PerformanceWeight float64 `yaml:"performance_weight" mapstructure:"performance_weight"`
	TrustWeight       float64 `yaml:"trust_weight" mapstructure:"trust_weight"`

	// MinTrust is the minimum operating trust score; advisors below it are
	// excluded from escalation.
	MinTrust float64 `yaml:"min_trust" mapstructure:"min_trust"`

	// FallbackScore substitutes for missing activity/performance metrics
	// (new advisor, no history).
	FallbackScore float64 `yaml:"fallback_score" mapstructure:"fallback_score"`

	Tiers []TierPolicy `yaml:"tiers" mapstructure:"tiers"`
}

// EvaluationConfig configures per-line offer scoring.
type EvaluationConfig struct {
	PriceWeight    float64 `yaml:"price_weight" mapstructure:"price_weight"`
	DeliveryWeight float64 `yaml:"delivery_weight" mapstructure:"delivery_weight"`
	WarrantyWeight float64 `yaml:"warranty_weight" mapstructure:"warranty_weight"`

	// CoverageMinPct is the coverage gate: offers quoting fewer than this
	// percentage of request lines can only win via the sole-offer exception.
	CoverageMinPct float64 `yaml:"coverage_min_pct" mapstructure:"coverage_min_pct"`

	// TimeoutSecs bounds one full evaluation pass.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`

	// TieBreak selects the policy for identical composite scores:
	// "earliest_submission" or "lowest_price".
	TieBreak string `yaml:"tie_break" mapstructure:"tie_break"`
}

// Timeout returns the evaluation deadline as a duration.
func (c EvaluationConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// LockConfig configures the per-request lease lock.
type LockConfig struct {
	// TTLSecs is the lease duration. Must exceed evaluation.timeout_secs so
	// a crashed holder's lock self-expires.
	TTLSecs int `yaml:"ttl_secs" mapstructure:"ttl_secs"`

	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMS   int    `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	KeyPrefix   string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// TTL returns the lease duration.
func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// NotifyConfig configures the notification gateway.
type NotifyConfig struct {
	// SendsPerSecond paces outbound notifications during a wave.
	SendsPerSecond float64 `yaml:"sends_per_second" mapstructure:"sends_per_second"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
}

// EventsConfig configures the outbound event webhook.
type EventsConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// SchedulerConfig configures the serve-mode sweep.
type SchedulerConfig struct {
	// SweepSpec is a cron expression for the escalation/evaluation sweep.
	SweepSpec string `yaml:"sweep_spec" mapstructure:"sweep_spec"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. Every weight and
// threshold has a default, so the engine runs with no config store at all.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("escalation.proximity_weight", 0.40)
	v.SetDefault("escalation.activity_weight", 0.25)
	v.SetDefault("escalation.performance_weight", 0.20)
	v.SetDefault("escalation.trust_weight", 0.15)
	v.SetDefault("escalation.min_trust", 2.0)
	v.SetDefault("escalation.fallback_score", 3.0)
	v.SetDefault("evaluation.price_weight", 0.50)
	v.SetDefault("evaluation.delivery_weight", 0.35)
	v.SetDefault("evaluation.warranty_weight", 0.15)
	v.SetDefault("evaluation.coverage_min_pct", 50.0)
	v.SetDefault("evaluation.timeout_secs", 60)
	v.SetDefault("evaluation.tie_break", "earliest_submission")
	v.SetDefault("lock.ttl_secs", 120)
	v.SetDefault("lock.max_attempts", 3)
	v.SetDefault("lock.backoff_ms", 200)
	v.SetDefault("lock.key_prefix", "match:eval-lock:")
	v.SetDefault("notify.sends_per_second", 10.0)
	v.SetDefault("notify.timeout_secs", 10)
	v.SetDefault("scheduler.sweep_spec", "@every 1m")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Escalation.Tiers) == 0 {
		cfg.Escalation.Tiers = DefaultTiers()
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DefaultTiers returns the default tier table: higher tiers get a faster
// channel and a shorter wait budget.
func DefaultTiers() []TierPolicy {
	return []TierPolicy{
		{Tier: 1, MinScore: 4.5, Channel: "push", WaitMinutes: 15},
		{Tier: 2, MinScore: 4.0, Channel: "push", WaitMinutes: 30},
		{Tier: 3, MinScore: 3.5, Channel: "sms", WaitMinutes: 60},
		{Tier: 4, MinScore: 3.0, Channel: "sms", WaitMinutes: 120},
		{Tier: 5, MinScore: 0, Channel: "chat", WaitMinutes: 240},
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
