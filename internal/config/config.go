package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/lead-triage/internal/brain"
	"github.com/sells-group/lead-triage/internal/scorer"
	"github.com/sells-group/lead-triage/internal/store"
	"github.com/sells-group/lead-triage/internal/triage"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Triage     TriageConfig     `yaml:"triage" mapstructure:"triage"`
	Referral   ReferralConfig   `yaml:"referral" mapstructure:"referral"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	SMTP       SMTPConfig       `yaml:"smtp" mapstructure:"smtp"`
	HeyReach   HeyReachConfig   `yaml:"heyreach" mapstructure:"heyreach"`
	Qdrant     QdrantConfig     `yaml:"qdrant" mapstructure:"qdrant"`
	Review     ReviewConfig     `yaml:"review" mapstructure:"review"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// RedisConfig configures the dedup hash store and the referral queue.
type RedisConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TLSInsecure bool   `yaml:"tls_insecure" mapstructure:"tls_insecure"`
	HashTTLDays int    `yaml:"hash_ttl_days" mapstructure:"hash_ttl_days"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScoringConfig configures lead scoring.
type ScoringConfig struct {
	Thresholds      scorer.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
	DefaultVertical string            `yaml:"default_vertical" mapstructure:"default_vertical"`
	// BrainsPath loads the brain library from a YAML file instead of the
	// embedded defaults.
	BrainsPath    string `yaml:"brains_path" mapstructure:"brains_path"`
	BrainsSource  string `yaml:"brains_source" mapstructure:"brains_source"`
	DedupBudgetMS int    `yaml:"dedup_budget_ms" mapstructure:"dedup_budget_ms"`
}

// BatchConfig configures batch scoring.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// TriageConfig configures reply classification and routing.
type TriageConfig struct {
	triage.RouterConfig `yaml:",inline" mapstructure:",squash"`
	Classifier          string `yaml:"classifier" mapstructure:"classifier"`
	SenderName          string `yaml:"sender_name" mapstructure:"sender_name"`
	DryRun              bool   `yaml:"dry_run" mapstructure:"dry_run"`
}

// ReferralConfig configures the not-interested referral ask.
type ReferralConfig struct {
	DelaySecs    int    `yaml:"delay_secs" mapstructure:"delay_secs"`
	PainPoint    string `yaml:"pain_point" mapstructure:"pain_point"`
	AutoSend     bool   `yaml:"auto_send" mapstructure:"auto_send"`
	DispatchMode string `yaml:"dispatch_mode" mapstructure:"dispatch_mode"`
	Queue        string `yaml:"queue" mapstructure:"queue"`
	Concurrency  int    `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetry     int    `yaml:"max_retry" mapstructure:"max_retry"`
	Subject      string `yaml:"subject" mapstructure:"subject"`
	Template     string `yaml:"template" mapstructure:"template"`
}

// Delay returns the referral delay as a duration.
func (r ReferralConfig) Delay() time.Duration {
	return time.Duration(r.DelaySecs) * time.Second
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// NotionConfig holds Notion API credentials and the leads database.
type NotionConfig struct {
	Token          string  `yaml:"token" mapstructure:"token"`
	LeadDB         string  `yaml:"lead_db" mapstructure:"lead_db"`
	LeadIDProperty string  `yaml:"lead_id_property" mapstructure:"lead_id_property"`
	CreateMissing  bool    `yaml:"create_missing" mapstructure:"create_missing"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID        string  `yaml:"client_id" mapstructure:"client_id"`
	Username        string  `yaml:"username" mapstructure:"username"`
	KeyPath         string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL        string  `yaml:"login_url" mapstructure:"login_url"`
	ExternalIDField string  `yaml:"external_id_field" mapstructure:"external_id_field"`
	RateLimit       float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host        string `yaml:"host" mapstructure:"host"`
	Port        int    `yaml:"port" mapstructure:"port"`
	Username    string `yaml:"username" mapstructure:"username"`
	Password    string `yaml:"password" mapstructure:"password"`
	FromEmail   string `yaml:"from_email" mapstructure:"from_email"`
	FromName    string `yaml:"from_name" mapstructure:"from_name"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// HeyReachConfig holds HeyReach API settings.
type HeyReachConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// QdrantConfig holds Qdrant settings for the brain library.
type QdrantConfig struct {
	URL         string            `yaml:"url" mapstructure:"url"`
	Key         string            `yaml:"key" mapstructure:"key"`
	RateLimit   float64           `yaml:"rate_limit" mapstructure:"rate_limit"`
	Collections brain.Collections `yaml:"collections" mapstructure:"collections"`
}

// ReviewConfig holds the webhooks notified for human review.
type ReviewConfig struct {
	ApprovalWebhookURL   string `yaml:"approval_webhook_url" mapstructure:"approval_webhook_url"`
	EscalationWebhookURL string `yaml:"escalation_webhook_url" mapstructure:"escalation_webhook_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxBatchSize    int      `yaml:"max_batch_size" mapstructure:"max_batch_size"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// MonitoringConfig configures reply-log alerting.
type MonitoringConfig struct {
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold    float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	EscalationRateThreshold float64 `yaml:"escalation_rate_threshold" mapstructure:"escalation_rate_threshold"`
	MinReplies              int     `yaml:"min_replies" mapstructure:"min_replies"`
}

// RetryConfig configures retries for outbound calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig configures per-service circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	tiers := scorer.DefaultThresholds()
	router := triage.DefaultRouterConfig()
	cols := brain.DefaultCollections()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "lead-triage.db")
	v.SetDefault("redis.hash_ttl_days", 90)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("scoring.thresholds.priority", tiers.Priority)
	v.SetDefault("scoring.thresholds.qualified", tiers.Qualified)
	v.SetDefault("scoring.thresholds.nurture", tiers.Nurture)
	v.SetDefault("scoring.default_vertical", "general")
	v.SetDefault("scoring.brains_source", "embedded")
	v.SetDefault("scoring.dedup_budget_ms", 100)
	v.SetDefault("batch.concurrency", 5)
	v.SetDefault("triage.min_confidence", router.MinConfidence)
	v.SetDefault("triage.tier1_confidence", router.Tier1Confidence)
	v.SetDefault("triage.high_value_score", router.HighValueScore)
	v.SetDefault("triage.executive_titles", router.ExecutiveTitles)
	v.SetDefault("triage.classifier", "auto")
	v.SetDefault("referral.delay_secs", 30)
	v.SetDefault("referral.auto_send", true)
	v.SetDefault("referral.dispatch_mode", "inline")
	v.SetDefault("referral.queue", "referrals")
	v.SetDefault("referral.concurrency", 5)
	v.SetDefault("referral.max_retry", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("notion.lead_id_property", "Lead ID")
	v.SetDefault("notion.rate_limit", 3)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.external_id_field", "Triage_Lead_ID__c")
	v.SetDefault("salesforce.rate_limit", 5)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.timeout_secs", 15)
	v.SetDefault("heyreach.base_url", "https://api.heyreach.io/api/public")
	v.SetDefault("heyreach.rate_limit", 5)
	v.SetDefault("qdrant.rate_limit", 10)
	v.SetDefault("qdrant.collections.verticals", cols.Verticals)
	v.SetDefault("qdrant.collections.brains", cols.Brains)
	v.SetDefault("qdrant.collections.rules", cols.Rules)
	v.SetDefault("qdrant.collections.templates", cols.Templates)
	v.SetDefault("qdrant.collections.objection_handlers", cols.ObjectionHandlers)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_batch_size", 500)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.escalation_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_replies", 10)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
}

// Validate checks the configuration for the given command mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "score":
		errs = append(errs, c.validateScoring()...)
	case "triage":
		errs = append(errs, c.validateScoring()...)
		errs = append(errs, c.validateTriage()...)
	case "serve":
		errs = append(errs, c.validateScoring()...)
		errs = append(errs, c.validateTriage()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "worker":
		if c.Redis.URL == "" {
			errs = append(errs, "redis.url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScoring() []string {
	var errs []string
	if err := c.Scoring.Thresholds.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 50 {
		errs = append(errs, "batch.concurrency must be between 1 and 50")
	}
	switch c.Scoring.BrainsSource {
	case "", "embedded":
	case "file":
		if c.Scoring.BrainsPath == "" {
			errs = append(errs, "scoring.brains_path is required for brains_source file")
		}
	case "qdrant":
		if c.Qdrant.URL == "" {
			errs = append(errs, "qdrant.url is required for brains_source qdrant")
		}
	default:
		errs = append(errs, fmt.Sprintf("scoring.brains_source %q is not one of embedded, file, qdrant", c.Scoring.BrainsSource))
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, postgres", c.Store.Driver))
	}
	return errs
}

func (c *Config) validateTriage() []string {
	var errs []string
	if err := c.Triage.RouterConfig.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Triage.Classifier {
	case "", "auto", "keyword":
	case "llm":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required for the llm classifier")
		}
	default:
		errs = append(errs, fmt.Sprintf("triage.classifier %q is not one of auto, keyword, llm", c.Triage.Classifier))
	}
	switch c.Referral.DispatchMode {
	case "", "inline":
	case "queue":
		if c.Redis.URL == "" {
			errs = append(errs, "redis.url is required for referral.dispatch_mode queue")
		}
	default:
		errs = append(errs, fmt.Sprintf("referral.dispatch_mode %q is not one of inline, queue", c.Referral.DispatchMode))
	}
	if c.Referral.DelaySecs < 0 {
		errs = append(errs, "referral.delay_secs must be >= 0")
	}
	if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
		errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
	}
	if c.Monitoring.EscalationRateThreshold < 0 || c.Monitoring.EscalationRateThreshold > 1 {
		errs = append(errs, "monitoring.escalation_rate_threshold must be between 0 and 1")
	}
	return errs
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
