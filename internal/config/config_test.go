package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Batch.Concurrency)
	assert.Equal(t, 70, cfg.Scoring.Thresholds.Priority)
	assert.Equal(t, 40, cfg.Scoring.Thresholds.Qualified)
	assert.Equal(t, 15, cfg.Scoring.Thresholds.Nurture)
	assert.Equal(t, "general", cfg.Scoring.DefaultVertical)
	assert.Equal(t, 100, cfg.Scoring.DedupBudgetMS)
	assert.InDelta(t, 0.5, cfg.Triage.MinConfidence, 0.001)
	assert.InDelta(t, 0.85, cfg.Triage.Tier1Confidence, 0.001)
	assert.Equal(t, 70, cfg.Triage.HighValueScore)
	assert.Contains(t, cfg.Triage.ExecutiveTitles, "cfo")
	assert.Equal(t, 30*time.Second, cfg.Referral.Delay())
	assert.True(t, cfg.Referral.AutoSend)
	assert.Equal(t, "inline", cfg.Referral.DispatchMode)
	assert.Equal(t, "icp_rules", cfg.Qdrant.Collections.Rules)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)

	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/triage
log:
  level: debug
  format: console
batch:
  concurrency: 10
triage:
  min_confidence: 0.6
  tier1_confidence: 0.9
referral:
  delay_secs: 5
  pain_point: investor targeting
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Batch.Concurrency)
	assert.InDelta(t, 0.6, cfg.Triage.MinConfidence, 0.001)
	assert.InDelta(t, 0.9, cfg.Triage.Tier1Confidence, 0.001)
	assert.Equal(t, 5*time.Second, cfg.Referral.Delay())
	assert.Equal(t, "investor targeting", cfg.Referral.PainPoint)
	// Defaults still apply for unset values
	assert.Equal(t, 70, cfg.Triage.HighValueScore)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("TRIAGE_STORE_DRIVER", "postgres")
	t.Setenv("TRIAGE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("TRIAGE_SERVER_PORT", "3000")
	t.Setenv("TRIAGE_REFERRAL_DELAY_SECS", "0")
	t.Setenv("TRIAGE_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, time.Duration(0), cfg.Referral.Delay())
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes every mode except worker.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Scoring.Thresholds.Priority = 70
	cfg.Scoring.Thresholds.Qualified = 40
	cfg.Scoring.Thresholds.Nurture = 15
	cfg.Batch.Concurrency = 5
	cfg.Triage.MinConfidence = 0.5
	cfg.Triage.Tier1Confidence = 0.85
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateScore(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("score"))

	cfg.Scoring.Thresholds.Qualified = 80
	err := cfg.Validate("score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "priority > qualified > nurture")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.Concurrency = 0
	err := cfg.Validate("score")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be between 1 and 50")

	cfg.Batch.Concurrency = 51
	assert.Error(t, cfg.Validate("score"))

	cfg.Batch.Concurrency = 50
	assert.NoError(t, cfg.Validate("score"))
}

func TestValidateBrainsSource(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"file without path", func(c *Config) { c.Scoring.BrainsSource = "file" }, "scoring.brains_path is required"},
		{"file with path", func(c *Config) { c.Scoring.BrainsSource = "file"; c.Scoring.BrainsPath = "brains.yaml" }, ""},
		{"qdrant without url", func(c *Config) { c.Scoring.BrainsSource = "qdrant" }, "qdrant.url is required"},
		{"unknown", func(c *Config) { c.Scoring.BrainsSource = "s3" }, "not one of embedded, file, qdrant"},
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("score")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateTriage(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"tier1 below min", func(c *Config) { c.Triage.Tier1Confidence = 0.4 }, "tier1_confidence"},
		{"min above one", func(c *Config) { c.Triage.MinConfidence = 1.5 }, "min_confidence"},
		{"llm without key", func(c *Config) { c.Triage.Classifier = "llm" }, "anthropic.key is required"},
		{"llm with key", func(c *Config) { c.Triage.Classifier = "llm"; c.Anthropic.Key = "sk" }, ""},
		{"unknown classifier", func(c *Config) { c.Triage.Classifier = "magic" }, "triage.classifier"},
		{"queue without redis", func(c *Config) { c.Referral.DispatchMode = "queue" }, "redis.url is required"},
		{"queue with redis", func(c *Config) { c.Referral.DispatchMode = "queue"; c.Redis.URL = "redis://localhost:6379" }, ""},
		{"negative delay", func(c *Config) { c.Referral.DelaySecs = -1 }, "referral.delay_secs"},
		{"failure rate", func(c *Config) { c.Monitoring.FailureRateThreshold = 2 }, "failure_rate_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("triage")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateWorker(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("worker")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.url is required")

	cfg.Redis.URL = "redis://localhost:6379/0"
	assert.NoError(t, cfg.Validate("worker"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
