package config

import (
	"fmt"

	"github.com/clawinfra/clawroute/internal/catalog"
	"github.com/clawinfra/clawroute/internal/types"
)

// Config is the process-wide configuration. It is assembled once at startup
// from bundled defaults, an optional user file, and environment variables.
// After startup it is immutable; the admin-mutable scalars live in Runtime.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	AuthToken  string `yaml:"auth_token"`
	Enabled    bool   `yaml:"enabled"`
	DryRun     bool   `yaml:"dry_run"`
	Debug      bool   `yaml:"debug"`
	LogContent bool   `yaml:"log_content"`

	MaxRetries               int  `yaml:"max_retries"`
	RetryDelayMs             int  `yaml:"retry_delay_ms"`
	AlwaysFallbackToOriginal bool `yaml:"always_fallback_to_original"`

	ToolAwareEscalation bool    `yaml:"tool_aware_escalation"`
	ConservativeMode    bool    `yaml:"conservative_mode"`
	MinConfidence       float64 `yaml:"min_confidence"`

	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
	PruneSchedule string `yaml:"prune_schedule"`

	Tiers   map[string]TierModelConfig `yaml:"tiers"`
	APIKeys map[string]string          `yaml:"api_keys"`

	// BaseURLs overrides the fixed provider endpoints, for self-hosted
	// gateways or tests.
	BaseURLs map[string]string `yaml:"base_urls,omitempty"`
}

// TierModelConfig holds the per-tier model choices.
type TierModelConfig struct {
	Primary  string `yaml:"primary"`
	Fallback string `yaml:"fallback"`
}

func DefaultConfig() *Config {
	return &Config{
		Host:                     "127.0.0.1",
		Port:                     8787,
		Enabled:                  true,
		MaxRetries:               2,
		RetryDelayMs:             500,
		AlwaysFallbackToOriginal: true,
		ToolAwareEscalation:      true,
		MinConfidence:            0.6,
		DBPath:                   "clawroute.db",
		RetentionDays:            30,
		PruneSchedule:            "0 3 * * *",
		Tiers: map[string]TierModelConfig{
			types.TierHeartbeat.String(): {Primary: "google/gemini-2.5-flash-lite", Fallback: "openai/gpt-4o"},
			types.TierSimple.String():    {Primary: "google/gemini-2.5-flash", Fallback: "openai/gpt-4o-mini"},
			types.TierModerate.String():  {Primary: "deepseek/deepseek-chat", Fallback: "openai/gpt-4o-mini"},
			types.TierComplex.String():   {Primary: "anthropic/claude-sonnet-4-5", Fallback: "openai/gpt-4o"},
			types.TierFrontier.String():  {Primary: "anthropic/claude-opus-4-1", Fallback: "openai/o1"},
		},
		APIKeys: map[string]string{},
	}
}

// TierModels returns the model pair configured for a tier.
func (c *Config) TierModels(t types.Tier) TierModelConfig {
	return c.Tiers[t.String()]
}

// Key returns the API key configured for a provider; empty means the
// provider is unavailable.
func (c *Config) Key(provider string) string {
	return c.APIKeys[provider]
}

// BaseURL returns the configured override for a provider endpoint, or ""
// when the fixed default applies.
func (c *Config) BaseURL(provider string) string {
	return c.BaseURLs[provider]
}

// Validate enforces the startup invariants. Violations are fatal.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range [1, 65535]", c.Port)
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be >= 1, got %d", c.RetentionDays)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence %.2f out of range [0, 1]", c.MinConfidence)
	}
	for _, t := range types.AllTiers() {
		tc, ok := c.Tiers[t.String()]
		if !ok || tc.Primary == "" || tc.Fallback == "" {
			return fmt.Errorf("tier %s needs non-empty primary and fallback models", t)
		}
	}
	anyKey := false
	for _, p := range catalog.Providers() {
		if c.APIKeys[p] != "" {
			anyKey = true
			break
		}
	}
	if !anyKey {
		return fmt.Errorf("no provider API key configured; set at least one of ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY, DEEPSEEK_API_KEY, OPENROUTER_API_KEY")
	}
	return nil
}
