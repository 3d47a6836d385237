package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/clawinfra/clawroute/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "DEEPSEEK_API_KEY", "OPENROUTER_API_KEY",
		"CLAWROUTE_PORT", "CLAWROUTE_HOST", "CLAWROUTE_TOKEN", "CLAWROUTE_ENABLED",
		"CLAWROUTE_DRY_RUN", "CLAWROUTE_DEBUG", "CLAWROUTE_LOG_CONTENT", "CLAWROUTE_DB_PATH",
	} {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestLoad_DefaultsWithEnvKey(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	l := NewLoader("", testLogger())
	if err := l.Load(); err != nil {
		t.Fatal(err)
	}
	cfg := l.Config()
	if cfg.Port != 8787 {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
	if cfg.Key("openai") != "sk-env" {
		t.Errorf("expected env key applied, got %q", cfg.Key("openai"))
	}
	if !cfg.Enabled {
		t.Error("expected enabled by default")
	}
	for _, tier := range types.AllTiers() {
		tc := cfg.TierModels(tier)
		if tc.Primary == "" || tc.Fallback == "" {
			t.Errorf("tier %s missing models", tier)
		}
	}
}

func TestLoad_FileThenEnvLayering(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("CLAWROUTE_PORT", "9999")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	file := `
port: 4000
dry_run: true
api_keys:
  openai: sk-file
  google: sk-file-google
tiers:
  heartbeat:
    primary: openai/gpt-4o-mini
    fallback: openai/gpt-4o
`
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(path, testLogger())
	if err := l.Load(); err != nil {
		t.Fatal(err)
	}
	cfg := l.Config()

	// Env beats file; file beats defaults.
	if cfg.Port != 9999 {
		t.Errorf("expected env port 9999, got %d", cfg.Port)
	}
	if cfg.Key("openai") != "sk-env" {
		t.Errorf("expected env key over file key, got %q", cfg.Key("openai"))
	}
	if cfg.Key("google") != "sk-file-google" {
		t.Errorf("expected file key kept, got %q", cfg.Key("google"))
	}
	if !cfg.DryRun {
		t.Error("expected dry_run from file")
	}
	if cfg.TierModels(types.TierHeartbeat).Primary != "openai/gpt-4o-mini" {
		t.Errorf("expected file tier override, got %+v", cfg.TierModels(types.TierHeartbeat))
	}
	// Tiers the file did not mention keep their defaults.
	if cfg.TierModels(types.TierFrontier).Primary == "" {
		t.Error("expected default frontier tier preserved")
	}
}

func TestLoad_EnvVarExpansionInFile(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("MY_HOST", "0.0.0.0")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("host: ${MY_HOST}\nauth_token: ${MISSING_VAR:fallback-token}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(path, testLogger())
	if err := l.Load(); err != nil {
		t.Fatal(err)
	}
	if l.Config().Host != "0.0.0.0" {
		t.Errorf("expected expanded host, got %q", l.Config().Host)
	}
	if l.Config().AuthToken != "fallback-token" {
		t.Errorf("expected default expansion, got %q", l.Config().AuthToken)
	}
}

func TestLoad_JSONFileParses(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"port": 4100, "debug": true}`), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(path, testLogger())
	if err := l.Load(); err != nil {
		t.Fatal(err)
	}
	if l.Config().Port != 4100 || !l.Config().Debug {
		t.Errorf("expected JSON config applied, got %+v", l.Config())
	}
}

func TestLoad_FailsWithoutAnyProviderKey(t *testing.T) {
	clearProviderEnv(t)

	l := NewLoader("", testLogger())
	if err := l.Load(); err == nil {
		t.Fatal("expected startup failure with no provider keys")
	}
}

func TestValidate_Bounds(t *testing.T) {
	base := func() *Config {
		cfg := DefaultConfig()
		cfg.APIKeys = map[string]string{"openai": "sk"}
		return cfg
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	cfg = base()
	cfg.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected port validation failure")
	}

	cfg = base()
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected port upper bound failure")
	}

	cfg = base()
	cfg.RetentionDays = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected retention validation failure")
	}

	cfg = base()
	cfg.MinConfidence = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected min_confidence validation failure")
	}

	cfg = base()
	cfg.Tiers[types.TierComplex.String()] = TierModelConfig{Primary: "", Fallback: "openai/gpt-4o"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected tier validation failure")
	}
}
