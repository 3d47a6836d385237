package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:default} patterns in a string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		varName := submatch[1]
		defaultVal := ""
		if len(submatch) >= 3 {
			defaultVal = submatch[2]
		}
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return defaultVal
	})
}

// LoadFile reads a YAML (or JSON — YAML is a superset) config file, expands
// env vars, and unmarshals into dest.
func LoadFile(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), dest); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Loader layers bundled defaults, the optional user config file, and
// environment variables, and hot-reloads the file via fsnotify.
type Loader struct {
	filePath string
	mu       sync.RWMutex
	cfg      *Config
	watchers []func()
	logger   *slog.Logger
}

// NewLoader creates a loader. filePath may be empty (no user file).
func NewLoader(filePath string, logger *slog.Logger) *Loader {
	return &Loader{filePath: filePath, logger: logger}
}

func (l *Loader) Load() error {
	cfg := DefaultConfig()

	if l.filePath != "" {
		if _, err := os.Stat(l.filePath); err == nil {
			if err := LoadFile(l.filePath, cfg); err != nil {
				return fmt.Errorf("load user config: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()

	l.logger.Info("configuration loaded", "file", l.filePath)
	return nil
}

func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// OnReload registers a callback that fires after the config is reloaded.
func (l *Loader) OnReload(fn func()) {
	l.watchers = append(l.watchers, fn)
}

// Watch starts watching the user config file's directory and reloads on
// modification. No-op when no user file is configured.
func (l *Loader) Watch() error {
	if l.filePath == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(l.filePath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != l.filePath {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					l.logger.Info("config file changed, reloading", "file", event.Name)
					if err := l.Load(); err != nil {
						l.logger.Error("failed to reload config", "error", err)
						continue
					}
					for _, fn := range l.watchers {
						fn()
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error("fsnotify error", "error", err)
			}
		}
	}()

	return nil
}

// applyEnv overlays recognized environment variables onto cfg. Environment
// wins over the user file.
func applyEnv(cfg *Config) {
	for _, p := range []string{"anthropic", "openai", "google", "deepseek", "openrouter"} {
		if v, ok := os.LookupEnv(strings.ToUpper(p) + "_API_KEY"); ok {
			cfg.APIKeys[p] = v
		}
	}
	if v, ok := os.LookupEnv("CLAWROUTE_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v, ok := os.LookupEnv("CLAWROUTE_HOST"); ok {
		cfg.Host = v
	}
	if v, ok := os.LookupEnv("CLAWROUTE_TOKEN"); ok {
		cfg.AuthToken = v
	}
	if v, ok := os.LookupEnv("CLAWROUTE_ENABLED"); ok {
		cfg.Enabled = parseBool(v, cfg.Enabled)
	}
	if v, ok := os.LookupEnv("CLAWROUTE_DRY_RUN"); ok {
		cfg.DryRun = parseBool(v, cfg.DryRun)
	}
	if v, ok := os.LookupEnv("CLAWROUTE_DEBUG"); ok {
		cfg.Debug = parseBool(v, cfg.Debug)
	}
	if v, ok := os.LookupEnv("CLAWROUTE_LOG_CONTENT"); ok {
		cfg.LogContent = parseBool(v, false)
	}
	if v, ok := os.LookupEnv("CLAWROUTE_DB_PATH"); ok {
		cfg.DBPath = v
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return b
}
