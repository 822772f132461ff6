package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError reports a problem reading or parsing the config file.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// Default returns a Config with all defaults applied and no file or
// environment input.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// Load reads the config file, applies defaults and environment overrides,
// and returns a merged Config. A missing file produces defaults only.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(&cfg)
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	// Credential fields may reference environment variables as ${VAR}.
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)

	return cfg, nil
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "loopback"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "huggingface"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "meta-llama/Meta-Llama-3-8B-Instruct"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 500
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = "memory"
	}
	if cfg.Session.MaxHistoryTurns == 0 {
		cfg.Session.MaxHistoryTurns = 10
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 30
	}
	if cfg.Session.SweepIntervalMinutes == 0 {
		cfg.Session.SweepIntervalMinutes = 5
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides reads CARESIMPLIFY_* environment variables and
// overrides config values. HUGGINGFACE_API_KEY is honored as well so the
// key never has to live in the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CARESIMPLIFY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CARESIMPLIFY_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("CARESIMPLIFY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("HUGGINGFACE_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
}

// Save writes the config back to a YAML file.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
