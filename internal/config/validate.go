package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}

	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertPath == "" || cfg.Server.TLS.KeyPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "server.tls",
				Message: "certPath and keyPath are required when tls is enabled",
			})
		}
	}

	validProviders := []string{"huggingface", "ollama"}
	if cfg.LLM.Provider != "" && !slices.Contains(validProviders, cfg.LLM.Provider) {
		issues = append(issues, ValidationIssue{
			Path:    "llm.provider",
			Message: fmt.Sprintf("must be one of %v, got %q", validProviders, cfg.LLM.Provider),
		})
	}

	if cfg.LLM.Provider == "huggingface" && cfg.LLM.APIKey == "" {
		issues = append(issues, ValidationIssue{
			Path:    "llm.apiKey",
			Message: "apiKey is required for the huggingface provider (or set HUGGINGFACE_API_KEY)",
		})
	}

	if cfg.LLM.MaxTokens < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "llm.maxTokens",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.LLM.MaxTokens),
		})
	}

	if cfg.LLM.RequestsPerMinute < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "llm.requestsPerMinute",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.LLM.RequestsPerMinute),
		})
	}

	validStores := []string{"memory", "sqlite"}
	if cfg.Session.Store != "" && !slices.Contains(validStores, cfg.Session.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "session.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Session.Store),
		})
	}

	if cfg.Session.MaxHistoryTurns < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.maxHistoryTurns",
			Message: fmt.Sprintf("must be non-negative, got %d", cfg.Session.MaxHistoryTurns),
		})
	}

	if cfg.Session.TTLMinutes < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "session.ttlMinutes",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Session.TTLMinutes),
		})
	}

	if cfg.Session.SweepIntervalMinutes < 1 {
		issues = append(issues, ValidationIssue{
			Path:    "session.sweepIntervalMinutes",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Session.SweepIntervalMinutes),
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
