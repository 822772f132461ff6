// Package config loads and validates the service configuration.
package config

// Config is the root configuration for the report simplifier service.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	LLM     LLMConfig     `yaml:"llm,omitempty"`
	Session SessionConfig `yaml:"session,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port           int       `yaml:"port,omitempty"`
	Bind           string    `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string    `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string  `yaml:"allowedOrigins,omitempty"`
	TLS            TLSConfig `yaml:"tls,omitempty"`
}

// TLSConfig configures TLS for the HTTP server.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// LLMConfig selects and configures the language model backend.
type LLMConfig struct {
	Provider          string   `yaml:"provider,omitempty"` // "huggingface" | "ollama"
	APIKey            string   `yaml:"apiKey,omitempty"`   // supports ${ENV_VAR} references
	Model             string   `yaml:"model,omitempty"`
	Endpoint          string   `yaml:"endpoint,omitempty"` // custom base URL (Ollama, HF router)
	MaxTokens         int      `yaml:"maxTokens,omitempty"`
	Temperature       *float64 `yaml:"temperature,omitempty"`
	Fallbacks         []string `yaml:"fallbacks,omitempty"`
	RequestsPerMinute int      `yaml:"requestsPerMinute,omitempty"` // 0 disables rate limiting
}

// SessionConfig controls conversation session behavior.
type SessionConfig struct {
	Store                string `yaml:"store,omitempty"` // "memory" | "sqlite"
	MaxHistoryTurns      int    `yaml:"maxHistoryTurns,omitempty"`
	TTLMinutes           int    `yaml:"ttlMinutes,omitempty"`
	SweepIntervalMinutes int    `yaml:"sweepIntervalMinutes,omitempty"`
	MaxSessions          int    `yaml:"maxSessions,omitempty"` // 0 means unlimited
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}
