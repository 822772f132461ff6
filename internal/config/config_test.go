package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, "huggingface", cfg.LLM.Provider)
	assert.Equal(t, "meta-llama/Meta-Llama-3-8B-Instruct", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, 10, cfg.Session.MaxHistoryTurns)
	assert.Equal(t, 30, cfg.Session.TTLMinutes)
	assert.Equal(t, 5, cfg.Session.SweepIntervalMinutes)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  bind: lan
  allowedOrigins: ["*"]
llm:
  provider: ollama
  model: llama3
  endpoint: http://localhost:11434
session:
  maxHistoryTurns: 4
  ttlMinutes: 15
logging:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "lan", cfg.Server.Bind)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 4, cfg.Session.MaxHistoryTurns)
	assert.Equal(t, 15, cfg.Session.TTLMinutes)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Defaults still fill unset fields
	assert.Equal(t, 5, cfg.Session.SweepIntervalMinutes)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CARESIMPLIFY_PORT", "7777")
	t.Setenv("CARESIMPLIFY_LOG_LEVEL", "WARN")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_APIKeyFromEnv(t *testing.T) {
	t.Setenv("HUGGINGFACE_API_KEY", "hf_test_key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "hf_test_key", cfg.LLM.APIKey)
}

func TestLoad_ExpandsSecretRefs(t *testing.T) {
	t.Setenv("MY_SECRET", "s3cret")
	path := writeConfig(t, `
llm:
  apiKey: ${MY_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.LLM.APIKey)
}

func TestExpandEnvVars_UnsetLeftAlone(t *testing.T) {
	assert.Equal(t, "${DEFINITELY_NOT_SET_XYZ}", expandEnvVars("${DEFINITELY_NOT_SET_XYZ}"))
}

func TestValidate_OK(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)
	cfg.LLM.APIKey = "hf_key"

	assert.Empty(t, Validate(&cfg))
}

func TestValidate_Issues(t *testing.T) {
	cfg := Config{
		Server:  ServerConfig{Port: 70000, Bind: "everywhere"},
		LLM:     LLMConfig{Provider: "skynet", MaxTokens: -1},
		Session: SessionConfig{Store: "papyrus", MaxHistoryTurns: -2},
		Logging: LoggingConfig{Level: "loud"},
	}

	issues := Validate(&cfg)
	paths := make([]string, 0, len(issues))
	for _, issue := range issues {
		paths = append(paths, issue.Path)
	}

	assert.Contains(t, paths, "server.port")
	assert.Contains(t, paths, "server.bind")
	assert.Contains(t, paths, "llm.provider")
	assert.Contains(t, paths, "llm.maxTokens")
	assert.Contains(t, paths, "session.store")
	assert.Contains(t, paths, "session.maxHistoryTurns")
	assert.Contains(t, paths, "session.ttlMinutes")
	assert.Contains(t, paths, "logging.level")
}

func TestValidate_HuggingFaceNeedsKey(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)

	issues := Validate(&cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "llm.apiKey", issues[0].Path)
}

func TestResolvePaths_Home(t *testing.T) {
	base := t.TempDir()
	t.Setenv("CARESIMPLIFY_HOME", base)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, base, p.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), p.Config)

	require.NoError(t, p.EnsureDirs())
	assert.DirExists(t, p.Data)
	assert.DirExists(t, p.Logs)
}
