package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gaia.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultNeedsAuthOrDisabled(t *testing.T) {
	err := Default().Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "auth.domain")

	cfg := Default()
	cfg.Auth.Disabled = true
	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLAndEnv(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9000"
  cors_origins: ["http://a.test", "http://b.test"]
store:
  path: /tmp/x.db
routing:
  suggest_threshold: 2.0
  persistence_n: 3
  window_m: 6
  cooldown: 45m
  pending_mode: clear
auth:
  disabled: true
`)
	t.Setenv("GAIA_WINDOW_M", "7")
	t.Setenv("GAIA_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 7, cfg.Routing.WindowM, "env overrides file")
	assert.Equal(t, "debug", cfg.Log.Level)

	pc, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, policy.Config{
		SuggestThreshold:    2.0,
		AutoSwitchThreshold: policy.DefaultConfig().AutoSwitchThreshold,
		IntentFloor:         policy.DefaultConfig().IntentFloor,
		PersistenceN:        3,
		WindowM:             7,
		CooldownDuration:    45 * time.Minute,
		PendingMode:         policy.PendingClear,
	}, pc)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	t.Setenv("GAIA_AUTH_DISABLED", "true")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Routing, cfg.Routing)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "routing: [", "parse config"},
		{"persistence beyond window", "auth: {disabled: true}\nrouting: {persistence_n: 9, window_m: 3}", "persistence_n"},
		{"bad pending mode", "auth: {disabled: true}\nrouting: {pending_mode: maybe}", "pending_mode"},
		{"unknown classifier", "auth: {disabled: true}\nclassifier: {kind: oracle}", "classifier.kind"},
		{"genai without key", "auth: {disabled: true}\nllm: {provider: genai}", "GEMINI_API_KEY"},
		{"unknown provider", "auth: {disabled: true}\nllm: {provider: cohere}", "llm.provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGeneratorPicksKey(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.AnthropicAPIKey = "a-key"
	cfg.LLM.GeminiAPIKey = "g-key"
	assert.Equal(t, "a-key", cfg.Generator().APIKey)

	cfg.LLM.Provider = "genai"
	assert.Equal(t, "g-key", cfg.Generator().APIKey)
}

func TestSampleConfigLoads(t *testing.T) {
	t.Setenv("AUTH0_DOMAIN", "tenant.example.com")
	t.Setenv("AUTH0_AUDIENCE", "gaia-api")
	cfg, err := Load("testdata/gaia.yaml")
	require.NoError(t, err)
	assert.False(t, cfg.Routing.AutoSwitchEnabled)
	assert.Equal(t, "strict", cfg.Routing.PendingMode)
}

func TestReadSkipsValidation(t *testing.T) {
	cfg, err := Read(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gaia.db", cfg.Store.Path)
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}
