package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadLayersFileDotEnvAndEnvironment(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeFile(t, "config.yaml", `
http:
  address: ":9090"
auth:
  secret: from-file
twitch:
  username: guardbot
  accessToken: oauth-token
  channels: [somestreamer]
llm:
  embedding:
    apiKey: embed-key
  completion:
    apiKey: complete-key
    baseUrl: https://api.groq.com/openai/v1
    model: llama3-8b-8192
guard:
  threshold: 0.6
storage:
  driver: memory
`))
	t.Setenv("ENV_FILE", writeFile(t, ".env", "GUARD_DEFAULT_MODE=freeform\nAUTH_TOKEN_TTL=2h\n"))
	t.Cleanup(func() {
		_ = os.Unsetenv("GUARD_DEFAULT_MODE")
		_ = os.Unsetenv("AUTH_TOKEN_TTL")
	})
	t.Setenv("TWITCH_CHANNELS", "one, two")
	t.Setenv("GUARD_THRESHOLD", "0.75")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTP.Address)
	require.Equal(t, "from-file", cfg.Auth.Secret)
	require.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, []string{"one", "two"}, cfg.Twitch.Channels)
	require.Equal(t, "freeform", cfg.Guard.DefaultMode)
	require.Equal(t, 0.75, cfg.Guard.Threshold)
	require.Equal(t, "text-embedding-3-small", cfg.LLM.Embedding.Model)
	require.Equal(t, "llama3-8b-8192", cfg.LLM.Completion.Model)
	require.Equal(t, 75, cfg.LLM.Completion.MaxTokens)
	require.Equal(t, StorageMemory, cfg.Storage.Driver)
	require.Equal(t, 500, cfg.Twitch.MessageLimit)
}

func TestLoadSharesOpenAIKey(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeFile(t, "config.yaml", "http:\n  enabled: false\ntwitch:\n  enabled: false\n"))
	t.Setenv("OPENAI_API_KEY", "shared")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "shared", cfg.LLM.Embedding.APIKey)
	require.Equal(t, "shared", cfg.LLM.Completion.APIKey)
}

func TestLoadMissingExplicitEnvFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeFile(t, "config.yaml", "http:\n  enabled: false\n"))
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Auth.Secret = "s"
		cfg.Twitch.Username = "guardbot"
		cfg.Twitch.AccessToken = "token"
		cfg.LLM.Embedding.APIKey = "k"
		cfg.LLM.Completion.APIKey = "k"
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"threshold above one":    func(c *Config) { c.Guard.Threshold = 1.2 },
		"unknown mode":           func(c *Config) { c.Guard.DefaultMode = "loud" },
		"unknown storage driver": func(c *Config) { c.Storage.Driver = "sqlite" },
		"postgres without dsn":   func(c *Config) { c.Storage.Driver = StoragePostgres },
		"valkey without addr":    func(c *Config) { c.Storage.Driver = StorageValkey },
		"missing api key":        func(c *Config) { c.LLM.Completion.APIKey = "" },
		"missing twitch token":   func(c *Config) { c.Twitch.AccessToken = "" },
		"missing auth secret":    func(c *Config) { c.Auth.Secret = "" },
		"backup without bucket":  func(c *Config) { c.Backup.Enabled = true; c.Backup.Endpoint = "https://r2" },
		"unknown provider":       func(c *Config) { c.LLM.Embedding.Provider = "bedrock" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}

	local := valid()
	local.LLM.Embedding = ProviderConfig{Provider: "local"}
	require.NoError(t, local.Validate())
}
