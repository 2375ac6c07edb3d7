package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers accepted by storage.driver.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StoragePostgres = "postgres"
	StorageValkey   = "valkey"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Twitch  TwitchConfig  `yaml:"twitch"`
	LLM     LLMConfig     `yaml:"llm"`
	Guard   GuardConfig   `yaml:"guard"`
	Storage StorageConfig `yaml:"storage"`
	Backup  BackupConfig  `yaml:"backup"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Enabled        bool            `yaml:"enabled"`
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
}

// AuthConfig holds the admin API token settings.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"tokenTtl"`
}

// TwitchConfig holds chat connection credentials.
type TwitchConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Username     string   `yaml:"username"`
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret"`
	AccessToken  string   `yaml:"accessToken"`
	RefreshToken string   `yaml:"refreshToken"`
	Channels     []string `yaml:"channels"`
	MessageLimit int      `yaml:"messageLimit"`
}

// LLMConfig contains the embedding and completion provider settings. The two
// providers may point at different vendors.
type LLMConfig struct {
	Embedding  ProviderConfig `yaml:"embedding"`
	Completion ProviderConfig `yaml:"completion"`
}

// ProviderConfig describes one OpenAI-compatible endpoint.
type ProviderConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
	Dimensions  int     `yaml:"dimensions"`
}

// GuardConfig controls how channel bots answer.
type GuardConfig struct {
	DefaultMode     string  `yaml:"defaultMode"`
	Threshold       float64 `yaml:"threshold"`
	Sentinel        string  `yaml:"sentinel"`
	RetrievalPrompt string  `yaml:"retrievalPrompt"`
	FreeformPrompt  string  `yaml:"freeformPrompt"`
	DisabledMessage string  `yaml:"disabledMessage"`
}

// StorageConfig selects and configures the FAQ repository.
type StorageConfig struct {
	Driver   string         `yaml:"driver"`
	File     FileConfig     `yaml:"file"`
	Postgres PostgresConfig `yaml:"postgres"`
	Valkey   ValkeyConfig   `yaml:"valkey"`
}

// FileConfig points at the directory of per-channel JSON-lines files.
type FileConfig struct {
	Dir string `yaml:"dir"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ValkeyConfig contains connection information for Valkey storage.
type ValkeyConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// BackupConfig configures snapshot export to S3-compatible storage.
type BackupConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

// Load reads configuration from a YAML file, a .env file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// loadDotEnv populates unset environment variables from path (default ".env").
// A missing default file is not an error.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return fmt.Errorf("read env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("parse env file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setBool("HTTP_ENABLED", &cfg.HTTP.Enabled)
	setString("HTTP_ADDRESS", &cfg.HTTP.Address)
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	setBool("HTTP_RATE_LIMIT_ENABLED", &cfg.HTTP.RateLimit.Enabled)
	setInt("HTTP_RATE_LIMIT_RPM", &cfg.HTTP.RateLimit.RequestsPerMinute)
	setInt("HTTP_RATE_LIMIT_BURST", &cfg.HTTP.RateLimit.Burst)
	setBool("HTTP_RETRY_ENABLED", &cfg.HTTP.Retry.Enabled)
	setInt("HTTP_RETRY_MAX_ATTEMPTS", &cfg.HTTP.Retry.MaxAttempts)
	setDuration("HTTP_RETRY_BASE_BACKOFF", &cfg.HTTP.Retry.BaseBackoff)

	setString("AUTH_SECRET", &cfg.Auth.Secret)
	setString("AUTH_ISSUER", &cfg.Auth.Issuer)
	setDuration("AUTH_TOKEN_TTL", &cfg.Auth.TokenTTL)

	setBool("TWITCH_ENABLED", &cfg.Twitch.Enabled)
	setString("TWITCH_USERNAME", &cfg.Twitch.Username)
	setString("TWITCH_CLIENT_ID", &cfg.Twitch.ClientID)
	setString("TWITCH_CLIENT_SECRET", &cfg.Twitch.ClientSecret)
	setString("TWITCH_ACCESS_TOKEN", &cfg.Twitch.AccessToken)
	setString("TWITCH_REFRESH_TOKEN", &cfg.Twitch.RefreshToken)
	if v := os.Getenv("TWITCH_CHANNELS"); v != "" {
		cfg.Twitch.Channels = splitList(v)
	}

	applyProviderOverrides("EMBEDDING", &cfg.LLM.Embedding)
	applyProviderOverrides("COMPLETION", &cfg.LLM.Completion)
	// OPENAI_API_KEY seeds whichever provider has no key of its own.
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		if cfg.LLM.Embedding.APIKey == "" {
			cfg.LLM.Embedding.APIKey = v
		}
		if cfg.LLM.Completion.APIKey == "" {
			cfg.LLM.Completion.APIKey = v
		}
	}

	setString("GUARD_DEFAULT_MODE", &cfg.Guard.DefaultMode)
	setFloat("GUARD_THRESHOLD", &cfg.Guard.Threshold)
	setString("GUARD_SENTINEL", &cfg.Guard.Sentinel)
	setString("GUARD_RETRIEVAL_PROMPT", &cfg.Guard.RetrievalPrompt)
	setString("GUARD_FREEFORM_PROMPT", &cfg.Guard.FreeformPrompt)
	setString("GUARD_DISABLED_MESSAGE", &cfg.Guard.DisabledMessage)

	setString("STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("STORAGE_FILE_DIR", &cfg.Storage.File.Dir)
	setString("STORAGE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	if v := os.Getenv("STORAGE_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Storage.Postgres.MaxConns = int32(parsed)
		}
	}
	setString("STORAGE_VALKEY_ADDR", &cfg.Storage.Valkey.Addr)
	setString("STORAGE_VALKEY_PREFIX", &cfg.Storage.Valkey.Prefix)

	setBool("BACKUP_ENABLED", &cfg.Backup.Enabled)
	setString("BACKUP_ENDPOINT", &cfg.Backup.Endpoint)
	setString("BACKUP_ACCESS_KEY", &cfg.Backup.AccessKey)
	setString("BACKUP_SECRET_KEY", &cfg.Backup.SecretKey)
	setString("BACKUP_BUCKET", &cfg.Backup.Bucket)
	setString("BACKUP_REGION", &cfg.Backup.Region)
	setString("BACKUP_PREFIX", &cfg.Backup.Prefix)
}

func applyProviderOverrides(prefix string, p *ProviderConfig) {
	setString(prefix+"_PROVIDER", &p.Provider)
	setString(prefix+"_API_KEY", &p.APIKey)
	setString(prefix+"_BASE_URL", &p.BaseURL)
	setString(prefix+"_MODEL", &p.Model)
	setInt(prefix+"_MAX_TOKENS", &p.MaxTokens)
	setInt(prefix+"_DIMENSIONS", &p.Dimensions)
	if v := os.Getenv(prefix + "_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			p.Temperature = float32(parsed)
		}
	}
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Enabled:      true,
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     false,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
			},
		},
		Auth: AuthConfig{
			Issuer:   "stream-guard-bot",
			TokenTTL: 24 * time.Hour,
		},
		Twitch: TwitchConfig{
			Enabled:      true,
			MessageLimit: 500,
		},
		LLM: LLMConfig{
			Embedding: ProviderConfig{
				Provider: "openai",
				Model:    "text-embedding-3-small",
			},
			Completion: ProviderConfig{
				Provider:    "openai",
				Model:       "gpt-3.5-turbo",
				Temperature: 0,
				MaxTokens:   75,
			},
		},
		Guard: GuardConfig{
			DefaultMode: "retrieval",
			Threshold:   0.5,
			Sentinel:    "I do not know.",
		},
		Storage: StorageConfig{
			Driver: StorageFile,
			File:   FileConfig{Dir: "channels"},
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
			Valkey: ValkeyConfig{Prefix: "guard"},
		},
		Backup: BackupConfig{
			Prefix: "faq-backups",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Enabled {
		if c.HTTP.Address == "" {
			return errors.New("http.address cannot be empty")
		}
		if strings.TrimSpace(c.Auth.Secret) == "" {
			return errors.New("auth.secret cannot be empty when the http api is enabled")
		}
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if c.Twitch.Enabled {
		if strings.TrimSpace(c.Twitch.Username) == "" {
			return errors.New("twitch.username cannot be empty when twitch is enabled")
		}
		if strings.TrimSpace(c.Twitch.AccessToken) == "" {
			return errors.New("twitch.accessToken cannot be empty when twitch is enabled")
		}
		if c.Twitch.MessageLimit <= 0 {
			return errors.New("twitch.messageLimit must be positive")
		}
	}
	if err := validateProvider("llm.embedding", c.LLM.Embedding); err != nil {
		return err
	}
	if err := validateProvider("llm.completion", c.LLM.Completion); err != nil {
		return err
	}
	if c.LLM.Completion.MaxTokens <= 0 {
		return errors.New("llm.completion.maxTokens must be positive")
	}
	if math.IsNaN(c.Guard.Threshold) || c.Guard.Threshold < -1 || c.Guard.Threshold > 1 {
		return errors.New("guard.threshold must be between -1 and 1")
	}
	switch strings.ToLower(c.Guard.DefaultMode) {
	case "disabled", "freeform", "retrieval":
	default:
		return fmt.Errorf("guard.defaultMode %q is not one of disabled, freeform, retrieval", c.Guard.DefaultMode)
	}
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageFile:
		if strings.TrimSpace(c.Storage.File.Dir) == "" {
			return errors.New("storage.file.dir cannot be empty")
		}
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.Postgres.DSN) == "" {
			return errors.New("storage.postgres.dsn cannot be empty")
		}
	case StorageValkey:
		if strings.TrimSpace(c.Storage.Valkey.Addr) == "" {
			return errors.New("storage.valkey.addr cannot be empty")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	if c.Backup.Enabled {
		if strings.TrimSpace(c.Backup.Endpoint) == "" || strings.TrimSpace(c.Backup.Bucket) == "" {
			return errors.New("backup.endpoint and backup.bucket are required when backups are enabled")
		}
	}
	return nil
}

func validateProvider(name string, p ProviderConfig) error {
	switch p.Provider {
	case "openai":
		if strings.TrimSpace(p.APIKey) == "" {
			return fmt.Errorf("%s.apiKey cannot be empty", name)
		}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("%s.model cannot be empty", name)
		}
	case "local":
	default:
		return fmt.Errorf("%s.provider %q is not one of openai, local", name, p.Provider)
	}
	return nil
}
