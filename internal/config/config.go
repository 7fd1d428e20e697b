package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	LLM           LLMConfig
	Prompt        PromptConfig
	ObjectStore   ObjectStoreConfig
	Archive       ArchiveConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver          string
	User            string
	Password        string
	Host            string
	Port            int
	Name            string
	TLSCA           string
	ReadOnly        bool
	QueryTimeout    time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type LLMConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type PromptConfig struct {
	Domain string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ArchiveConfig struct {
	Enabled bool
	Prefix  string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("QUERYBOT_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid QUERYBOT_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if raw, ok := lookup("QUERYBOT_SECRETS_FILE"); ok && strings.TrimSpace(raw) != "" {
		secrets, err := LoadSecretsFile(strings.TrimSpace(raw))
		if err != nil {
			return Config{}, err
		}
		secrets.apply(&cfg)
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "QUERYBOT_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "QUERYBOT_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "QUERYBOT_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "QUERYBOT_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "QUERYBOT_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "QUERYBOT_DB_DRIVER", &cfg.Database.Driver) },
		func() error { return applyString(lookup, "QUERYBOT_DB_USER", &cfg.Database.User) },
		func() error { return applyString(lookup, "QUERYBOT_DB_PASSWORD", &cfg.Database.Password) },
		func() error { return applyString(lookup, "QUERYBOT_DB_HOST", &cfg.Database.Host) },
		func() error { return applyInt(lookup, "QUERYBOT_DB_PORT", &cfg.Database.Port) },
		func() error { return applyString(lookup, "QUERYBOT_DB_DATABASE", &cfg.Database.Name) },
		func() error { return applyString(lookup, "QUERYBOT_DB_TLS_CA", &cfg.Database.TLSCA) },
		func() error { return applyBool(lookup, "QUERYBOT_DB_READ_ONLY", &cfg.Database.ReadOnly) },
		func() error { return applyDuration(lookup, "QUERYBOT_DB_QUERY_TIMEOUT", &cfg.Database.QueryTimeout) },
		func() error { return applyInt(lookup, "QUERYBOT_DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns) },
		func() error { return applyInt(lookup, "QUERYBOT_DB_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "QUERYBOT_DB_CONN_MAX_IDLE_TIME", &cfg.Database.ConnMaxIdleTime)
		},
		func() error {
			return applyDuration(lookup, "QUERYBOT_DB_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime)
		},
		func() error { return applyString(lookup, "QUERYBOT_LLM_PROVIDER", &cfg.LLM.Provider) },
		func() error { return applyString(lookup, "QUERYBOT_LLM_BASE_URL", &cfg.LLM.BaseURL) },
		func() error { return applyString(lookup, "QUERYBOT_LLM_API_KEY", &cfg.LLM.APIKey) },
		func() error { return applyString(lookup, "QUERYBOT_LLM_MODEL", &cfg.LLM.Model) },
		func() error { return applyFloat(lookup, "QUERYBOT_LLM_TEMPERATURE", &cfg.LLM.Temperature) },
		func() error { return applyInt(lookup, "QUERYBOT_LLM_MAX_TOKENS", &cfg.LLM.MaxTokens) },
		func() error { return applyDuration(lookup, "QUERYBOT_LLM_TIMEOUT", &cfg.LLM.Timeout) },
		func() error { return applyString(lookup, "QUERYBOT_PROMPT_DOMAIN", &cfg.Prompt.Domain) },
		func() error { return applyString(lookup, "QUERYBOT_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "QUERYBOT_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "QUERYBOT_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error { return applyString(lookup, "QUERYBOT_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID) },
		func() error {
			return applyString(lookup, "QUERYBOT_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "QUERYBOT_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "QUERYBOT_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error {
			return applyBool(lookup, "QUERYBOT_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket)
		},
		func() error { return applyBool(lookup, "QUERYBOT_ARCHIVE_ENABLED", &cfg.Archive.Enabled) },
		func() error { return applyString(lookup, "QUERYBOT_ARCHIVE_PREFIX", &cfg.Archive.Prefix) },
		func() error { return applyBool(lookup, "QUERYBOT_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "QUERYBOT_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "QUERYBOT_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "QUERYBOT_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if err := applyLLMProviderDefaults(&cfg.LLM); err != nil {
		return Config{}, err
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		return Config{}, fmt.Errorf("invalid QUERYBOT_LLM_TEMPERATURE: %v", cfg.LLM.Temperature)
	}
	if err := validateWriteTimeout(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// An ask makes two model calls and one query before it writes its response.
func validateWriteTimeout(cfg Config) error {
	if cfg.HTTP.WriteTimeout <= 0 || cfg.LLM.Timeout <= 0 {
		return nil
	}
	budget := 2*cfg.LLM.Timeout + cfg.Database.QueryTimeout
	if cfg.HTTP.WriteTimeout <= budget {
		return fmt.Errorf("invalid QUERYBOT_HTTP_WRITE_TIMEOUT: %s must exceed twice QUERYBOT_LLM_TIMEOUT plus QUERYBOT_DB_QUERY_TIMEOUT (%s)", cfg.HTTP.WriteTimeout, budget)
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "querybot-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 180 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			User:            "root",
			Host:            "localhost",
			Port:            3306,
			Name:            "chinook",
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		LLM: LLMConfig{
			Provider:    "huggingface",
			Temperature: 0.1,
			MaxTokens:   512,
			Timeout:     60 * time.Second,
		},
		Prompt: PromptConfig{
			Domain: "music company",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "querybot",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Prefix:  "exchanges",
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

// applyLLMProviderDefaults fills the endpoint and model of the selected
// provider when they were not configured explicitly.
func applyLLMProviderDefaults(cfg *LLMConfig) error {
	cfg.Provider = strings.ToLower(cfg.Provider)
	var baseURL, model string
	switch cfg.Provider {
	case "huggingface":
		baseURL, model = "https://api-inference.huggingface.co", "mistralai/Mistral-7B-Instruct-v0.2"
	case "gemini":
		baseURL, model = "https://generativelanguage.googleapis.com", "gemini-pro"
	case "openai":
		baseURL, model = "https://api.openai.com", "gpt-5"
	default:
		return fmt.Errorf("invalid QUERYBOT_LLM_PROVIDER: %q", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	if cfg.Model == "" {
		cfg.Model = model
	}
	return nil
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
