package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Secrets is the optional YAML file that carries credentials outside the
// environment. Empty fields leave the profile defaults untouched.
type Secrets struct {
	Database DatabaseSecrets `yaml:"database"`
	LLM      LLMSecrets      `yaml:"llm"`
}

type DatabaseSecrets struct {
	Driver   string `yaml:"driver"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	CA       string `yaml:"ca"`
}

type LLMSecrets struct {
	APIKey string `yaml:"api_key"`
}

func LoadSecretsFile(path string) (Secrets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Secrets{}, fmt.Errorf("read secrets file: %w", err)
	}
	return ParseSecrets(raw)
}

func ParseSecrets(raw []byte) (Secrets, error) {
	var secrets Secrets
	if err := yaml.Unmarshal(raw, &secrets); err != nil {
		return Secrets{}, fmt.Errorf("decode secrets file: %w", err)
	}
	return secrets, nil
}

func (s Secrets) apply(cfg *Config) {
	setIfPresent(&cfg.Database.Driver, s.Database.Driver)
	setIfPresent(&cfg.Database.User, s.Database.User)
	setIfPresent(&cfg.Database.Password, s.Database.Password)
	setIfPresent(&cfg.Database.Host, s.Database.Host)
	setIfPresent(&cfg.Database.Name, s.Database.Database)
	setIfPresent(&cfg.Database.TLSCA, s.Database.CA)
	setIfPresent(&cfg.LLM.APIKey, s.LLM.APIKey)
	if s.Database.Port > 0 {
		cfg.Database.Port = s.Database.Port
	}
}

func setIfPresent(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}
