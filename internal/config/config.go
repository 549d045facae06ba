package config

import (
	"encoding/base64"
	"fmt"

	yamlenv "github.com/ifuryst/go-yaml-env"

	"github.com/iadityaojha/postflow/pkg/logger"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Logger     logger.Config    `yaml:"logger"`
	Security   SecurityConfig   `yaml:"security"`
	Generation GenerationConfig `yaml:"generation"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	Host      string `yaml:"host"`
	Mode      string `yaml:"mode"`
	CertFile  string `yaml:"cert_file"`
	KeyFile   string `yaml:"key_file"`
	UploadDir string `yaml:"upload_dir"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	TimeZone string `yaml:"timezone"`
	Path     string `yaml:"path"`
}

// SecurityConfig carries the secrets the process needs at startup. MasterKey
// is the base64-encoded 32-byte AES key for the credential vault; rotating it
// invalidates every stored credential, so it only changes on redeploy.
type SecurityConfig struct {
	MasterKey string `yaml:"master_key"`
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  string `yaml:"token_ttl"`
}

type GenerationConfig struct {
	OpenAIModel string  `yaml:"openai_model"`
	GeminiModel string  `yaml:"gemini_model"`
	Temperature float64 `yaml:"temperature"`
}

// SchedulerConfig controls the delivery loop. The zero value runs it with
// defaults; set disabled for API-only deployments.
type SchedulerConfig struct {
	Disabled       bool   `yaml:"disabled"`
	PollInterval   string `yaml:"poll_interval"`
	MaxRetries     int    `yaml:"max_retries"`
	PublishTimeout string `yaml:"publish_timeout"`
}

func LoadConfig(configPath string) (*Config, error) {
	cfg, err := yamlenv.LoadConfig[Config](configPath)
	if err != nil {
		return nil, err
	}

	// Set default values
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = "uploads"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Security.TokenTTL == "" {
		cfg.Security.TokenTTL = "24h"
	}
	if cfg.Generation.OpenAIModel == "" {
		cfg.Generation.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.Generation.GeminiModel == "" {
		cfg.Generation.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.7
	}
	if cfg.Scheduler.PollInterval == "" {
		cfg.Scheduler.PollInterval = "1m"
	}
	if cfg.Scheduler.MaxRetries == 0 {
		cfg.Scheduler.MaxRetries = 3
	}
	if cfg.Scheduler.PublishTimeout == "" {
		cfg.Scheduler.PublishTimeout = "30s"
	}
	return cfg, nil
}

// DecodeMasterKey validates and decodes the configured vault master key.
func (c *SecurityConfig) DecodeMasterKey() ([]byte, error) {
	if c.MasterKey == "" {
		return nil, fmt.Errorf("security.master_key is required")
	}
	key, err := base64.StdEncoding.DecodeString(c.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("security.master_key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("security.master_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
