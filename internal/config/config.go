package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"

	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
)

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"readTimeout"`
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		IdleTimeout  time.Duration `yaml:"idleTimeout"`
		MaxUploadMB  int64         `yaml:"maxUploadMB"`
	} `yaml:"server"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Storage struct {
		Driver    string `yaml:"driver"`
		UploadDir string `yaml:"uploadDir"`
		Minio     struct {
			Endpoint   string `yaml:"endpoint"`
			AccessKey  string `yaml:"accessKey"`
			SecretKey  string `yaml:"secretKey"`
			BucketName string `yaml:"bucketName"`
			Region     string `yaml:"region"`
			Prefix     string `yaml:"prefix"`
			UseSSL     bool   `yaml:"useSSL"`
		} `yaml:"minio"`
	} `yaml:"storage"`

	AI struct {
		// Provider is openai or local; empty picks openai when an API key is set.
		Provider  string `yaml:"provider"`
		APIKey    string `yaml:"apiKey"`
		BaseURL   string `yaml:"baseURL"`
		Model     string `yaml:"model"`
		MaxTokens int    `yaml:"maxTokens"`
	} `yaml:"ai"`

	Documents struct {
		MaxContextChars  int `yaml:"maxContextChars"`
		ContextCacheSize int `yaml:"contextCacheSize"`
	} `yaml:"documents"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8000
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 120 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Server.MaxUploadMB = 25
	cfg.CORS.AllowedOrigins = []string{"*"}
	cfg.Log.Level = "info"
	cfg.Storage.Driver = StorageLocal
	cfg.Storage.UploadDir = "uploads"
	cfg.Storage.Minio.BucketName = "uploads"
	cfg.AI.Model = "gpt-4o-mini"
	cfg.AI.MaxTokens = 2048
	cfg.Documents.MaxContextChars = 12000
	cfg.Documents.ContextCacheSize = 256
	return &cfg
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Storage.Driver, "STORAGE_DRIVER")
	setString(&c.Storage.UploadDir, "UPLOAD_DIR")
	setString(&c.Storage.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Storage.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Storage.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Storage.Minio.BucketName, "MINIO_BUCKET")
	setString(&c.AI.Provider, "AI_PROVIDER")
	setString(&c.AI.APIKey, "OPENAI_API_KEY")
	setString(&c.AI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.AI.Model, "OPENAI_MODEL")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORS.AllowedOrigins = splitCSV(v)
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Storage.Driver {
	case StorageLocal:
		if c.Storage.UploadDir == "" {
			return errors.New("storage.uploadDir is required for the local driver")
		}
	case StorageMinio:
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.BucketName == "" {
			return errors.New("storage.minio.endpoint and bucketName are required for the minio driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.AIProvider() {
	case ProviderLocal:
	case ProviderOpenAI:
		if c.AI.APIKey == "" {
			return errors.New("ai.apiKey (or OPENAI_API_KEY) is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	return nil
}

// AIProvider resolves an empty provider to openai when a key is configured.
func (c *Config) AIProvider() string {
	if c.AI.Provider != "" {
		return strings.ToLower(c.AI.Provider)
	}
	if c.AI.APIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// MaxUploadBytes converts the configured upload limit.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
