package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/screen-analyst/internal/domain/ai"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Server struct {
		Port        int      `yaml:"port"`
		MaxUploadMB int64    `yaml:"maxUploadMB"`
		CORSOrigins []string `yaml:"corsOrigins"`
		RateLimit   struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Gateway struct {
		Provider     string        `yaml:"provider"`
		APIKey       string        `yaml:"apiKey"`
		BaseURL      string        `yaml:"baseURL"`
		Model        string        `yaml:"model"`
		VideoModels  []string      `yaml:"videoModels"`
		PollInterval time.Duration `yaml:"pollInterval"`
		MaxPolls     int           `yaml:"maxPolls"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"gateway"`

	Analysis struct {
		MaxAttempts      int           `yaml:"maxAttempts"`
		RateLimitBackoff time.Duration `yaml:"rateLimitBackoff"`
	} `yaml:"analysis"`

	Minio struct {
		Endpoint   string        `yaml:"endpoint"`
		AccessKey  string        `yaml:"accessKey"`
		SecretKey  string        `yaml:"secretKey"`
		BucketName string        `yaml:"bucketName"`
		Region     string        `yaml:"region"`
		UseSSL     bool          `yaml:"useSSL"`
		URLExpiry  time.Duration `yaml:"urlExpiry"`
	} `yaml:"minio"`
}

// Load reads .env (if any) and the yaml file at path. A missing yaml file
// is not an error, defaults and environment variables are enough to run.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 200
	}
	if c.Server.RateLimit.RPS == 0 {
		c.Server.RateLimit.RPS = 0.2
	}
	if c.Server.RateLimit.Burst == 0 {
		c.Server.RateLimit.Burst = 3
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	c.Gateway.Provider = strings.ToLower(strings.TrimSpace(c.Gateway.Provider))
	if c.Gateway.Provider == "" {
		c.Gateway.Provider = ProviderGemini
	}
	if c.Gateway.PollInterval == 0 {
		c.Gateway.PollInterval = 10 * time.Second
	}
	if c.Gateway.MaxPolls == 0 {
		c.Gateway.MaxPolls = 60
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = 180 * time.Second
	}
	if c.Analysis.MaxAttempts == 0 {
		c.Analysis.MaxAttempts = 3
	}
	if c.Analysis.RateLimitBackoff == 0 {
		c.Analysis.RateLimitBackoff = 30 * time.Second
	}
	if c.Minio.BucketName == "" {
		c.Minio.BucketName = "recordings"
	}
	if c.Minio.URLExpiry == 0 {
		c.Minio.URLExpiry = time.Hour
	}
}

func (c *Config) Validate() error {
	switch c.Gateway.Provider {
	case ProviderGemini:
	case ProviderOpenAI:
		if c.Minio.Endpoint == "" {
			return errors.New("config: openai provider needs minio.endpoint for staging recordings")
		}
		if !ai.AcceptsVideo(c.Gateway.Model, c.Gateway.VideoModels) {
			return fmt.Errorf("config: openai provider needs gateway.model listed in gateway.videoModels, got %q", c.Gateway.Model)
		}
	default:
		return fmt.Errorf("config: unknown gateway provider %q (allowed: gemini, openai)", c.Gateway.Provider)
	}
	if c.Analysis.MaxAttempts < 1 {
		return errors.New("config: analysis.maxAttempts must be at least 1")
	}
	return nil
}

// ResolveAPIKey prefers the per-request key over the configured one. An empty
// result lets the gateway fall back to its environment variable.
func (c *Config) ResolveAPIKey(explicit string) string {
	if k := strings.TrimSpace(explicit); k != "" {
		return k
	}
	return strings.TrimSpace(c.Gateway.APIKey)
}

// MaxUploadBytes is the request body cap for uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.Server.MaxUploadMB << 20
}
