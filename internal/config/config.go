package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Reasoning Reasoning `yaml:"reasoning"`

	Analysis Analysis `yaml:"analysis"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	RateLimit struct {
		Capacity        int     `yaml:"capacity"`
		RefillPerSecond float64 `yaml:"refill_per_second"`
	} `yaml:"ratelimit"`

	Minio Minio `yaml:"minio"`

	Logging Logging `yaml:"logging"`
}

// Reasoning configures the chat-completions endpoint used for analysis.
type Reasoning struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	MaxTokens      int           `yaml:"max_tokens"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type Analysis struct {
	MaxArtifactBytes int64 `yaml:"max_artifact_bytes"`
	MaxArtifacts     int   `yaml:"max_artifacts"`
	RedactSecrets    bool  `yaml:"redact_secrets"`
}

type Minio struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"useSSL"`
}

// Enabled reports whether a bucket artifact source is configured.
func (m Minio) Enabled() bool {
	return m.Endpoint != "" && m.BucketName != ""
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Env vars consulted for the reasoning service key, in order.
var apiKeyEnv = []string{"THREATMODEL_API_KEY", "OPENAI_API_KEY"}

// Load reads the YAML file at path, applies defaults and env overrides.
// A missing file is not an error: the defaults plus env are used.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	for _, k := range apiKeyEnv {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			cfg.Reasoning.APIKey = v
			break
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Reasoning.Model == "" {
		c.Reasoning.Model = "gpt-4o-2024-08-06"
	}
	if c.Reasoning.MaxTokens == 0 {
		c.Reasoning.MaxTokens = 4096
	}
	if c.Reasoning.RequestTimeout == 0 {
		c.Reasoning.RequestTimeout = 120 * time.Second
	}
	if c.Analysis.MaxArtifactBytes == 0 {
		c.Analysis.MaxArtifactBytes = 256 << 10
	}
	if c.Analysis.MaxArtifacts == 0 {
		c.Analysis.MaxArtifacts = 50
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 10
	}
	if c.RateLimit.RefillPerSecond == 0 {
		c.RateLimit.RefillPerSecond = 0.2
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stderr"
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Reasoning.APIKey == "" {
		errs = append(errs, fmt.Errorf("reasoning.api_key is required (or set %s)", apiKeyEnv[0]))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Analysis.MaxArtifactBytes < 0 || c.Analysis.MaxArtifacts < 0 {
		errs = append(errs, errors.New("analysis limits must be positive"))
	}
	if c.RateLimit.Capacity < 0 || c.RateLimit.RefillPerSecond < 0 {
		errs = append(errs, errors.New("ratelimit values must be positive"))
	}
	if c.Minio.Endpoint != "" && c.Minio.BucketName == "" {
		errs = append(errs, errors.New("minio.bucketName is required when minio.endpoint is set"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
