// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all process configuration. Values come from the
// environment; per-request API overrides take precedence at call time.
type Config struct {
	Addr        string `envconfig:"ADDR" default:":8000"`
	APIToken    string `envconfig:"API_TOKEN"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	LLM      LLMConfig
	Eval     EvalConfig
	Homework HomeworkConfig
	S3       S3Config
}

// LLMConfig holds defaults for the chat-completion backend.
type LLMConfig struct {
	APIKey  string        `envconfig:"LLM_API_KEY"`
	BaseURL string        `envconfig:"LLM_BASE_URL"`
	Model   string        `envconfig:"LLM_MODEL" default:"gpt-4o"`
	Timeout time.Duration `envconfig:"LLM_TIMEOUT" default:"180s"`
	// RPS caps outbound LLM requests per second. 0 disables pacing.
	RPS float64 `envconfig:"LLM_RPS" default:"0"`
}

// EvalConfig controls the evaluation task runner.
type EvalConfig struct {
	Concurrency int     `envconfig:"EVAL_CONCURRENCY" default:"5"`
	MaxRetries  int     `envconfig:"EVAL_MAX_RETRIES" default:"2"`
	Temperature float64 `envconfig:"EVAL_TEMPERATURE" default:"0.3"`
}

// HomeworkConfig locates the external Python review/generation service
// and carries the platform credentials it needs.
type HomeworkConfig struct {
	PythonBin     string `envconfig:"PYTHON_BIN" default:"python3"`
	ScriptDir     string `envconfig:"HOMEWORK_SCRIPT_DIR" default:"./homework_review"`
	RuntimeDir    string `envconfig:"HOMEWORK_RUNTIME_DIR" default:"./runtime"`
	Authorization string `envconfig:"HOMEWORK_AUTHORIZATION"`
	Cookie        string `envconfig:"HOMEWORK_COOKIE"`
	InstanceNID   string `envconfig:"HOMEWORK_INSTANCE_NID"`
}

// S3Config holds object storage settings (MinIO-compatible).
type S3Config struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"dialeval"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks invariants that envconfig tags cannot express.
func (c *Config) Validate() error {
	if c.Eval.Concurrency < 1 {
		return fmt.Errorf("EVAL_CONCURRENCY must be >= 1, got %d", c.Eval.Concurrency)
	}
	if c.Eval.MaxRetries < 0 {
		return fmt.Errorf("EVAL_MAX_RETRIES must be >= 0, got %d", c.Eval.MaxRetries)
	}
	if c.Eval.Temperature < 0 || c.Eval.Temperature > 2 {
		return fmt.Errorf("EVAL_TEMPERATURE must be in [0,2], got %g", c.Eval.Temperature)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLM.Timeout)
	}
	return nil
}
