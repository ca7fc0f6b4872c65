package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/dialeval_test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 180*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5, cfg.Eval.Concurrency)
	assert.Equal(t, 2, cfg.Eval.MaxRetries)
	assert.Equal(t, 0.3, cfg.Eval.Temperature)
	assert.Equal(t, "python3", cfg.Homework.PythonBin)
	assert.Equal(t, "dialeval", cfg.S3.Bucket)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "placeholder")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ADDR", ":9999")
	t.Setenv("EVAL_CONCURRENCY", "8")
	t.Setenv("LLM_TIMEOUT", "30s")
	t.Setenv("LLM_MODEL", "claude-sonnet-4.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, 8, cfg.Eval.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "claude-sonnet-4.5", cfg.LLM.Model)
}

func TestValidate(t *testing.T) {
	setRequired(t)

	t.Setenv("EVAL_CONCURRENCY", "0")
	_, err := Load()
	assert.ErrorContains(t, err, "EVAL_CONCURRENCY")

	t.Setenv("EVAL_CONCURRENCY", "5")
	t.Setenv("EVAL_TEMPERATURE", "3.5")
	_, err = Load()
	assert.ErrorContains(t, err, "EVAL_TEMPERATURE")
}
