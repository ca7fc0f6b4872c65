// Package llm issues single chat-completion requests to the configured
// LLM gateway and turns free-form model output into structured
// sub-dimension scores. Retry lives in the task runner, not here.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxResponseSize limits the response body read to prevent memory
// exhaustion on a misbehaving backend.
const maxResponseSize = 10 * 1024 * 1024

// maxErrorBody caps how much of an error response ends up in messages.
const maxErrorBody = 500

const systemPrompt = "你是一位资深的教学质量评估专家,擅长分析教学智能体的对话质量。你的评价客观、专业、有建设性。" +
	"你只输出JSON,不输出任何其他内容。"

// Config identifies a chat-completion backend for one call. Per-request
// overrides from the API surface are merged into this before use.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client is a thin single-call LLM client with a hard per-call deadline
// and optional request pacing.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithTimeout sets the hard per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

// WithRateLimit caps outbound requests per second. rps <= 0 disables
// pacing.
func WithRateLimit(rps float64) Option {
	return func(cl *Client) {
		if rps > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// NewClient creates a Client with a 180-second default deadline.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    180 * time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest matches the gateway's expected body shape.
type chatRequest struct {
	MaxTokens       int           `json:"maxTokens"`
	Messages        []chatMessage `json:"messages"`
	Model           string        `json:"model"`
	N               int           `json:"n"`
	PresencePenalty float64       `json:"presencePenalty"`
	Temperature     float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Call sends one completion request and returns the raw text content.
// Fails fast on missing configuration; classifies failures so the
// runner can decide what to retry.
func (c *Client) Call(ctx context.Context, prompt string, cfg Config, temperature float64) (string, error) {
	if cfg.APIKey == "" {
		return "", &ConfigError{Field: "API 密钥"}
	}
	if cfg.BaseURL == "" {
		return "", &ConfigError{Field: "API 地址"}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	body, err := json.Marshal(chatRequest{
		MaxTokens: 4000,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Model:           cfg.Model,
		N:               1,
		PresencePenalty: 0.0,
		Temperature:     temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", cfg.APIKey)

	c.logger.Debug("sending LLM request", "model", cfg.Model, "url", cfg.BaseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Distinguish our deadline from caller cancellation.
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", &TimeoutError{Elapsed: time.Since(start)}
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", &TimeoutError{Elapsed: time.Since(start)}
		}
		return "", &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{Status: resp.StatusCode, Body: truncate(string(respBody), maxErrorBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &MalformedResponseError{Raw: truncate(string(respBody), maxErrorBody)}
	}
	if len(parsed.Choices) == 0 {
		return "", &MalformedResponseError{Raw: truncate(string(respBody), maxErrorBody)}
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
