package llm

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError reports missing API configuration. Fatal: surfaced
// immediately, never retried.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("未配置 LLM %s", e.Field)
}

// TimeoutError reports an elapsed per-call deadline.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("LLM请求超时(已等待%.0f秒)。可尝试更换更快的模型或缩短输入文档", e.Elapsed.Seconds())
}

// HTTPError reports a non-2xx response from the LLM backend. Body is
// truncated for logging.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API请求失败: HTTP %d\n%s", e.Status, e.Body)
}

// Transient reports whether the status suggests the request may succeed
// on retry.
func (e *HTTPError) Transient() bool {
	return e.Status == 429 || e.Status >= 500
}

// TransportError reports a connection-level failure before any HTTP
// status was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("LLM请求网络错误: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a 2xx response missing the expected
// choices[0].message.content field. Not retryable: the cause is
// response shape, not transience.
type MalformedResponseError struct {
	Raw string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("API返回格式异常: %s", e.Raw)
}

// IsRetryable classifies an error per the retry policy: timeouts,
// network failures, and transient HTTP statuses are retryable;
// configuration and response-shape errors are not.
func IsRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
