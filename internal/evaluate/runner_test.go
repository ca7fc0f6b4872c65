package evaluate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialeval/internal/llm"
	"dialeval/internal/rubric"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		Backoff:    func(int) time.Duration { return time.Millisecond },
		Retryable:  llm.IsRetryable,
	}
}

func testTasks(n int) []rubric.Task {
	r := rubric.Default()
	tasks := rubric.BuildTasks(r, rubric.DefaultConfig(r), nil)
	return tasks[:n]
}

func TestRunner_AllTasksSucceed(t *testing.T) {
	tasks := testTasks(6)
	runner := NewRunner(3, fastPolicy(2), nil)

	var mu sync.Mutex
	var seen []Progress
	results := runner.Run(context.Background(), tasks, func(ctx context.Context, task rubric.Task) (llm.SubDimensionScore, error) {
		return llm.SubDimensionScore{SubDimension: task.SubDimensionName, Score: 3, FullScore: task.FullScore}, nil
	}, func(p Progress) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})

	require.Len(t, results, len(tasks))
	for _, task := range tasks {
		assert.Contains(t, results, task.Key())
	}

	// Progress fires exactly once per task with a monotonic counter.
	require.Len(t, seen, len(tasks))
	for i, p := range seen {
		assert.Equal(t, i+1, p.Completed)
		assert.Equal(t, len(tasks), p.Total)
		require.NotNil(t, p.Result)
	}
}

func TestRunner_ConcurrencyBound(t *testing.T) {
	tasks := testTasks(10)
	runner := NewRunner(3, fastPolicy(0), nil)

	var current, peak atomic.Int32
	runner.Run(context.Background(), tasks, func(ctx context.Context, task rubric.Task) (llm.SubDimensionScore, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return llm.SubDimensionScore{}, nil
	}, nil)

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestRunner_RetriesTransientThenSucceeds(t *testing.T) {
	tasks := testTasks(1)
	runner := NewRunner(1, fastPolicy(2), nil)

	var attempts atomic.Int32
	results := runner.Run(context.Background(), tasks, func(ctx context.Context, task rubric.Task) (llm.SubDimensionScore, error) {
		if attempts.Add(1) <= 2 {
			return llm.SubDimensionScore{}, &llm.HTTPError{Status: 503, Body: "overloaded"}
		}
		return llm.SubDimensionScore{Score: 4}, nil
	}, nil)

	assert.Equal(t, int32(3), attempts.Load())
	require.Contains(t, results, tasks[0].Key())
	assert.Equal(t, 4.0, results[tasks[0].Key()].Score)
}

func TestRunner_FatalErrorAbortsWithoutRetry(t *testing.T) {
	tasks := testTasks(1)
	runner := NewRunner(1, fastPolicy(2), nil)

	var attempts atomic.Int32
	var abandoned *Progress
	results := runner.Run(context.Background(), tasks, func(ctx context.Context, task rubric.Task) (llm.SubDimensionScore, error) {
		attempts.Add(1)
		return llm.SubDimensionScore{}, &llm.ConfigError{Field: "API 密钥"}
	}, func(p Progress) {
		abandoned = &p
	})

	assert.Equal(t, int32(1), attempts.Load())
	assert.Empty(t, results)
	require.NotNil(t, abandoned)
	assert.Nil(t, abandoned.Result)
}

func TestRunner_ExhaustedRetriesOmitted(t *testing.T) {
	tasks := testTasks(2)
	runner := NewRunner(2, fastPolicy(2), nil)

	results := runner.Run(context.Background(), tasks, func(ctx context.Context, task rubric.Task) (llm.SubDimensionScore, error) {
		if task.Key() == tasks[0].Key() {
			return llm.SubDimensionScore{}, &llm.HTTPError{Status: 500, Body: "boom"}
		}
		return llm.SubDimensionScore{Score: 2}, nil
	}, nil)

	assert.NotContains(t, results, tasks[0].Key())
	assert.Contains(t, results, tasks[1].Key())
}

func TestRunner_CancellationStopsProgress(t *testing.T) {
	tasks := testTasks(10)
	runner := NewRunner(2, fastPolicy(0), nil)

	ctx, cancel := context.WithCancel(context.Background())
	var progressCalls atomic.Int32
	var started atomic.Int32

	results := runner.Run(ctx, tasks, func(ctx context.Context, task rubric.Task) (llm.SubDimensionScore, error) {
		if started.Add(1) == 2 {
			cancel()
		}
		time.Sleep(5 * time.Millisecond)
		return llm.SubDimensionScore{Score: 1}, nil
	}, func(p Progress) {
		progressCalls.Add(1)
	})

	// Whatever finished before cancellation is all we get; nothing fires
	// afterwards.
	assert.Less(t, len(results), len(tasks))
	assert.LessOrEqual(t, int(progressCalls.Load()), len(results)+2)
}

func TestNewLLMTaskFunc_MalformedBecomesPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	task := testTasks(1)[0]
	fn := NewLLMTaskFunc(llm.NewClient(), llm.Config{APIKey: "k", BaseURL: srv.URL, Model: "m"}, 0.3, llm.PromptInput{})

	score, err := fn(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score.Score)
	assert.Equal(t, task.SubDimensionName, score.SubDimension)
	assert.Equal(t, task.FullScore, score.FullScore)
	assert.Contains(t, score.JudgmentBasis, "解析失败")
}

func TestNewLLMTaskFunc_Success(t *testing.T) {
	payload := `{"score": 7, "full_score": 10, "rating": "良好", "judgment_basis": "覆盖充分"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": payload}}},
		})
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	task := testTasks(1)[0]
	fn := NewLLMTaskFunc(llm.NewClient(), llm.Config{APIKey: "k", BaseURL: srv.URL, Model: "m"}, 0.3, llm.PromptInput{})

	score, err := fn(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, 7.0, score.Score)
	assert.Equal(t, task.SubDimensionName, score.SubDimension)
	assert.Equal(t, task.FullScore, score.FullScore)
	assert.Equal(t, "良好", score.Rating)
}
