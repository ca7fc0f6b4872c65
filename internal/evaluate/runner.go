// Package evaluate orchestrates the scoring of a dialogue transcript:
// it fans sub-dimension tasks out through a bounded worker pool,
// retries transient failures, aggregates the results into dimension and
// report scores, and assembles the final narrative.
package evaluate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dialeval/internal/llm"
	"dialeval/internal/rubric"
)

// TaskFunc performs one scoring call for a task.
type TaskFunc func(ctx context.Context, task rubric.Task) (llm.SubDimensionScore, error)

// Progress describes one finished task. Result is nil when the task was
// abandoned after exhausting retries.
type Progress struct {
	Completed int
	Total     int
	Task      rubric.Task
	Result    *llm.SubDimensionScore
}

// ProgressFunc receives completion notifications. Calls are serialized
// by the runner and fire exactly once per task, so Completed is
// monotonically increasing.
type ProgressFunc func(Progress)

// Runner executes scoring tasks through a fixed-size worker pool.
type Runner struct {
	Concurrency int
	Policy      RetryPolicy
	Logger      *slog.Logger
}

// NewRunner builds a Runner with the given pool size (minimum 1).
func NewRunner(concurrency int, policy RetryPolicy, logger *slog.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Concurrency: concurrency, Policy: policy, Logger: logger}
}

// Run executes all tasks and returns the results keyed by task key.
// Tasks that exhaust their retries are omitted from the map; the
// aggregator treats missing results as zero contribution. When ctx is
// cancelled the runner stops dispatching, discards in-flight results
// and fires no further progress callbacks.
func (r *Runner) Run(ctx context.Context, tasks []rubric.Task, fn TaskFunc, onProgress ProgressFunc) map[string]llm.SubDimensionScore {
	results := make(map[string]llm.SubDimensionScore, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var mu sync.Mutex
	completed := 0
	total := len(tasks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)

	for _, task := range tasks {
		if gctx.Err() != nil {
			break
		}
		task := task
		g.Go(func() error {
			score, err := r.runTask(gctx, task, fn)

			// A cancelled run records nothing and reports nothing.
			if gctx.Err() != nil {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			var result *llm.SubDimensionScore
			if err == nil {
				results[task.Key()] = score
				result = &score
			} else {
				r.Logger.Warn("task abandoned",
					"task", task.Key(), "error", err)
			}
			completed++
			if onProgress != nil {
				onProgress(Progress{Completed: completed, Total: total, Task: task, Result: result})
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// runTask runs one task under the retry policy. Retryable failures are
// re-attempted up to MaxRetries times with backoff; anything else
// aborts immediately.
func (r *Runner) runTask(ctx context.Context, task rubric.Task, fn TaskFunc) (llm.SubDimensionScore, error) {
	var lastErr error

	for attempt := 0; attempt <= r.Policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.Policy.Backoff(attempt)
			r.Logger.Debug("retrying task",
				"task", task.Key(), "attempt", attempt, "backoff", delay)
			select {
			case <-ctx.Done():
				return llm.SubDimensionScore{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		score, err := fn(ctx, task)
		if err == nil {
			return score, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return llm.SubDimensionScore{}, err
		}
		if r.Policy.Retryable == nil || !r.Policy.Retryable(err) {
			return llm.SubDimensionScore{}, err
		}
	}
	return llm.SubDimensionScore{}, lastErr
}

// NewLLMTaskFunc wires the runner to the LLM client: build the prompt,
// call, parse. A well-formed HTTP response that is not a valid chat
// completion yields the parser's zero-score placeholder instead of an
// error, since retrying a shape problem is pointless.
func NewLLMTaskFunc(client *llm.Client, cfg llm.Config, temperature float64, input llm.PromptInput) TaskFunc {
	return func(ctx context.Context, task rubric.Task) (llm.SubDimensionScore, error) {
		prompt := llm.BuildSubDimensionPrompt(task.DimensionName, task.SubDimensionName, task.FullScore, input)
		raw, err := client.Call(ctx, prompt, cfg, temperature)
		if err != nil {
			var malformed *llm.MalformedResponseError
			if errors.As(err, &malformed) {
				score := llm.ParseFailure(err.Error())
				score.SubDimension = task.SubDimensionName
				score.FullScore = task.FullScore
				return score, nil
			}
			return llm.SubDimensionScore{}, err
		}

		score := llm.ParseSubDimensionResponse(raw)
		score.SubDimension = task.SubDimensionName
		score.FullScore = task.FullScore
		return score, nil
	}
}
