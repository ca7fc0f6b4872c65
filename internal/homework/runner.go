// Package homework shells out to the Python review and generation
// scripts and relays their progress through Redis pub/sub.
package homework

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"dialeval/internal/config"
)

// resultSentinel demarcates the final JSON payload on the script's
// stdout; everything before it is progress logging.
const resultSentinel = "__RESULT__"

// ReviewParams are the knobs for a batch review run.
type ReviewParams struct {
	Attempts       int    `json:"attempts"`
	OutputFormat   string `json:"output_format"`
	MaxConcurrency int    `json:"max_concurrency"`
}

// Result is the script's final payload.
type Result struct {
	OutputFiles []string        `json:"output_files"`
	Summary     json.RawMessage `json:"result"`
	ScoreTable  json.RawMessage `json:"score_table"`
}

// Event is one progress line from the subprocess.
type Event struct {
	Type    string `json:"type"`
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`
}

// EventFunc receives progress events as the subprocess emits them.
type EventFunc func(Event)

type Runner struct {
	cfg    config.HomeworkConfig
	llm    config.LLMConfig
	logger *slog.Logger
}

func NewRunner(cfg config.HomeworkConfig, llm config.LLMConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, llm: llm, logger: logger}
}

// Review runs review_service.py over the downloaded input files.
func (r *Runner) Review(ctx context.Context, inputs []string, params ReviewParams, outputRoot string, onEvent EventFunc) (*Result, error) {
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("encode inputs: %w", err)
	}
	if params.Attempts < 1 {
		params.Attempts = 1
	}
	if params.OutputFormat == "" {
		params.OutputFormat = "xlsx"
	}
	if params.MaxConcurrency < 1 {
		params.MaxConcurrency = 3
	}
	args := []string{
		"-u", filepath.Join(r.cfg.ScriptDir, "review_service.py"),
		"--inputs", string(inputsJSON),
		"--attempts", strconv.Itoa(params.Attempts),
		"--output-format", params.OutputFormat,
		"--output-root", outputRoot,
		"--max-concurrency", strconv.Itoa(params.MaxConcurrency),
	}
	return r.run(ctx, args, onEvent)
}

// Generate runs generate_service.py over a single requirements file.
func (r *Runner) Generate(ctx context.Context, input, outputRoot string, onEvent EventFunc) (*Result, error) {
	args := []string{
		"-u", filepath.Join(r.cfg.ScriptDir, "generate_service.py"),
		"--input", input,
		"--output-root", outputRoot,
	}
	return r.run(ctx, args, onEvent)
}

func (r *Runner) run(ctx context.Context, args []string, onEvent EventFunc) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.cfg.PythonBin, args...)
	cmd.Env = append(os.Environ(),
		"PYTHONUNBUFFERED=1",
		"AUTHORIZATION="+r.cfg.Authorization,
		"COOKIE="+r.cfg.Cookie,
		"INSTANCE_NID="+r.cfg.InstanceNID,
		"LLM_API_KEY="+r.llm.APIKey,
		"LLM_API_URL="+r.llm.BaseURL,
		"LLM_MODEL="+r.llm.Model,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.cfg.PythonBin, err)
	}

	var wg sync.WaitGroup
	var resultLine string
	sawSentinel := false

	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if sawSentinel {
				// Result payload may span a single line after the
				// sentinel; keep the first non-empty one.
				if resultLine == "" && strings.TrimSpace(line) != "" {
					resultLine = line
				}
				continue
			}
			if strings.TrimSpace(line) == resultSentinel {
				sawSentinel = true
				continue
			}
			if rest, ok := strings.CutPrefix(strings.TrimSpace(line), resultSentinel); ok {
				sawSentinel = true
				resultLine = strings.TrimSpace(rest)
				continue
			}
			if line != "" && onEvent != nil {
				onEvent(Event{Type: "log", Level: "info", Message: line})
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line != "" && onEvent != nil {
				onEvent(Event{Type: "log", Level: "error", Message: line})
			}
		}
	}()

	wg.Wait()
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if waitErr != nil {
		return nil, fmt.Errorf("subprocess failed: %w", waitErr)
	}
	if resultLine == "" {
		return nil, fmt.Errorf("subprocess exited without a %s payload", resultSentinel)
	}

	var result Result
	if err := json.Unmarshal([]byte(resultLine), &result); err != nil {
		return nil, fmt.Errorf("decode result payload: %w", err)
	}
	return &result, nil
}
