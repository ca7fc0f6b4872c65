package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dialeval/internal/db"
	"dialeval/internal/dialogue"
	"dialeval/internal/evaluate"
	"dialeval/internal/llm"
	"dialeval/internal/rubric"
)

// SSE frame types for the evaluation stream.
type startFrame struct {
	Type  string `json:"type"`
	Total int    `json:"total"`
}

type progressFrame struct {
	Type         string `json:"type"`
	Dimension    string `json:"dimension"`
	SubDimension string `json:"sub_dimension"`
	Current      int    `json:"current"`
	Total        int    `json:"total"`
}

type dimensionCompleteFrame struct {
	Type      string  `json:"type"`
	Dimension string  `json:"dimension"`
	Score     float64 `json:"score"`
	Current   int     `json:"current"`
	Total     int     `json:"total"`
}

type completeFrame struct {
	Type   string           `json:"type"`
	Report *evaluate.Report `json:"report"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// evaluationInput is a fully validated evaluation request: documents
// parsed, dimension config resolved, LLM config merged and checked.
type evaluationInput struct {
	teacherDoc     string
	dialogueText   string
	workflowConfig string
	dimCfg         rubric.DimensionsConfig
	llmCfg         llm.Config
	tasks          []rubric.Task
}

// evaluate runs a full rubric evaluation over the uploaded documents,
// streaming progress as SSE and persisting the finished report.
// Setup failures after the form is readable (missing files, unknown
// template, missing API configuration) surface as a single error frame
// on the stream, so EventSource clients see every failure mode the
// same way.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, 400, errResp{"invalid multipart form: " + err.Error()})
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}

	in, err := s.parseEvaluation(r)
	if err != nil {
		_ = sse.send(errorFrame{Type: "error", Message: err.Error()})
		return
	}
	teacherDoc, dialogueText, workflowConfig := in.teacherDoc, in.dialogueText, in.workflowConfig
	dimCfg, llmCfg, tasks := in.dimCfg, in.llmCfg, in.tasks

	_ = sse.send(startFrame{Type: "start", Total: len(tasks)})

	// Tasks remaining per dimension, so dimension_complete fires when
	// the last one lands.
	remaining := make(map[string]int, len(s.Rubric.Dimensions))
	dimScores := make(map[string]float64, len(s.Rubric.Dimensions))
	for _, t := range tasks {
		remaining[t.DimensionKey]++
	}

	policy := evaluate.RetryPolicy{
		MaxRetries: s.Cfg.Eval.MaxRetries,
		Backoff:    evaluate.ExponentialBackoff(time.Second),
		Retryable:  llm.IsRetryable,
	}
	runner := evaluate.NewRunner(s.Cfg.Eval.Concurrency, policy, s.Logger)
	fn := evaluate.NewLLMTaskFunc(s.LLM, llmCfg, s.Cfg.Eval.Temperature, llm.PromptInput{
		TeacherDoc:     teacherDoc,
		DialogueText:   dialogueText,
		WorkflowConfig: workflowConfig,
	})

	results := runner.Run(r.Context(), tasks, fn, func(p evaluate.Progress) {
		_ = sse.send(progressFrame{
			Type:         "progress",
			Dimension:    p.Task.DimensionName,
			SubDimension: p.Task.SubDimensionName,
			Current:      p.Completed,
			Total:        p.Total,
		})
		if p.Result != nil {
			dimScores[p.Task.DimensionKey] += p.Result.Score
		}
		remaining[p.Task.DimensionKey]--
		if remaining[p.Task.DimensionKey] == 0 {
			_ = sse.send(dimensionCompleteFrame{
				Type:      "dimension_complete",
				Dimension: p.Task.DimensionName,
				Score:     dimScores[p.Task.DimensionKey],
				Current:   p.Completed,
				Total:     p.Total,
			})
		}
	})

	if r.Context().Err() != nil {
		// Client disconnected; nothing left to stream or persist.
		s.Logger.Info("evaluation cancelled by client")
		return
	}

	report := evaluate.Aggregate(s.Rubric, dimCfg, tasks, results)
	evaluate.BuildSummary(report)

	if id, err := s.saveHistory(r.Context(), report, llmCfg.Model, dimCfg, teacherDoc, dialogueText); err != nil {
		s.Logger.Error("persist evaluation", "error", err)
	} else {
		report.HistoryID = id
	}

	_ = sse.send(completeFrame{Type: "complete", Report: report})
}

// parseEvaluation extracts and validates everything an evaluation run
// needs. Dispatching with a missing key or base URL would abandon
// every task with the same configuration error and persist a
// zero-score veto report, so the merged LLM config is checked here
// instead.
func (s *Server) parseEvaluation(r *http.Request) (*evaluationInput, error) {
	teacherDoc, err := formFileText(r, "teacher_doc")
	if err != nil {
		return nil, err
	}
	dialogueName, dialogueRaw, err := formFile(r, "dialogue_record")
	if err != nil {
		return nil, err
	}

	var data dialogue.Data
	if strings.HasSuffix(strings.ToLower(dialogueName), ".json") {
		data, err = dialogue.ParseJSON(dialogueRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid dialogue JSON: %w", err)
		}
	} else {
		data = dialogue.ParseTxt(string(dialogueRaw))
	}
	dialogueText := dialogue.FormatForLLM(data)
	if strings.TrimSpace(dialogueText) == "" {
		return nil, errors.New("dialogue record contains no messages")
	}

	workflowConfig, _ := formFileText(r, "workflow_config")

	dimCfg, err := s.resolveDimensions(r)
	if err != nil {
		return nil, err
	}

	llmCfg := llm.Config{
		APIKey:  s.Cfg.LLM.APIKey,
		BaseURL: s.Cfg.LLM.BaseURL,
		Model:   llm.ResolveModel(s.Cfg.LLM.Model),
	}
	if v := r.FormValue("api_key"); v != "" {
		llmCfg.APIKey = v
	}
	if v := r.FormValue("api_url"); v != "" {
		llmCfg.BaseURL = v
	}
	if v := r.FormValue("model"); v != "" {
		llmCfg.Model = llm.ResolveModel(v)
	}
	if llmCfg.APIKey == "" {
		return nil, &llm.ConfigError{Field: "API 密钥"}
	}
	if llmCfg.BaseURL == "" {
		return nil, &llm.ConfigError{Field: "API 地址"}
	}

	tasks := rubric.BuildTasks(s.Rubric, dimCfg, s.Logger)
	if len(tasks) == 0 {
		return nil, errors.New("no enabled sub-dimensions to evaluate")
	}

	return &evaluationInput{
		teacherDoc:     teacherDoc,
		dialogueText:   dialogueText,
		workflowConfig: workflowConfig,
		dimCfg:         dimCfg,
		llmCfg:         llmCfg,
		tasks:          tasks,
	}, nil
}

// resolveDimensions loads the template named by the request, falling
// back to the default configuration.
func (s *Server) resolveDimensions(r *http.Request) (rubric.DimensionsConfig, error) {
	templateID := r.FormValue("template_id")
	if templateID == "" || s.Templates == nil {
		return rubric.DefaultConfig(s.Rubric), nil
	}
	tpl, err := s.Templates.GetEvalTemplate(r.Context(), templateID)
	if err != nil {
		return nil, err
	}
	var cfg rubric.DimensionsConfig
	if err := json.Unmarshal(tpl.Dimensions, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// saveHistory uploads the input documents and inserts the history row.
// Persistence failures never fail the evaluation itself.
func (s *Server) saveHistory(ctx context.Context, report *evaluate.Report, model string, dimCfg rubric.DimensionsConfig, teacherDoc, dialogueText string) (string, error) {
	if s.History == nil {
		return "", nil
	}

	var teacherRef, dialogueRef string
	if s.S3 != nil {
		if ref, err := s.S3.PutText(ctx, "evaluations", "teacher_doc.md", teacherDoc); err == nil {
			teacherRef = ref
		} else {
			s.Logger.Warn("upload teacher doc", "error", err)
		}
		if ref, err := s.S3.PutText(ctx, "evaluations", "dialogue.md", dialogueText); err == nil {
			dialogueRef = ref
		} else {
			s.Logger.Warn("upload dialogue", "error", err)
		}
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return "", err
	}
	settingsJSON, err := json.Marshal(dimCfg)
	if err != nil {
		return "", err
	}
	eval := &db.Evaluation{
		Model:         model,
		TotalScore:    report.TotalScore,
		FullScore:     report.FullScore,
		FinalLevel:    report.FinalLevel,
		Report:        reportJSON,
		Settings:      settingsJSON,
		TeacherDocRef: teacherRef,
		DialogueRef:   dialogueRef,
	}
	if err := s.History.Save(ctx, eval); err != nil {
		return "", err
	}
	return eval.ID, nil
}

func formFile(r *http.Request, field string) (string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, &missingFieldError{field}
	}
	defer file.Close()
	b, err := io.ReadAll(io.LimitReader(file, 32<<20))
	if err != nil {
		return "", nil, err
	}
	return header.Filename, b, nil
}

func formFileText(r *http.Request, field string) (string, error) {
	_, b, err := formFile(r, field)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type missingFieldError struct {
	field string
}

func (e *missingFieldError) Error() string {
	return "missing or unreadable file field: " + e.field
}
