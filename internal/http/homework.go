package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"dialeval/internal/db"
	"dialeval/internal/homework"
)

// createReviewJob uploads the submitted homework files to object
// storage, records a queued job, and enqueues it for the worker.
func (s *Server) createReviewJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeJSON(w, 400, errResp{"invalid multipart form: " + err.Error()})
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeJSON(w, 400, errResp{"no files uploaded"})
		return
	}

	params := homework.ReviewParams{
		Attempts:       formInt(r, "attempts", 1),
		OutputFormat:   r.FormValue("output_format"),
		MaxConcurrency: formInt(r, "max_concurrency", 3),
	}

	refs, err := s.uploadInputs(r, files)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	s.enqueueJob(w, r, homework.KindReview, refs, params)
}

// createGenerateJob accepts a single requirements file and enqueues a
// generation run.
func (s *Server) createGenerateJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeJSON(w, 400, errResp{"invalid multipart form: " + err.Error()})
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) != 1 {
		writeJSON(w, 400, errResp{"exactly one input file is required"})
		return
	}
	refs, err := s.uploadInputs(r, files)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	s.enqueueJob(w, r, homework.KindGenerate, refs, struct{}{})
}

func (s *Server) uploadInputs(r *http.Request, files []*multipart.FileHeader) ([]string, error) {
	refs := make([]string, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(io.LimitReader(f, 64<<20))
		f.Close()
		if err != nil {
			return nil, err
		}
		ref, err := s.S3.PutText(r.Context(), "homework/inputs", fh.Filename, string(b))
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *Server) enqueueJob(w http.ResponseWriter, r *http.Request, kind string, refs []string, params any) {
	id, err := s.Jobs.CreateJob(r.Context(), kind, refs, params)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	task := asynq.NewTask(kind, []byte(id))
	if _, err := s.Asynq.Enqueue(task, asynq.MaxRetry(0)); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"job_id": id, "status": db.JobQueued})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, homework.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	out := map[string]any{
		"id":         job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"created_at": job.CreatedAt,
	}
	if job.StartedAt.Valid {
		out["started_at"] = job.StartedAt.Time
	}
	if job.FinishedAt.Valid {
		out["finished_at"] = job.FinishedAt.Time
	}
	if job.Error.Valid {
		out["error"] = job.Error.String
	}
	var result map[string]any
	if err := json.Unmarshal(job.Result, &result); err == nil && len(result) > 0 {
		out["result"] = result
	}
	writeJSON(w, 200, out)
}

// jobEvents relays a running job's progress events as SSE. The stream
// ends when the job reaches a terminal state or the client disconnects.
func (s *Server) jobEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.Jobs.Get(r.Context(), id)
	if errors.Is(err, homework.ErrNotFound) {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}

	// Already finished: replay the terminal state and close.
	if sendTerminal(sse, job) {
		return
	}

	events, cancel := s.Bus.Subscribe(r.Context(), id)
	defer cancel()

	// The job can finish between the lookup above and the subscription,
	// publishing its terminal event before anyone listens. Re-check so
	// the stream cannot hang on a channel that will never deliver it.
	if job, err := s.Jobs.Get(r.Context(), id); err == nil && sendTerminal(sse, job) {
		return
	}

	for ev := range events {
		if err := sse.send(ev); err != nil {
			return
		}
		if ev.Type == "done" || ev.Type == "error" {
			return
		}
	}
}

// sendTerminal replays a finished job's terminal event and reports
// whether the job was in a terminal state.
func sendTerminal(sse *sseWriter, job *db.HomeworkJob) bool {
	switch job.Status {
	case db.JobDone:
		_ = sse.send(homework.Event{Type: "done"})
		return true
	case db.JobFailed:
		_ = sse.send(errorFrame{Type: "error", Message: job.Error.String})
		return true
	}
	return false
}

func formInt(r *http.Request, field string, def int) int {
	v := r.FormValue(field)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
