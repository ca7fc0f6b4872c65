// Package worker executes homework jobs pulled from the asynq queue:
// it downloads the job's inputs from object storage, runs the Python
// review or generation script, relays progress events over Redis, and
// persists the outcome.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"dialeval/internal/config"
	"dialeval/internal/db"
	"dialeval/internal/homework"
	"dialeval/internal/storage"
)

type Server struct {
	DB     *sqlx.DB
	S3     *storage.Client
	Jobs   *homework.JobStore
	Runner *homework.Runner
	Bus    *homework.EventBus
	Cfg    config.HomeworkConfig
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(homework.KindReview, s.handleReview)
	mux.HandleFunc(homework.KindGenerate, s.handleGenerate)
	return mux
}

func (s *Server) handleReview(ctx context.Context, t *asynq.Task) error {
	id := string(t.Payload())
	log.Printf("starting review job %s", id)

	job, err := s.Jobs.Get(ctx, id)
	if err != nil {
		log.Printf("job %s: %v", id, err)
		return nil // gone from the table, retrying won't help
	}

	var params homework.ReviewParams
	if len(job.Params) > 0 {
		if err := json.Unmarshal(job.Params, &params); err != nil {
			return s.fail(ctx, id, fmt.Sprintf("bad params: %v", err))
		}
	}

	// prepare returns the scratch dir even when a download fails
	// partway, so the cleanup runs before the error check.
	inputs, workDir, err := s.prepare(ctx, job)
	if workDir != "" {
		defer os.RemoveAll(workDir)
	}
	if err != nil {
		return s.fail(ctx, id, err.Error())
	}

	if err := s.Jobs.MarkRunning(ctx, id); err != nil {
		log.Printf("job %s: mark running: %v", id, err)
	}
	s.publish(ctx, id, homework.Event{Type: "status", Message: "running"})

	result, err := s.Runner.Review(ctx, inputs, params, filepath.Join(workDir, "out"), func(ev homework.Event) {
		s.publish(ctx, id, ev)
	})
	if err != nil {
		return s.fail(ctx, id, err.Error())
	}
	return s.finish(ctx, id, workDir, result)
}

func (s *Server) handleGenerate(ctx context.Context, t *asynq.Task) error {
	id := string(t.Payload())
	log.Printf("starting generate job %s", id)

	job, err := s.Jobs.Get(ctx, id)
	if err != nil {
		log.Printf("job %s: %v", id, err)
		return nil
	}

	inputs, workDir, err := s.prepare(ctx, job)
	if workDir != "" {
		defer os.RemoveAll(workDir)
	}
	if err != nil {
		return s.fail(ctx, id, err.Error())
	}
	if len(inputs) != 1 {
		return s.fail(ctx, id, fmt.Sprintf("generate needs exactly one input, got %d", len(inputs)))
	}

	if err := s.Jobs.MarkRunning(ctx, id); err != nil {
		log.Printf("job %s: mark running: %v", id, err)
	}
	s.publish(ctx, id, homework.Event{Type: "status", Message: "running"})

	result, err := s.Runner.Generate(ctx, inputs[0], filepath.Join(workDir, "out"), func(ev homework.Event) {
		s.publish(ctx, id, ev)
	})
	if err != nil {
		return s.fail(ctx, id, err.Error())
	}
	return s.finish(ctx, id, workDir, result)
}

// prepare downloads the job's input objects into a per-job scratch
// directory and returns their local paths.
func (s *Server) prepare(ctx context.Context, job *db.HomeworkJob) ([]string, string, error) {
	var refs []string
	if err := json.Unmarshal(job.InputRefs, &refs); err != nil {
		return nil, "", fmt.Errorf("bad input refs: %w", err)
	}

	workDir := filepath.Join(s.Cfg.RuntimeDir, job.ID)
	if err := os.MkdirAll(filepath.Join(workDir, "in"), 0o755); err != nil {
		return nil, "", fmt.Errorf("create work dir: %w", err)
	}

	inputs := make([]string, 0, len(refs))
	for i, ref := range refs {
		b, err := s.S3.GetBytes(ctx, ref)
		if err != nil {
			return nil, workDir, fmt.Errorf("download input %s: %w", ref, err)
		}
		path := filepath.Join(workDir, "in", fmt.Sprintf("input_%d%s", i, filepath.Ext(ref)))
		if err := os.WriteFile(path, b, 0o644); err != nil {
			return nil, workDir, fmt.Errorf("write input: %w", err)
		}
		inputs = append(inputs, path)
	}
	return inputs, workDir, nil
}

// finish uploads the produced files, rewrites output_files to their
// s3:// references, and marks the job done.
func (s *Server) finish(ctx context.Context, id, workDir string, result *homework.Result) error {
	uploaded := make([]string, 0, len(result.OutputFiles))
	for _, path := range result.OutputFiles {
		b, err := os.ReadFile(path)
		if err != nil {
			return s.fail(ctx, id, fmt.Sprintf("read output %s: %v", path, err))
		}
		ref, err := s.S3.PutBytes(ctx, "homework/"+id, filepath.Base(path), b, storage.ContentTypeForFile(path))
		if err != nil {
			return s.fail(ctx, id, fmt.Sprintf("upload output %s: %v", path, err))
		}
		uploaded = append(uploaded, ref)
	}
	result.OutputFiles = uploaded

	if err := s.Jobs.MarkDone(ctx, id, result); err != nil {
		log.Printf("job %s: mark done: %v", id, err)
	}
	s.publish(ctx, id, homework.Event{Type: "done"})
	log.Printf("job %s done, %d output files", id, len(uploaded))
	return nil
}

// fail records the failure and tells asynq the task is handled so it is
// not retried; job retries are the operator's call via re-submission.
func (s *Server) fail(ctx context.Context, id, reason string) error {
	log.Printf("job %s failed: %s", id, reason)
	if err := s.Jobs.MarkFailed(ctx, id, reason); err != nil {
		log.Printf("job %s: mark failed: %v", id, err)
	}
	s.publish(ctx, id, homework.Event{Type: "error", Message: reason})
	return nil
}

func (s *Server) publish(ctx context.Context, id string, ev homework.Event) {
	if err := s.Bus.Publish(ctx, id, ev); err != nil {
		log.Printf("job %s: publish event: %v", id, err)
	}
}

func Run(addr string, srv *Server) error {
	asynqSrv := asynq.NewServer(asynq.RedisClientOpt{Addr: addr}, asynq.Config{Concurrency: 5})
	return asynqSrv.Run(srv.mux())
}
