package homework

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dialeval/internal/db"
)

// Job kinds, also used as asynq task types.
const (
	KindReview   = "homework:review"
	KindGenerate = "homework:generate"
)

var ErrNotFound = errors.New("homework: job not found")

// JobStore persists homework job rows.
type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(database *sqlx.DB) *JobStore {
	return &JobStore{db: database}
}

// CreateJob inserts a queued job and returns its ID.
func (s *JobStore) CreateJob(ctx context.Context, kind string, inputRefs []string, params any) (string, error) {
	refs, err := json.Marshal(inputRefs)
	if err != nil {
		return "", fmt.Errorf("encode input refs: %w", err)
	}
	p, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO homework_jobs (id, kind, status, input_refs, params, result, created_at)
		VALUES ($1, $2, $3, $4, $5, '{}'::jsonb, $6)`,
		id, kind, db.JobQueued, refs, p, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert job: %w", err)
	}
	return id, nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*db.HomeworkJob, error) {
	var job db.HomeworkJob
	err := s.db.GetContext(ctx, &job, `SELECT * FROM homework_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &job, nil
}

// MarkRunning transitions a job to running and stamps started_at.
func (s *JobStore) MarkRunning(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE homework_jobs SET status = $2, started_at = $3 WHERE id = $1`,
		id, db.JobRunning, time.Now().UTC())
	return err
}

// MarkDone stores the result payload and transitions to done.
func (s *JobStore) MarkDone(ctx context.Context, id string, result *Result) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE homework_jobs SET status = $2, result = $3, finished_at = $4 WHERE id = $1`,
		id, db.JobDone, b, time.Now().UTC())
	return err
}

// MarkFailed records the failure reason and transitions to failed.
func (s *JobStore) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE homework_jobs SET status = $2, error = $3, finished_at = $4 WHERE id = $1`,
		id, db.JobFailed, reason, time.Now().UTC())
	return err
}
