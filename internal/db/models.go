package db

import (
	"database/sql"
	"time"
)

// Evaluation is one persisted evaluation run. Report and Settings hold
// raw JSON; the heavyweight input documents live in object storage and
// are referenced by s3:// keys.
type Evaluation struct {
	ID            string    `db:"id"`
	CreatedAt     time.Time `db:"created_at"`
	Model         string    `db:"model"`
	TotalScore    float64   `db:"total_score"`
	FullScore     float64   `db:"full_score"`
	FinalLevel    string    `db:"final_level"`
	Report        []byte    `db:"report"`
	Settings      []byte    `db:"settings"`
	TeacherDocRef string    `db:"teacher_doc_ref"`
	DialogueRef   string    `db:"dialogue_ref"`
}

// ShareLink grants read-only access to one evaluation via a hashed
// token. The raw token is returned once at creation and never stored.
type ShareLink struct {
	ID           string       `db:"id"`
	EvaluationID string       `db:"evaluation_id"`
	TokenHash    string       `db:"token_hash"`
	CreatedAt    time.Time    `db:"created_at"`
	ExpiresAt    sql.NullTime `db:"expires_at"`
}

// EvalTemplate is a saved dimension configuration.
type EvalTemplate struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Dimensions  []byte    `db:"dimensions"`
	IsDefault   bool      `db:"is_default"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// PromptTemplate is a shared teacher-document template in the
// marketplace. UseCount tracks popularity for ordering.
type PromptTemplate struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Content     string    `db:"content"`
	Category    string    `db:"category"`
	Author      string    `db:"author"`
	UseCount    int64     `db:"use_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Homework job states.
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// HomeworkJob tracks one batch review or generation run executed by the
// worker. InputRefs and Result hold raw JSON.
type HomeworkJob struct {
	ID         string         `db:"id"`
	Kind       string         `db:"kind"`
	Status     string         `db:"status"`
	InputRefs  []byte         `db:"input_refs"`
	Params     []byte         `db:"params"`
	Result     []byte         `db:"result"`
	Error      sql.NullString `db:"error"`
	CreatedAt  time.Time      `db:"created_at"`
	StartedAt  sql.NullTime   `db:"started_at"`
	FinishedAt sql.NullTime   `db:"finished_at"`
}
