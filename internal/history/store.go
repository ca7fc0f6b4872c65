// Package history persists finished evaluations and their share links.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dialeval/internal/auth"
	"dialeval/internal/db"
)

// maxEntries caps the history table: saving entry N+1 deletes the
// oldest so storage stays bounded.
const maxEntries = 100

var ErrNotFound = errors.New("history: not found")

type Store struct {
	db *sqlx.DB
}

func NewStore(database *sqlx.DB) *Store {
	return &Store{db: database}
}

// Save inserts a finished evaluation and trims the table back down to
// the cap inside the same transaction.
func (s *Store) Save(ctx context.Context, eval *db.Evaluation) error {
	if eval.ID == "" {
		eval.ID = uuid.New().String()
	}
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = time.Now().UTC()
	}
	return db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO evaluations (id, created_at, model, total_score, full_score, final_level, report, settings, teacher_doc_ref, dialogue_ref)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			eval.ID, eval.CreatedAt, eval.Model, eval.TotalScore, eval.FullScore,
			eval.FinalLevel, eval.Report, eval.Settings, eval.TeacherDocRef, eval.DialogueRef)
		if err != nil {
			return fmt.Errorf("insert evaluation: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM evaluations
			WHERE id NOT IN (
				SELECT id FROM evaluations ORDER BY created_at DESC LIMIT $1
			)`, maxEntries)
		if err != nil {
			return fmt.Errorf("trim evaluations: %w", err)
		}
		return nil
	})
}

// List returns evaluations newest first, up to the history cap. The
// heavyweight report column is included; callers that only render the
// index should project what they need.
func (s *Store) List(ctx context.Context) ([]db.Evaluation, error) {
	var evals []db.Evaluation
	err := s.db.SelectContext(ctx, &evals, `
		SELECT * FROM evaluations ORDER BY created_at DESC LIMIT $1`, maxEntries)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evals, nil
}

func (s *Store) Get(ctx context.Context, id string) (*db.Evaluation, error) {
	var eval db.Evaluation
	err := s.db.GetContext(ctx, &eval, `SELECT * FROM evaluations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation: %w", err)
	}
	return &eval, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM evaluations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete evaluation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateShareLink mints a share token for an evaluation. The raw token
// is returned exactly once; only its hash is stored.
func (s *Store) CreateShareLink(ctx context.Context, evaluationID string, expiresAt *time.Time) (string, error) {
	if _, err := s.Get(ctx, evaluationID); err != nil {
		return "", err
	}
	token := auth.NewShareToken()
	var expires sql.NullTime
	if expiresAt != nil {
		expires = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO share_links (id, evaluation_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), evaluationID, auth.HashToken(token), time.Now().UTC(), expires)
	if err != nil {
		return "", fmt.Errorf("insert share link: %w", err)
	}
	return token, nil
}

// GetShared resolves a raw share token to its evaluation. Expired and
// unknown tokens both report ErrNotFound so callers cannot distinguish
// them.
func (s *Store) GetShared(ctx context.Context, token string) (*db.Evaluation, error) {
	var link db.ShareLink
	err := s.db.GetContext(ctx, &link, `
		SELECT * FROM share_links WHERE token_hash = $1`, auth.HashToken(token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get share link: %w", err)
	}
	if link.ExpiresAt.Valid && time.Now().After(link.ExpiresAt.Time) {
		return nil, ErrNotFound
	}
	return s.Get(ctx, link.EvaluationID)
}
