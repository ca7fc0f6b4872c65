// Package templates persists evaluation dimension templates and the
// shared prompt-template marketplace.
package templates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dialeval/internal/db"
)

var ErrNotFound = errors.New("templates: not found")

type Store struct {
	db *sqlx.DB
}

func NewStore(database *sqlx.DB) *Store {
	return &Store{db: database}
}

func (s *Store) ListEvalTemplates(ctx context.Context) ([]db.EvalTemplate, error) {
	var out []db.EvalTemplate
	err := s.db.SelectContext(ctx, &out, `
		SELECT * FROM eval_templates ORDER BY is_default DESC, updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list eval templates: %w", err)
	}
	return out, nil
}

func (s *Store) GetEvalTemplate(ctx context.Context, id string) (*db.EvalTemplate, error) {
	var t db.EvalTemplate
	err := s.db.GetContext(ctx, &t, `SELECT * FROM eval_templates WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get eval template: %w", err)
	}
	return &t, nil
}

func (s *Store) CreateEvalTemplate(ctx context.Context, t *db.EvalTemplate) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO eval_templates (id, name, description, dimensions, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Name, t.Description, t.Dimensions, t.IsDefault, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert eval template: %w", err)
	}
	return nil
}

func (s *Store) UpdateEvalTemplate(ctx context.Context, t *db.EvalTemplate) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE eval_templates
		SET name = $2, description = $3, dimensions = $4, is_default = $5, updated_at = $6
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.Dimensions, t.IsDefault, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update eval template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEvalTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM eval_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete eval template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListPromptTemplates(ctx context.Context, category string) ([]db.PromptTemplate, error) {
	var out []db.PromptTemplate
	var err error
	if category != "" {
		err = s.db.SelectContext(ctx, &out, `
			SELECT * FROM prompt_templates WHERE category = $1
			ORDER BY use_count DESC, updated_at DESC`, category)
	} else {
		err = s.db.SelectContext(ctx, &out, `
			SELECT * FROM prompt_templates ORDER BY use_count DESC, updated_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("list prompt templates: %w", err)
	}
	return out, nil
}

func (s *Store) GetPromptTemplate(ctx context.Context, id string) (*db.PromptTemplate, error) {
	var t db.PromptTemplate
	err := s.db.GetContext(ctx, &t, `SELECT * FROM prompt_templates WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt template: %w", err)
	}
	return &t, nil
}

func (s *Store) CreatePromptTemplate(ctx context.Context, t *db.PromptTemplate) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompt_templates (id, title, description, content, category, author, use_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8)`,
		t.ID, t.Title, t.Description, t.Content, t.Category, t.Author, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert prompt template: %w", err)
	}
	return nil
}

func (s *Store) UpdatePromptTemplate(ctx context.Context, t *db.PromptTemplate) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE prompt_templates
		SET title = $2, description = $3, content = $4, category = $5, updated_at = $6
		WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Content, t.Category, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update prompt template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeletePromptTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prompt template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUse bumps a prompt template's popularity counter and returns
// the template so the client can apply it in one round trip.
func (s *Store) IncrementUse(ctx context.Context, id string) (*db.PromptTemplate, error) {
	var t db.PromptTemplate
	err := s.db.GetContext(ctx, &t, `
		UPDATE prompt_templates SET use_count = use_count + 1
		WHERE id = $1
		RETURNING *`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("increment prompt template use: %w", err)
	}
	return &t, nil
}
