package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"glucowizard/internal/domain"
	"glucowizard/internal/infra"
	"glucowizard/internal/sqlinline"
)

// AdminPromptRepositoryPG implements domain.AdminPromptRepository.
type AdminPromptRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewAdminPromptRepository(sql infra.SQLExecutor) *AdminPromptRepositoryPG {
	return &AdminPromptRepositoryPG{sql: sql}
}

// ListActive returns active prompts, most recently updated first.
func (r *AdminPromptRepositoryPG) ListActive(ctx context.Context) ([]domain.AdminPrompt, error) {
	return r.list(ctx, sqlinline.QListActiveAdminPrompts)
}

func (r *AdminPromptRepositoryPG) List(ctx context.Context, filter domain.AdminPromptFilter) ([]domain.AdminPrompt, error) {
	return r.list(ctx, sqlinline.QListAdminPrompts, filter.Active, filter.Query)
}

func (r *AdminPromptRepositoryPG) Get(ctx context.Context, id int64) (*domain.AdminPrompt, error) {
	return scanPrompt(r.sql.QueryRow(ctx, sqlinline.QSelectAdminPrompt, id))
}

func (r *AdminPromptRepositoryPG) Create(ctx context.Context, active bool, instructions string) (*domain.AdminPrompt, error) {
	return scanPrompt(r.sql.QueryRow(ctx, sqlinline.QInsertAdminPrompt, active, instructions))
}

func (r *AdminPromptRepositoryPG) Update(ctx context.Context, id int64, active bool, instructions string) (*domain.AdminPrompt, error) {
	return scanPrompt(r.sql.QueryRow(ctx, sqlinline.QUpdateAdminPrompt, id, active, instructions))
}

func (r *AdminPromptRepositoryPG) Delete(ctx context.Context, id int64) error {
	return execOne(ctx, r.sql, sqlinline.QDeleteAdminPrompt, id)
}

func (r *AdminPromptRepositoryPG) list(ctx context.Context, query string, args ...any) ([]domain.AdminPrompt, error) {
	rows, err := r.sql.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []domain.AdminPrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, *p)
	}
	return prompts, rows.Err()
}

func scanPrompt(row pgx.Row) (*domain.AdminPrompt, error) {
	var p domain.AdminPrompt
	if err := row.Scan(&p.ID, &p.IsActive, &p.CustomInstructions, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
