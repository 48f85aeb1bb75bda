package repo

import (
	"context"

	"glucowizard/internal/domain"
	"glucowizard/internal/infra"
	"glucowizard/internal/sqlinline"
)

// OAuthFlowRepositoryPG implements domain.OAuthFlowRepository.
type OAuthFlowRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewOAuthFlowRepository(sql infra.SQLExecutor) *OAuthFlowRepositoryPG {
	return &OAuthFlowRepositoryPG{sql: sql}
}

func (r *OAuthFlowRepositoryPG) Save(ctx context.Context, flow domain.OAuthFlow) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertOAuthFlow, flow.ID, flow.CodeVerifier, flow.RedirectTo, flow.ExpiresAt)
	return err
}

// Consume removes the flow and returns it. Expired or unknown flows yield domain.ErrNotFound.
func (r *OAuthFlowRepositoryPG) Consume(ctx context.Context, id string) (*domain.OAuthFlow, error) {
	flow := domain.OAuthFlow{ID: id}
	if err := r.sql.QueryRow(ctx, sqlinline.QConsumeOAuthFlow, id).Scan(&flow.CodeVerifier, &flow.RedirectTo); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &flow, nil
}
