package repo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glucowizard/internal/domain"
	"glucowizard/internal/infra/sqltest"
	"glucowizard/internal/sqlinline"
)

func userValues(id int64, username, email string) []any {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return []any{id, username, email, "", "", "", false, false, true, now, nil, now}
}

func TestUserRepositoryGetByEmailNotFound(t *testing.T) {
	repo := NewUserRepository(&sqltest.Executor{})
	_, err := repo.GetByEmail(context.Background(), "none@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserRepositoryCreate(t *testing.T) {
	exec := &sqltest.Executor{
		QueryRowFn: func(query string, args []any) pgx.Row {
			require.Equal(t, sqlinline.QInsertUser, query)
			return sqltest.Row{Values: userValues(11, args[0].(string), args[1].(string))}
		},
	}
	repo := NewUserRepository(exec)
	user, err := repo.Create(context.Background(), domain.NewUser{Username: "alice", Email: "alice@example.com", PasswordHash: "h"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.IsActive)
	assert.Nil(t, user.LastLogin)
}

func TestUserRepositoryCreateConflict(t *testing.T) {
	exec := &sqltest.Executor{
		QueryRowFn: func(query string, args []any) pgx.Row {
			return sqltest.Row{Err: &pgconn.PgError{Code: "23505"}}
		},
	}
	_, err := NewUserRepository(exec).Create(context.Background(), domain.NewUser{Username: "alice"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserRepositoryUpdateAvatarMissingUser(t *testing.T) {
	exec := &sqltest.Executor{
		ExecFn: func(query string, args []any) (pgconn.CommandTag, error) {
			return sqltest.Tag(0), nil
		},
	}
	err := NewUserRepository(exec).UpdateAvatar(context.Background(), 5, "https://x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReportRepositoryCreateDefaultsValues(t *testing.T) {
	created := time.Now()
	exec := &sqltest.Executor{
		QueryRowFn: func(query string, args []any) pgx.Row {
			return sqltest.Row{Values: []any{created, created}}
		},
	}
	rep := &domain.Report{ID: "8b0c0a44-6f4e-4b0e-8d7c-1f0b7a6f7f10", UserID: 3, Status: domain.ReportStatusProcessing}
	require.NoError(t, NewReportRepository(exec).Create(context.Background(), rep))

	call := exec.CallsFor(sqlinline.QInsertReport)
	require.Len(t, call, 1)
	assert.Equal(t, json.RawMessage(`{}`), call[0].Args[2])
	assert.Equal(t, "processing", call[0].Args[4])
	assert.True(t, rep.CreatedAt.Equal(created))
}

func TestReportRepositoryCompleteUpdatesModel(t *testing.T) {
	exec := &sqltest.Executor{
		QueryRowFn: func(query string, args []any) pgx.Row {
			return sqltest.Row{Values: []any{time.Now()}}
		},
	}
	rep := &domain.Report{ID: "id", Status: domain.ReportStatusProcessing}
	err := NewReportRepository(exec).Complete(context.Background(), rep, domain.ReportResult{
		ResponseID:  "resp_1",
		SummaryText: "ok",
		Raw:         json.RawMessage(`not json`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReportStatusDone, rep.Status)
	assert.Equal(t, "resp_1", rep.OpenAIResponseID)
	assert.Equal(t, json.RawMessage(`{}`), rep.AIRaw)
}

func TestReportRepositoryListByUser(t *testing.T) {
	now := time.Now()
	exec := &sqltest.Executor{
		QueryFn: func(query string, args []any) (pgx.Rows, error) {
			return &sqltest.Rows{Data: [][]any{
				{"a", "reports/1/a/x.pdf", now, int64(5)},
				{"b", "", now, int64(5)},
			}}, nil
		},
	}
	items, total, err := NewReportRepository(exec).ListByUser(context.Background(), 1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 2)
	assert.Equal(t, "reports/1/a/x.pdf", items[0].PDFFile)
}

func TestReportRepositoryListPastLastPageKeepsTotal(t *testing.T) {
	exec := &sqltest.Executor{
		QueryRowFn: func(query string, args []any) pgx.Row {
			if query == sqlinline.QCountReportsByUser {
				return sqltest.Row{Values: []any{int64(5)}}
			}
			return sqltest.Row{Err: pgx.ErrNoRows}
		},
	}
	items, total, err := NewReportRepository(exec).ListByUser(context.Background(), 7, 20, 100)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, int64(5), total)

	calls := exec.CallsFor(sqlinline.QCountReportsByUser)
	require.Len(t, calls, 1)
	assert.Equal(t, []any{int64(7)}, calls[0].Args)
}

func TestReportRepositoryAdminListPastLastPageKeepsTotal(t *testing.T) {
	exec := &sqltest.Executor{
		QueryRowFn: func(query string, args []any) pgx.Row {
			if query == sqlinline.QAdminCountReports {
				return sqltest.Row{Values: []any{int64(12)}}
			}
			return sqltest.Row{Err: pgx.ErrNoRows}
		},
	}
	rows, total, err := NewReportRepository(exec).AdminList(context.Background(), domain.AdminReportFilter{
		Status: "done",
		Query:  "budi",
		Limit:  20,
		Offset: 40,
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int64(12), total)

	calls := exec.CallsFor(sqlinline.QAdminCountReports)
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Args, 4)
	assert.Equal(t, "done", calls[0].Args[0])
	assert.Equal(t, "budi", calls[0].Args[3])
}

func TestReportRepositoryEmptyFirstPageSkipsCount(t *testing.T) {
	exec := &sqltest.Executor{}
	_, total, err := NewReportRepository(exec).ListByUser(context.Background(), 7, 20, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, exec.CallsFor(sqlinline.QCountReportsByUser))
}

func TestReportRepositoryStats(t *testing.T) {
	latest := time.Now()
	exec := &sqltest.Executor{
		QueryRowFn: func(query string, args []any) pgx.Row {
			return sqltest.Row{Values: []any{int64(6), int64(0), int64(1), int64(4), int64(1), int64(2), latest}}
		},
	}
	stats, err := NewReportRepository(exec).StatsByUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), stats.Total)
	assert.Equal(t, int64(4), stats.ByStatus[domain.ReportStatusDone])
	assert.Equal(t, int64(1), stats.ByStatus[domain.ReportStatusError])
	require.NotNil(t, stats.LatestReportAt)
}

func TestReportRepositoryListPropagatesRowsError(t *testing.T) {
	exec := &sqltest.Executor{
		QueryFn: func(query string, args []any) (pgx.Rows, error) {
			return &sqltest.Rows{Failed: errors.New("boom")}, nil
		},
	}
	_, _, err := NewReportRepository(exec).ListByUser(context.Background(), 1, 10, 0)
	assert.EqualError(t, err, "boom")
}

func TestAdminPromptRepositoryListPassesFilter(t *testing.T) {
	active := true
	exec := &sqltest.Executor{}
	_, err := NewAdminPromptRepository(exec).List(context.Background(), domain.AdminPromptFilter{Active: &active, Query: "diet"})
	require.NoError(t, err)
	calls := exec.CallsFor(sqlinline.QListAdminPrompts)
	require.Len(t, calls, 1)
	assert.Equal(t, &active, calls[0].Args[0])
	assert.Equal(t, "diet", calls[0].Args[1])
}

func TestOAuthFlowConsumeMissing(t *testing.T) {
	_, err := NewOAuthFlowRepository(&sqltest.Executor{}).Consume(context.Background(), "2a1e1d0c-3b0e-4a43-9b7c-6f0f8c8b0d11")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
