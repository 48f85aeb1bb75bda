package credentials

import (
	"context"
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

const testKey = "sk-proj-0123456789abcdefWXYZ"

func TestOpenAIAPIKeyTrimsStoredValue(t *testing.T) {
	exec := &sqltest.Executor{QueryRowFn: func(query string, args []any) pgx.Row {
		return sqltest.Row{Values: []any{" " + testKey + " "}}
	}}
	key, err := NewStore(exec).OpenAIAPIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testKey, key)
}

func TestOpenAIAPIKeyMissingReturnsEmpty(t *testing.T) {
	key, err := NewStore(&sqltest.Executor{}).OpenAIAPIKey(context.Background())
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestSetOpenAIAPIKeyRecordsMaskAndFingerprint(t *testing.T) {
	exec := &sqltest.Executor{}
	info, err := NewStore(exec).SetOpenAIAPIKey(context.Background(), "  "+testKey+"\n", "ops")
	require.NoError(t, err)
	assert.Equal(t, "sk-****WXYZ", info.Masked)
	assert.Len(t, info.Fingerprint, 12)
	assert.Equal(t, "ops", info.SetBy)

	calls := exec.CallsFor(sqlinline.QUpsertIntegrationToken)
	require.Len(t, calls, 1)
	assert.Equal(t, ProviderOpenAI, calls[0].Args[0])
	assert.Equal(t, testKey, calls[0].Args[1])
	assert.JSONEq(t, `{"masked":"sk-****WXYZ","fingerprint":"`+info.Fingerprint+`","set_by":"ops"}`, string(calls[0].Args[2].([]byte)))
}

func TestSetOpenAIAPIKeyRejectsMalformed(t *testing.T) {
	exec := &sqltest.Executor{}
	store := NewStore(exec)
	for _, key := range []string{"", "   ", "sk-short", "pk-0123456789abcdefghij", "sk-0123456789 abcdefghij"} {
		_, err := store.SetOpenAIAPIKey(context.Background(), key, "")
		assert.ErrorIs(t, err, ErrInvalidOpenAIKey, key)
	}
	assert.Empty(t, exec.Calls())
}

func TestSetOpenAIAPIKeyWrapsExecError(t *testing.T) {
	exec := &sqltest.Executor{ExecFn: func(string, []any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("db down")
	}}
	_, err := NewStore(exec).SetOpenAIAPIKey(context.Background(), testKey, "")
	assert.EqualError(t, err, "store openai key: db down")
}

func TestOpenAIKeyInfo(t *testing.T) {
	updated := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	exec := &sqltest.Executor{QueryRowFn: func(query string, args []any) pgx.Row {
		return sqltest.Row{Values: []any{[]byte(`{"masked":"sk-****WXYZ","fingerprint":"abc123","set_by":"ops"}`), updated}}
	}}
	info, err := NewStore(exec).OpenAIKeyInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KeyInfo{Provider: ProviderOpenAI, Masked: "sk-****WXYZ", Fingerprint: "abc123", SetBy: "ops", UpdatedAt: updated}, *info)

	_, err = NewStore(&sqltest.Executor{}).OpenAIKeyInfo(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "sk-****cdef", MaskKey("sk-0123456abcdef"))
	assert.Equal(t, "****", MaskKey("abcd"))
	assert.Equal(t, Fingerprint(testKey), Fingerprint(testKey))
	assert.NotEqual(t, Fingerprint(testKey), Fingerprint(testKey+"x"))
}
