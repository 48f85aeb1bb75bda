// Package credentials keeps third-party API keys in the integration_tokens
// table so operators can rotate them without redeploying.
package credentials

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"glucowizard/internal/domain"
	"glucowizard/internal/infra"
	"glucowizard/internal/sqlinline"
)

const ProviderOpenAI = "openai"

const minOpenAIKeyLength = 20

// ErrInvalidOpenAIKey is returned for values that cannot be OpenAI secret keys.
var ErrInvalidOpenAIKey = errors.New("openai api key must start with sk- and contain no whitespace")

// KeyInfo describes a stored key without exposing it.
type KeyInfo struct {
	Provider    string
	Masked      string
	Fingerprint string
	SetBy       string
	UpdatedAt   time.Time
}

type keyProps struct {
	Masked      string `json:"masked"`
	Fingerprint string `json:"fingerprint"`
	SetBy       string `json:"set_by,omitempty"`
}

// Store reads and writes keys kept in integration_tokens. The summarizer
// falls back to the stored OpenAI key when OPENAI_API_KEY is empty.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// OpenAIAPIKey returns the stored key, or "" when none is set.
func (s *Store) OpenAIAPIKey(ctx context.Context) (string, error) {
	var token string
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, ProviderOpenAI).Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetOpenAIAPIKey validates and stores key. The masked form and a fingerprint
// are kept next to it so the key can be identified later without reading it.
func (s *Store) SetOpenAIAPIKey(ctx context.Context, key, setBy string) (*KeyInfo, error) {
	key, err := ValidateOpenAIKey(key)
	if err != nil {
		return nil, err
	}
	props := keyProps{Masked: MaskKey(key), Fingerprint: Fingerprint(key), SetBy: strings.TrimSpace(setBy)}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, ProviderOpenAI, key, raw); err != nil {
		return nil, fmt.Errorf("store %s key: %w", ProviderOpenAI, err)
	}
	return &KeyInfo{
		Provider:    ProviderOpenAI,
		Masked:      props.Masked,
		Fingerprint: props.Fingerprint,
		SetBy:       props.SetBy,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// OpenAIKeyInfo describes the stored key. It returns domain.ErrNotFound when
// no key has been stored.
func (s *Store) OpenAIKeyInfo(ctx context.Context) (*KeyInfo, error) {
	var (
		raw  []byte
		info = KeyInfo{Provider: ProviderOpenAI}
	)
	err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationTokenInfo, ProviderOpenAI).Scan(&raw, &info.UpdatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var props keyProps
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &props); err != nil {
			return nil, fmt.Errorf("decode %s key properties: %w", ProviderOpenAI, err)
		}
	}
	info.Masked, info.Fingerprint, info.SetBy = props.Masked, props.Fingerprint, props.SetBy
	return &info, nil
}

// ValidateOpenAIKey trims key and checks its shape.
func ValidateOpenAIKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, "sk-") || len(key) < minOpenAIKeyLength || strings.ContainsFunc(key, unicode.IsSpace) {
		return "", ErrInvalidOpenAIKey
	}
	return key, nil
}

// MaskKey keeps the prefix and the last four characters. The number of hidden
// characters is fixed so the mask does not reveal the key length.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + "****" + key[len(key)-4:]
}

// Fingerprint is a short stable identifier for key.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:6])
}
