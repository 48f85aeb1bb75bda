package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"glucowizard/internal/domain"
	"glucowizard/internal/supabase"
)

type bucketClient interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	Remove(ctx context.Context, bucket string, paths []string) error
}

// SupabaseStore keeps objects in one Supabase storage bucket.
type SupabaseStore struct {
	client bucketClient
	bucket string
}

func NewSupabaseStore(client bucketClient, bucket string) (*SupabaseStore, error) {
	if client == nil {
		return nil, errors.New("storage: supabase client is required")
	}
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	return &SupabaseStore{client: client, bucket: bucket}, nil
}

func (s *SupabaseStore) Write(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if err := s.client.Upload(ctx, s.bucket, cleanKey, data, contentType, true); err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", cleanKey, err)
	}
	return cleanKey, nil
}

func (s *SupabaseStore) Read(ctx context.Context, key string) ([]byte, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return nil, err
	}
	data, err := s.client.Download(ctx, s.bucket, cleanKey)
	if err != nil {
		if supabase.IsStatus(err, http.StatusNotFound) || supabase.IsStatus(err, http.StatusBadRequest) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: download %s: %w", cleanKey, err)
	}
	return data, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	return s.client.Remove(ctx, s.bucket, []string{cleanKey})
}
