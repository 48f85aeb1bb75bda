// Package supabase is a small REST client for the Supabase auth (GoTrue) and
// storage APIs.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// ErrNotConfigured is returned when the project URL or key is missing.
var ErrNotConfigured = errors.New("SUPABASE_URL or SUPABASE_KEY not set")

type Options struct {
	URL        string
	Key        string
	HTTPClient *http.Client
}

// Client talks to one Supabase project. It is safe for concurrent use; every
// user-scoped call takes the access token explicitly instead of holding a session.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	key := strings.TrimSpace(opts.Key)
	if baseURL == "" || key == "" {
		return nil, ErrNotConfigured
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, apiKey: key, client: client}, nil
}

// URL returns the project base URL without a trailing slash.
func (c *Client) URL() string {
	return c.baseURL
}

type request struct {
	method      string
	path        string
	token       string
	body        any
	raw         io.Reader
	contentType string
	headers     map[string]string
}

// do sends the request and returns the response body of a 2xx answer.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	var body io.Reader
	contentType := r.contentType
	switch {
	case r.raw != nil:
		body = r.raw
	case r.body != nil:
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(r.body); err != nil {
			return nil, fmt.Errorf("supabase: encode request: %w", err)
		}
		body = &buf
		contentType = "application/json"
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return nil, fmt.Errorf("supabase: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	token := r.token
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase: %s %s: %w", r.method, r.path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("supabase: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, payload)
	}
	return payload, nil
}

func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	payload, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("supabase: decode response: %w", err)
	}
	return nil
}
