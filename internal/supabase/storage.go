package supabase

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Upload stores data at bucket/path. With upsert an existing object is replaced.
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, contentType string, upsert bool) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{"x-upsert": "false"}
	if upsert {
		headers["x-upsert"] = "true"
	}
	_, err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        objectPath(bucket, path),
		raw:         bytes.NewReader(data),
		contentType: contentType,
		headers:     headers,
	})
	return err
}

// Remove deletes the given object paths from bucket.
func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	_, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/storage/v1/object/" + url.PathEscape(bucket),
		body:   map[string]any{"prefixes": paths},
	})
	return err
}

// Download fetches an object with the project key.
func (c *Client) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	return c.do(ctx, request{method: http.MethodGet, path: objectPath(bucket, path)})
}

// PublicURL returns the public object URL. The bucket must be public for it to resolve.
func (c *Client) PublicURL(bucket, path string) string {
	return c.baseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + escapePath(path)
}

func objectPath(bucket, path string) string {
	return "/storage/v1/object/" + url.PathEscape(bucket) + "/" + escapePath(path)
}

func escapePath(path string) string {
	parts := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
