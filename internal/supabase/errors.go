package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"glucowizard/internal/domain"
)

// APIError is a non-2xx answer from the auth or storage API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("supabase status %d", e.Status)
}

func (e *APIError) Is(target error) bool {
	return target == domain.ErrUpstream
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// decodeError builds an APIError from a failed response body. GoTrue and
// storage use different keys for the human readable message.
func decodeError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	if json.Valid(body) {
		parsed := gjson.ParseBytes(body)
		for _, key := range []string{"msg", "error_description", "message", "error"} {
			if v := parsed.Get(key); v.Exists() && v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
				apiErr.Message = strings.TrimSpace(v.String())
				break
			}
		}
		for _, key := range []string{"error_code", "code", "statusCode"} {
			if v := parsed.Get(key); v.Exists() {
				apiErr.Code = v.String()
				break
			}
		}
	}
	if apiErr.Message == "" {
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = http.StatusText(status)
		}
		apiErr.Message = text
	}
	return apiErr
}
