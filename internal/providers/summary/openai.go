// Package summary asks the OpenAI Responses API to summarize a report.
package summary

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultOpenAIModel   = "gpt-5.2"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	openAIDefaultTimeout = 120 * time.Second
)

// ErrMissingAPIKey is returned when neither the environment nor the key source has a key.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY not set")

// KeySource looks up an API key at call time, for keys rotated without a restart.
type KeySource func(ctx context.Context) (string, error)

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	KeySource    KeySource
}

// OpenAISummarizer calls POST {base}/responses.
type OpenAISummarizer struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
	keySource    KeySource
}

// File is a PDF attached to the request as an input_file part.
type File struct {
	Name string
	Data []byte
}

type Request struct {
	Prompt string
	PDF    *File
}

// Result is the outcome of one Responses API call. Raw is the body as returned.
type Result struct {
	ResponseID string
	OutputText string
	Raw        json.RawMessage
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
}

type inputMessage struct {
	Role    string      `json:"role"`
	Content []inputPart `json:"content"`
}

type inputPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Filename string `json:"filename,omitempty"`
	FileData string `json:"file_data,omitempty"`
}

func NewOpenAISummarizer(opts OpenAIOptions) *OpenAISummarizer {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}
	return &OpenAISummarizer{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		keySource:    opts.KeySource,
	}
}

// Model returns the model name sent with every request.
func (o *OpenAISummarizer) Model() string {
	return o.model
}

func (o *OpenAISummarizer) Summarize(ctx context.Context, req Request) (*Result, error) {
	apiKey, err := o.resolveKey(ctx)
	if err != nil {
		return nil, err
	}
	parts := []inputPart{{Type: "input_text", Text: req.Prompt}}
	if req.PDF != nil && len(req.PDF.Data) > 0 {
		parts = append(parts, inputPart{
			Type:     "input_file",
			Filename: req.PDF.Name,
			FileData: "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(req.PDF.Data),
		})
	}
	payload := responsesRequest{
		Model: o.model,
		Input: []inputMessage{{Role: "user", Content: parts}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/responses", &buf)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
			return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, msg)
		}
		return nil, fmt.Errorf("openai status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("openai: response is not valid JSON")
	}
	if gjson.GetBytes(body, "status").String() == "failed" {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = "response failed"
		}
		return nil, fmt.Errorf("openai: %s", msg)
	}
	return &Result{
		ResponseID: gjson.GetBytes(body, "id").String(),
		OutputText: outputText(body),
		Raw:        json.RawMessage(body),
	}, nil
}

func (o *OpenAISummarizer) resolveKey(ctx context.Context) (string, error) {
	if o.apiKey != "" {
		return o.apiKey, nil
	}
	if o.keySource != nil {
		key, err := o.keySource(ctx)
		if err != nil {
			return "", fmt.Errorf("openai: load api key: %w", err)
		}
		if key = strings.TrimSpace(key); key != "" {
			return key, nil
		}
	}
	return "", ErrMissingAPIKey
}

// outputText prefers the aggregated output_text field and otherwise joins every
// output_text content part of the message items.
func outputText(body []byte) string {
	if v := gjson.GetBytes(body, "output_text"); v.Exists() && v.String() != "" {
		return v.String()
	}
	var parts []string
	gjson.GetBytes(body, "output").ForEach(func(_, item gjson.Result) bool {
		item.Get("content").ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "output_text" {
				parts = append(parts, part.Get("text").String())
			}
			return true
		})
		return true
	})
	return strings.Join(parts, "")
}
