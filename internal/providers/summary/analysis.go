package summary

import (
	"encoding/json"
	"errors"
	"strings"
)

// Analysis is the JSON object the prompt asks the model to append.
type Analysis struct {
	Summary         string   `json:"summary"`
	Abnormalities   []string `json:"abnormalities"`
	Recommendations []string `json:"recommendations"`
}

// ParseAnalysis extracts the structured block from the model output. The model
// usually wraps it in prose or a code fence, so the last JSON object wins.
func ParseAnalysis(text string) (*Analysis, bool) {
	parsed, err := parseModelPayload[Analysis](lastJSONObject(text))
	if err != nil {
		return nil, false
	}
	parsed.Summary = strings.TrimSpace(parsed.Summary)
	parsed.Abnormalities = normalizeItems(parsed.Abnormalities)
	parsed.Recommendations = normalizeItems(parsed.Recommendations)
	if parsed.Summary == "" && len(parsed.Abnormalities) == 0 && len(parsed.Recommendations) == 0 {
		return nil, false
	}
	return &parsed, true
}

func normalizeItems(items []string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}

func parseModelPayload[T any](raw string) (T, error) {
	var zero T
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

// lastJSONObject returns the text from the start of the last fenced block, or
// from the last top-level "{" that opens a balanced object.
func lastJSONObject(text string) string {
	if idx := strings.LastIndex(text, "```json"); idx >= 0 {
		return text[idx:]
	}
	end := strings.LastIndex(text, "}")
	if end < 0 {
		return text
	}
	depth := 0
	for i := end; i >= 0; i-- {
		switch text[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return text[i : end+1]
			}
		}
	}
	return text
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
