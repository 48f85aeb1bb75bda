package reports

import (
	"bytes"
	"encoding/json"
	"strings"

	"glucowizard/internal/domain"
)

const basePrompt = "You are a clinical assistant. Summarize the patient's diabetic readings and the PDF.\n" +
	"Return:\n" +
	"1) a short summary\n" +
	"2) key abnormalities\n" +
	"3) recommendations\n" +
	"Also return a JSON object with fields: summary, abnormalities[], recommendations[].\n\n"

// BuildPrompt renders the summarization instructions for one report. Active
// admin prompts are appended, most recently updated first.
func BuildPrompt(values json.RawMessage, prompts []domain.AdminPrompt) string {
	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("Diabetic JSON:\n")
	sb.WriteString(compactJSON(values))

	var extra []string
	for _, p := range prompts {
		if !p.IsActive {
			continue
		}
		if text := strings.TrimSpace(p.CustomInstructions); text != "" {
			extra = append(extra, text)
		}
	}
	if len(extra) > 0 {
		sb.WriteString("\n\nAdditional instructions:\n")
		for i, text := range extra {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("- ")
			sb.WriteString(text)
		}
	}
	return sb.String()
}

func compactJSON(values json.RawMessage) string {
	if len(values) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, values); err != nil {
		return string(values)
	}
	return buf.String()
}
