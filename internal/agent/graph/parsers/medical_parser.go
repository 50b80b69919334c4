package parsers

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MedBuddy-core-poc-v1/server/internal/agent/model"
	logx "github.com/MedBuddy-core-poc-v1/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200
)

// ParseMedicalResponse decodes the model's structured answer. Code fences and
// text around the outermost JSON object are ignored. When no valid object can
// be decoded the raw text becomes the summary, so a reply is never lost.
func ParseMedicalResponse(content string) (resp *model.MedicalResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "medical_parser").Msgf("panic recovered: %v", r)
			resp, err = fallback(content), fmt.Errorf("medical parser panic")
		}
	}()

	if len(content) > maxContentLen {
		logx.Warn().Int("len", len(content)).Msg("medical response truncated before parsing")
		content = content[:maxContentLen]
	}
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "")
	}

	raw, ok := extractObject(stripFences(content))
	if !ok {
		return fallback(content), fmt.Errorf("no json object in model output: %q", snippet(content))
	}

	var out model.MedicalResponse
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return fallback(content), fmt.Errorf("decode medical response: %w", err)
	}
	if strings.TrimSpace(out.Summary) == "" && out.DrugInformation == "" && len(out.Interactions) == 0 {
		return fallback(content), fmt.Errorf("medical response has no content")
	}
	out.Normalize()
	return &out, nil
}

func fallback(content string) *model.MedicalResponse {
	r := &model.MedicalResponse{
		Summary:         strings.TrimSpace(content),
		DataLimitations: "The answer could not be structured; the summary holds the raw reply.",
	}
	r.Normalize()
	return r
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the language tag line
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// extractObject returns the first balanced top-level JSON object in s.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func snippet(s string) string {
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet] + "..."
}
