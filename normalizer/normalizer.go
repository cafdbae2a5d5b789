// Package normalizer turns raw model replies into validated mood reports.
// The model's output is adversarial by unreliability: it wraps JSON in prose
// and markdown and fabricates timestamps. Every input, including garbage,
// produces a well-formed NormalizedOutput; the degraded path is a documented
// outcome, never an error.
package normalizer

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// SchemaVersion of the mood report schema the normalizer validates against.
const SchemaVersion = "1"

var validate = validator.New()

// Timestamps are the caller-supplied authoritative timestamps. The model is
// never trusted for wall-clock time; any date field it emits is overwritten.
type Timestamps struct {
	AnalyzedAt time.Time
}

// Normalize converts a raw model reply into a NormalizedOutput.
//
// Pipeline: strip code fences, locate the largest balanced top-level JSON
// object, parse, override timestamp fields, validate against the report
// schema. Parse failure falls back to the raw text; schema failure keeps the
// best-effort parsed report alongside the raw text for diagnostics.
func Normalize(raw string, ts Timestamps) types.NormalizedOutput {
	degraded := types.NormalizedOutput{
		SchemaVersion: SchemaVersion,
		Validated:     false,
		RawFallback:   raw,
	}

	cleaned := stripFences(raw)

	candidate, ok := extractObject(cleaned)
	if !ok {
		return degraded
	}

	var report types.MoodReport
	if err := json.Unmarshal([]byte(candidate), &report); err != nil {
		return degraded
	}

	report.SchemaVersion = SchemaVersion
	report.AnalyzedAt = ts.AnalyzedAt.UTC().Format(time.RFC3339)

	if err := validate.Struct(&report); err != nil {
		degraded.Report = &report
		return degraded
	}

	return types.NormalizedOutput{
		SchemaVersion: SchemaVersion,
		Validated:     true,
		Report:        &report,
	}
}

// stripFences removes leading/trailing markdown fence lines and surrounding
// whitespace. Fences inside the text are left alone; the object scan does not
// treat backticks as structural.
func stripFences(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}

	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
	}

	return strings.TrimSpace(s)
}

// extractObject scans from the first '{' for the balanced top-level object,
// skipping braces inside string literals and escape sequences. Returns the
// candidate span and whether one was found.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	// Never balanced; try the greedy span up to the last closing brace so a
	// reply truncated mid-string still gets one parse attempt.
	if end := strings.LastIndexByte(s, '}'); end > start {
		return s[start : end+1], true
	}

	return "", false
}
