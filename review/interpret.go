package review

import (
	"encoding/json"
	"strings"
)

// Parsed is the tagged result of interpreting a participant's raw
// output: either the strictly-parsed value, or the phase's documented
// fallback with the reason recorded.
//
// The interpreter never fails past its boundary. Every call returns a
// usable value; WasFallback tells the audit trail and the report's
// limitations section whether it was reasoned or substituted.
type Parsed[T any] struct {
	Value       T
	WasFallback bool
	Reason      string
}

func parsed[T any](v T) Parsed[T] {
	return Parsed[T]{Value: v}
}

func fallback[T any](v T, reason string) Parsed[T] {
	return Parsed[T]{Value: v, WasFallback: true, Reason: reason}
}

// InterpretClaims parses a claim-enumeration response into a list of
// claim strings. Expected form: a JSON array of strings, possibly
// embedded in surrounding prose.
//
// Fallback: the paper's abstract as a single claim.
func InterpretClaims(raw, abstract string) Parsed[[]string] {
	block := extractJSON(raw, '[', ']')
	if block == "" {
		return fallback([]string{abstract}, "no claims array in response")
	}

	var claims []string
	if err := json.Unmarshal([]byte(block), &claims); err != nil {
		return fallback([]string{abstract}, "claims array failed strict decode: "+err.Error())
	}

	var nonEmpty []string
	for _, c := range claims {
		if strings.TrimSpace(c) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(c))
		}
	}
	if len(nonEmpty) == 0 {
		return fallback([]string{abstract}, "claims array was empty")
	}
	return parsed(nonEmpty)
}

// InterpretFinding parses a review-phase response into an aspect ->
// assessment map. Expected form: a flat JSON object with string values.
//
// Fallback: a single "note" entry carrying the unparsed output, so the
// trail still holds what the participant said even when its structure
// was unusable.
func InterpretFinding(raw string) Parsed[map[string]string] {
	block := extractJSON(raw, '{', '}')
	if block == "" {
		return fallback(noteFinding(raw), "no findings object in response")
	}

	var entries map[string]string
	if err := json.Unmarshal([]byte(block), &entries); err != nil {
		return fallback(noteFinding(raw), "findings object failed strict decode: "+err.Error())
	}
	if len(entries) == 0 {
		return fallback(noteFinding(raw), "findings object was empty")
	}
	return parsed(entries)
}

func noteFinding(raw string) map[string]string {
	note := strings.TrimSpace(raw)
	if note == "" {
		note = "no output produced"
	}
	return map[string]string{"note": note}
}

// InterpretVerdict parses a verdict-assignment response into a Verdict.
// Expected form: a JSON object with the five score dimensions and a
// rationale. Scores outside [1, 5] fail strict validation.
//
// Fallback: midpoint scores with a rationale explicitly marked as a
// placeholder (see FallbackVerdict).
func InterpretVerdict(raw string) Parsed[*Verdict] {
	block := extractJSON(raw, '{', '}')
	if block == "" {
		return fallback(FallbackVerdict(), "no verdict object in response")
	}

	var v Verdict
	if err := json.Unmarshal([]byte(block), &v); err != nil {
		return fallback(FallbackVerdict(), "verdict object failed strict decode: "+err.Error())
	}
	if err := v.Validate(); err != nil {
		return fallback(FallbackVerdict(), "verdict failed validation: "+err.Error())
	}
	if strings.TrimSpace(v.Rationale) == "" {
		v.Rationale = "no rationale provided"
	}
	return parsed(&v)
}

// InterpretSynthesis accepts the synthesis response as free text.
//
// Fallback: a fixed placeholder when the participant produced nothing.
func InterpretSynthesis(raw string) Parsed[string] {
	text := strings.TrimSpace(raw)
	if text == "" {
		return fallback("synthesis unavailable: participant produced no output", "empty synthesis response")
	}
	return parsed(text)
}

// extractJSON returns the first balanced opener..closer block in raw,
// or "" when none exists. Models frequently wrap JSON in prose or code
// fences; this recovers the payload without trusting anything else.
func extractJSON(raw string, opener, closer byte) string {
	start := strings.IndexByte(raw, opener)
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
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
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
