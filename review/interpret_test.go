package review

import (
	"reflect"
	"strings"
	"testing"
)

func TestInterpretClaims(t *testing.T) {
	const abstract = "We improve retrieval accuracy."

	tests := []struct {
		name         string
		raw          string
		want         []string
		wantFallback bool
	}{
		{
			name: "bare array",
			raw:  `["claim one", "claim two"]`,
			want: []string{"claim one", "claim two"},
		},
		{
			name: "array wrapped in prose",
			raw:  "Here are the claims I found:\n[\"claim one\", \"claim two\"]\nLet me know if you need more.",
			want: []string{"claim one", "claim two"},
		},
		{
			name: "array in a code fence",
			raw:  "```json\n[\"claim one\"]\n```",
			want: []string{"claim one"},
		},
		{
			name: "whitespace trimmed, empties dropped",
			raw:  `["  claim one  ", "", "claim two"]`,
			want: []string{"claim one", "claim two"},
		},
		{
			name:         "no array at all",
			raw:          "I could not identify discrete claims.",
			want:         []string{abstract},
			wantFallback: true,
		},
		{
			name:         "malformed array",
			raw:          `["claim one", 42]`,
			want:         []string{abstract},
			wantFallback: true,
		},
		{
			name:         "empty array",
			raw:          `[]`,
			want:         []string{abstract},
			wantFallback: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpretClaims(tt.raw, abstract)
			if !reflect.DeepEqual(got.Value, tt.want) {
				t.Errorf("value = %v, want %v", got.Value, tt.want)
			}
			if got.WasFallback != tt.wantFallback {
				t.Errorf("WasFallback = %v, want %v (reason %q)", got.WasFallback, tt.wantFallback, got.Reason)
			}
			if tt.wantFallback && got.Reason == "" {
				t.Error("fallback with no reason")
			}
		})
	}
}

func TestInterpretFinding(t *testing.T) {
	t.Run("object wrapped in prose", func(t *testing.T) {
		got := InterpretFinding(`My assessment: {"controls": "adequate", "statistics": "underpowered"}`)
		if got.WasFallback {
			t.Fatalf("unexpected fallback: %s", got.Reason)
		}
		if got.Value["controls"] != "adequate" || got.Value["statistics"] != "underpowered" {
			t.Errorf("value = %v", got.Value)
		}
	})

	t.Run("unparseable output becomes a note", func(t *testing.T) {
		got := InterpretFinding("The methodology seems fine to me overall.")
		if !got.WasFallback {
			t.Fatal("expected fallback")
		}
		if !strings.Contains(got.Value["note"], "methodology seems fine") {
			t.Errorf("note does not preserve the output: %v", got.Value)
		}
	})

	t.Run("empty output", func(t *testing.T) {
		got := InterpretFinding("   ")
		if !got.WasFallback || got.Value["note"] == "" {
			t.Errorf("empty output handling = %+v", got)
		}
	})

	t.Run("nested values fail strict decode", func(t *testing.T) {
		got := InterpretFinding(`{"controls": {"randomization": "yes"}}`)
		if !got.WasFallback {
			t.Error("nested object accepted by strict string-map decode")
		}
	})
}

func TestInterpretVerdict(t *testing.T) {
	t.Run("valid verdict", func(t *testing.T) {
		got := InterpretVerdict(`{"method": 4, "evidence": 3, "novelty": 5, "contribution": 4, "overreach": 2, "rationale": "well controlled"}`)
		if got.WasFallback {
			t.Fatalf("unexpected fallback: %s", got.Reason)
		}
		if got.Value.Method != 4 || got.Value.Novelty != 5 || got.Value.Rationale != "well controlled" {
			t.Errorf("verdict = %+v", got.Value)
		}
	})

	t.Run("out of range score falls back to placeholder", func(t *testing.T) {
		got := InterpretVerdict(`{"method": 9, "evidence": 3, "novelty": 3, "contribution": 3, "overreach": 2}`)
		if !got.WasFallback {
			t.Fatal("out-of-range score accepted")
		}
		if got.Value.Method != ScoreMidpoint {
			t.Errorf("placeholder method = %d, want %d", got.Value.Method, ScoreMidpoint)
		}
	})

	t.Run("prose only falls back to placeholder", func(t *testing.T) {
		got := InterpretVerdict("This deserves roughly a four out of five.")
		if !got.WasFallback || got.Value.Rationale != "parse failed, placeholder used" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("missing rationale gets a default", func(t *testing.T) {
		got := InterpretVerdict(`{"method": 3, "evidence": 3, "novelty": 3, "contribution": 3, "overreach": 3}`)
		if got.WasFallback {
			t.Fatalf("unexpected fallback: %s", got.Reason)
		}
		if got.Value.Rationale == "" {
			t.Error("empty rationale passed through")
		}
	})
}

func TestInterpretSynthesis(t *testing.T) {
	got := InterpretSynthesis("  The panel concludes the work is sound.  ")
	if got.WasFallback || got.Value != "The panel concludes the work is sound." {
		t.Errorf("got %+v", got)
	}

	got = InterpretSynthesis("")
	if !got.WasFallback || got.Value == "" {
		t.Errorf("empty synthesis handling = %+v", got)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		opener byte
		closer byte
		want   string
	}{
		{"nested objects", `before {"a": {"b": 1}} after`, '{', '}', `{"a": {"b": 1}}`},
		{"braces inside strings", `{"a": "literal } brace"}`, '{', '}', `{"a": "literal } brace"}`},
		{"escaped quotes", `{"a": "say \"hi\""}`, '{', '}', `{"a": "say \"hi\""}`},
		{"first block wins", `[1] [2]`, '[', ']', `[1]`},
		{"unbalanced", `{"a": 1`, '{', '}', ""},
		{"absent", "plain prose", '{', '}', ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.raw, tt.opener, tt.closer); got != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
