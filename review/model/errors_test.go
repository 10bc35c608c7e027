package model

import (
	"errors"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  string
		retryable bool
	}{
		{"auth 401", errors.New("401 Unauthorized"), KindInvalidAPIKey, false},
		{"bad key", errors.New("incorrect API key provided"), KindInvalidAPIKey, false},
		{"rate limit", errors.New("429 too many requests"), KindRateLimited, true},
		{"quota", errors.New("insufficient_quota: billing hard limit"), KindQuotaExceeded, false},
		{"timeout", errors.New("context deadline exceeded"), KindTimeout, true},
		{"server", errors.New("503 service unavailable"), KindServerError, true},
		{"overloaded", errors.New("overloaded_error: try again"), KindServerError, true},
		{"network", errors.New("dial tcp: no such host"), KindNetworkError, true},
		{"unknown", errors.New("something else entirely"), KindAPIError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := ClassifyError("openai", tt.err)
			if pe.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", pe.Kind, tt.wantKind)
			}
			if pe.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", pe.Retryable, tt.retryable)
			}
			if pe.Provider != "openai" {
				t.Errorf("Provider = %q, want openai", pe.Provider)
			}
		})
	}

	t.Run("nil error", func(t *testing.T) {
		if pe := ClassifyError("openai", nil); pe != nil {
			t.Errorf("expected nil, got %v", pe)
		}
	})
}

func TestProviderError_ErrorsAs(t *testing.T) {
	var wrapped error = &ProviderError{Provider: "anthropic", Kind: KindRateLimited, Message: "slow down"}

	var pe *ProviderError
	if !errors.As(wrapped, &pe) {
		t.Fatal("errors.As failed to match *ProviderError")
	}
	if pe.Kind != KindRateLimited {
		t.Errorf("Kind = %q, want %q", pe.Kind, KindRateLimited)
	}
}
