package model

import (
	"fmt"
	"strings"
)

// ProviderError is the tagged failure returned by every ChatModel when the
// backend call fails. Callers decide whether the failure is tolerable (apply
// a fallback and continue) or fatal; the error itself never carries that
// policy.
type ProviderError struct {
	// Provider identifies which backend failed ("openai", "anthropic", ...).
	Provider string

	// Kind classifies the failure. Use the Kind* constants.
	Kind string

	// Message is a human-readable description.
	Message string

	// Retryable reports whether a later attempt could plausibly succeed.
	Retryable bool
}

// Failure kinds shared across providers.
const (
	KindMissingAPIKey = "missing_api_key"
	KindInvalidAPIKey = "invalid_api_key"
	KindRateLimited   = "rate_limited"
	KindQuotaExceeded = "quota_exceeded"
	KindTimeout       = "timeout"
	KindServerError   = "server_error"
	KindNetworkError  = "network_error"
	KindEmptyResponse = "empty_response"
	KindAPIError      = "api_error"
)

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// ClassifyError maps a raw SDK error string to a ProviderError kind.
//
// The official SDKs do not share an error taxonomy, so classification is by
// status code and message substring. Unknown errors map to KindAPIError,
// non-retryable.
func ClassifyError(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case contains(lower, "401", "unauthorized", "invalid api key", "incorrect api key", "authentication", "api_key"):
		return &ProviderError{Provider: provider, Kind: KindInvalidAPIKey, Message: "API key is invalid or expired", Retryable: false}
	case contains(lower, "429", "rate limit", "rate_limit", "too many requests"):
		return &ProviderError{Provider: provider, Kind: KindRateLimited, Message: "rate limit exceeded", Retryable: true}
	case contains(lower, "quota", "insufficient_quota", "billing"):
		return &ProviderError{Provider: provider, Kind: KindQuotaExceeded, Message: "quota exceeded", Retryable: false}
	case contains(lower, "timeout", "deadline", "context canceled"):
		return &ProviderError{Provider: provider, Kind: KindTimeout, Message: "request cancelled or timed out", Retryable: true}
	case contains(lower, "500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable", "overloaded"):
		return &ProviderError{Provider: provider, Kind: KindServerError, Message: msg, Retryable: true}
	case contains(lower, "connection", "network", "no such host"):
		return &ProviderError{Provider: provider, Kind: KindNetworkError, Message: msg, Retryable: true}
	default:
		return &ProviderError{Provider: provider, Kind: KindAPIError, Message: msg, Retryable: false}
	}
}

func contains(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
