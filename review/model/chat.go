// Package model provides LLM integration adapters for review participants.
package model

import "context"

// ChatModel defines the interface for LLM chat providers.
//
// The interface abstracts the differences between providers (OpenAI,
// Anthropic, Google) so that the participant gateway can dispatch any
// panel role to any backend. Implementations should:
//   - Handle provider-specific authentication
//   - Convert the standard Message format to the provider's format
//   - Apply the request's sampling temperature and output cap
//   - Translate provider failures into *ProviderError
//   - Respect context cancellation and timeouts
//
// Example:
//
//	m := openai.New(apiKey, "gpt-4o")
//	out, err := m.Chat(ctx, model.Request{
//	    Messages: []model.Message{
//	        {Role: model.RoleSystem, Content: "You are a methodologist."},
//	        {Role: model.RoleUser, Content: prompt},
//	    },
//	    Temperature: 0.2,
//	    MaxTokens:   1200,
//	})
type ChatModel interface {
	// Chat sends messages to the LLM and returns the response.
	//
	// Provider failures are returned as *ProviderError so callers can
	// inspect the failure kind without knowing which SDK produced it.
	Chat(ctx context.Context, req Request) (Response, error)

	// Name returns the provider identifier ("openai", "anthropic", "google", "mock").
	Name() string
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role identifies the message sender. Use the Role* constants.
	Role string

	// Content contains the message text.
	Content string
}

// Standard role constants, aligned with the conventions of the major providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request carries one chat completion request.
//
// Temperature and MaxTokens are set per participant role and stay fixed
// for the lifetime of a review run; the gateway records them into the
// audit trail alongside the response.
type Request struct {
	// Messages is the conversation to send (system prompt first).
	Messages []Message

	// Temperature is the sampling temperature in [0, 2].
	Temperature float64

	// MaxTokens caps the generated output size. Zero means provider default.
	MaxTokens int
}

// Response represents the output of a chat completion.
type Response struct {
	// Text is the generated response text.
	Text string

	// TokensIn and TokensOut record token usage when the provider reports it.
	TokensIn  int
	TokensOut int
}
