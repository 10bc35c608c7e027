// Package anthropic adapts Anthropic's Claude API to the model.ChatModel interface.
package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/scijudge/review/model"
)

// ChatModel implements model.ChatModel for Anthropic's Claude API.
//
// It wraps the official anthropic-sdk-go client. Anthropic expects the
// system prompt as a separate parameter rather than as a message, so Chat
// extracts system messages before sending.
//
// Safe for concurrent use after creation; the SDK client handles concurrent
// requests internally.
//
// Example:
//
//	m := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"), "claude-sonnet-4-20250514")
//	out, err := m.Chat(ctx, model.Request{Messages: msgs, Temperature: 0.2, MaxTokens: 1200})
type ChatModel struct {
	client    anthropic.Client
	modelName string
	apiKey    string
}

// DefaultModel is used when no model name is given.
const DefaultModel = "claude-sonnet-4-20250514"

// New creates a Claude-backed ChatModel.
//
// An empty modelName selects DefaultModel. The API key is validated lazily
// on the first Chat call so that construction never fails.
func New(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &ChatModel{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
		apiKey:    apiKey,
	}
}

// Name implements model.ChatModel.
func (m *ChatModel) Name() string { return "anthropic" }

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, req model.Request) (model.Response, error) {
	if ctx.Err() != nil {
		return model.Response{}, ctx.Err()
	}
	if m.apiKey == "" {
		return model.Response{}, &model.ProviderError{
			Provider: "anthropic",
			Kind:     model.KindMissingAPIKey,
			Message:  "ANTHROPIC_API_KEY is not set",
		}
	}

	system, conversation := splitSystem(req.Messages)

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.modelName),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages:    conversation,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.Response{}, model.ClassifyError("anthropic", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return model.Response{}, &model.ProviderError{
			Provider: "anthropic",
			Kind:     model.KindEmptyResponse,
			Message:  "response contained no text blocks",
		}
	}

	return model.Response{
		Text:      text,
		TokensIn:  int(message.Usage.InputTokens),
		TokensOut: int(message.Usage.OutputTokens),
	}, nil
}

// splitSystem separates system messages from the conversation. Multiple
// system messages are concatenated in order.
func splitSystem(messages []model.Message) (string, []anthropic.MessageParam) {
	var system string
	conversation := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case model.RoleAssistant:
			conversation = append(conversation, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			conversation = append(conversation, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	return system, conversation
}
