// Package openai adapts OpenAI's chat completion API to the model.ChatModel interface.
package openai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/scijudge/review/model"
)

// ChatModel implements model.ChatModel for OpenAI's API.
//
// Wraps the official openai-go SDK. The SDK retries transient failures
// internally; remaining failures are translated to *model.ProviderError.
//
// Example:
//
//	m := openai.New(os.Getenv("OPENAI_API_KEY"), "gpt-4o")
//	out, err := m.Chat(ctx, model.Request{Messages: msgs, Temperature: 0.2, MaxTokens: 1200})
type ChatModel struct {
	client    openai.Client
	modelName string
	apiKey    string
}

// DefaultModel is used when no model name is given.
const DefaultModel = "gpt-4o"

// New creates an OpenAI-backed ChatModel.
//
// An empty modelName selects DefaultModel. The API key is validated lazily
// on the first Chat call.
func New(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &ChatModel{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		modelName: modelName,
		apiKey:    apiKey,
	}
}

// Name implements model.ChatModel.
func (m *ChatModel) Name() string { return "openai" }

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, req model.Request) (model.Response, error) {
	if ctx.Err() != nil {
		return model.Response{}, ctx.Err()
	}
	if m.apiKey == "" {
		return model.Response{}, &model.ProviderError{
			Provider: "openai",
			Kind:     model.KindMissingAPIKey,
			Message:  "OPENAI_API_KEY is not set",
		}
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case model.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(m.modelName),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.Response{}, model.ClassifyError("openai", err)
	}
	if len(completion.Choices) == 0 {
		return model.Response{}, &model.ProviderError{
			Provider: "openai",
			Kind:     model.KindEmptyResponse,
			Message:  "no choices in completion",
		}
	}

	return model.Response{
		Text:      completion.Choices[0].Message.Content,
		TokensIn:  int(completion.Usage.PromptTokens),
		TokensOut: int(completion.Usage.CompletionTokens),
	}, nil
}
