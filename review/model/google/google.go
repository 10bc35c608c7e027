// Package google adapts Google's Gemini API to the model.ChatModel interface.
package google

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/scijudge/review/model"
)

// ChatModel implements model.ChatModel for Google's Gemini API.
//
// Wraps the official generative-ai-go client. Gemini takes the system
// prompt via SystemInstruction and the remaining conversation as a single
// generate-content request.
//
// The underlying client holds a connection; call Close when done.
//
// Example:
//
//	m, err := google.New(os.Getenv("GOOGLE_API_KEY"), "gemini-1.5-flash")
//	if err != nil { ... }
//	defer m.Close()
type ChatModel struct {
	client    *genai.Client
	modelName string
}

// DefaultModel is used when no model name is given.
const DefaultModel = "gemini-1.5-flash"

// New creates a Gemini-backed ChatModel.
//
// Unlike the other providers, client construction performs credential setup
// and can fail, so New returns an error.
func New(apiKey, modelName string) (*ChatModel, error) {
	if apiKey == "" {
		return nil, &model.ProviderError{
			Provider: "google",
			Kind:     model.KindMissingAPIKey,
			Message:  "GOOGLE_API_KEY is not set",
		}
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &ChatModel{client: client, modelName: modelName}, nil
}

// Name implements model.ChatModel.
func (m *ChatModel) Name() string { return "google" }

// Close releases the underlying client connection.
func (m *ChatModel) Close() error { return m.client.Close() }

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, req model.Request) (model.Response, error) {
	if ctx.Err() != nil {
		return model.Response{}, ctx.Err()
	}

	gm := m.client.GenerativeModel(m.modelName)
	temp := float32(req.Temperature)
	gm.Temperature = &temp
	if req.MaxTokens > 0 {
		capTokens := int32(req.MaxTokens)
		gm.MaxOutputTokens = &capTokens
	}

	var prompt string
	for _, msg := range req.Messages {
		if msg.Role == model.RoleSystem {
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
			continue
		}
		if prompt != "" {
			prompt += "\n\n"
		}
		prompt += msg.Content
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return model.Response{}, model.ClassifyError("google", err)
	}

	var text string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text += string(t)
			}
		}
	}
	if text == "" {
		return model.Response{}, &model.ProviderError{
			Provider: "google",
			Kind:     model.KindEmptyResponse,
			Message:  "no text candidates in response",
		}
	}

	out := model.Response{Text: text}
	if resp.UsageMetadata != nil {
		out.TokensIn = int(resp.UsageMetadata.PromptTokenCount)
		out.TokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
