package review

import (
	"context"
	"fmt"

	"github.com/dshills/scijudge/review/model"
)

// RoleConfig is the per-role model configuration: which backend speaks
// for the role and how it samples. Declared once per role and immutable
// for a run; recorded into the audit trail for reproducibility.
type RoleConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Gateway wraps a single reasoning-backend call for one participant
// role. It owns the role -> model binding and the per-role sampling
// configuration.
//
// The gateway never retries: retry policy belongs to the job lifecycle
// layer where it can be bounded per job rather than per call. A backend
// failure comes back as a typed error for the caller to classify as
// tolerable (fallback) or fatal.
type Gateway struct {
	models  map[Role]model.ChatModel
	configs map[Role]RoleConfig
}

// NewGateway creates a gateway from per-role model bindings and
// configurations. Every role in AllRoles must have a model; roles
// without an explicit RoleConfig get zero-value sampling defaults
// (provider default temperature and token limit).
func NewGateway(models map[Role]model.ChatModel, configs map[Role]RoleConfig) (*Gateway, error) {
	for _, role := range AllRoles {
		if models[role] == nil {
			return nil, &ValidationError{Field: "models", Reason: fmt.Sprintf("no model bound for role %s", role)}
		}
	}
	if configs == nil {
		configs = make(map[Role]RoleConfig)
	}
	return &Gateway{models: models, configs: configs}, nil
}

// NewSingleModelGateway binds one model to every role. Useful for
// tests and for deployments that run the whole panel on one backend.
func NewSingleModelGateway(m model.ChatModel, configs map[Role]RoleConfig) (*Gateway, error) {
	models := make(map[Role]model.ChatModel, len(AllRoles))
	for _, role := range AllRoles {
		models[role] = m
	}
	return NewGateway(models, configs)
}

// Config returns the sampling configuration for a role.
func (g *Gateway) Config(role Role) RoleConfig {
	return g.configs[role]
}

// Invoke calls the backend bound to role with the persona system
// prompt and the given user prompt. Returns the raw response or a
// typed failure; it never panics or retries.
func (g *Gateway) Invoke(ctx context.Context, role Role, phase Phase, prompt string) (model.Response, error) {
	m, ok := g.models[role]
	if !ok {
		return model.Response{}, &ValidationError{Field: "role", Reason: fmt.Sprintf("unknown role %s", role)}
	}

	cfg := g.configs[role]
	req := model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: rolePersonas[role]},
			{Role: model.RoleUser, Content: prompt},
		},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	resp, err := m.Chat(ctx, req)
	if err != nil {
		return model.Response{}, fmt.Errorf("participant %s failed in phase %s: %w", role, phase, err)
	}
	return resp, nil
}
