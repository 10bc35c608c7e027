package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/scijudge/review/model"
	"github.com/dshills/scijudge/review/store"
)

// scriptedPanel is a ChatModel that answers with phase-appropriate
// output, so a full deliberation can run against one mock. It reads the
// current phase out of the prompt the gateway built.
type scriptedPanel struct {
	mu sync.Mutex

	// failPhase, when set, makes calls in that phase fail with a
	// retryable provider error. failsLeft bounds how many calls fail;
	// -1 means every call in the phase fails.
	failPhase Phase
	failsLeft int

	// verdictRaw overrides the verdict_assignment response.
	verdictRaw string

	// deliberationRaw overrides the deliberation response.
	deliberationRaw string

	calls   int
	prompts []string
}

func (p *scriptedPanel) Name() string { return "scripted" }

func (p *scriptedPanel) Chat(ctx context.Context, req model.Request) (model.Response, error) {
	if ctx.Err() != nil {
		return model.Response{}, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	for _, msg := range req.Messages {
		if msg.Role == model.RoleUser {
			p.prompts = append(p.prompts, msg.Content)
		}
	}

	phase := promptPhase(req)
	if phase == p.failPhase && p.failsLeft != 0 {
		if p.failsLeft > 0 {
			p.failsLeft--
		}
		return model.Response{}, &model.ProviderError{
			Provider: "scripted", Kind: model.KindServerError,
			Message: "backend down", Retryable: true,
		}
	}

	resp := model.Response{TokensIn: 100, TokensOut: 50}
	switch phase {
	case PhaseInitialization:
		resp.Text = "The panel convenes to review the submitted paper."
	case PhaseClaimEnumeration:
		resp.Text = `Here are the claims: ["The method improves accuracy by 40%", "The approach generalizes across domains"]`
	case PhaseVerdictAssignment:
		if p.verdictRaw != "" {
			resp.Text = p.verdictRaw
		} else {
			resp.Text = `{"method": 4, "evidence": 4, "novelty": 3, "contribution": 4, "overreach": 2, "rationale": "sound design, evidence carries the claims"}`
		}
	case PhaseSynthesis:
		resp.Text = "The panel finds the work methodologically sound with evidence that supports its central claims."
	case PhaseDeliberation:
		if p.deliberationRaw != "" {
			resp.Text = p.deliberationRaw
		} else {
			resp.Text = `{"position": "the evidence holds up under scrutiny"}`
		}
	default:
		resp.Text = `{"assessment": "adequate for the claims made"}`
	}
	return resp, nil
}

func promptPhase(req model.Request) Phase {
	for _, msg := range req.Messages {
		idx := strings.LastIndex(msg.Content, "Current phase: ")
		if idx < 0 {
			continue
		}
		rest := msg.Content[idx+len("Current phase: "):]
		if end := strings.IndexByte(rest, '\n'); end >= 0 {
			rest = rest[:end]
		}
		return Phase(rest)
	}
	return ""
}

func testPaper() Paper {
	return Paper{
		ID:       "paper-1",
		Title:    "Adaptive Retrieval for Long-Context Inference",
		Authors:  []string{"R. Okafor", "L. Tan"},
		Abstract: "We present an adaptive retrieval method that improves long-context accuracy by 40%.",
		Body:     "Section 1. Introduction. Long contexts degrade retrieval precision...",
	}
}

func newTestManager(t *testing.T, cfg Config, panel model.ChatModel) (*Manager, store.Store) {
	t.Helper()
	st := store.NewMemStore()
	t.Cleanup(func() { st.Close() })

	gateway, err := NewSingleModelGateway(panel, DefaultRoleConfigs())
	if err != nil {
		t.Fatalf("NewSingleModelGateway() error = %v", err)
	}
	manager, err := NewManager(st, NewMachine(gateway), cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return manager, st
}

// driveJob advances the job until it reports no pending work. The cap
// guards against a machine that stops making progress.
func driveJob(t *testing.T, manager *Manager, jobID string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		err := manager.Advance(ctx, jobID)
		if errors.Is(err, ErrNoPendingWork) {
			return
		}
		if err != nil {
			t.Fatalf("Advance() error = %v", err)
		}
	}
	t.Fatal("job did not converge within 100 advances")
}
