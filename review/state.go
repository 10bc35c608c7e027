package review

import (
	"encoding/json"
	"fmt"
	"time"
)

// Paper is a paper under review. Immutable once ingested; the core
// reads it, never writes it.
type Paper struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Abstract string   `json:"abstract"`
	Body     string   `json:"body,omitempty"`
}

// Finding is the structured outcome of one deliberation phase.
//
// Entries maps an aspect or participant role to its assessment. When a
// participant's output could not be obtained or parsed, the fallback
// entry is recorded here and WasFallback is set so the report's
// limitations section can surface the degradation.
type Finding struct {
	Entries        map[string]string `json:"entries"`
	WasFallback    bool              `json:"was_fallback,omitempty"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
}

// Message is one participant's contribution within one phase.
// Append-only: never mutated or deleted after creation.
//
// Provider, Model, Temperature, and MaxTokens record the sampling
// configuration that produced the content, so any trail entry can be
// traced back to the exact backend that spoke. Scripted moderator
// messages (framings, follow-ups) leave them zero.
type Message struct {
	Role           Role      `json:"role"`
	Phase          Phase     `json:"phase"`
	Content        string    `json:"content"`
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model,omitempty"`
	Temperature    float64   `json:"temperature,omitempty"`
	MaxTokens      int       `json:"max_tokens,omitempty"`
	TokensIn       int       `json:"tokens_in,omitempty"`
	TokensOut      int       `json:"tokens_out,omitempty"`
	FlagsViolation bool      `json:"flags_violation,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// RunState is the accumulated deliberation state of one debate run.
//
// It is the unit the machine's transition function operates on and the
// value serialized into the run record at every commit, so a crashed
// process resumes from the last committed phase. All mutation flows
// through Machine.Step; once Phase is terminal the state is history.
type RunState struct {
	PaperID string `json:"paper_id"`
	Phase   Phase  `json:"phase"`

	// Claims enumerated from the paper; the subject of every later phase.
	Claims []string `json:"claims,omitempty"`

	// Findings keyed by phase name (methodological_review, ...).
	Findings map[string]Finding `json:"findings,omitempty"`

	Verdict   *Verdict `json:"verdict,omitempty"`
	Synthesis string   `json:"synthesis,omitempty"`

	// Violations records flagged principle violations. Never removed,
	// only appended to.
	Violations []string `json:"violations,omitempty"`

	// Divergences records aspects where panel members took different
	// positions during deliberation. Captured when deliberation closes.
	Divergences []string `json:"divergences,omitempty"`

	// Limitations enumerates degraded phases and extraction fallbacks
	// for the report's limitations section.
	Limitations []string `json:"limitations,omitempty"`

	// Error is set when the run entered the error pseudo-state.
	Error string `json:"error,omitempty"`

	// TrailHead is the latest trail timestamp this run has written.
	// Seeds the step clock so a resume on a skewed wall clock cannot
	// write regressing timestamps.
	TrailHead time.Time `json:"trail_head,omitempty"`

	// claimsFallback marks Claims as a fallback enumeration, so a later
	// participant's successful parse may replace it within the phase.
	claimsFallback bool
}

// NewRunState creates the initial state for a run over the given paper.
func NewRunState(paperID string) *RunState {
	return &RunState{
		PaperID:  paperID,
		Phase:    PhaseInitialization,
		Findings: make(map[string]Finding),
	}
}

// Degraded reports whether any phase in this run used a fallback value.
func (s *RunState) Degraded() bool {
	return len(s.Limitations) > 0
}

// Fail moves the run into the error pseudo-state with a recorded cause.
func (s *RunState) Fail(cause string) {
	s.Phase = PhaseError
	s.Error = cause
}

// MarshalState serializes a RunState for the run record.
func MarshalState(s *RunState) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run state: %w", err)
	}
	return string(data), nil
}

// UnmarshalState restores a RunState from a run record.
func UnmarshalState(data string) (*RunState, error) {
	var s RunState
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	if s.Findings == nil {
		s.Findings = make(map[string]Finding)
	}
	return &s, nil
}
