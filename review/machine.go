package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dshills/scijudge/review/emit"
	"github.com/dshills/scijudge/review/model"
)

// Transition is one phase transition in a run's audit trail.
type Transition struct {
	From      Phase
	To        Phase
	Detail    string
	Timestamp time.Time
}

// StepResult is the outcome of driving a run one phase forward:
// the messages the phase produced, the transition it committed, and
// whether the run reached its terminal phase.
//
// The caller persists Messages and Transition before treating the
// in-memory state mutation as committed.
type StepResult struct {
	Messages   []Message
	Transition *Transition
	Completed  bool
}

// Machine executes the deliberation protocol one phase at a time.
//
// Step is pure with respect to the run's accumulated state: given the
// same state and the same participant outputs it produces the same
// transition, so re-deriving history from the audit log reproduces the
// same phase sequence. All I/O goes through the Gateway; the machine
// itself never blocks on anything else.
type Machine struct {
	gateway *Gateway
	emitter emit.Emitter
	metrics *Metrics
	coi     COIAnalyzer
	now     func() time.Time
}

// COIAnalyzer surfaces known conflict-of-interest disclosures for a
// paper before the panel's COI review, e.g. from a disclosure database
// or the submission form. The panel weighs what it returns; it does not
// replace the review.
type COIAnalyzer interface {
	Disclosures(ctx context.Context, paper Paper) ([]string, error)
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithEmitter sets the observability emitter. Defaults to NullEmitter.
func WithEmitter(e emit.Emitter) MachineOption {
	return func(m *Machine) { m.emitter = e }
}

// WithMetrics sets the Prometheus metrics collector. Defaults to none.
func WithMetrics(mt *Metrics) MachineOption {
	return func(m *Machine) { m.metrics = mt }
}

// WithClock overrides the machine's time source. Used by tests to
// control trail timestamps.
func WithClock(now func() time.Time) MachineOption {
	return func(m *Machine) { m.now = now }
}

// WithCOIAnalyzer sets the disclosure source consulted before the COI
// review phase. Defaults to none: the panel works from the paper alone.
func WithCOIAnalyzer(a COIAnalyzer) MachineOption {
	return func(m *Machine) { m.coi = a }
}

// NewMachine creates a Machine over the given gateway.
func NewMachine(gateway *Gateway, opts ...MachineOption) *Machine {
	m := &Machine{
		gateway: gateway,
		emitter: emit.NewNullEmitter(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Step drives the run one phase forward: invokes the phase's roster,
// interprets each response, mutates state, and advances to the next
// phase. Calling Step on a terminal state is a no-op.
//
// A participant failure never aborts the run. The phase records the
// documented fallback, marks the degradation in state.Limitations, and
// still advances; the report's limitations section surfaces it. The
// only error Step returns is context cancellation, observed at the
// phase boundary before any participant is invoked.
func (m *Machine) Step(ctx context.Context, paper Paper, runID string, state *RunState) (StepResult, error) {
	if state.Phase.Terminal() {
		return StepResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}

	phase := state.Phase
	spec := phaseSpecs[phase]
	started := m.now()
	m.emitter.Emit(emit.Event{RunID: runID, Phase: string(phase), Msg: "phase_start"})

	clock := newMonotonicClock(m.now, state.TrailHead)
	var messages []Message

	// The scripted framing opens the phase on the trail before any
	// participant speaks.
	if framing, ok := phaseFramings[phase]; ok {
		messages = append(messages, Message{
			Role:      RoleModerator,
			Phase:     phase,
			Content:   framing,
			Timestamp: clock.next(),
		})
	}

	var disclosures []string
	if phase == PhaseCOIReview && m.coi != nil {
		var err error
		disclosures, err = m.coi.Disclosures(ctx, paper)
		if err != nil {
			m.recordDegradation(state, runID, phase, RoleModerator,
				fmt.Sprintf("disclosures unavailable: %v", err))
		}
	}

	prompt := buildPrompt(paper, state, phase, disclosures)

	for _, role := range spec.participants {
		resp, err := m.gateway.Invoke(ctx, role, phase, prompt)
		if err != nil {
			m.recordProviderError(err)
			m.recordDegradation(state, runID, phase, role, fmt.Sprintf("participant unavailable: %v", err))
			messages = append(messages, Message{
				Role:      role,
				Phase:     phase,
				Content:   fmt.Sprintf("[unavailable] %v", err),
				Timestamp: clock.next(),
			})
			m.applyFallback(state, paper, phase, role)
			continue
		}

		cfg := m.gateway.Config(role)
		msg := Message{
			Role:        role,
			Phase:       phase,
			Content:     resp.Text,
			Provider:    cfg.Provider,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			TokensIn:    resp.TokensIn,
			TokensOut:   resp.TokensOut,
			Timestamp:   clock.next(),
		}

		if phase == PhaseDeliberation && flagsViolation(resp.Text) {
			msg.FlagsViolation = true
			state.Violations = append(state.Violations,
				fmt.Sprintf("%s flagged a principle violation during %s", role, phase))
			if m.metrics != nil {
				m.metrics.IncrementViolations()
			}
		}
		messages = append(messages, msg)

		if reason := m.applyResponse(state, paper, phase, role, resp.Text); reason != "" {
			m.recordDegradation(state, runID, phase, role, reason)
		}
	}

	// A flagged violation is never removed; it is answered. The
	// moderator's corrective follow-up closes the exchange on the trail.
	for _, msg := range messages {
		if msg.FlagsViolation {
			messages = append(messages, Message{
				Role:      RoleModerator,
				Phase:     phase,
				Content:   fmt.Sprintf("Moderator note: the violation flagged by %s is recorded. Participants must argue the evidence, not the arguer.", msg.Role),
				Timestamp: clock.next(),
			})
			break
		}
	}

	result := StepResult{Messages: messages}
	if spec.canAdvance(state) {
		next, ok := state.Phase.Next()
		if !ok {
			return result, nil
		}
		if phase == PhaseDeliberation {
			captureDivergences(state)
		}
		tr := &Transition{
			From:      state.Phase,
			To:        next,
			Timestamp: clock.next(),
		}
		if finding, ok := state.Findings[string(phase)]; ok && finding.WasFallback {
			tr.Detail = "advanced with degraded finding"
		}
		state.Phase = next
		result.Transition = tr
		result.Completed = next == PhaseComplete
	}
	state.TrailHead = clock.last

	status := "success"
	if finding, ok := state.Findings[string(phase)]; ok && finding.WasFallback {
		status = "degraded"
	}
	if m.metrics != nil {
		m.metrics.RecordPhaseLatency(string(phase), m.now().Sub(started), status)
	}
	m.emitter.Emit(emit.Event{RunID: runID, Phase: string(phase), Msg: "phase_complete",
		Meta: map[string]interface{}{"status": status}})

	return result, nil
}

// applyResponse interprets a participant's output for the phase's
// expected shape and folds it into state. Returns a non-empty reason
// when the interpreter had to fall back.
func (m *Machine) applyResponse(state *RunState, paper Paper, phase Phase, role Role, raw string) string {
	switch phaseSpecs[phase].shape {
	case shapeNone:
		return ""

	case shapeClaims:
		p := InterpretClaims(raw, paper.Abstract)
		// The first successful enumeration stands; the moderator speaks
		// first, so corroborating participants never displace it.
		if len(state.Claims) == 0 || (state.claimsFallback && !p.WasFallback) {
			state.Claims = p.Value
			state.claimsFallback = p.WasFallback
		}
		if p.WasFallback {
			return p.Reason
		}
		return ""

	case shapeFinding:
		p := InterpretFinding(raw)
		mergeFinding(state, phase, role, p)
		if p.WasFallback {
			return p.Reason
		}
		return ""

	case shapeVerdict:
		p := InterpretVerdict(raw)
		state.Verdict = p.Value
		if p.WasFallback {
			return p.Reason
		}
		return ""

	case shapeText:
		p := InterpretSynthesis(raw)
		state.Synthesis = p.Value
		if p.WasFallback {
			return p.Reason
		}
		return ""
	}
	return ""
}

// applyFallback fills in the phase's documented fallback when a
// participant could not be reached at all.
func (m *Machine) applyFallback(state *RunState, paper Paper, phase Phase, role Role) {
	switch phaseSpecs[phase].shape {
	case shapeClaims:
		if len(state.Claims) == 0 {
			state.Claims = []string{paper.Abstract}
			state.claimsFallback = true
		}
	case shapeFinding:
		mergeFinding(state, phase, role, fallback(
			map[string]string{"note": "participant unavailable"}, "participant unavailable"))
	case shapeVerdict:
		if state.Verdict == nil {
			state.Verdict = FallbackVerdict()
		}
	case shapeText:
		if state.Synthesis == "" {
			state.Synthesis = "synthesis unavailable: participant could not be reached"
		}
	}
}

// mergeFinding folds one participant's finding into the phase finding,
// namespacing entries by role so two participants never clobber each
// other's aspects.
func mergeFinding(state *RunState, phase Phase, role Role, p Parsed[map[string]string]) {
	finding := state.Findings[string(phase)]
	if finding.Entries == nil {
		finding.Entries = make(map[string]string)
	}
	for aspect, assessment := range p.Value {
		finding.Entries[fmt.Sprintf("%s.%s", role, aspect)] = assessment
	}
	if p.WasFallback {
		finding.WasFallback = true
		if finding.FallbackReason == "" {
			finding.FallbackReason = p.Reason
		}
	}
	state.Findings[string(phase)] = finding
}

// recordProviderError counts a backend failure by provider and kind
// when metrics are attached. Errors that carry no provider taxonomy
// are counted under "unknown".
func (m *Machine) recordProviderError(err error) {
	if m.metrics == nil {
		return
	}
	var provErr *model.ProviderError
	if errors.As(err, &provErr) {
		m.metrics.RecordProviderError(provErr.Provider, provErr.Kind)
		return
	}
	m.metrics.RecordProviderError("unknown", "unknown")
}

// captureDivergences records the aspects where two or more panel
// members took different positions in deliberation. Runs once, when
// deliberation closes; the record is what synthesis and the report
// cite when the panel did not speak with one voice.
func captureDivergences(state *RunState) {
	finding, ok := state.Findings[string(PhaseDeliberation)]
	if !ok {
		return
	}

	// Entries are keyed "role.aspect"; group positions by aspect.
	positions := make(map[string]map[string]string)
	for key, assessment := range finding.Entries {
		role, aspect, ok := splitEntryKey(key)
		if !ok {
			continue
		}
		if positions[aspect] == nil {
			positions[aspect] = make(map[string]string)
		}
		positions[aspect][role] = assessment
	}

	aspects := make([]string, 0, len(positions))
	for aspect := range positions {
		aspects = append(aspects, aspect)
	}
	sort.Strings(aspects)

	for _, aspect := range aspects {
		byRole := positions[aspect]
		if len(byRole) < 2 {
			continue
		}
		distinct := make(map[string][]string)
		for role, assessment := range byRole {
			distinct[assessment] = append(distinct[assessment], role)
		}
		if len(distinct) < 2 {
			continue
		}
		roles := make([]string, 0, len(byRole))
		for role := range byRole {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		state.Divergences = append(state.Divergences,
			fmt.Sprintf("%s: %s took different positions", aspect, joinRoles(roles)))
	}
}

func splitEntryKey(key string) (role, aspect string, ok bool) {
	return strings.Cut(key, ".")
}

func joinRoles(roles []string) string {
	switch len(roles) {
	case 0:
		return ""
	case 1:
		return roles[0]
	case 2:
		return roles[0] + " and " + roles[1]
	default:
		return strings.Join(roles[:len(roles)-1], ", ") + ", and " + roles[len(roles)-1]
	}
}

// recordDegradation appends a limitation entry and emits the fallback
// event, in one place so the wording stays consistent.
func (m *Machine) recordDegradation(state *RunState, runID string, phase Phase, role Role, reason string) {
	state.Limitations = append(state.Limitations,
		fmt.Sprintf("%s (%s): %s", phase, role, reason))
	if m.metrics != nil {
		m.metrics.IncrementFallbacks(string(phase))
	}
	m.emitter.Emit(emit.Event{
		RunID: runID,
		Phase: string(phase),
		Role:  string(role),
		Msg:   "participant_fallback",
		Meta:  map[string]interface{}{"fallback_reason": reason},
	})
}

// monotonicClock hands out non-decreasing timestamps for the trail,
// preserving its ordering invariant even if the wall clock jitters
// backwards. The floor seeds it with the run's last persisted trail
// timestamp, so a step resumed on a skewed clock continues forward
// from where the trail left off.
type monotonicClock struct {
	now  func() time.Time
	last time.Time
}

func newMonotonicClock(now func() time.Time, floor time.Time) *monotonicClock {
	return &monotonicClock{now: now, last: floor}
}

func (c *monotonicClock) next() time.Time {
	t := c.now()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
