package review

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestMachine(t *testing.T, panel *scriptedPanel, opts ...MachineOption) *Machine {
	t.Helper()
	gateway, err := NewSingleModelGateway(panel, DefaultRoleConfigs())
	if err != nil {
		t.Fatalf("NewSingleModelGateway() error = %v", err)
	}
	return NewMachine(gateway, opts...)
}

// runToCompletion steps the state until it reaches a terminal phase,
// collecting everything the machine produced.
func runToCompletion(t *testing.T, m *Machine, paper Paper, state *RunState) ([]Message, []Transition) {
	t.Helper()
	var msgs []Message
	var trs []Transition
	for i := 0; i < 20 && !state.Phase.Terminal(); i++ {
		result, err := m.Step(context.Background(), paper, "run-1", state)
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		msgs = append(msgs, result.Messages...)
		if result.Transition != nil {
			trs = append(trs, *result.Transition)
		}
	}
	if !state.Phase.Terminal() {
		t.Fatalf("run did not reach a terminal phase, stuck at %s", state.Phase)
	}
	return msgs, trs
}

func TestMachineRunsToCompletion(t *testing.T) {
	m := newTestMachine(t, &scriptedPanel{})
	state := NewRunState("paper-1")

	_, trs := runToCompletion(t, m, testPaper(), state)

	if state.Phase != PhaseComplete {
		t.Fatalf("final phase = %s, want %s", state.Phase, PhaseComplete)
	}
	if len(trs) != len(phaseOrder)-1 {
		t.Fatalf("got %d transitions, want %d", len(trs), len(phaseOrder)-1)
	}
	for i, tr := range trs {
		if tr.From != phaseOrder[i] || tr.To != phaseOrder[i+1] {
			t.Errorf("transition %d = %s -> %s, want %s -> %s", i, tr.From, tr.To, phaseOrder[i], phaseOrder[i+1])
		}
	}

	if len(state.Claims) != 2 {
		t.Errorf("got %d claims, want 2", len(state.Claims))
	}
	if state.Verdict == nil || state.Verdict.Method != 4 {
		t.Errorf("verdict = %+v, want method 4", state.Verdict)
	}
	if state.Synthesis == "" {
		t.Error("synthesis is empty")
	}
	if state.Degraded() {
		t.Errorf("clean run marked degraded: %v", state.Limitations)
	}
}

func TestMachineStepTerminalIsNoOp(t *testing.T) {
	m := newTestMachine(t, &scriptedPanel{})
	state := NewRunState("paper-1")
	state.Phase = PhaseComplete

	result, err := m.Step(context.Background(), testPaper(), "run-1", state)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if len(result.Messages) != 0 || result.Transition != nil {
		t.Errorf("terminal step produced work: %+v", result)
	}
}

func TestMachineStepContextCancelled(t *testing.T) {
	m := newTestMachine(t, &scriptedPanel{})
	state := NewRunState("paper-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Step(ctx, testPaper(), "run-1", state); err == nil {
		t.Fatal("Step() with cancelled context returned nil error")
	}
	if state.Phase != PhaseInitialization {
		t.Errorf("cancelled step mutated state, phase = %s", state.Phase)
	}
}

func TestMachineParticipantFailureDegradesAndAdvances(t *testing.T) {
	panel := &scriptedPanel{failPhase: PhaseMethodologicalReview, failsLeft: -1}
	m := newTestMachine(t, panel)
	state := NewRunState("paper-1")

	_, trs := runToCompletion(t, m, testPaper(), state)

	if state.Phase != PhaseComplete {
		t.Fatalf("degraded run did not complete, phase = %s", state.Phase)
	}
	finding, ok := state.Findings[string(PhaseMethodologicalReview)]
	if !ok {
		t.Fatal("no finding recorded for the failed phase")
	}
	if !finding.WasFallback {
		t.Error("fallback finding not marked WasFallback")
	}
	if !state.Degraded() {
		t.Error("run with fallbacks not marked degraded")
	}

	var found bool
	for _, lim := range state.Limitations {
		if strings.Contains(lim, string(PhaseMethodologicalReview)) {
			found = true
		}
	}
	if !found {
		t.Errorf("limitations %v do not mention the degraded phase", state.Limitations)
	}

	for _, tr := range trs {
		if tr.From == PhaseMethodologicalReview && tr.Detail != "advanced with degraded finding" {
			t.Errorf("degraded transition detail = %q", tr.Detail)
		}
	}
}

func TestMachineVerdictParseFailureUsesPlaceholder(t *testing.T) {
	panel := &scriptedPanel{verdictRaw: "I cannot commit to numbers here."}
	m := newTestMachine(t, panel)
	state := NewRunState("paper-1")

	runToCompletion(t, m, testPaper(), state)

	if state.Verdict == nil {
		t.Fatal("no verdict after parse failure")
	}
	if !state.Verdict.WasFallback {
		t.Error("placeholder verdict not marked WasFallback")
	}
	if state.Verdict.Method != ScoreMidpoint || state.Verdict.Overreach != ScoreMidpoint {
		t.Errorf("placeholder verdict scores = %+v, want all %d", state.Verdict, ScoreMidpoint)
	}
	if state.Verdict.Rationale != "parse failed, placeholder used" {
		t.Errorf("placeholder rationale = %q", state.Verdict.Rationale)
	}
	if state.Phase != PhaseComplete {
		t.Errorf("parse failure stopped the run at %s", state.Phase)
	}
}

func TestMachineDeliberationViolationIsFlaggedAndAnswered(t *testing.T) {
	panel := &scriptedPanel{
		deliberationRaw: `{"position": "the previous message shows novelty bias and violates review principles"}`,
	}
	m := newTestMachine(t, panel)
	state := NewRunState("paper-1")

	msgs, _ := runToCompletion(t, m, testPaper(), state)

	if len(state.Violations) == 0 {
		t.Fatal("no violations recorded")
	}

	var flagged, answered bool
	for _, msg := range msgs {
		if msg.FlagsViolation {
			flagged = true
		}
		if msg.Role == RoleModerator && strings.Contains(msg.Content, "Moderator note") {
			answered = true
		}
	}
	if !flagged {
		t.Error("no message carries the violation flag")
	}
	if !answered {
		t.Error("no moderator follow-up answers the flagged violation")
	}
}

func TestMachineStepOpensWithModeratorFraming(t *testing.T) {
	m := newTestMachine(t, &scriptedPanel{})
	state := NewRunState("paper-1")

	result, err := m.Step(context.Background(), testPaper(), "run-1", state)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if len(result.Messages) == 0 {
		t.Fatal("step produced no messages")
	}
	first := result.Messages[0]
	if first.Role != RoleModerator {
		t.Errorf("first message role = %s, want %s", first.Role, RoleModerator)
	}
	if first.Content != phaseFramings[PhaseInitialization] {
		t.Errorf("first message = %q, want the initialization framing", first.Content)
	}
	if first.Provider != "" || first.Model != "" {
		t.Errorf("scripted framing carries a model config: %+v", first)
	}
}

func TestMachineStampsModelConfigOnMessages(t *testing.T) {
	configs := DefaultRoleConfigs()
	for role, cfg := range configs {
		cfg.Provider = "scripted"
		cfg.Model = "scripted-1"
		configs[role] = cfg
	}
	gateway, err := NewSingleModelGateway(&scriptedPanel{}, configs)
	if err != nil {
		t.Fatalf("NewSingleModelGateway() error = %v", err)
	}
	m := NewMachine(gateway)
	state := NewRunState("paper-1")

	result, err := m.Step(context.Background(), testPaper(), "run-1", state)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	var stamped int
	for _, msg := range result.Messages {
		if msg.Provider == "" {
			continue
		}
		stamped++
		if msg.Provider != "scripted" || msg.Model != "scripted-1" {
			t.Errorf("message config = %s/%s", msg.Provider, msg.Model)
		}
		if msg.Temperature != configs[msg.Role].Temperature || msg.MaxTokens != configs[msg.Role].MaxTokens {
			t.Errorf("message sampling = %v/%d, want the %s config", msg.Temperature, msg.MaxTokens, msg.Role)
		}
	}
	if stamped == 0 {
		t.Error("no participant message carries its model config")
	}
}

type staticCOI struct {
	disclosures []string
	err         error
}

func (c *staticCOI) Disclosures(ctx context.Context, paper Paper) ([]string, error) {
	return c.disclosures, c.err
}

func TestMachineCOIDisclosuresReachThePanel(t *testing.T) {
	panel := &scriptedPanel{}
	gateway, err := NewSingleModelGateway(panel, DefaultRoleConfigs())
	if err != nil {
		t.Fatalf("NewSingleModelGateway() error = %v", err)
	}
	coi := &staticCOI{disclosures: []string{"second author consults for the vendor whose product is benchmarked"}}
	m := NewMachine(gateway, WithCOIAnalyzer(coi))
	state := NewRunState("paper-1")

	runToCompletion(t, m, testPaper(), state)

	panel.mu.Lock()
	defer panel.mu.Unlock()
	var seen bool
	for _, prompt := range panel.prompts {
		if strings.Contains(prompt, "Known disclosures:") &&
			strings.Contains(prompt, "consults for the vendor") {
			seen = true
		}
	}
	if !seen {
		t.Error("no COI-phase prompt carried the known disclosures")
	}
}

func TestMachineCOIAnalyzerFailureDegradesTheRun(t *testing.T) {
	coi := &staticCOI{err: context.DeadlineExceeded}
	m := newTestMachine(t, &scriptedPanel{}, WithCOIAnalyzer(coi))
	state := NewRunState("paper-1")

	runToCompletion(t, m, testPaper(), state)

	if state.Phase != PhaseComplete {
		t.Fatalf("run stalled at %s", state.Phase)
	}
	var noted bool
	for _, lim := range state.Limitations {
		if strings.Contains(lim, "disclosures unavailable") {
			noted = true
		}
	}
	if !noted {
		t.Errorf("limitations %v do not record the disclosure failure", state.Limitations)
	}
}

func TestCaptureDivergences(t *testing.T) {
	state := NewRunState("paper-1")
	state.Findings[string(PhaseDeliberation)] = Finding{Entries: map[string]string{
		"skeptic.effect_size":       "inflated by the baseline choice",
		"methodologist.effect_size": "plausible given the ablations",
		"skeptic.novelty":           "incremental",
		"evidence_auditor.novelty":  "incremental",
		"moderator.process":         "protocol followed",
	}}

	captureDivergences(state)

	if len(state.Divergences) != 1 {
		t.Fatalf("divergences = %v, want exactly the effect_size split", state.Divergences)
	}
	d := state.Divergences[0]
	if !strings.Contains(d, "effect_size") ||
		!strings.Contains(d, "methodologist") || !strings.Contains(d, "skeptic") {
		t.Errorf("divergence %q does not name the aspect and the split roles", d)
	}
}

func TestMachineTrailTimestampsMonotonic(t *testing.T) {
	m := newTestMachine(t, &scriptedPanel{})
	state := NewRunState("paper-1")

	msgs, trs := runToCompletion(t, m, testPaper(), state)

	var last time.Time
	for i, msg := range msgs {
		if msg.Timestamp.Before(last) {
			t.Fatalf("message %d timestamp regresses", i)
		}
		last = msg.Timestamp
	}
	last = time.Time{}
	for i, tr := range trs {
		if tr.Timestamp.Before(last) {
			t.Fatalf("transition %d timestamp regresses", i)
		}
		last = tr.Timestamp
	}
}

func TestMonotonicClockNeverRegresses(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := newMonotonicClock(func() time.Time { return fixed }, time.Time{})

	prev := clock.next()
	for i := 0; i < 10; i++ {
		cur := clock.next()
		if !cur.After(prev) {
			t.Fatalf("tick %d: %v not after %v", i, cur, prev)
		}
		prev = cur
	}
}

func TestMonotonicClockHonoursFloor(t *testing.T) {
	floor := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	behind := floor.Add(-time.Hour)
	clock := newMonotonicClock(func() time.Time { return behind }, floor)

	if got := clock.next(); !got.After(floor) {
		t.Fatalf("first tick %v not after the floor %v", got, floor)
	}
}

// A resume on a machine whose wall clock runs behind the trail must not
// write regressing timestamps: the step clock is seeded from the run's
// last persisted trail timestamp.
func TestMachineTrailSurvivesClockSkewAcrossSteps(t *testing.T) {
	// Each Step sees a wall clock one hour earlier than the previous one.
	wall := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	skewed := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		wall = wall.Add(-time.Hour)
		return wall
	}
	m := newTestMachine(t, &scriptedPanel{}, WithClock(skewed))
	state := NewRunState("paper-1")

	msgs, trs := runToCompletion(t, m, testPaper(), state)

	var last time.Time
	for i, msg := range msgs {
		if msg.Timestamp.Before(last) {
			t.Fatalf("message %d timestamp %v regresses below %v", i, msg.Timestamp, last)
		}
		last = msg.Timestamp
	}
	last = time.Time{}
	for i, tr := range trs {
		if tr.Timestamp.Before(last) {
			t.Fatalf("transition %d timestamp %v regresses below %v", i, tr.Timestamp, last)
		}
		last = tr.Timestamp
	}
	if state.TrailHead.Before(last) {
		t.Errorf("trail head %v behind the last transition timestamp %v", state.TrailHead, last)
	}
}
