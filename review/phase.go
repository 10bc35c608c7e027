// Package review implements the deliberation core: a phase-sequenced
// state machine that drives a fixed roster of reasoning participants
// through a scripted review protocol, records an append-only audit
// trail, and aggregates independent runs into a final verdict.
package review

// Phase is one ordered stage of the deliberation protocol.
//
// The sequence is fixed: no back-edges, no skipping. PhaseComplete is
// terminal; PhaseError is a pseudo-state reachable from any phase when
// continuation is meaningless (e.g., the paper cannot be loaded).
type Phase string

const (
	PhaseInitialization        Phase = "initialization"
	PhaseClaimEnumeration      Phase = "claim_enumeration"
	PhaseMethodologicalReview  Phase = "methodological_review"
	PhaseEvidenceReview        Phase = "evidence_review"
	PhaseCOIReview             Phase = "coi_review"
	PhaseProgressEvaluation    Phase = "progress_evaluation"
	PhaseDeliberation          Phase = "deliberation"
	PhaseVerdictAssignment     Phase = "verdict_assignment"
	PhaseSynthesis             Phase = "synthesis"
	PhaseComplete              Phase = "complete"
	PhaseError                 Phase = "error"
)

// Role identifies a deliberation participant. The roster is a closed
// set: six roles sharing one gateway interface with distinct prompts
// and per-role model configuration.
type Role string

const (
	RoleModerator          Role = "moderator"
	RoleMethodologist      Role = "methodologist"
	RoleEvidenceAuditor    Role = "evidence_auditor"
	RoleParadigmChallenger Role = "paradigm_challenger"
	RoleSkeptic            Role = "skeptic"
	RoleIncentivesAnalyst  Role = "incentives_analyst"
)

// AllRoles lists every participant role in deliberation speaking order.
var AllRoles = []Role{
	RoleModerator,
	RoleMethodologist,
	RoleEvidenceAuditor,
	RoleParadigmChallenger,
	RoleSkeptic,
	RoleIncentivesAnalyst,
}

// shape is the structured form a phase expects back from its
// participants. The interpreter dispatches on it.
type shape int

const (
	shapeNone    shape = iota // no structured output required
	shapeClaims               // JSON array of claim strings
	shapeFinding              // JSON object of aspect -> assessment
	shapeVerdict              // JSON object with the five score dimensions
	shapeText                 // free text (synthesis)
)

// phaseSpec declares everything the machine needs to run one phase:
// who speaks, what structured output is expected, and when the phase
// may advance. Expressing this as a table keeps the transition function
// data-driven and testable per phase in isolation.
type phaseSpec struct {
	participants []Role
	shape        shape
	canAdvance   func(*RunState) bool
}

// phaseOrder is the forward-only phase sequence.
var phaseOrder = []Phase{
	PhaseInitialization,
	PhaseClaimEnumeration,
	PhaseMethodologicalReview,
	PhaseEvidenceReview,
	PhaseCOIReview,
	PhaseProgressEvaluation,
	PhaseDeliberation,
	PhaseVerdictAssignment,
	PhaseSynthesis,
	PhaseComplete,
}

var phaseSpecs = map[Phase]phaseSpec{
	PhaseInitialization: {
		participants: []Role{RoleModerator},
		shape:        shapeNone,
		canAdvance:   func(s *RunState) bool { return true },
	},
	PhaseClaimEnumeration: {
		participants: []Role{RoleModerator, RoleEvidenceAuditor, RoleMethodologist},
		shape:        shapeClaims,
		canAdvance:   func(s *RunState) bool { return len(s.Claims) > 0 },
	},
	PhaseMethodologicalReview: {
		participants: []Role{RoleModerator, RoleMethodologist, RoleSkeptic},
		shape:        shapeFinding,
		canAdvance:   hasFinding(PhaseMethodologicalReview),
	},
	PhaseEvidenceReview: {
		participants: []Role{RoleModerator, RoleEvidenceAuditor, RoleSkeptic, RoleParadigmChallenger},
		shape:        shapeFinding,
		canAdvance:   hasFinding(PhaseEvidenceReview),
	},
	PhaseCOIReview: {
		participants: []Role{RoleModerator, RoleIncentivesAnalyst},
		shape:        shapeFinding,
		canAdvance:   hasFinding(PhaseCOIReview),
	},
	PhaseProgressEvaluation: {
		participants: []Role{RoleModerator, RoleParadigmChallenger, RoleEvidenceAuditor},
		shape:        shapeFinding,
		canAdvance:   hasFinding(PhaseProgressEvaluation),
	},
	PhaseDeliberation: {
		participants: AllRoles,
		shape:        shapeFinding,
		canAdvance:   hasFinding(PhaseDeliberation),
	},
	PhaseVerdictAssignment: {
		participants: []Role{RoleModerator},
		shape:        shapeVerdict,
		canAdvance:   func(s *RunState) bool { return s.Verdict != nil },
	},
	PhaseSynthesis: {
		participants: []Role{RoleModerator},
		shape:        shapeText,
		canAdvance:   func(s *RunState) bool { return s.Synthesis != "" },
	},
}

func hasFinding(p Phase) func(*RunState) bool {
	return func(s *RunState) bool {
		_, ok := s.Findings[string(p)]
		return ok
	}
}

// Next returns the phase following p in the protocol order.
// The second result is false when p is terminal or unknown.
func (p Phase) Next() (Phase, bool) {
	for i, phase := range phaseOrder {
		if phase == p && i+1 < len(phaseOrder) {
			return phaseOrder[i+1], true
		}
	}
	return p, false
}

// Terminal reports whether p ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// Valid reports whether p is a known phase, including the error
// pseudo-state.
func (p Phase) Valid() bool {
	if p == PhaseError {
		return true
	}
	for _, phase := range phaseOrder {
		if phase == p {
			return true
		}
	}
	return false
}

// Participants returns the roles invited to speak in phase p.
// Terminal phases have no roster.
func Participants(p Phase) []Role {
	spec, ok := phaseSpecs[p]
	if !ok {
		return nil
	}
	out := make([]Role, len(spec.participants))
	copy(out, spec.participants)
	return out
}
