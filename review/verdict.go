package review

import "fmt"

// Score bounds for every verdict dimension.
const (
	ScoreMin = 1
	ScoreMax = 5
	// ScoreMidpoint is the placeholder used when verdict assignment
	// falls back after a parse failure.
	ScoreMidpoint = 3
)

// Recommendation values produced by the publishability gate.
const (
	RecommendPublishable    = "publishable"
	RecommendReviseResubmit = "revise_resubmit"
	RecommendReject         = "reject"
)

// Verdict holds the five independent score dimensions assigned at the
// end of a run, plus the assigning participant's rationale.
//
// Each dimension is independently assigned: no dimension is ever
// derived by negating or inverting another, and a low score on one must
// not mechanically force a low score elsewhere.
type Verdict struct {
	Method       int    `json:"method"`
	Evidence     int    `json:"evidence"`
	Novelty      int    `json:"novelty"`
	Contribution int    `json:"contribution"`
	Overreach    int    `json:"overreach"`
	Rationale    string `json:"rationale"`

	// WasFallback marks a placeholder verdict substituted after the
	// assigning participant's output could not be parsed.
	WasFallback bool `json:"was_fallback,omitempty"`
}

// Validate checks that every dimension is within [ScoreMin, ScoreMax].
func (v *Verdict) Validate() error {
	dims := map[string]int{
		"method":       v.Method,
		"evidence":     v.Evidence,
		"novelty":      v.Novelty,
		"contribution": v.Contribution,
		"overreach":    v.Overreach,
	}
	for name, score := range dims {
		if score < ScoreMin || score > ScoreMax {
			return fmt.Errorf("verdict dimension %s = %d, must be in [%d, %d]", name, score, ScoreMin, ScoreMax)
		}
	}
	return nil
}

// FallbackVerdict returns the documented placeholder verdict: midpoint
// on every dimension with a rationale explicitly marking the fallback.
func FallbackVerdict() *Verdict {
	return &Verdict{
		Method:       ScoreMidpoint,
		Evidence:     ScoreMidpoint,
		Novelty:      ScoreMidpoint,
		Contribution: ScoreMidpoint,
		Overreach:    ScoreMidpoint,
		Rationale:    "parse failed, placeholder used",
		WasFallback:  true,
	}
}

// Recommend maps a verdict to a publication recommendation:
//
//   - publishable: sound method, sufficient evidence, claims in check
//   - revise_resubmit: sound method and claims in check, but the
//     evidence does not yet carry the claims
//   - reject: anything else
//
// Overreach is scored so that higher means worse (more overclaiming),
// which is why the gate bounds it from above.
func (v *Verdict) Recommend() string {
	return v.Publishability().Outcome
}

// Gate thresholds for the publishability decision.
const (
	// GateSoundMethod is the minimum method score for any outcome
	// other than reject.
	GateSoundMethod = 3
	// GateClaimsInCheck is the maximum overreach score for any outcome
	// other than reject.
	GateClaimsInCheck = 3
	// GateSufficientEvidence is the minimum evidence score for
	// publishable.
	GateSufficientEvidence = 3
)

// Publishability is the publishability gate's full decision: the
// outcome, the reasons behind it, and whether the verdict it was
// computed from is a placeholder.
type Publishability struct {
	Outcome string `json:"outcome"`

	// Reasons name each gate that decided the outcome, in gate order.
	Reasons []string `json:"reasons"`

	// Provisional is set when the underlying verdict was a fallback
	// placeholder, so every gate passed or failed on placeholder
	// scores rather than an assigned judgment.
	Provisional bool `json:"provisional,omitempty"`
}

// Publishability evaluates the three gates and reports the outcome
// together with the reason for each gate that fired.
func (v *Verdict) Publishability() Publishability {
	p := Publishability{Provisional: v.WasFallback}

	soundMethod := v.Method >= GateSoundMethod
	claimsInCheck := v.Overreach <= GateClaimsInCheck
	sufficientEvidence := v.Evidence >= GateSufficientEvidence

	if !soundMethod {
		p.Reasons = append(p.Reasons,
			fmt.Sprintf("method %d below soundness threshold %d", v.Method, GateSoundMethod))
	}
	if !claimsInCheck {
		p.Reasons = append(p.Reasons,
			fmt.Sprintf("overreach %d above tolerance %d: claims exceed the evidence", v.Overreach, GateClaimsInCheck))
	}

	switch {
	case soundMethod && claimsInCheck && sufficientEvidence:
		p.Outcome = RecommendPublishable
		p.Reasons = append(p.Reasons, "method sound, claims in check, evidence sufficient")
	case soundMethod && claimsInCheck:
		p.Outcome = RecommendReviseResubmit
		p.Reasons = append(p.Reasons,
			fmt.Sprintf("evidence %d below sufficiency threshold %d: sound work, claims not yet carried", v.Evidence, GateSufficientEvidence))
	default:
		p.Outcome = RecommendReject
	}

	if p.Provisional {
		p.Reasons = append(p.Reasons, "verdict is a parse-failure placeholder; gates evaluated on placeholder scores")
	}
	return p
}
