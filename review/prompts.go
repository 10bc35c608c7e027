package review

import (
	"fmt"
	"strings"
)

// rolePersonas are the system prompts that give each participant its
// reviewing stance. The wording stays stable for a run so the audit
// trail is reproducible.
var rolePersonas = map[Role]string{
	RoleModerator: "You are the moderator of a structured scientific review panel. " +
		"You keep the deliberation on protocol, enumerate the paper's claims faithfully, " +
		"and synthesize the panel's conclusions without adding your own judgments.",
	RoleMethodologist: "You are a methodologist on a scientific review panel. " +
		"You assess study design, statistical validity, controls, and reproducibility. " +
		"You judge only the methodology, independent of how exciting the result is.",
	RoleEvidenceAuditor: "You are an evidence auditor on a scientific review panel. " +
		"You check whether the presented data actually supports each enumerated claim, " +
		"and you distinguish demonstrated results from plausible extrapolation.",
	RoleParadigmChallenger: "You are a paradigm challenger on a scientific review panel. " +
		"You ask whether the work advances the field or repackages known results, " +
		"and you resist both novelty bias and incumbency bias.",
	RoleSkeptic: "You are the designated skeptic on a scientific review panel. " +
		"You probe for overclaiming, unstated assumptions, and alternative explanations. " +
		"Skepticism is not hostility: concede points that survive scrutiny.",
	RoleIncentivesAnalyst: "You are an incentives analyst on a scientific review panel. " +
		"You examine funding sources, author affiliations, and competing interests " +
		"for conflicts that could bias the work, without presuming bad faith.",
}

// phaseInstructions tell the participant what to produce in each
// phase, including the machine-readable output contract the
// interpreter parses.
var phaseInstructions = map[Phase]string{
	PhaseInitialization: "Confirm the review context. Summarize in two sentences what this paper " +
		"is about and what the panel will be evaluating.",
	PhaseClaimEnumeration: "Enumerate the distinct scientific claims this paper makes. " +
		"Respond with a JSON array of claim strings, most central claim first.",
	PhaseMethodologicalReview: "Review the paper's methodology against the enumerated claims. " +
		"Respond with a JSON object mapping each methodological aspect you examined " +
		"(e.g. \"design\", \"statistics\", \"controls\") to your assessment.",
	PhaseEvidenceReview: "Audit the evidence behind each enumerated claim. " +
		"Respond with a JSON object mapping each claim or evidence source to your assessment " +
		"of whether it supports what is claimed.",
	PhaseCOIReview: "Examine conflicts of interest: funding, affiliations, competing products. " +
		"Respond with a JSON object mapping each potential conflict to your assessment.",
	PhaseProgressEvaluation: "Evaluate whether this work represents genuine scientific progress. " +
		"Respond with a JSON object mapping each progress dimension to your assessment.",
	PhaseDeliberation: "Considering the full panel record above, state your position on the " +
		"paper's soundness. Respond with a JSON object mapping the points you consider " +
		"decisive to your position on each. If a prior message violates review principles " +
		"(ad hominem, novelty bias, authority deference), say so explicitly.",
	PhaseVerdictAssignment: "Assign the panel's verdict. Respond with a JSON object: " +
		`{"method": 1-5, "evidence": 1-5, "novelty": 1-5, "contribution": 1-5, ` +
		`"overreach": 1-5, "rationale": "..."}. Score each dimension independently; ` +
		"overreach scores higher when the claims exceed the evidence.",
	PhaseSynthesis: "Write the panel's synthesis: a concise prose summary of the deliberation, " +
		"the verdict, and the decisive considerations. Plain text, no JSON.",
}

// phaseFramings are the scripted moderator messages that open each
// phase on the audit trail. They are not generated by a backend; the
// trail shows the protocol driving the panel, not a model improvising
// stage directions.
var phaseFramings = map[Phase]string{
	PhaseInitialization:       "The panel convenes. Each participant confirms the review context before any judgment is offered.",
	PhaseClaimEnumeration:     "The panel now enumerates the paper's claims. Later phases judge only what is enumerated here.",
	PhaseMethodologicalReview: "The panel now reviews methodology. Judge the design on its own terms, independent of the results.",
	PhaseEvidenceReview:       "The panel now audits the evidence behind each enumerated claim.",
	PhaseCOIReview:            "The panel now examines conflicts of interest. Disclosure is not guilt; concealment is the finding.",
	PhaseProgressEvaluation:   "The panel now evaluates whether this work represents genuine scientific progress.",
	PhaseDeliberation:         "The panel now deliberates on the full record. Argue the evidence, not the arguer.",
	PhaseVerdictAssignment:    "The moderator now assigns the panel's verdict across the five dimensions.",
	PhaseSynthesis:            "The moderator now synthesizes the deliberation into the panel's written review.",
}

// violationMarkers are scanned in deliberation output to flag principle
// violations into the audit trail.
var violationMarkers = []string{
	"principle violation",
	"violates review principles",
	"ad hominem",
	"novelty bias",
	"authority deference",
}

// flagsViolation reports whether a deliberation message calls out a
// review-principle violation.
func flagsViolation(content string) bool {
	lowered := strings.ToLower(content)
	for _, marker := range violationMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// buildPrompt assembles the user prompt for one participant in one
// phase: paper context, accumulated panel record, known disclosures
// when reviewing conflicts, then the phase instruction.
func buildPrompt(paper Paper, state *RunState, phase Phase, disclosures []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Paper under review: %s\n", paper.Title)
	if len(paper.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n", strings.Join(paper.Authors, ", "))
	}
	fmt.Fprintf(&b, "\nAbstract:\n%s\n", paper.Abstract)
	if paper.Body != "" {
		fmt.Fprintf(&b, "\nFull text:\n%s\n", paper.Body)
	}

	if len(state.Claims) > 0 {
		b.WriteString("\nEnumerated claims:\n")
		for i, claim := range state.Claims {
			fmt.Fprintf(&b, "%d. %s\n", i+1, claim)
		}
	}

	if len(state.Findings) > 0 {
		b.WriteString("\nPanel record so far:\n")
		for _, p := range phaseOrder {
			finding, ok := state.Findings[string(p)]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "[%s]\n", p)
			for aspect, assessment := range finding.Entries {
				fmt.Fprintf(&b, "- %s: %s\n", aspect, assessment)
			}
		}
	}

	if phase == PhaseCOIReview && len(disclosures) > 0 {
		b.WriteString("\nKnown disclosures:\n")
		for _, d := range disclosures {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	fmt.Fprintf(&b, "\nCurrent phase: %s\n%s\n", phase, phaseInstructions[phase])
	return b.String()
}
