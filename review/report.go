package review

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/scijudge/review/store"
)

// BuildReport renders one run's deliberation into a markdown review
// report. The limitations section is always present: it either lists
// the degraded phases and extraction fallbacks or states that the run
// completed cleanly, so a reader never has to guess whether degradation
// was checked.
func BuildReport(paper Paper, state *RunState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Review: %s\n\n", paper.Title)
	if len(paper.Authors) > 0 {
		fmt.Fprintf(&b, "Authors: %s\n\n", strings.Join(paper.Authors, ", "))
	}

	if state.Verdict != nil {
		gate := state.Verdict.Publishability()
		fmt.Fprintf(&b, "**Recommendation: %s**\n\n", gate.Outcome)
		for _, reason := range gate.Reasons {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
		b.WriteString("\n")
		writeScores(&b, state.Verdict)
		if state.Verdict.Rationale != "" {
			fmt.Fprintf(&b, "%s\n\n", state.Verdict.Rationale)
		}
	}

	if len(state.Claims) > 0 {
		b.WriteString("## Claims under review\n\n")
		for i, claim := range state.Claims {
			fmt.Fprintf(&b, "%d. %s\n", i+1, claim)
		}
		b.WriteString("\n")
	}

	for _, phase := range phaseOrder {
		finding, ok := state.Findings[string(phase)]
		if !ok || len(finding.Entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", phaseHeading(phase))
		aspects := make([]string, 0, len(finding.Entries))
		for aspect := range finding.Entries {
			aspects = append(aspects, aspect)
		}
		sort.Strings(aspects)
		for _, aspect := range aspects {
			fmt.Fprintf(&b, "- **%s**: %s\n", aspect, finding.Entries[aspect])
		}
		b.WriteString("\n")
	}

	if state.Synthesis != "" {
		b.WriteString("## Synthesis\n\n")
		fmt.Fprintf(&b, "%s\n\n", state.Synthesis)
	}

	if len(state.Divergences) > 0 {
		b.WriteString("## Panel divergences\n\n")
		for _, d := range state.Divergences {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	if len(state.Violations) > 0 {
		b.WriteString("## Recorded violations\n\n")
		for _, v := range state.Violations {
			fmt.Fprintf(&b, "- %s\n", v)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Limitations\n\n")
	if len(state.Limitations) == 0 {
		b.WriteString("All phases completed without fallback.\n")
	} else {
		b.WriteString("The following phases ran degraded; weigh their findings accordingly:\n\n")
		for _, lim := range state.Limitations {
			fmt.Fprintf(&b, "- %s\n", lim)
		}
	}

	return b.String()
}

// BuildAggregateReport renders the cross-run consensus review used as
// the paper's final record.
func BuildAggregateReport(paperID string, verdicts []store.VerdictRecord, consensus *Verdict) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Aggregated review for paper %s\n\n", paperID)
	fmt.Fprintf(&b, "**Recommendation: %s** (consensus over %d independent reviews)\n\n",
		consensus.Recommend(), len(verdicts))
	writeScores(&b, consensus)

	b.WriteString("## Individual reviews\n\n")
	b.WriteString("| Version | Method | Evidence | Novelty | Contribution | Overreach | Recommendation |\n")
	b.WriteString("|---------|--------|----------|---------|--------------|-----------|----------------|\n")
	for _, v := range verdicts {
		fmt.Fprintf(&b, "| %d | %d | %d | %d | %d | %d | %s |\n",
			v.Version, v.Method, v.Evidence, v.Novelty, v.Contribution, v.Overreach, v.Recommendation)
	}
	b.WriteString("\n")

	b.WriteString("## Limitations\n\n")
	limitations := collectLimitations(verdicts)
	if len(limitations) == 0 {
		b.WriteString("All contributing runs completed without fallback.\n")
	} else {
		b.WriteString("Some contributing runs ran degraded:\n\n")
		for _, lim := range limitations {
			fmt.Fprintf(&b, "- %s\n", lim)
		}
	}

	return b.String()
}

func writeScores(b *strings.Builder, v *Verdict) {
	fmt.Fprintf(b, "| Dimension | Score (%d-%d) |\n", ScoreMin, ScoreMax)
	b.WriteString("|-----------|-------------|\n")
	fmt.Fprintf(b, "| Method | %d |\n", v.Method)
	fmt.Fprintf(b, "| Evidence | %d |\n", v.Evidence)
	fmt.Fprintf(b, "| Novelty | %d |\n", v.Novelty)
	fmt.Fprintf(b, "| Contribution | %d |\n", v.Contribution)
	fmt.Fprintf(b, "| Overreach | %d |\n\n", v.Overreach)
}

// collectLimitations dedupes limitation entries across verdict versions
// while keeping first-seen order.
func collectLimitations(verdicts []store.VerdictRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range verdicts {
		for _, lim := range v.Limitations {
			tagged := fmt.Sprintf("review %d: %s", v.Version, lim)
			if !seen[tagged] {
				seen[tagged] = true
				out = append(out, tagged)
			}
		}
	}
	return out
}

func phaseHeading(p Phase) string {
	words := strings.Split(string(p), "_")
	if len(words) == 0 {
		return string(p)
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}
