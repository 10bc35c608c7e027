package emit

// Event represents an observability event emitted during review execution.
//
// Events narrate the deliberation as it happens:
//   - Job lifecycle transitions (submitted, running, completed, error)
//   - Phase entry and completion per run
//   - Participant invocations and their outcomes
//   - Fallback substitutions and principle violations
//
// Events are emitted to an Emitter which can log them, turn them into
// OpenTelemetry spans, or buffer them for inspection. Emission is
// observability only: the durable audit trail lives in the store, so a
// lost event never loses review history.
type Event struct {
	// JobID identifies the owning review job. Empty for run-only events.
	JobID string

	// RunID identifies the debate run that emitted this event.
	// Empty for job-level events (submit, cancel, finalize).
	RunID string

	// Phase is the deliberation phase active at emission time.
	Phase string

	// Role is the participant role involved, if any.
	Role string

	// Msg is a short machine-greppable description ("phase_complete",
	// "participant_fallback", "job_submitted", ...).
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "error": failure details
	//   - "fallback_reason": why a fallback value was substituted
	//   - "duration_ms": participant call duration
	//   - "tokens_in"/"tokens_out": LLM token usage
	//   - "forced_by"/"force_reason": re-review override attribution
	Meta map[string]interface{}
}
