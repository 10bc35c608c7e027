package review

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/scijudge/review/store"
)

// ReplaySummary is a run's history re-derived from its audit trail
// alone, without consulting the run record's serialized state.
type ReplaySummary struct {
	RunID string

	// Phases is the phase sequence the run traversed, starting at
	// initialization, in trail order.
	Phases []Phase

	// FinalPhase is the phase the trail ends in.
	FinalPhase Phase

	// DegradedPhases are phases whose transition recorded a degraded
	// finding.
	DegradedPhases []Phase

	// MessagesByPhase counts participant messages per phase.
	MessagesByPhase map[Phase]int

	// Started and Ended bound the trail's timestamps.
	Started time.Time
	Ended   time.Time
}

// Replay reconstructs a run's history from its persisted trail.
//
// The trail is authoritative: every committed phase left a transition
// record and every participant left a message, so the reconstruction
// needs nothing else. Replay verifies the two structural invariants a
// consumer relies on, contiguity of the transition chain and
// non-decreasing timestamps, and fails loudly if either is broken,
// since a broken trail means persistence order was violated.
func Replay(ctx context.Context, st store.Store, runID string) (*ReplaySummary, error) {
	transitions, err := st.ListTransitions(ctx, runID)
	if err != nil {
		return nil, persistErr("list transitions", err)
	}
	messages, err := st.ListMessages(ctx, runID)
	if err != nil {
		return nil, persistErr("list messages", err)
	}
	if len(transitions) == 0 && len(messages) == 0 {
		return nil, fmt.Errorf("run %s has no trail to replay", runID)
	}

	summary := &ReplaySummary{
		RunID:           runID,
		Phases:          []Phase{PhaseInitialization},
		FinalPhase:      PhaseInitialization,
		MessagesByPhase: make(map[Phase]int),
	}

	var last time.Time
	for i, tr := range transitions {
		from, to := Phase(tr.FromPhase), Phase(tr.ToPhase)
		if from != summary.FinalPhase {
			return nil, fmt.Errorf("run %s trail is not contiguous: transition %d leaves %s but the run was in %s",
				runID, i, from, summary.FinalPhase)
		}
		if tr.CreatedAt.Before(last) {
			return nil, fmt.Errorf("run %s trail timestamps regress at transition %d", runID, i)
		}
		last = tr.CreatedAt
		summary.Phases = append(summary.Phases, to)
		summary.FinalPhase = to
		if tr.Detail == "advanced with degraded finding" {
			summary.DegradedPhases = append(summary.DegradedPhases, from)
		}
	}

	last = time.Time{}
	for i, msg := range messages {
		if msg.CreatedAt.Before(last) {
			return nil, fmt.Errorf("run %s trail timestamps regress at message %d", runID, i)
		}
		last = msg.CreatedAt
		summary.MessagesByPhase[Phase(msg.Phase)]++
	}

	summary.Started, summary.Ended = trailBounds(transitions, messages)
	return summary, nil
}

func trailBounds(transitions []store.TransitionRecord, messages []store.MessageRecord) (time.Time, time.Time) {
	var start, end time.Time
	observe := func(t time.Time) {
		if start.IsZero() || t.Before(start) {
			start = t
		}
		if t.After(end) {
			end = t
		}
	}
	for _, tr := range transitions {
		observe(tr.CreatedAt)
	}
	for _, msg := range messages {
		observe(msg.CreatedAt)
	}
	return start, end
}
