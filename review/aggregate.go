package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/scijudge/review/emit"
	"github.com/dshills/scijudge/review/store"
)

// AggregateSummary is the cross-run view of a paper's review standing.
type AggregateSummary struct {
	PaperID          string
	ReviewsCompleted int
	ReviewsRequired  int
	IsFinal          bool
	Recommendation   string
	Consensus        *Verdict
}

// Aggregator decides when a paper's verdict becomes final and builds
// the aggregated review.
//
// The final flip is exactly-once: SaveReview's atomic exists-check
// guarantees that concurrent finalization attempts produce one review
// record, with the losers observing store.ErrAlreadyFinalized and
// treating it as someone else's success.
type Aggregator struct {
	store   store.Store
	cfg     Config
	emitter emit.Emitter
	metrics *Metrics
	now     func() time.Time
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// AggregatorEmitter sets the observability emitter.
func AggregatorEmitter(e emit.Emitter) AggregatorOption {
	return func(a *Aggregator) {
		if e != nil {
			a.emitter = e
		}
	}
}

// AggregatorMetrics sets the Prometheus metrics collector.
func AggregatorMetrics(mt *Metrics) AggregatorOption {
	return func(a *Aggregator) { a.metrics = mt }
}

// AggregatorClock overrides the time source. Used by tests.
func AggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(st store.Store, cfg Config, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store:   st,
		cfg:     cfg,
		emitter: emit.NewNullEmitter(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Summary reports the paper's review standing: how many independent
// reviews exist, how many the finalization threshold requires, and the
// consensus recommendation so far.
func (a *Aggregator) Summary(ctx context.Context, paperID string) (AggregateSummary, error) {
	verdicts, err := a.store.ListVerdicts(ctx, paperID)
	if err != nil {
		return AggregateSummary{}, persistErr("list verdicts", err)
	}

	summary := AggregateSummary{
		PaperID:          paperID,
		ReviewsCompleted: len(verdicts),
		ReviewsRequired:  a.cfg.MinFinalReviews,
	}
	if len(verdicts) > 0 {
		consensus := ConsensusVerdict(verdicts)
		summary.Consensus = consensus
		summary.Recommendation = consensus.Recommend()
	}

	_, err = a.store.GetReview(ctx, paperID)
	switch {
	case err == nil:
		summary.IsFinal = true
	case errors.Is(err, store.ErrNotFound):
		// not final
	default:
		return AggregateSummary{}, persistErr("get review", err)
	}
	return summary, nil
}

// MaybeFinalize flips the paper's review to final when the completed
// review count has reached the threshold. Returns true only for the
// call that performed the flip; below-threshold papers and papers
// already final return false without error.
func (a *Aggregator) MaybeFinalize(ctx context.Context, paperID, jobID string) (bool, error) {
	verdicts, err := a.store.ListVerdicts(ctx, paperID)
	if err != nil {
		return false, persistErr("list verdicts", err)
	}
	if len(verdicts) < a.cfg.MinFinalReviews {
		return false, nil
	}

	consensus := ConsensusVerdict(verdicts)
	review := store.ReviewRecord{
		PaperID:        paperID,
		JobID:          jobID,
		Recommendation: consensus.Recommend(),
		Provisional:    false,
		Report:         BuildAggregateReport(paperID, verdicts, consensus),
		CreatedAt:      a.now().UTC(),
	}

	err = a.store.SaveReview(ctx, review, false)
	if errors.Is(err, store.ErrAlreadyFinalized) {
		return false, nil
	}
	if err != nil {
		return false, persistErr("save review", err)
	}

	if err := a.store.AppendJobEvent(ctx, store.JobEventRecord{
		JobID:     jobID,
		Event:     EventFinalized,
		Detail:    fmt.Sprintf("paper %s final after %d reviews: %s", paperID, len(verdicts), review.Recommendation),
		CreatedAt: a.now().UTC(),
	}); err != nil {
		return true, persistErr("append job event", err)
	}

	if a.metrics != nil {
		a.metrics.IncrementFinalizations()
	}
	a.emitter.Emit(emit.Event{JobID: jobID, Msg: "review_finalized",
		Meta: map[string]interface{}{"paper_id": paperID, "reviews": len(verdicts), "recommendation": review.Recommendation}})
	return true, nil
}

// ForceFinalize replaces the paper's final review regardless of the
// already-final gate. Requires an actor and reason; both are recorded
// on the review record and as a job event so the override is auditable.
func (a *Aggregator) ForceFinalize(ctx context.Context, paperID, jobID, actor, reason string) error {
	if actor == "" || reason == "" {
		return &ValidationError{Field: "force", Reason: "actor and reason are required"}
	}

	verdicts, err := a.store.ListVerdicts(ctx, paperID)
	if err != nil {
		return persistErr("list verdicts", err)
	}
	if len(verdicts) == 0 {
		return &ValidationError{Field: "paper", Reason: fmt.Sprintf("paper %s has no verdicts to finalize", paperID)}
	}

	consensus := ConsensusVerdict(verdicts)
	review := store.ReviewRecord{
		PaperID:        paperID,
		JobID:          jobID,
		Recommendation: consensus.Recommend(),
		Provisional:    len(verdicts) < a.cfg.MinFinalReviews,
		Report:         BuildAggregateReport(paperID, verdicts, consensus),
		Forced:         true,
		ForcedBy:       actor,
		CreatedAt:      a.now().UTC(),
	}
	if err := a.store.SaveReview(ctx, review, true); err != nil {
		return persistErr("save review", err)
	}

	if err := a.store.AppendJobEvent(ctx, store.JobEventRecord{
		JobID:     jobID,
		Event:     EventForceOverride,
		Actor:     actor,
		Detail:    reason,
		CreatedAt: a.now().UTC(),
	}); err != nil {
		return persistErr("append job event", err)
	}

	if a.metrics != nil {
		a.metrics.IncrementFinalizations()
	}
	a.emitter.Emit(emit.Event{JobID: jobID, Msg: "review_force_finalized",
		Meta: map[string]interface{}{"paper_id": paperID, "forced_by": actor, "force_reason": reason}})
	return nil
}

// ConsensusVerdict aggregates verdict versions into one consensus
// verdict: per-dimension median, rounding toward the midpoint on even
// counts. The median resists a single degraded placeholder run pulling
// the consensus, which a mean would not.
func ConsensusVerdict(verdicts []store.VerdictRecord) *Verdict {
	if len(verdicts) == 0 {
		return nil
	}
	return &Verdict{
		Method:       medianScore(verdicts, func(v store.VerdictRecord) int { return v.Method }),
		Evidence:     medianScore(verdicts, func(v store.VerdictRecord) int { return v.Evidence }),
		Novelty:      medianScore(verdicts, func(v store.VerdictRecord) int { return v.Novelty }),
		Contribution: medianScore(verdicts, func(v store.VerdictRecord) int { return v.Contribution }),
		Overreach:    medianScore(verdicts, func(v store.VerdictRecord) int { return v.Overreach }),
		Rationale:    fmt.Sprintf("consensus over %d independent reviews", len(verdicts)),
	}
}

func medianScore(verdicts []store.VerdictRecord, dim func(store.VerdictRecord) int) int {
	scores := make([]int, len(verdicts))
	for i, v := range verdicts {
		scores[i] = dim(v)
	}
	for i := 1; i < len(scores); i++ {
		for j := i; j > 0 && scores[j] < scores[j-1]; j-- {
			scores[j], scores[j-1] = scores[j-1], scores[j]
		}
	}
	n := len(scores)
	if n%2 == 1 {
		return scores[n/2]
	}
	lo, hi := scores[n/2-1], scores[n/2]
	mid := (lo + hi) / 2
	// On a split pair, lean toward the midpoint rather than always down.
	if (lo+hi)%2 != 0 && mid < ScoreMidpoint {
		mid++
	}
	return mid
}
