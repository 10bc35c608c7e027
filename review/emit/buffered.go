package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// Events are organized by run ID (job ID for job-level events) so tests and
// debugging tools can query execution history after the fact.
//
// Warning: all events stay in memory. Long-lived processes should Clear
// finished runs or use LogEmitter/OTelEmitter instead.
//
// Example:
//
//	emitter := emit.NewBufferedEmitter()
//	// ... drive a review ...
//	fallbacks := emitter.HistoryWithFilter(runID, emit.HistoryFilter{Msg: "participant_fallback"})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID (or jobID) -> events
}

// HistoryFilter specifies criteria for filtering execution history.
// All fields are optional; set fields combine with AND logic.
type HistoryFilter struct {
	Phase string // filter by phase (empty = no filter)
	Role  string // filter by participant role (empty = no filter)
	Msg   string // filter by message (empty = no filter)
}

// NewBufferedEmitter creates a new BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit stores an event in the buffer, keyed by RunID when present and
// JobID otherwise.
func (b *BufferedEmitter) Emit(event Event) {
	key := event.RunID
	if key == "" {
		key = event.JobID
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[key] = append(b.events[key], event)
}

// History retrieves all events for a run or job ID in emission order.
// Returns a copy; safe to retain.
func (b *BufferedEmitter) History(id string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[id]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// HistoryWithFilter retrieves events for an ID matching the filter.
func (b *BufferedEmitter) HistoryWithFilter(id string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, ev := range b.events[id] {
		if filter.Phase != "" && ev.Phase != filter.Phase {
			continue
		}
		if filter.Role != "" && ev.Role != filter.Role {
			continue
		}
		if filter.Msg != "" && ev.Msg != filter.Msg {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Clear removes all buffered events for an ID. Clearing an unknown ID is a no-op.
func (b *BufferedEmitter) Clear(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, id)
}

// ClearAll removes every buffered event.
func (b *BufferedEmitter) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make(map[string][]Event)
}
