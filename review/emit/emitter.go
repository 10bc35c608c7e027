// Package emit provides pluggable observability for review orchestration.
package emit

// Emitter receives and processes observability events from review execution.
//
// Implementations should be:
//   - Non-blocking: never slow down a deliberation phase
//   - Thread-safe: concurrent runs emit concurrently
//   - Resilient: an emitter failure must never fail a review
//
// Emit must not panic; errors are handled internally.
type Emitter interface {
	Emit(event Event)
}
