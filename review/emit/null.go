package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use it to disable event emission without changing wiring. The durable
// audit trail in the store is unaffected.
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}
