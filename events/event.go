package events

// Event represents a structured state change observed by the client, emitted
// so UI-layer caches can invalidate stale reads.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (query caches, UIs).
// Implementations must be safe for use from multiple orchestration sessions.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default when a component does not wire a subscriber.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// ChannelEmitter forwards events onto a channel, dropping them when the
// receiver falls behind. Invalidation signals are advisory; a dropped signal
// only means a cache refreshes on its next read instead.
type ChannelEmitter struct {
	C chan Event
}

// NewChannelEmitter returns an emitter buffering up to size events.
func NewChannelEmitter(size int) *ChannelEmitter {
	if size < 1 {
		size = 1
	}
	return &ChannelEmitter{C: make(chan Event, size)}
}

// Emit implements the Emitter interface.
func (e *ChannelEmitter) Emit(evt Event) {
	if e == nil || evt == nil {
		return
	}
	select {
	case e.C <- evt:
	default:
	}
}
