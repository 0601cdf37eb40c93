// Package bus implements the per-session typed event bus.
//
// Handlers subscribe to one event type with a priority; Emit invokes the
// matching handlers serially in priority order (insertion order within one
// priority) and isolates every handler failure: a panicking handler is
// logged and never prevents its peers from running.
//
// Each conversation orchestrator owns its own Bus so that a slow or broken
// handler in one session cannot back-pressure another. The subscription
// list is mutated only during session setup and teardown, never during
// Emit.
package bus

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// Priority orders handlers of one event type.
type Priority int

const (
	// High handlers run before Normal and Low ones.
	High Priority = iota
	Normal
	Low
)

// Handler consumes one event. Returning an error marks the delivery failed;
// the failure is logged and does not affect other handlers.
type Handler func(event types.OutputEvent) error

// Subscription identifies one registered handler for Unsubscribe.
type Subscription struct {
	eventType types.EventType
	id        int
}

// entry is one registered handler.
type entry struct {
	id       int
	priority Priority
	order    int // insertion order, tie-break within a priority
	fn       Handler
}

// Bus is a typed publish/subscribe dispatcher. All methods are safe for
// concurrent use; handlers are invoked one at a time.
type Bus struct {
	mu      sync.RWMutex
	nextID  int
	nextOrd int
	subs    map[types.EventType][]entry
	logger  *slog.Logger
}

// New creates an empty Bus logging handler failures to logger.
// A nil logger selects slog.Default().
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[types.EventType][]entry),
		logger: logger,
	}
}

// Subscribe registers handler for events of eventType at the given
// priority. Handlers of equal priority run in subscription order.
func (b *Bus) Subscribe(eventType types.EventType, handler Handler, priority Priority) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.nextOrd++
	e := entry{id: b.nextID, priority: priority, order: b.nextOrd, fn: handler}

	list := append(b.subs[eventType], e)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority < list[j].priority
		}
		return list[i].order < list[j].order
	})
	b.subs[eventType] = list

	return Subscription{eventType: eventType, id: b.nextID}
}

// Unsubscribe removes the handler identified by sub. Unsubscribing twice is
// a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[sub.eventType]
	for i, e := range list {
		if e.id == sub.id {
			b.subs[sub.eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Emit delivers event to every handler subscribed to its type, serially in
// priority order. Emit returns after all handlers completed; a handler
// error or panic is logged with the handler_failed kind and never stops
// delivery to the remaining handlers.
func (b *Bus) Emit(event types.OutputEvent) {
	if err := event.Validate(); err != nil {
		b.logger.Error("bus: dropping malformed event", "err", err)
		return
	}

	b.mu.RLock()
	list := make([]entry, len(b.subs[event.Type]))
	copy(list, b.subs[event.Type])
	b.mu.RUnlock()

	for _, e := range list {
		b.invoke(e, event)
	}
}

// invoke runs one handler with panic isolation.
func (b *Bus) invoke(e entry, event types.OutputEvent) {
	defer func() {
		if r := recover(); r != nil {
			err := types.Wrap(types.KindHandlerFailed, "handler panic", fmt.Errorf("%v", r))
			b.logger.Error("bus: handler panicked", "event_type", event.Type, "err", err)
		}
	}()
	if err := e.fn(event); err != nil {
		b.logger.Error("bus: handler failed", "event_type", event.Type,
			"err", types.Wrap(types.KindHandlerFailed, "handler error", err))
	}
}

// Clear removes all subscriptions. Called on session teardown.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[types.EventType][]entry)
}
