// Package events is a synchronous pub/sub broker for ledger happenings.
// The indexer and the websocket feed subscribe to it; the engine emits
// only after the state change behind an event has been committed.
package events

import (
	"log"
	"sync"
)

// EventType labels what happened.
type EventType string

const (
	EventCellPurchased EventType = "cell_purchased"
	EventCycleStarted  EventType = "cycle_started"
	EventCycleEnded    EventType = "cycle_ended"
	EventPrizePaid     EventType = "prize_paid"
	EventPayoutFailed  EventType = "payout_failed"
)

// Types lists every event type, for subscribers that want the full feed.
var Types = []EventType{
	EventCellPurchased,
	EventCycleStarted,
	EventCycleEnded,
	EventPrizePaid,
	EventPayoutFailed,
}

// Event carries a typed payload emitted after a committed state change.
// Seq is the journal sequence of the receipt the event belongs to.
type Event struct {
	Type  EventType      `json:"type"`
	Seq   uint64         `json:"seq"`
	Cycle uint64         `json:"cycle"`
	Data  map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every known event type.
func (e *Emitter) SubscribeAll(h Handler) {
	for _, typ := range Types {
		e.Subscribe(typ, h)
	}
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the service or halt purchase processing.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
