// Package event carries the engine's lifecycle notifications: approval
// prompts, tool progress, turn completion, and store changes. A process-wide
// bus fans events out to listeners such as the SSE stream and the CLI
// printer.
package event

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType names a category of event.
type EventType string

const (
	ApprovalRequired EventType = "approval.required"
	ApprovalResolved EventType = "approval.resolved"
	ToolStarted      EventType = "tool.started"
	ToolCompleted    EventType = "tool.completed"
	TurnCompleted    EventType = "turn.completed"
	StoreUpdated     EventType = "store.updated"
	RunError         EventType = "run.error"
)

// Event is one published notification.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber receives published events.
type Subscriber func(event Event)

type subscription struct {
	id uint64
	fn Subscriber
}

// Bus fans events out to subscribers. Typed subscriptions see one event
// type; global subscriptions see everything. Delivery is direct calls,
// with watermill's gochannel underneath for buffering.
type Bus struct {
	mu     sync.RWMutex
	pubsub *gochannel.GoChannel

	byType map[EventType][]subscription
	global []subscription

	nextID uint64
	closed bool
	cancel context.CancelFunc
	ctx    context.Context
}

var globalBus = newBus()

func newBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100},
			watermill.NopLogger{},
		),
		byType: make(map[EventType][]subscription),
		ctx:    ctx,
		cancel: cancel,
	}
}

// NewBus creates an independent bus, for callers that should not share
// the process-wide one.
func NewBus() *Bus {
	return newBus()
}

// Subscribe registers fn for one event type on the global bus and returns
// its unsubscribe function.
func Subscribe(eventType EventType, fn Subscriber) func() {
	return globalBus.Subscribe(eventType, fn)
}

// SubscribeAll registers fn for every event on the global bus.
func SubscribeAll(fn Subscriber) func() {
	return globalBus.SubscribeAll(fn)
}

// Publish delivers an event asynchronously on the global bus.
func Publish(event Event) {
	globalBus.Publish(event)
}

// PublishSync delivers an event on the global bus, returning only after
// every subscriber has run.
func PublishSync(event Event) {
	globalBus.PublishSync(event)
}

func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.byType[eventType] = append(b.byType[eventType], subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byType[eventType] = dropSubscription(b.byType[eventType], id)
	}
}

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}

	id := atomic.AddUint64(&b.nextID, 1)
	b.global = append(b.global, subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.global = dropSubscription(b.global, id)
	}
}

func dropSubscription(subs []subscription, id uint64) []subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// recipients snapshots the subscribers for an event under the read lock,
// so delivery never holds it.
func (b *Bus) recipients(eventType EventType) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}

	subs := make([]Subscriber, 0, len(b.byType[eventType])+len(b.global))
	for _, s := range b.byType[eventType] {
		subs = append(subs, s.fn)
	}
	for _, s := range b.global {
		subs = append(subs, s.fn)
	}
	return subs
}

// Publish delivers the event with one goroutine per subscriber, so a slow
// listener cannot stall the publisher.
func (b *Bus) Publish(event Event) {
	for _, fn := range b.recipients(event.Type) {
		go fn(event)
	}
}

// PublishSync calls every subscriber in the publishing goroutine.
func (b *Bus) PublishSync(event Event) {
	for _, fn := range b.recipients(event.Type) {
		fn(event)
	}
}

// Close shuts the bus down; subsequent publishes are dropped.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancel()
	b.byType = make(map[EventType][]subscription)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}

// Reset tears down the global bus and replaces it with a fresh one.
// Intended for tests that need subscriber isolation.
func Reset() {
	globalBus.Close()
	// Give in-flight async deliveries a moment to drain.
	time.Sleep(10 * time.Millisecond)
	globalBus = newBus()
}
