package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestBus_TypedSubscription(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got atomic.Value
	var wg sync.WaitGroup
	wg.Add(1)
	unsub := bus.Subscribe(ApprovalRequired, func(e Event) {
		got.Store(e)
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: ApprovalRequired, Data: "req-1"})
	waitFor(t, &wg)

	received := got.Load().(Event)
	assert.Equal(t, ApprovalRequired, received.Type)
	assert.Equal(t, "req-1", received.Data)
}

func TestBus_GlobalSubscriptionSeesAllTypes(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)
	unsub := bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: ApprovalRequired})
	bus.Publish(Event{Type: ToolCompleted})
	bus.Publish(Event{Type: StoreUpdated})
	waitFor(t, &wg)

	assert.EqualValues(t, 3, atomic.LoadInt32(&count))
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var typed, global int32
	unsubTyped := bus.Subscribe(ApprovalRequired, func(Event) { atomic.AddInt32(&typed, 1) })
	unsubGlobal := bus.SubscribeAll(func(Event) { atomic.AddInt32(&global, 1) })

	bus.PublishSync(Event{Type: ApprovalRequired})
	require.EqualValues(t, 1, typed)
	require.EqualValues(t, 1, global)

	unsubTyped()
	unsubGlobal()

	bus.PublishSync(Event{Type: ApprovalRequired})
	assert.EqualValues(t, 1, typed)
	assert.EqualValues(t, 1, global)
}

func TestBus_PublishSyncCompletesInline(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received []EventType
	bus.Subscribe(ApprovalRequired, func(e Event) { received = append(received, e.Type) })
	bus.Subscribe(ApprovalResolved, func(e Event) { received = append(received, e.Type) })

	bus.PublishSync(Event{Type: ApprovalRequired})
	bus.PublishSync(Event{Type: ApprovalResolved})

	assert.Equal(t, []EventType{ApprovalRequired, ApprovalResolved}, received)
}

func TestBus_TypeFiltering(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var approvals, tools int32
	bus.Subscribe(ApprovalRequired, func(Event) { atomic.AddInt32(&approvals, 1) })
	bus.Subscribe(ToolCompleted, func(Event) { atomic.AddInt32(&tools, 1) })

	bus.PublishSync(Event{Type: ApprovalRequired})
	bus.PublishSync(Event{Type: ApprovalRequired})
	bus.PublishSync(Event{Type: ToolCompleted})

	assert.EqualValues(t, 2, approvals)
	assert.EqualValues(t, 1, tools)
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	bus.Publish(Event{Type: ApprovalRequired})
	bus.PublishSync(Event{Type: ApprovalRequired})
}

func TestBus_ClosedDropsEverything(t *testing.T) {
	bus := NewBus()

	var count int32
	bus.Subscribe(ApprovalRequired, func(Event) { atomic.AddInt32(&count, 1) })
	require.NoError(t, bus.Close())

	bus.PublishSync(Event{Type: ApprovalRequired})
	assert.EqualValues(t, 0, count)

	// Subscriptions after close are inert and their unsubscribe is a no-op.
	unsub := bus.Subscribe(ApprovalRequired, func(Event) {})
	unsub()
	assert.NoError(t, bus.Close())
}

func TestGlobalBus_Reset(t *testing.T) {
	var count int32
	Subscribe(ApprovalRequired, func(Event) { atomic.AddInt32(&count, 1) })

	PublishSync(Event{Type: ApprovalRequired})
	require.EqualValues(t, 1, count)

	Reset()

	PublishSync(Event{Type: ApprovalRequired})
	assert.EqualValues(t, 1, count)
}

func TestBus_ConcurrentSubscribePublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(ApprovalRequired, func(Event) {})
			defer unsub()
			for j := 0; j < 10; j++ {
				bus.Publish(Event{Type: ApprovalRequired})
			}
		}()
	}
	wg.Wait()
	// Success is the absence of a race or deadlock.
}
