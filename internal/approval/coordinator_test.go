package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolgate-ai/toolgate/internal/event"
)

// answer subscribes to approval.required and responds with the given choice.
func answer(t *testing.T, c *Coordinator, choice Choice, pickPattern func([]string) string) func() {
	t.Helper()
	return event.Subscribe(event.ApprovalRequired, func(e event.Event) {
		data := e.Data.(event.ApprovalRequiredData)
		resp := Response{RequestID: data.ID, Choice: choice}
		if pickPattern != nil {
			resp.Pattern = pickPattern(data.Candidates)
		}
		if err := c.Respond(resp); err != nil {
			t.Errorf("respond failed: %v", err)
		}
	})
}

func TestCoordinator_CacheHitSkipsPrompt(t *testing.T) {
	defer event.Reset()

	c := NewCoordinator(testCache(t))
	sig := bashSig("cargo test", "/project")
	c.cache.AddSessionExact(sig)

	var prompted bool
	var mu sync.Mutex
	unsub := event.Subscribe(event.ApprovalRequired, func(e event.Event) {
		mu.Lock()
		prompted = true
		mu.Unlock()
	})
	defer unsub()

	source, err := c.Authorize(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, SourceSessionExact, source)

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.False(t, prompted)
	mu.Unlock()
}

func TestCoordinator_Once(t *testing.T) {
	defer event.Reset()

	c := NewCoordinator(testCache(t))
	sig := bashSig("cargo test", "/project")

	unsub := answer(t, c, ChoiceOnce, nil)
	defer unsub()

	source, err := c.Authorize(context.Background(), sig)
	require.NoError(t, err)
	assert.Equal(t, SourceUser, source)

	// Nothing was recorded: the same call must prompt again.
	_, ok := c.cache.Lookup(sig)
	assert.False(t, ok)
}

func TestCoordinator_SessionExact(t *testing.T) {
	defer event.Reset()

	c := NewCoordinator(testCache(t))
	sig := bashSig("cargo test", "/project")

	unsub := answer(t, c, ChoiceSessionExact, nil)
	defer unsub()

	_, err := c.Authorize(context.Background(), sig)
	require.NoError(t, err)

	source, ok := c.cache.Lookup(sig)
	require.True(t, ok)
	assert.Equal(t, SourceSessionExact, source)
}

func TestCoordinator_SessionPattern(t *testing.T) {
	defer event.Reset()

	c := NewCoordinator(testCache(t))
	sig := bashSig("cargo test", "/project")

	// Pick the command-generalized candidate.
	unsub := answer(t, c, ChoiceSessionPattern, func(candidates []string) string {
		return candidates[1]
	})
	defer unsub()

	_, err := c.Authorize(context.Background(), sig)
	require.NoError(t, err)

	// "cargo * in /project" now covers other cargo invocations there.
	source, ok := c.cache.Lookup(bashSig("cargo build", "/project"))
	require.True(t, ok)
	assert.Equal(t, SourceSessionPattern, source)
}

func TestCoordinator_PersistentExact(t *testing.T) {
	defer event.Reset()

	c := NewCoordinator(testCache(t))
	sig := bashSig("cargo test", "/project")

	unsub := answer(t, c, ChoicePersistentExact, nil)
	defer unsub()

	_, err := c.Authorize(context.Background(), sig)
	require.NoError(t, err)

	source, ok := c.cache.Lookup(sig)
	require.True(t, ok)
	assert.Equal(t, SourcePersistentExact, source)
	assert.Equal(t, 1, c.cache.Store().Len())
}

func TestCoordinator_PersistentPattern(t *testing.T) {
	defer event.Reset()

	c := NewCoordinator(testCache(t))
	sig := bashSig("cargo test", "/project")

	unsub := answer(t, c, ChoicePersistentPattern, func(candidates []string) string {
		return "cargo * in *"
	})
	defer unsub()

	_, err := c.Authorize(context.Background(), sig)
	require.NoError(t, err)

	source, ok := c.cache.Lookup(bashSig("cargo build", "/elsewhere"))
	require.True(t, ok)
	assert.Equal(t, SourcePersistentPattern, source)
}

func TestCoordinator_Deny(t *testing.T) {
	defer event.Reset()

	c := NewCoordinator(testCache(t))
	sig := bashSig("rm -rf /", "/project")

	unsub := answer(t, c, ChoiceDeny, nil)
	defer unsub()

	_, err := c.Authorize(context.Background(), sig)
	require.Error(t, err)
	assert.True(t, IsDenied(err))

	// Denial records nothing: the cache stays empty in every tier.
	_, ok := c.cache.Lookup(sig)
	assert.False(t, ok)
	assert.Equal(t, 0, c.cache.Store().Len())
}

func TestCoordinator_CancelledContext(t *testing.T) {
	defer event.Reset()

	c := NewCoordinator(testCache(t))
	sig := bashSig("cargo test", "/project")

	ctx, cancel := context.WithCancel(context.Background())
	unsub := event.Subscribe(event.ApprovalRequired, func(e event.Event) {
		cancel()
	})
	defer unsub()

	_, err := c.Authorize(ctx, sig)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, c.Pending())
}

func TestCoordinator_RespondUnknownRequest(t *testing.T) {
	c := NewCoordinator(testCache(t))
	err := c.Respond(Response{RequestID: "nope", Choice: ChoiceOnce})
	assert.Error(t, err)
}

func TestCoordinator_RespondRejectsForeignPattern(t *testing.T) {
	defer event.Reset()

	c := NewCoordinator(testCache(t))
	sig := bashSig("cargo test", "/project")

	done := make(chan error, 1)
	unsub := event.Subscribe(event.ApprovalRequired, func(e event.Event) {
		data := e.Data.(event.ApprovalRequiredData)

		// A pattern that was never offered must be rejected.
		err := c.Respond(Response{
			RequestID: data.ID,
			Choice:    ChoicePersistentPattern,
			Pattern:   "* in *",
		})
		done <- err

		// Resolve the request so Authorize can finish.
		_ = c.Respond(Response{RequestID: data.ID, Choice: ChoiceDeny})
	})
	defer unsub()

	_, err := c.Authorize(context.Background(), sig)
	assert.True(t, IsDenied(err))

	select {
	case respErr := <-done:
		assert.Error(t, respErr)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for respond")
	}
}

func TestCoordinator_ResolvedEventPublished(t *testing.T) {
	defer event.Reset()

	c := NewCoordinator(testCache(t))
	sig := bashSig("cargo test", "/project")

	resolved := make(chan event.ApprovalResolvedData, 1)
	unsubResolved := event.Subscribe(event.ApprovalResolved, func(e event.Event) {
		resolved <- e.Data.(event.ApprovalResolvedData)
	})
	defer unsubResolved()

	unsub := answer(t, c, ChoiceOnce, nil)
	defer unsub()

	_, err := c.Authorize(context.Background(), sig)
	require.NoError(t, err)

	select {
	case data := <-resolved:
		assert.True(t, data.Granted)
		assert.Equal(t, string(ChoiceOnce), data.Choice)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resolved event")
	}
}
