package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/toolgate-ai/toolgate/internal/event"
	"github.com/toolgate-ai/toolgate/internal/logging"
	"github.com/toolgate-ai/toolgate/internal/pattern"
	"github.com/toolgate-ai/toolgate/internal/signature"
)

// Choice is a user's answer to an approval request.
type Choice string

const (
	// ChoiceOnce allows this call only, recording nothing.
	ChoiceOnce Choice = "once"
	// ChoiceSessionExact allows this exact signature for the process lifetime.
	ChoiceSessionExact Choice = "session-exact"
	// ChoiceSessionPattern allows a chosen pattern for the process lifetime.
	ChoiceSessionPattern Choice = "session-pattern"
	// ChoicePersistentExact allows this exact signature across runs.
	ChoicePersistentExact Choice = "persistent-exact"
	// ChoicePersistentPattern allows a chosen pattern across runs.
	ChoicePersistentPattern Choice = "persistent-pattern"
	// ChoiceDeny refuses the call, recording nothing.
	ChoiceDeny Choice = "deny"
)

// Request is a pending approval question.
type Request struct {
	ID         string
	Signature  signature.Signature
	Candidates []string
}

// Response is a user's answer. Pattern must be one of the request's
// candidates when the choice is pattern-scoped.
type Response struct {
	RequestID string
	Choice    Choice
	Pattern   string
}

// DeniedError is returned when the user refuses a tool call.
type DeniedError struct {
	ToolName   string
	ContextKey string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("denied by user: %s", e.ContextKey)
}

// IsDenied checks whether an error is a user denial.
func IsDenied(err error) bool {
	_, ok := err.(*DeniedError)
	return ok
}

type pendingRequest struct {
	req      Request
	respChan chan Response
}

// Coordinator serializes approval decisions: cache lookups first, then a
// single blocking question per unmatched tool call. Answers arrive through
// Respond, typically driven by a subscriber on the event bus.
type Coordinator struct {
	mu      sync.RWMutex
	cache   *Cache
	pending map[string]*pendingRequest
}

// NewCoordinator creates a coordinator over the cache.
func NewCoordinator(cache *Cache) *Coordinator {
	return &Coordinator{
		cache:   cache,
		pending: make(map[string]*pendingRequest),
	}
}

// Cache returns the underlying approval cache.
func (c *Coordinator) Cache() *Cache {
	return c.cache
}

// Authorize decides whether a tool call may run. A stored rule answers
// immediately; otherwise the user is asked and Authorize blocks until
// Respond delivers an answer or ctx is cancelled. Denial and cancellation
// leave every tier of the cache untouched.
func (c *Coordinator) Authorize(ctx context.Context, sig signature.Signature) (Source, error) {
	if source, ok := c.cache.Lookup(sig); ok {
		logging.Debug().
			Str("tool", sig.ToolName).
			Str("context", sig.ContextKey).
			Str("source", string(source)).
			Msg("approved from cache")
		return source, nil
	}

	req := Request{
		ID:         ulid.Make().String(),
		Signature:  sig,
		Candidates: signature.Candidates(sig),
	}

	respChan := make(chan Response, 1)
	c.mu.Lock()
	c.pending[req.ID] = &pendingRequest{req: req, respChan: respChan}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	event.Publish(event.Event{
		Type: event.ApprovalRequired,
		Data: event.ApprovalRequiredData{
			ID:         req.ID,
			ToolName:   sig.ToolName,
			ContextKey: sig.ContextKey,
			Candidates: req.Candidates,
		},
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case resp := <-respChan:
		return c.apply(sig, resp)
	}
}

// apply records the user's decision in the tier it names.
func (c *Coordinator) apply(sig signature.Signature, resp Response) (Source, error) {
	switch resp.Choice {
	case ChoiceOnce:
		return SourceUser, nil

	case ChoiceSessionExact:
		c.cache.AddSessionExact(sig)
		return SourceUser, nil

	case ChoiceSessionPattern:
		p := pattern.New(resp.Pattern, sig.ToolName, "")
		if err := c.cache.AddSessionPattern(p); err != nil {
			return "", err
		}
		return SourceUser, nil

	case ChoicePersistentExact:
		if err := c.cache.AddPersistentExact(sig); err != nil {
			return "", err
		}
		return SourceUser, nil

	case ChoicePersistentPattern:
		p := pattern.New(resp.Pattern, sig.ToolName, "")
		if err := c.cache.AddPersistentPattern(p); err != nil {
			return "", err
		}
		return SourceUser, nil

	case ChoiceDeny:
		return "", &DeniedError{
			ToolName:   sig.ToolName,
			ContextKey: sig.ContextKey,
		}
	}

	return "", fmt.Errorf("unknown approval choice %q", resp.Choice)
}

// Respond answers a pending request. Pattern-scoped choices must name one
// of the candidates that were offered; anything else is rejected without
// waking the waiter.
func (c *Coordinator) Respond(resp Response) error {
	c.mu.RLock()
	p, ok := c.pending[resp.RequestID]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no pending approval request %s", resp.RequestID)
	}

	if resp.Choice == ChoiceSessionPattern || resp.Choice == ChoicePersistentPattern {
		if !contains(p.req.Candidates, resp.Pattern) {
			return fmt.Errorf("pattern %q was not offered for request %s", resp.Pattern, resp.RequestID)
		}
	}

	p.respChan <- resp

	event.Publish(event.Event{
		Type: event.ApprovalResolved,
		Data: event.ApprovalResolvedData{
			ID:      resp.RequestID,
			Choice:  string(resp.Choice),
			Pattern: resp.Pattern,
			Granted: resp.Choice != ChoiceDeny,
		},
	})

	return nil
}

// Pending returns the currently unanswered requests.
func (c *Coordinator) Pending() []Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Request, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p.req)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
