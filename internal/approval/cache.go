// Package approval decides whether a tool call may run: a tiered cache of
// stored rules plus a coordinator that asks the user when no rule applies.
package approval

import (
	"sync"

	"github.com/toolgate-ai/toolgate/internal/pattern"
	"github.com/toolgate-ai/toolgate/internal/signature"
)

// Source identifies which tier of the cache allowed a call.
type Source string

const (
	SourcePersistentExact   Source = "persistent-exact"
	SourceSessionExact      Source = "session-exact"
	SourcePersistentPattern Source = "persistent-pattern"
	SourceSessionPattern    Source = "session-pattern"
	SourceUser              Source = "user"
	SourcePolicy            Source = "policy"
)

// Cache layers session-scoped approvals over the persistent store. Lookup
// order is fixed: exact approvals from either scope beat any pattern, and
// persistent rules beat session rules within each kind.
type Cache struct {
	mu    sync.Mutex
	store *pattern.Store

	sessionExact    []*pattern.ExactApproval
	sessionPatterns []*pattern.ToolPattern
}

// NewCache creates a cache over the persistent store. Session tiers start
// empty and never outlive the process.
func NewCache(store *pattern.Store) *Cache {
	return &Cache{store: store}
}

// Lookup reports whether a stored rule allows the signature and which tier
// it came from. Hits bump the matched rule's usage counter.
func (c *Cache) Lookup(sig signature.Signature) (Source, bool) {
	if _, ok := c.store.MatchExact(sig); ok {
		return SourcePersistentExact, true
	}

	c.mu.Lock()
	for _, a := range c.sessionExact {
		if a.Matches(sig) {
			a.RecordMatch()
			c.mu.Unlock()
			return SourceSessionExact, true
		}
	}
	c.mu.Unlock()

	if _, ok := c.store.MatchPattern(sig); ok {
		return SourcePersistentPattern, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p := pattern.Best(sig, c.sessionPatterns); p != nil {
		p.RecordMatch()
		return SourceSessionPattern, true
	}

	return "", false
}

// AddSessionExact approves this exact signature for the rest of the process.
func (c *Cache) AddSessionExact(sig signature.Signature) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionExact = append(c.sessionExact, pattern.NewExact(sig))
}

// AddSessionPattern approves a pattern for the rest of the process.
func (c *Cache) AddSessionPattern(p *pattern.ToolPattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionPatterns = append(c.sessionPatterns, p)
	return nil
}

// AddPersistentExact stores an exact approval across runs.
func (c *Cache) AddPersistentExact(sig signature.Signature) error {
	return c.store.AddExact(pattern.NewExact(sig))
}

// AddPersistentPattern stores a pattern rule across runs.
func (c *Cache) AddPersistentPattern(p *pattern.ToolPattern) error {
	return c.store.AddPattern(p)
}

// SessionRules returns the session-scoped rules for display.
func (c *Cache) SessionRules() ([]*pattern.ExactApproval, []*pattern.ToolPattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	exact := make([]*pattern.ExactApproval, len(c.sessionExact))
	copy(exact, c.sessionExact)
	patterns := make([]*pattern.ToolPattern, len(c.sessionPatterns))
	copy(patterns, c.sessionPatterns)
	return exact, patterns
}

// Store exposes the persistent tier for rule management commands.
func (c *Cache) Store() *pattern.Store {
	return c.store
}

// Flush persists any pending usage-counter changes.
func (c *Cache) Flush() error {
	return c.store.Flush()
}
