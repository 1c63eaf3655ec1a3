package pattern

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/toolgate-ai/toolgate/internal/logging"
	"github.com/toolgate-ai/toolgate/internal/signature"
)

var (
	// ErrCorruptStore means the persisted file exists but cannot be parsed.
	// Callers must treat this as fatal rather than starting with an empty
	// store, so stored approvals are never silently discarded.
	ErrCorruptStore = errors.New("pattern store is corrupt")

	// ErrNotFound is returned when removing an unknown rule ID.
	ErrNotFound = errors.New("rule not found")

	// ErrStoreBusy means the cross-process lock could not be acquired
	// within the retry budget.
	ErrStoreBusy = errors.New("pattern store is locked by another process")
)

// CurrentVersion is the persisted schema version.
const CurrentVersion = 2

// File is the on-disk shape of the store.
type File struct {
	Version        uint32           `json:"version"`
	Patterns       []*ToolPattern   `json:"patterns"`
	ExactApprovals []*ExactApproval `json:"exact_approvals"`
}

// RuleKind distinguishes the two rule collections.
type RuleKind string

const (
	KindExact   RuleKind = "exact"
	KindPattern RuleKind = "pattern"
)

// Store owns the persisted rule set. All mutations end in an atomic save
// that merges with concurrent writers instead of overwriting them: rule
// additions are unioned, usage counters are summed by delta, removals win.
type Store struct {
	mu    sync.Mutex
	path  string
	file  *File
	base  map[string]uint64 // match counts as last seen on disk, for delta merge
	dirty bool
}

// Open loads the store from path, migrating older schema versions in place.
// A missing file yields an empty store; an unreadable one fails with
// ErrCorruptStore.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		file: emptyFile(),
		base: make(map[string]uint64),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	file, err := decodeFile(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStore, path, err)
	}

	s.file = file
	s.base = counterSnapshot(file)

	logging.Debug().
		Str("path", path).
		Int("patterns", len(file.Patterns)).
		Int("exact", len(file.ExactApprovals)).
		Msg("loaded pattern store")

	return s, nil
}

func emptyFile() *File {
	return &File{
		Version:        CurrentVersion,
		Patterns:       []*ToolPattern{},
		ExactApprovals: []*ExactApproval{},
	}
}

// decodeFile parses and migrates a persisted store.
func decodeFile(data []byte) (*File, error) {
	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.Version == 0 || file.Version > CurrentVersion {
		return nil, fmt.Errorf("unsupported schema version %d", file.Version)
	}

	// v1 files predate pattern_type, last_used and created_by. Missing
	// fields decode to their zero values; fill the type default and
	// upgrade so the next save writes v2.
	if file.Version < CurrentVersion {
		for _, p := range file.Patterns {
			if p.PatternType == "" {
				p.PatternType = TypeWildcard
			}
		}
		file.Version = CurrentVersion
	}

	// Also default the type on v2 files written by hand.
	for _, p := range file.Patterns {
		if p.PatternType == "" {
			p.PatternType = TypeWildcard
		}
		if p.PatternType == TypeRegex {
			p.compiled = nil // rebuilt lazily on first match
		}
	}

	if file.Patterns == nil {
		file.Patterns = []*ToolPattern{}
	}
	if file.ExactApprovals == nil {
		file.ExactApprovals = []*ExactApproval{}
	}

	return &file, nil
}

func counterSnapshot(file *File) map[string]uint64 {
	snap := make(map[string]uint64, len(file.Patterns)+len(file.ExactApprovals))
	for _, p := range file.Patterns {
		snap[p.ID] = p.MatchCount
	}
	for _, a := range file.ExactApprovals {
		snap[a.ID] = a.MatchCount
	}
	return snap
}

// Patterns returns the current pattern rules.
func (s *Store) Patterns() []*ToolPattern {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ToolPattern, len(s.file.Patterns))
	copy(out, s.file.Patterns)
	return out
}

// ExactApprovals returns the current exact approvals.
func (s *Store) ExactApprovals() []*ExactApproval {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ExactApproval, len(s.file.ExactApprovals))
	copy(out, s.file.ExactApprovals)
	return out
}

// Match finds the best persistent rule for a signature, preferring exact
// approvals over patterns. On a hit the rule's usage counter is bumped;
// the counter reaches disk on the next Flush or Save.
func (s *Store) Match(sig signature.Signature) (RuleKind, string, bool) {
	if id, ok := s.MatchExact(sig); ok {
		return KindExact, id, true
	}
	if id, ok := s.MatchPattern(sig); ok {
		return KindPattern, id, true
	}
	return "", "", false
}

// MatchExact finds an exact approval covering the signature, bumping its
// usage counter on a hit.
func (s *Store) MatchExact(sig signature.Signature) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.file.ExactApprovals {
		if a.Matches(sig) {
			a.RecordMatch()
			s.dirty = true
			return a.ID, true
		}
	}
	return "", false
}

// MatchPattern finds the most specific pattern covering the signature,
// bumping its usage counter on a hit.
func (s *Store) MatchPattern(sig signature.Signature) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := Best(sig, s.file.Patterns); p != nil {
		p.RecordMatch()
		s.dirty = true
		return p.ID, true
	}
	return "", false
}

// HasExact reports whether an exact approval covers the signature, without
// touching usage counters.
func (s *Store) HasExact(sig signature.Signature) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.file.ExactApprovals {
		if a.Matches(sig) {
			return true
		}
	}
	return false
}

// AddPattern validates, adds and persists a pattern rule.
func (s *Store) AddPattern(p *ToolPattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.file.Patterns = append(s.file.Patterns, p)
	s.dirty = true
	s.mu.Unlock()
	return s.Save()
}

// AddExact adds and persists an exact approval.
func (s *Store) AddExact(a *ExactApproval) error {
	s.mu.Lock()
	s.file.ExactApprovals = append(s.file.ExactApprovals, a)
	s.dirty = true
	s.mu.Unlock()
	return s.Save()
}

// Remove deletes a rule by ID from either collection. Unknown IDs return
// ErrNotFound without mutating the store.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	removed := false
	for i, p := range s.file.Patterns {
		if p.ID == id {
			s.file.Patterns = append(s.file.Patterns[:i], s.file.Patterns[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		for i, a := range s.file.ExactApprovals {
			if a.ID == id {
				s.file.ExactApprovals = append(s.file.ExactApprovals[:i], s.file.ExactApprovals[i+1:]...)
				removed = true
				break
			}
		}
	}
	if !removed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.dirty = true
	s.mu.Unlock()
	return s.Save()
}

// Clear removes every rule. All-or-nothing: the empty state is persisted
// before Clear returns. The base snapshot is kept until Save succeeds so the
// merge sees every on-disk rule as locally removed rather than as a remote
// addition; Save resets the snapshot from the merged result.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.file = emptyFile()
	s.dirty = true
	s.mu.Unlock()
	return s.Save()
}

// Get returns a rule by ID.
func (s *Store) Get(id string) (*ToolPattern, *ExactApproval, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.file.Patterns {
		if p.ID == id {
			return p, nil, true
		}
	}
	for _, a := range s.file.ExactApprovals {
		if a.ID == id {
			return nil, a, true
		}
	}
	return nil, nil, false
}

// IDs returns all rule IDs, patterns first.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.file.Patterns)+len(s.file.ExactApprovals))
	for _, p := range s.file.Patterns {
		ids = append(ids, p.ID)
	}
	for _, a := range s.file.ExactApprovals {
		ids = append(ids, a.ID)
	}
	return ids
}

// Len returns the total rule count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.file.Patterns) + len(s.file.ExactApprovals)
}

// Flush saves the store if usage counters or rules changed since the last
// save. Called at turn boundaries and on shutdown; per-match persistence is
// eventual, not synchronous.
func (s *Store) Flush() error {
	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()
	if !dirty {
		return nil
	}
	return s.Save()
}

// Save persists the store atomically: acquire the cross-process lock,
// re-read the on-disk state, merge, write a temp file and rename it over
// the target. Readers always observe a complete file.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	lock := NewFileLock(s.path)
	if err := lockWithRetry(lock); err != nil {
		return err
	}
	defer lock.Unlock()

	// Merge in whatever another process wrote since our last sync.
	remote := emptyFile()
	if data, err := os.ReadFile(s.path); err == nil {
		parsed, err := decodeFile(data)
		if err != nil {
			return fmt.Errorf("%w: refusing to overwrite %s: %v", ErrCorruptStore, s.path, err)
		}
		remote = parsed
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to re-read %s: %w", s.path, err)
	}

	merged := merge(s.file, remote, s.base)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}

	s.file = merged
	s.base = counterSnapshot(merged)
	s.dirty = false

	logging.Debug().
		Str("path", s.path).
		Int("patterns", len(merged.Patterns)).
		Int("exact", len(merged.ExactApprovals)).
		Msg("saved pattern store")

	return nil
}

// Reload replaces the in-memory state with the on-disk state. Pending local
// changes are kept by merging them over the freshly read file.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	remote, err := decodeFile(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.path, err)
	}

	s.file = merge(s.file, remote, s.base)
	s.base = counterSnapshot(remote)
	return nil
}

// lockWithRetry acquires the flock with bounded exponential backoff,
// surfacing ErrStoreBusy when contention persists.
func lockWithRetry(lock *FileLock) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second

	err := backoff.Retry(func() error {
		if lock.TryLock() {
			return nil
		}
		return errors.New("locked")
	}, b)
	if err != nil {
		return ErrStoreBusy
	}
	return nil
}

// merge combines the local state with a concurrently written remote state.
// Additions from both sides are unioned; usage counters are summed by the
// local delta since the last sync; a rule removed locally stays removed.
func merge(local, remote *File, base map[string]uint64) *File {
	merged := emptyFile()

	localPatterns := make(map[string]*ToolPattern, len(local.Patterns))
	for _, p := range local.Patterns {
		localPatterns[p.ID] = p
	}
	localExact := make(map[string]*ExactApproval, len(local.ExactApprovals))
	for _, a := range local.ExactApprovals {
		localExact[a.ID] = a
	}

	seen := make(map[string]bool)

	for _, rp := range remote.Patterns {
		lp, held := localPatterns[rp.ID]
		if !held {
			if _, known := base[rp.ID]; known {
				continue // removed locally
			}
			merged.Patterns = append(merged.Patterns, rp)
			seen[rp.ID] = true
			continue
		}

		out := *lp
		out.MatchCount = rp.MatchCount + (lp.MatchCount - base[lp.ID])
		out.LastUsed = latest(lp.LastUsed, rp.LastUsed)
		merged.Patterns = append(merged.Patterns, &out)
		seen[rp.ID] = true
	}
	for _, lp := range local.Patterns {
		if seen[lp.ID] {
			continue
		}
		if _, known := base[lp.ID]; known {
			continue // removed remotely
		}
		merged.Patterns = append(merged.Patterns, lp)
	}

	for _, ra := range remote.ExactApprovals {
		la, held := localExact[ra.ID]
		if !held {
			if _, known := base[ra.ID]; known {
				continue
			}
			merged.ExactApprovals = append(merged.ExactApprovals, ra)
			seen[ra.ID] = true
			continue
		}

		out := *la
		out.MatchCount = ra.MatchCount + (la.MatchCount - base[la.ID])
		merged.ExactApprovals = append(merged.ExactApprovals, &out)
		seen[ra.ID] = true
	}
	for _, la := range local.ExactApprovals {
		if seen[la.ID] {
			continue
		}
		if _, known := base[la.ID]; known {
			continue
		}
		merged.ExactApprovals = append(merged.ExactApprovals, la)
	}

	return merged
}

func latest(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.After(*b) {
		return a
	}
	return b
}
