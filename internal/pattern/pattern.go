// Package pattern implements approval rules: wildcard, regex and structured
// patterns, exact approvals, and the persisted pattern store.
package pattern

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/toolgate-ai/toolgate/internal/signature"
)

// Type selects the matching strategy for a ToolPattern.
type Type string

const (
	// TypeWildcard matches with * and ** tokens.
	TypeWildcard Type = "wildcard"
	// TypeRegex matches with a full regular expression.
	TypeRegex Type = "regex"
	// TypeStructured matches command, args and directory independently.
	TypeStructured Type = "structured"
)

// ToolPattern is a rule matching a family of tool signatures.
type ToolPattern struct {
	ID          string     `json:"id"`
	Pattern     string     `json:"pattern"`
	ToolName    string     `json:"tool_name"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
	MatchCount  uint64     `json:"match_count"`
	PatternType Type       `json:"pattern_type"`
	LastUsed    *time.Time `json:"last_used"`
	CreatedBy   *string    `json:"created_by"`

	// Structured component patterns, only set when PatternType is structured.
	CommandPattern *string `json:"command_pattern,omitempty"`
	ArgsPattern    *string `json:"args_pattern,omitempty"`
	DirPattern     *string `json:"dir_pattern,omitempty"`

	// Compiled regex, rebuilt after deserialization. Never serialized.
	compiled *regexp.Regexp
}

// New creates a wildcard pattern.
func New(pat, toolName, description string) *ToolPattern {
	return NewWithType(pat, toolName, description, TypeWildcard)
}

// NewWithType creates a pattern with an explicit type.
func NewWithType(pat, toolName, description string, typ Type) *ToolPattern {
	p := &ToolPattern{
		ID:          uuid.NewString(),
		Pattern:     pat,
		ToolName:    toolName,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		PatternType: typ,
	}
	if typ == TypeRegex {
		p.compiled, _ = regexp.Compile(pat)
	}
	return p
}

// NewStructured creates a structured pattern. Nil component patterns are
// not constrained; at least one must be set for the pattern to validate.
func NewStructured(toolName, description string, command, args, dir *string) *ToolPattern {
	display := fmt.Sprintf("cmd:%s args:%s dir:%s",
		orStar(command), orStar(args), orStar(dir))

	return &ToolPattern{
		ID:             uuid.NewString(),
		Pattern:        display,
		ToolName:       toolName,
		Description:    description,
		CreatedAt:      time.Now().UTC(),
		PatternType:    TypeStructured,
		CommandPattern: command,
		ArgsPattern:    args,
		DirPattern:     dir,
	}
}

func orStar(s *string) string {
	if s == nil {
		return "*"
	}
	return *s
}

// Validate reports whether the pattern is well formed.
func (p *ToolPattern) Validate() error {
	switch p.PatternType {
	case TypeWildcard:
		return nil
	case TypeRegex:
		if _, err := regexp.Compile(p.Pattern); err != nil {
			return fmt.Errorf("invalid regex pattern %q: %w", p.Pattern, err)
		}
		return nil
	case TypeStructured:
		if p.CommandPattern == nil && p.ArgsPattern == nil && p.DirPattern == nil {
			return fmt.Errorf("structured pattern must constrain at least one of command, args, directory")
		}
		return nil
	default:
		return fmt.Errorf("unknown pattern type %q", p.PatternType)
	}
}

// Matches reports whether the pattern matches the signature. Signatures are
// only ever compared within the same tool name.
func (p *ToolPattern) Matches(sig signature.Signature) bool {
	if p.ToolName != sig.ToolName {
		return false
	}

	switch p.PatternType {
	case TypeWildcard:
		return Match(p.Pattern, sig.ContextKey)
	case TypeStructured:
		return p.matchesStructured(sig)
	case TypeRegex:
		re := p.compiled
		if re == nil {
			var err error
			re, err = regexp.Compile(p.Pattern)
			if err != nil {
				return false
			}
			p.compiled = re
		}
		return re.MatchString(sig.ContextKey)
	}
	return false
}

func (p *ToolPattern) matchesStructured(sig signature.Signature) bool {
	if p.CommandPattern != nil {
		if sig.Command == "" || !Match(*p.CommandPattern, sig.Command) {
			return false
		}
	}
	if p.ArgsPattern != nil {
		if sig.Args != "" {
			if !Match(*p.ArgsPattern, sig.Args) {
				return false
			}
		} else if *p.ArgsPattern != "*" && *p.ArgsPattern != "" {
			return false
		}
	}
	if p.DirPattern != nil {
		if sig.Directory == "" || !Match(*p.DirPattern, sig.Directory) {
			return false
		}
	}
	return true
}

// RecordMatch bumps the usage counter and last-used timestamp.
func (p *ToolPattern) RecordMatch() {
	p.MatchCount++
	now := time.Now().UTC()
	p.LastUsed = &now
}

// Specificity counts wildcard tokens; fewer tokens means a narrower rule.
// * and ** each count as one token. Regex patterns have no derivable token
// count and rank after any wildcard or structured alternative (see Best).
func (p *ToolPattern) Specificity() int {
	switch p.PatternType {
	case TypeStructured:
		return wildcardTokens(orStar(p.CommandPattern)) +
			wildcardTokens(orStar(p.ArgsPattern)) +
			wildcardTokens(orStar(p.DirPattern))
	default:
		return wildcardTokens(p.Pattern)
	}
}

func wildcardTokens(pat string) int {
	count := 0
	for i := 0; i < len(pat); i++ {
		if pat[i] != '*' {
			continue
		}
		count++
		if i+1 < len(pat) && pat[i+1] == '*' {
			i++ // ** is a single token
		}
	}
	return count
}

// ExactApproval matches a single specific signature, never generalizing.
type ExactApproval struct {
	ID         string    `json:"id"`
	Signature  string    `json:"signature"`
	ToolName   string    `json:"tool_name"`
	CreatedAt  time.Time `json:"created_at"`
	MatchCount uint64    `json:"match_count"`
}

// NewExact creates an exact approval for a signature.
func NewExact(sig signature.Signature) *ExactApproval {
	return &ExactApproval{
		ID:        uuid.NewString(),
		Signature: sig.ContextKey,
		ToolName:  sig.ToolName,
		CreatedAt: time.Now().UTC(),
	}
}

// Matches reports whether the approval covers the signature.
func (a *ExactApproval) Matches(sig signature.Signature) bool {
	return a.ToolName == sig.ToolName && a.Signature == sig.ContextKey
}

// RecordMatch bumps the usage counter.
func (a *ExactApproval) RecordMatch() {
	a.MatchCount++
}

// Best returns the most specific pattern matching the signature, or nil.
// Candidates are ordered by: non-regex before regex, then fewest wildcard
// tokens, then earliest creation time.
func Best(sig signature.Signature, patterns []*ToolPattern) *ToolPattern {
	var matched []*ToolPattern
	for _, p := range patterns {
		if p.Matches(sig) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		pi, pj := matched[i], matched[j]
		ri, rj := pi.PatternType == TypeRegex, pj.PatternType == TypeRegex
		if ri != rj {
			return !ri
		}
		si, sj := pi.Specificity(), pj.Specificity()
		if si != sj {
			return si < sj
		}
		return pi.CreatedAt.Before(pj.CreatedAt)
	})

	return matched[0]
}
