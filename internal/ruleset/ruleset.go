// Package ruleset provides named policy profiles that pre-screen tool calls
// before the approval cache is consulted.
package ruleset

import (
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/toolgate-ai/toolgate/internal/signature"
)

// Action is the policy outcome for a tool call.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
	ActionAsk   Action = "ask"
)

// Profile is a named policy: per-tool defaults plus bash command patterns.
// Anything a profile does not decide falls through to ask, which hands the
// call to the approval cache and, failing that, the user.
type Profile struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	BuiltIn     bool              `yaml:"-"`
	Bash        map[string]Action `yaml:"bash,omitempty"`
	Tools       map[string]Action `yaml:"tools,omitempty"`
	Enabled     map[string]bool   `yaml:"enabled,omitempty"`
	MaxTurns    int               `yaml:"maxTurns,omitempty"`
}

// Decide returns the policy action for a signature. Bash commands are parsed
// and every command in a pipeline or list must be allowed; a single deny
// anywhere denies the whole line, and any undetermined command asks.
func (p *Profile) Decide(sig signature.Signature) Action {
	if sig.ToolName == "bash" {
		return p.decideBash(sig)
	}

	if action, ok := p.Tools[sig.ToolName]; ok {
		return action
	}
	if action, ok := p.Tools["*"]; ok {
		return action
	}
	return ActionAsk
}

func (p *Profile) decideBash(sig signature.Signature) Action {
	line := sig.Command
	if sig.Args != "" {
		line += " " + sig.Args
	}

	commands, err := signature.ParseShell(line)
	if err != nil || len(commands) == 0 {
		// Unparseable lines never get a silent allow.
		return ActionAsk
	}

	verdict := ActionAllow
	for _, cmd := range commands {
		switch p.matchBash(cmd) {
		case ActionDeny:
			return ActionDeny
		case ActionAsk:
			verdict = ActionAsk
		}
	}
	return verdict
}

// matchBash resolves one command against the bash patterns, most specific
// form first: "git commit *", then "git *", then "git", then "*".
func (p *Profile) matchBash(cmd signature.ShellCommand) Action {
	if cmd.Subcommand != "" {
		if action, ok := p.Bash[cmd.Name+" "+cmd.Subcommand+" *"]; ok {
			return action
		}
	}
	if action, ok := p.Bash[cmd.Name+" *"]; ok {
		return action
	}
	if action, ok := p.Bash[cmd.Name]; ok {
		return action
	}
	if action, ok := p.Bash["*"]; ok {
		return action
	}
	return ActionAsk
}

// ToolEnabled checks whether a tool is exposed to the model at all.
// Resolution is deterministic: exact key, then the longest matching
// non-"*" pattern, then "*" as fallback.
func (p *Profile) ToolEnabled(toolID string) bool {
	if enabled, ok := p.Enabled[toolID]; ok {
		return enabled
	}

	best := ""
	verdict := true
	found := false
	for pattern, enabled := range p.Enabled {
		if pattern == "*" || !matchWildcard(pattern, toolID) {
			continue
		}
		if !found || len(pattern) > len(best) || (len(pattern) == len(best) && pattern < best) {
			best, verdict, found = pattern, enabled, true
		}
	}
	if found {
		return verdict
	}

	if enabled, ok := p.Enabled["*"]; ok {
		return enabled
	}
	return true
}

// Validate checks the profile's actions are well formed.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}
	for pattern, action := range p.Bash {
		if !validAction(action) {
			return fmt.Errorf("profile %s: bash pattern %q has invalid action %q", p.Name, pattern, action)
		}
	}
	for toolName, action := range p.Tools {
		if !validAction(action) {
			return fmt.Errorf("profile %s: tool %q has invalid action %q", p.Name, toolName, action)
		}
	}
	return nil
}

func validAction(a Action) bool {
	return a == ActionAllow || a == ActionDeny || a == ActionAsk
}

// matchWildcard checks if a string matches a wildcard pattern.
// For simple patterns (* at start/end), uses string matching.
// For complex patterns (containing **), uses doublestar.
func matchWildcard(pattern, s string) bool {
	if pattern == "*" {
		return true
	}

	if strings.Contains(pattern, "**") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		return strings.HasPrefix(s, strings.TrimSuffix(pattern, "*"))
	}

	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		return strings.HasSuffix(s, strings.TrimPrefix(pattern, "*"))
	}

	if strings.Contains(pattern, "*") {
		matched, _ := doublestar.Match(pattern, s)
		return matched
	}

	return pattern == s
}

// BuiltInProfiles returns the default policy profiles.
func BuiltInProfiles() map[string]*Profile {
	return map[string]*Profile{
		"default": {
			Name:        "default",
			Description: "Ask for everything not covered by a stored approval",
			BuiltIn:     true,
		},
		"readonly": {
			Name:        "readonly",
			Description: "Allow inspection, deny writes, ask for the rest",
			BuiltIn:     true,
			Bash: map[string]Action{
				"cat *":        ActionAllow,
				"diff *":       ActionAllow,
				"du *":         ActionAllow,
				"file *":       ActionAllow,
				"find *":       ActionAllow,
				"git diff *":   ActionAllow,
				"git log *":    ActionAllow,
				"git show *":   ActionAllow,
				"git status *": ActionAllow,
				"grep *":       ActionAllow,
				"head *":       ActionAllow,
				"ls *":         ActionAllow,
				"ls":           ActionAllow,
				"pwd":          ActionAllow,
				"rg *":         ActionAllow,
				"rm *":         ActionDeny,
				"stat *":       ActionAllow,
				"tail *":       ActionAllow,
				"wc *":         ActionAllow,
				"which *":      ActionAllow,
				"*":            ActionAsk,
			},
			Tools: map[string]Action{
				"read":  ActionAllow,
				"glob":  ActionAllow,
				"grep":  ActionAllow,
				"write": ActionDeny,
				"edit":  ActionDeny,
			},
			Enabled: map[string]bool{
				"*":     true,
				"write": false,
				"edit":  false,
			},
		},
		"trusted": {
			Name:        "trusted",
			Description: "Allow everything except destructive commands",
			BuiltIn:     true,
			Bash: map[string]Action{
				"rm *":       ActionAsk,
				"git push *": ActionAsk,
				"sudo *":     ActionDeny,
				"*":          ActionAllow,
			},
			Tools: map[string]Action{
				"*": ActionAllow,
			},
		},
	}
}

// file is the on-disk shape of a profile collection.
type file struct {
	Profiles map[string]*Profile `yaml:"profiles"`
}

// Load reads profiles from a YAML file and merges them over the built-ins.
// A missing file yields just the built-ins.
func Load(path string) (map[string]*Profile, error) {
	profiles := BuiltInProfiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for name, p := range f.Profiles {
		if p == nil {
			continue
		}
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, err
		}
		profiles[name] = p
	}

	return profiles, nil
}

// Get resolves a profile by name.
func Get(profiles map[string]*Profile, name string) (*Profile, error) {
	if name == "" {
		name = "default"
	}
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	return p, nil
}
