package headless

import (
	"time"
)

// OutputFormat defines the output format for console runs.
type OutputFormat string

const (
	// OutputText is human-readable streaming text output.
	OutputText OutputFormat = "text"
	// OutputJSON is final JSON result summary.
	OutputJSON OutputFormat = "json"
	// OutputJSONL is streaming JSONL events.
	OutputJSONL OutputFormat = "jsonl"
)

// ExitCode defines process exit codes for console runs.
type ExitCode int

const (
	// ExitSuccess indicates successful completion.
	ExitSuccess ExitCode = 0
	// ExitError indicates a general/unknown error.
	ExitError ExitCode = 1
	// ExitTimeout indicates timeout exceeded.
	ExitTimeout ExitCode = 2
	// ExitDenied indicates the user denied a tool call.
	ExitDenied ExitCode = 3
	// ExitProviderError indicates model/provider error (auth, rate limit).
	ExitProviderError ExitCode = 4
	// ExitInvalidInput indicates bad prompt or missing required flags.
	ExitInvalidInput ExitCode = 5
	// ExitTurnLimit indicates the turn limit tripped before completion.
	ExitTurnLimit ExitCode = 6
)

// Config holds configuration for a console run.
type Config struct {
	// Prompt is the instruction to execute.
	Prompt string
	// WorkDir is the working directory.
	WorkDir string
	// AutoApprove answers every approval with "once" instead of asking.
	AutoApprove bool
	// OutputFormat specifies the output format (text, json, jsonl).
	OutputFormat OutputFormat
	// Timeout is the maximum execution time.
	Timeout time.Duration
	// MaxTurns overrides the interactive turn limit when > 0.
	MaxTurns int
	// ReadStdin indicates whether to read the prompt from stdin.
	ReadStdin bool
	// Files is a list of files to attach as context.
	Files []string
	// SystemPromptFile is a custom system prompt file path.
	SystemPromptFile string
	// Quiet suppresses progress output, only shows the final text.
	Quiet bool
	// Verbose shows all events.
	Verbose bool
	// Model overrides the default model (format: provider/model).
	Model string
	// Profile selects the policy profile.
	Profile string
	// StorePath overrides the persistent pattern store location.
	StorePath string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputFormat: OutputText,
		Timeout:      30 * time.Minute,
		AutoApprove:  false,
		Quiet:        false,
		Verbose:      false,
	}
}

// ToolCall represents a tool call in the result.
type ToolCall struct {
	Tool       string `json:"tool"`
	ContextKey string `json:"context_key"`
	Source     string `json:"source,omitempty"`
	Error      bool   `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// Result holds the final result of a console run.
type Result struct {
	Status       string     `json:"status"` // "success", "denied", "error", "timeout"
	Model        string     `json:"model"`
	Profile      string     `json:"profile"`
	DurationMS   int64      `json:"duration_ms"`
	Turns        int        `json:"turns"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinalMessage string     `json:"final_message,omitempty"`
	Error        string     `json:"error,omitempty"`
	ExitCode     ExitCode   `json:"exit_code"`
}

// Event represents a JSONL event for streaming output.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"ts"`
	Data      any       `json:"data"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType string, data any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}
