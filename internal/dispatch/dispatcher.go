// Package dispatch runs the model conversation loop and gates every tool
// call behind policy and approval before executing it.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/schema"

	"github.com/toolgate-ai/toolgate/internal/approval"
	"github.com/toolgate-ai/toolgate/internal/event"
	"github.com/toolgate-ai/toolgate/internal/logging"
	"github.com/toolgate-ai/toolgate/internal/ruleset"
	"github.com/toolgate-ai/toolgate/internal/signature"
	"github.com/toolgate-ai/toolgate/internal/tool"
)

const (
	// DefaultMaxTurnsInteractive bounds interactive runs.
	DefaultMaxTurnsInteractive = 5
	// DefaultMaxTurnsServe bounds runs submitted through the server.
	DefaultMaxTurnsServe = 10
	// DefaultToolTimeout bounds a single tool execution.
	DefaultToolTimeout = 2 * time.Minute

	// MaxRetries is the maximum number of retries for model API errors.
	MaxRetries = 3
	// RetryInitialInterval is the initial interval for exponential backoff.
	RetryInitialInterval = time.Second
	// RetryMaxInterval is the maximum interval for exponential backoff.
	RetryMaxInterval = 30 * time.Second
)

// TurnLimitError is returned when a run consumes its turn budget without
// the model finishing.
type TurnLimitError struct {
	Turns int
}

func (e *TurnLimitError) Error() string {
	return fmt.Sprintf("turn limit exceeded after %d turns", e.Turns)
}

// ModelHost produces one assistant message for a conversation.
type ModelHost interface {
	Complete(ctx context.Context, messages []*schema.Message, tools []*schema.ToolInfo) (*schema.Message, error)
}

// ToolRegistry resolves tool IDs to implementations.
type ToolRegistry interface {
	Get(id string) (tool.Tool, bool)
	List() []tool.Tool
}

// Options configures a dispatcher.
type Options struct {
	MaxTurns     int
	ToolTimeout  time.Duration
	SystemPrompt string
	WorkDir      string
	Profile      *ruleset.Profile
}

// Dispatcher owns one conversation: it alternates model turns with gated
// tool execution until the model stops calling tools or a limit trips.
type Dispatcher struct {
	host        ModelHost
	registry    ToolRegistry
	coordinator *approval.Coordinator
	profile     *ruleset.Profile

	workDir      string
	maxTurns     int
	toolTimeout  time.Duration
	systemPrompt string
}

// New creates a dispatcher.
func New(host ModelHost, registry ToolRegistry, coordinator *approval.Coordinator, opts Options) *Dispatcher {
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurnsInteractive
	}
	if opts.Profile != nil && opts.Profile.MaxTurns > 0 {
		maxTurns = opts.Profile.MaxTurns
	}

	toolTimeout := opts.ToolTimeout
	if toolTimeout <= 0 {
		toolTimeout = DefaultToolTimeout
	}

	profile := opts.Profile
	if profile == nil {
		profile = ruleset.BuiltInProfiles()["default"]
	}

	return &Dispatcher{
		host:         host,
		registry:     registry,
		coordinator:  coordinator,
		profile:      profile,
		workDir:      opts.WorkDir,
		maxTurns:     maxTurns,
		toolTimeout:  toolTimeout,
		systemPrompt: opts.SystemPrompt,
	}
}

// Outcome is the result of a completed run.
type Outcome struct {
	Text      string
	Turns     int
	ToolCalls int
	Messages  []*schema.Message
}

// newRetryBackoff creates an exponential backoff with jitter for model API
// retries, bounded by MaxRetries and cancelled with the context.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

// Run drives the conversation for a prompt. Every tool call the model makes
// is authorized before execution; results, including denials and failures,
// flow back as tool messages so the model sees what happened. Usage counters
// are flushed at each turn boundary and before returning.
func (d *Dispatcher) Run(ctx context.Context, prompt string) (*Outcome, error) {
	var messages []*schema.Message
	if d.systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(d.systemPrompt))
	}
	messages = append(messages, schema.UserMessage(prompt))

	tools := d.toolInfos()
	retryBackoff := newRetryBackoff(ctx)
	totalCalls := 0
	turn := 0

	defer func() {
		if err := d.coordinator.Cache().Flush(); err != nil {
			logging.Error().Err(err).Msg("failed to flush approval store")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if turn >= d.maxTurns {
			return nil, &TurnLimitError{Turns: d.maxTurns}
		}

		msg, err := d.host.Complete(ctx, messages, tools)
		if err != nil {
			nextInterval := retryBackoff.NextBackOff()
			if nextInterval == backoff.Stop {
				return nil, fmt.Errorf("model request failed: %w", err)
			}
			logging.Warn().Err(err).Dur("retryIn", nextInterval).Msg("model request failed, retrying")
			time.Sleep(nextInterval)
			continue
		}
		retryBackoff.Reset()

		messages = append(messages, msg)

		if len(msg.ToolCalls) == 0 {
			return &Outcome{
				Text:      msg.Content,
				Turns:     turn,
				ToolCalls: totalCalls,
				Messages:  messages,
			}, nil
		}

		cancelled := false
		for _, call := range msg.ToolCalls {
			outcome := d.executeToolCall(ctx, call)
			messages = append(messages, schema.ToolMessage(outcome.content, call.ID))
			totalCalls++
			if outcome.cancelled {
				cancelled = true
			}
		}

		turn++

		if err := d.coordinator.Cache().Flush(); err != nil {
			logging.Error().Err(err).Msg("failed to flush approval store")
		}

		event.Publish(event.Event{
			Type: event.TurnCompleted,
			Data: event.TurnCompletedData{Turn: turn, ToolCalls: len(msg.ToolCalls)},
		})

		if cancelled {
			return nil, ctx.Err()
		}
	}
}

// toolOutcome is the synthesized result of one tool call.
type toolOutcome struct {
	content   string
	isError   bool
	cancelled bool
}

func errOutcome(format string, args ...any) toolOutcome {
	return toolOutcome{content: "Error: " + fmt.Sprintf(format, args...), isError: true}
}

// executeToolCall authorizes and runs one tool call. It never returns an
// error: every failure mode becomes a tool message the model can react to.
func (d *Dispatcher) executeToolCall(ctx context.Context, call schema.ToolCall) toolOutcome {
	name := call.Function.Name
	input := json.RawMessage(call.Function.Arguments)

	t, ok := d.registry.Get(name)
	if !ok {
		return errOutcome("tool not found: %s", name)
	}

	sig := signature.Build(name, input, d.workDir)

	source := approval.SourcePolicy
	switch d.profile.Decide(sig) {
	case ruleset.ActionDeny:
		logging.Info().
			Str("tool", name).
			Str("context", sig.ContextKey).
			Str("profile", d.profile.Name).
			Msg("denied by profile")
		return errOutcome("denied by profile %s: %s", d.profile.Name, sig.ContextKey)

	case ruleset.ActionAllow:

	default:
		var err error
		source, err = d.coordinator.Authorize(ctx, sig)
		if err != nil {
			if approval.IsDenied(err) {
				return errOutcome("user denied permission for %s", sig.ContextKey)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return toolOutcome{content: "Operation cancelled by user", isError: true, cancelled: true}
			}
			return errOutcome("approval failed: %v", err)
		}
	}

	event.Publish(event.Event{
		Type: event.ToolStarted,
		Data: event.ToolStartedData{
			ToolName:   name,
			ContextKey: sig.ContextKey,
			Source:     string(source),
		},
	})

	start := time.Now()
	toolCtx, cancel := context.WithTimeout(ctx, d.toolTimeout)
	defer cancel()

	abortCh := make(chan struct{})
	go func() {
		<-toolCtx.Done()
		close(abortCh)
	}()

	result, err := t.Execute(toolCtx, input, &tool.Context{
		CallID:  call.ID,
		WorkDir: d.workDir,
		AbortCh: abortCh,
	})

	duration := time.Since(start)
	outcome := toolOutcome{}

	switch {
	case err != nil && errors.Is(ctx.Err(), context.Canceled):
		outcome = toolOutcome{content: "Operation cancelled by user", isError: true, cancelled: true}
	case err != nil && errors.Is(toolCtx.Err(), context.DeadlineExceeded):
		outcome = errOutcome("tool execution timed out after %s", d.toolTimeout)
	case err != nil:
		outcome = errOutcome("%v", err)
	default:
		outcome = toolOutcome{content: result.Output}
	}

	event.Publish(event.Event{
		Type: event.ToolCompleted,
		Data: event.ToolCompletedData{
			ToolName:   name,
			ContextKey: sig.ContextKey,
			IsError:    outcome.isError,
			DurationMS: duration.Milliseconds(),
		},
	})

	return outcome
}

// toolInfos returns the schema for every tool the profile exposes.
func (d *Dispatcher) toolInfos() []*schema.ToolInfo {
	var result []*schema.ToolInfo
	for _, t := range d.registry.List() {
		if !d.profile.ToolEnabled(t.ID()) {
			continue
		}
		info, err := t.EinoTool().Info(context.Background())
		if err != nil {
			continue
		}
		result = append(result, info)
	}
	return result
}
