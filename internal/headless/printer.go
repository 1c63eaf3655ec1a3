package headless

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/toolgate-ai/toolgate/internal/event"
)

// Printer handles event output in various formats for console runs.
type Printer struct {
	mu          sync.Mutex
	writer      io.Writer
	format      OutputFormat
	quiet       bool
	verbose     bool
	unsubscribe func()
	startTime   time.Time
	result      *Result
	toolCalls   []ToolCall
}

// NewPrinter creates a new event printer.
func NewPrinter(writer io.Writer, format OutputFormat, quiet, verbose bool) *Printer {
	return &Printer{
		writer:    writer,
		format:    format,
		quiet:     quiet,
		verbose:   verbose,
		startTime: time.Now(),
		result: &Result{
			Status:   "running",
			ExitCode: ExitSuccess,
		},
		toolCalls: make([]ToolCall, 0),
	}
}

// Subscribe starts listening to events.
func (p *Printer) Subscribe() {
	p.unsubscribe = event.SubscribeAll(p.handleEvent)
}

// Unsubscribe stops listening to events.
func (p *Printer) Unsubscribe() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

// GetResult returns the current result.
func (p *Printer) GetResult() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.result.DurationMS = time.Since(p.startTime).Milliseconds()
	p.result.ToolCalls = p.toolCalls

	return p.result
}

// SetResult updates the result with final values.
func (p *Printer) SetResult(status string, exitCode ExitCode, finalMessage string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.result.Status = status
	p.result.ExitCode = exitCode
	p.result.FinalMessage = finalMessage
	if err != nil {
		p.result.Error = err.Error()
	}
	p.result.DurationMS = time.Since(p.startTime).Milliseconds()
}

// SetModel updates the model in the result.
func (p *Printer) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.Model = model
}

// SetProfile updates the profile in the result.
func (p *Printer) SetProfile(profile string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.Profile = profile
}

// SetTurns updates the turn counter in the result.
func (p *Printer) SetTurns(turns int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.Turns = turns
}

// PrintFinalResult prints the final JSON result (for json format).
func (p *Printer) PrintFinalResult() {
	if p.format != OutputJSON {
		return
	}

	result := p.GetResult()
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintln(p.writer, string(data))
}

// handleEvent processes incoming events and outputs them according to format.
func (p *Printer) handleEvent(e event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.trackEvent(e)

	switch p.format {
	case OutputText:
		p.handleTextEvent(e)
	case OutputJSON:
		// JSON format only outputs the final result
	case OutputJSONL:
		p.handleJSONLEvent(e)
	}
}

// handleTextEvent outputs events in human-readable text format.
func (p *Printer) handleTextEvent(e event.Event) {
	if p.quiet {
		return
	}

	switch e.Type {
	case event.ToolStarted:
		if data, ok := e.Data.(event.ToolStartedData); ok {
			fmt.Fprintf(p.writer, "[tool:%s] %s (%s)\n", data.ToolName, data.ContextKey, data.Source)
		}

	case event.ToolCompleted:
		if data, ok := e.Data.(event.ToolCompletedData); ok {
			if data.IsError {
				fmt.Fprintf(p.writer, "[tool:%s] failed after %s\n", data.ToolName, formatMillis(data.DurationMS))
			} else if p.verbose {
				fmt.Fprintf(p.writer, "[tool:%s] done in %s\n", data.ToolName, formatMillis(data.DurationMS))
			}
		}

	case event.ApprovalResolved:
		if data, ok := e.Data.(event.ApprovalResolvedData); ok {
			if !data.Granted {
				fmt.Fprintf(p.writer, "[approval] denied\n")
			} else if data.Pattern != "" {
				fmt.Fprintf(p.writer, "[approval] %s: %s\n", data.Choice, data.Pattern)
			}
		}

	case event.TurnCompleted:
		if data, ok := e.Data.(event.TurnCompletedData); ok && p.verbose {
			fmt.Fprintf(p.writer, "[turn %d] %d tool call(s)\n", data.Turn, data.ToolCalls)
		}

	case event.StoreUpdated:
		if data, ok := e.Data.(event.StoreUpdatedData); ok && p.verbose {
			fmt.Fprintf(p.writer, "[store] %d rule(s) at %s\n", data.Rules, data.Path)
		}

	case event.RunError:
		if data, ok := e.Data.(event.RunErrorData); ok {
			fmt.Fprintf(p.writer, "[error] %s\n", data.Error)
		}
	}
}

// handleJSONLEvent outputs events in JSONL format.
func (p *Printer) handleJSONLEvent(e event.Event) {
	if !p.verbose && !isImportantEvent(e.Type) {
		return
	}

	evt := NewEvent(string(e.Type), e.Data)

	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintln(p.writer, string(data))
}

// trackEvent tracks events for the final result.
func (p *Printer) trackEvent(e event.Event) {
	switch e.Type {
	case event.ToolStarted:
		if data, ok := e.Data.(event.ToolStartedData); ok {
			p.toolCalls = append(p.toolCalls, ToolCall{
				Tool:       data.ToolName,
				ContextKey: data.ContextKey,
				Source:     data.Source,
			})
		}

	case event.ToolCompleted:
		if data, ok := e.Data.(event.ToolCompletedData); ok {
			// Attach completion info to the most recent matching start
			for i := len(p.toolCalls) - 1; i >= 0; i-- {
				call := &p.toolCalls[i]
				if call.Tool == data.ToolName && call.ContextKey == data.ContextKey && call.DurationMS == 0 {
					call.Error = data.IsError
					call.DurationMS = data.DurationMS
					break
				}
			}
		}

	case event.TurnCompleted:
		if data, ok := e.Data.(event.TurnCompletedData); ok {
			p.result.Turns = data.Turn
		}
	}
}

func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func isImportantEvent(eventType event.EventType) bool {
	switch eventType {
	case event.ApprovalRequired,
		event.ApprovalResolved,
		event.ToolStarted,
		event.ToolCompleted,
		event.TurnCompleted,
		event.RunError:
		return true
	default:
		return false
	}
}
