package headless

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolgate-ai/toolgate/internal/approval"
	"github.com/toolgate-ai/toolgate/internal/dispatch"
	"github.com/toolgate-ai/toolgate/internal/event"
)

func approvalData() event.ApprovalRequiredData {
	return event.ApprovalRequiredData{
		ID:         "req-1",
		ToolName:   "bash",
		ContextKey: "git status in /repo",
		Candidates: []string{
			"git status in /repo",
			"git * in /repo",
			"* in /repo",
		},
	}
}

func TestPrompterParse(t *testing.T) {
	p := NewPrompter(nil, bytes.NewReader(nil), &bytes.Buffer{}, false)
	data := approvalData()

	tests := []struct {
		line    string
		choice  approval.Choice
		pattern string
		ok      bool
	}{
		{"y", approval.ChoiceOnce, "", true},
		{"yes", approval.ChoiceOnce, "", true},
		{"n", approval.ChoiceDeny, "", true},
		{"deny", approval.ChoiceDeny, "", true},
		{"e", approval.ChoiceSessionExact, "", true},
		{"E", approval.ChoicePersistentExact, "", true},
		{"p 2", approval.ChoiceSessionPattern, "git * in /repo", true},
		{"P 1", approval.ChoicePersistentPattern, "git status in /repo", true},
		{"p", "", "", false},
		{"p 9", "", "", false},
		{"p zero", "", "", false},
		{"", "", "", false},
		{"maybe", "", "", false},
	}

	for _, tt := range tests {
		resp, ok := p.parse(data, tt.line)
		assert.Equal(t, tt.ok, ok, "line %q", tt.line)
		if tt.ok {
			assert.Equal(t, "req-1", resp.RequestID)
			assert.Equal(t, tt.choice, resp.Choice, "line %q", tt.line)
			assert.Equal(t, tt.pattern, resp.Pattern, "line %q", tt.line)
		}
	}
}

func TestPrompterAsk_DenyOnEOF(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(nil, bytes.NewReader(nil), &out, false)

	resp := p.ask(approvalData())
	assert.Equal(t, approval.ChoiceDeny, resp.Choice)
	assert.Contains(t, out.String(), "Approval required: bash")
	assert.Contains(t, out.String(), "2. git * in /repo")
}

func TestPrompterAsk_RetriesUntilValid(t *testing.T) {
	var out bytes.Buffer
	in := bytes.NewReader([]byte("what\nP 2\n"))
	p := NewPrompter(nil, in, &out, false)

	resp := p.ask(approvalData())
	assert.Equal(t, approval.ChoicePersistentPattern, resp.Choice)
	assert.Equal(t, "git * in /repo", resp.Pattern)
	assert.Contains(t, out.String(), "unrecognized answer")
}

func TestPrinterTextOutput(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, OutputText, false, false)

	p.handleEvent(event.Event{
		Type: event.ToolStarted,
		Data: event.ToolStartedData{
			ToolName:   "bash",
			ContextKey: "ls -la in /tmp",
			Source:     "persistent-pattern",
		},
	})
	p.handleEvent(event.Event{
		Type: event.ToolCompleted,
		Data: event.ToolCompletedData{
			ToolName:   "bash",
			ContextKey: "ls -la in /tmp",
			IsError:    true,
			DurationMS: 120,
		},
	})

	assert.Contains(t, out.String(), "[tool:bash] ls -la in /tmp (persistent-pattern)")
	assert.Contains(t, out.String(), "[tool:bash] failed after 0.1s")

	result := p.GetResult()
	require.Len(t, result.ToolCalls, 1)
	assert.True(t, result.ToolCalls[0].Error)
	assert.Equal(t, int64(120), result.ToolCalls[0].DurationMS)
}

func TestPrinterQuietSuppressesProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, OutputText, true, false)

	p.handleEvent(event.Event{
		Type: event.ToolStarted,
		Data: event.ToolStartedData{ToolName: "bash", ContextKey: "ls in /tmp"},
	})

	assert.Empty(t, out.String())
}

func TestPrinterJSONLFiltersByImportance(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, OutputJSONL, false, false)

	p.handleEvent(event.Event{
		Type: event.StoreUpdated,
		Data: event.StoreUpdatedData{Path: "/tmp/store.json", Rules: 1},
	})
	assert.Empty(t, out.String())

	p.handleEvent(event.Event{
		Type: event.ToolStarted,
		Data: event.ToolStartedData{ToolName: "read", ContextKey: "read /etc/hosts"},
	})
	assert.Contains(t, out.String(), `"type":"tool.started"`)
}

func TestClassifyError(t *testing.T) {
	ctx := context.Background()

	status, code := classifyError(ctx, &approval.DeniedError{ToolName: "bash", ContextKey: "rm -rf / in /"})
	assert.Equal(t, "denied", status)
	assert.Equal(t, ExitDenied, code)

	status, code = classifyError(ctx, &dispatch.TurnLimitError{Turns: 5})
	assert.Equal(t, "error", status)
	assert.Equal(t, ExitTurnLimit, code)

	status, code = classifyError(ctx, context.DeadlineExceeded)
	assert.Equal(t, "timeout", status)
	assert.Equal(t, ExitTimeout, code)

	status, code = classifyError(ctx, errors.New("boom"))
	assert.Equal(t, "error", status)
	assert.Equal(t, ExitProviderError, code)
}
