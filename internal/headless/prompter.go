package headless

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/toolgate-ai/toolgate/internal/approval"
	"github.com/toolgate-ai/toolgate/internal/event"
)

// Prompter answers approval requests on the terminal. One question is asked
// at a time; pattern choices must pick one of the offered candidates.
type Prompter struct {
	coordinator *approval.Coordinator
	in          *bufio.Reader
	out         io.Writer
	autoApprove bool
	unsubscribe func()

	// Serializes questions when tool calls overlap.
	mu sync.Mutex
}

// NewPrompter creates a prompter reading answers from in.
func NewPrompter(coordinator *approval.Coordinator, in io.Reader, out io.Writer, autoApprove bool) *Prompter {
	return &Prompter{
		coordinator: coordinator,
		in:          bufio.NewReader(in),
		out:         out,
		autoApprove: autoApprove,
	}
}

// Start begins answering approval requests.
func (p *Prompter) Start() {
	p.unsubscribe = event.Subscribe(event.ApprovalRequired, p.handle)
}

// Stop stops answering approval requests.
func (p *Prompter) Stop() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

func (p *Prompter) handle(e event.Event) {
	data, ok := e.Data.(event.ApprovalRequiredData)
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.autoApprove {
		p.coordinator.Respond(approval.Response{
			RequestID: data.ID,
			Choice:    approval.ChoiceOnce,
		})
		return
	}

	for {
		resp := p.ask(data)
		if err := p.coordinator.Respond(resp); err != nil {
			fmt.Fprintf(p.out, "%v\n", err)
			continue
		}
		return
	}
}

// ask prints the question and reads one answer. Stdin closing denies.
func (p *Prompter) ask(data event.ApprovalRequiredData) approval.Response {
	fmt.Fprintf(p.out, "\nApproval required: %s\n  %s\n", data.ToolName, data.ContextKey)
	if len(data.Candidates) > 0 {
		fmt.Fprintln(p.out, "Patterns:")
		for i, c := range data.Candidates {
			fmt.Fprintf(p.out, "  %d. %s\n", i+1, c)
		}
	}
	fmt.Fprintln(p.out, "[y] allow once        [n] deny")
	fmt.Fprintln(p.out, "[e] exact, session    [E] exact, always")
	fmt.Fprintln(p.out, "[p N] pattern N, session  [P N] pattern N, always")

	for {
		fmt.Fprint(p.out, "> ")
		line, err := p.in.ReadString('\n')
		if err != nil {
			return approval.Response{RequestID: data.ID, Choice: approval.ChoiceDeny}
		}

		resp, ok := p.parse(data, strings.TrimSpace(line))
		if !ok {
			fmt.Fprintln(p.out, "unrecognized answer")
			continue
		}
		return resp
	}
}

func (p *Prompter) parse(data event.ApprovalRequiredData, line string) (approval.Response, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return approval.Response{}, false
	}

	resp := approval.Response{RequestID: data.ID}

	switch fields[0] {
	case "y", "yes":
		resp.Choice = approval.ChoiceOnce
		return resp, true
	case "n", "no", "d", "deny":
		resp.Choice = approval.ChoiceDeny
		return resp, true
	case "e":
		resp.Choice = approval.ChoiceSessionExact
		return resp, true
	case "E":
		resp.Choice = approval.ChoicePersistentExact
		return resp, true
	case "p", "P":
		if len(fields) != 2 {
			return approval.Response{}, false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(data.Candidates) {
			return approval.Response{}, false
		}
		resp.Pattern = data.Candidates[n-1]
		if fields[0] == "p" {
			resp.Choice = approval.ChoiceSessionPattern
		} else {
			resp.Choice = approval.ChoicePersistentPattern
		}
		return resp, true
	}

	return approval.Response{}, false
}
