// Package tool defines the gated tools a model may invoke and the contract
// they execute under. Every tool also adapts itself to Eino's tool interface
// so the model host can advertise it.
package tool

import (
	"context"
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Tool is one invokable capability. Execution is always preceded by an
// authorization decision elsewhere; implementations run unconditionally.
type Tool interface {
	// ID returns the tool identifier the model calls it by.
	ID() string

	// Description returns the usage text shown to the model.
	Description() string

	// Parameters returns the JSON Schema for the tool's input.
	Parameters() json.RawMessage

	// Execute runs the tool against the given input.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)

	// EinoTool adapts the tool to Eino's invokable interface.
	EinoTool() einotool.InvokableTool
}

// Context carries per-call state into a tool execution.
type Context struct {
	CallID  string
	WorkDir string
	AbortCh <-chan struct{}
	Extra   map[string]any

	// OnMetadata, when set, receives progress updates during execution.
	OnMetadata func(title string, meta map[string]any)
}

// SetMetadata publishes a progress update if a listener is attached.
func (c *Context) SetMetadata(title string, meta map[string]any) {
	if c.OnMetadata != nil {
		c.OnMetadata(title, meta)
	}
}

// IsAborted reports whether the call has been cancelled by the user.
func (c *Context) IsAborted() bool {
	select {
	case <-c.AbortCh:
		return true
	default:
		return false
	}
}

// Result is what a tool hands back after running.
type Result struct {
	Title       string         `json:"title"`
	Output      string         `json:"output"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Error       error          `json:"-"`
}

// Attachment is a non-text artifact attached to a result, such as an image.
type Attachment struct {
	Filename  string `json:"filename"`
	MediaType string `json:"mediaType"`
	URL       string `json:"url"` // data: URL or file path
}

// BaseTool builds a Tool from a function, for tools with no state of
// their own.
type BaseTool struct {
	id          string
	description string
	parameters  json.RawMessage
	execute     func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// NewBaseTool creates a function-backed tool.
func NewBaseTool(id, description string, params json.RawMessage, execute func(context.Context, json.RawMessage, *Context) (*Result, error)) *BaseTool {
	return &BaseTool{
		id:          id,
		description: description,
		parameters:  params,
		execute:     execute,
	}
}

func (t *BaseTool) ID() string                  { return t.id }
func (t *BaseTool) Description() string         { return t.description }
func (t *BaseTool) Parameters() json.RawMessage { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return t.execute(ctx, input, toolCtx)
}

func (t *BaseTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// einoToolWrapper presents a Tool as an Eino InvokableTool.
type einoToolWrapper struct {
	tool Tool
}

func (w *einoToolWrapper) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        w.tool.ID(),
		Desc:        w.tool.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(schemaParams(w.tool.Parameters())),
	}, nil
}

func (w *einoToolWrapper) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	result, err := w.tool.Execute(ctx, json.RawMessage(argsJSON), &Context{})
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// schemaParams flattens a JSON Schema object into Eino parameter infos.
// Only the top-level properties are carried over; nested shapes collapse
// to their container type.
func schemaParams(raw json.RawMessage) map[string]*schema.ParameterInfo {
	var parsed struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}

	required := make(map[string]bool, len(parsed.Required))
	for _, name := range parsed.Required {
		required[name] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(parsed.Properties))
	for name, prop := range parsed.Properties {
		params[name] = &schema.ParameterInfo{
			Type:     schemaType(prop.Type),
			Desc:     prop.Description,
			Required: required[name],
		}
	}
	return params
}

func schemaType(jsonType string) schema.DataType {
	switch jsonType {
	case "integer":
		return schema.Integer
	case "number":
		return schema.Number
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}
