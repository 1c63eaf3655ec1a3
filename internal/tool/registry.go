package tool

import (
	"sort"
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Registry holds the tools available to a session, keyed by ID.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	workDir string
}

// NewRegistry creates an empty registry rooted at workDir.
func NewRegistry(workDir string) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		workDir: workDir,
	}
}

// Register adds a tool, replacing any previous tool with the same ID.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.ID()] = tool
}

// Get looks up a tool by ID.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[id]
	return tool, ok
}

// IDs returns the registered tool IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns the registered tools, ordered by ID.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, id := range r.sortedIDs() {
		tools = append(tools, r.tools[id])
	}
	return tools
}

// EinoTools returns every tool in its Eino adapter form.
func (r *Registry) EinoTools() []einotool.BaseTool {
	tools := r.List()
	adapted := make([]einotool.BaseTool, len(tools))
	for i, t := range tools {
		adapted[i] = t.EinoTool()
	}
	return adapted
}

// ToolInfos returns Eino tool infos for advertising to the model.
func (r *Registry) ToolInfos() ([]*schema.ToolInfo, error) {
	tools := r.List()
	infos := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		infos[i] = &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(schemaParams(t.Parameters())),
		}
	}
	return infos, nil
}

// sortedIDs must be called with at least a read lock held.
func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultRegistry creates a registry loaded with every built-in tool.
func DefaultRegistry(workDir string) *Registry {
	r := NewRegistry(workDir)
	for _, t := range []Tool{
		NewReadTool(workDir),
		NewWriteTool(workDir),
		NewEditTool(workDir),
		NewBashTool(workDir),
		NewGlobTool(workDir),
		NewGrepTool(workDir),
		NewListTool(workDir),
		NewWebFetchTool(workDir),
	} {
		r.Register(t)
	}
	return r
}
