package event

// ApprovalRequiredData is the data for approval.required events. Candidates
// holds the approval patterns offered to the user, most specific first.
type ApprovalRequiredData struct {
	ID         string   `json:"id"`
	ToolName   string   `json:"toolName"`
	ContextKey string   `json:"contextKey"`
	Candidates []string `json:"candidates"`
}

// ApprovalResolvedData is the data for approval.resolved events.
type ApprovalResolvedData struct {
	ID      string `json:"id"`
	Choice  string `json:"choice"`
	Pattern string `json:"pattern,omitempty"`
	Granted bool   `json:"granted"`
}

// ToolStartedData is the data for tool.started events.
type ToolStartedData struct {
	ToolName   string `json:"toolName"`
	ContextKey string `json:"contextKey"`
	Source     string `json:"source"` // which approval tier allowed it
}

// ToolCompletedData is the data for tool.completed events.
type ToolCompletedData struct {
	ToolName   string `json:"toolName"`
	ContextKey string `json:"contextKey"`
	IsError    bool   `json:"isError"`
	DurationMS int64  `json:"durationMs"`
}

// TurnCompletedData is the data for turn.completed events.
type TurnCompletedData struct {
	Turn      int `json:"turn"`
	ToolCalls int `json:"toolCalls"`
}

// StoreUpdatedData is the data for store.updated events, published after a
// persistent store save or an external-change reload.
type StoreUpdatedData struct {
	Path  string `json:"path"`
	Rules int    `json:"rules"`
}

// RunErrorData is the data for run.error events.
type RunErrorData struct {
	Error string `json:"error"`
}
