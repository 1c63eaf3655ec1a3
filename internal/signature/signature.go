// Package signature canonicalizes tool invocations into comparable signatures.
package signature

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Signature identifies a specific tool invocation for approval matching.
// Two invocations of the same logical operation always produce the same
// ContextKey, independent of process run.
type Signature struct {
	ToolName   string
	ContextKey string

	// Structured components, populated where the tool input allows it.
	// Empty string means the component is absent.
	Command   string
	Args      string
	Directory string
}

// Build constructs a signature for a tool invocation. The input must already
// have passed tool-level validation; Build never fails and never touches the
// filesystem.
func Build(toolName string, input json.RawMessage, workDir string) Signature {
	fields := decodeFields(input)

	switch toolName {
	case "bash":
		command := fields["command"]
		base, args := splitCommand(command)
		return Signature{
			ToolName:   "bash",
			ContextKey: fmt.Sprintf("%s in %s", command, workDir),
			Command:    base,
			Args:       args,
			Directory:  workDir,
		}

	case "read":
		return Signature{
			ToolName:   "read",
			ContextKey: "reading " + fields["filePath"],
			Directory:  workDir,
		}

	case "write", "edit":
		return Signature{
			ToolName:   toolName,
			ContextKey: "writing " + fields["filePath"],
			Directory:  workDir,
		}

	case "glob":
		return Signature{
			ToolName:   "glob",
			ContextKey: "pattern " + fields["pattern"],
			Directory:  workDir,
		}

	case "grep":
		path := fields["path"]
		if path == "" {
			path = "."
		}
		return Signature{
			ToolName:   "grep",
			ContextKey: fmt.Sprintf("pattern '%s' in %s", fields["pattern"], path),
			Directory:  workDir,
		}

	case "webfetch":
		return Signature{
			ToolName:   "webfetch",
			ContextKey: "fetching " + fields["url"],
		}

	default:
		return Signature{
			ToolName:   toolName,
			ContextKey: "in " + workDir,
			Directory:  workDir,
		}
	}
}

// decodeFields extracts top-level string fields from a tool input object.
func decodeFields(input json.RawMessage) map[string]string {
	var raw map[string]any
	fields := make(map[string]string)
	if err := json.Unmarshal(input, &raw); err != nil {
		return fields
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return fields
}

// splitCommand separates a shell command line into its base command and the
// remaining argument string.
func splitCommand(command string) (base, args string) {
	command = strings.TrimSpace(command)
	if idx := strings.IndexByte(command, ' '); idx >= 0 {
		return command[:idx], strings.TrimSpace(command[idx+1:])
	}
	return command, ""
}
