package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	einotool "github.com/cloudwego/eino/components/tool"
)

const editDescription = `Performs exact string replacements in files.

Usage:
- The file_path parameter must be an absolute path
- The old_string must exist in the file (exact match required)
- The new_string will replace old_string
- Use replace_all to replace all occurrences
- The edit will FAIL if old_string is not unique (unless using replace_all)`

// fuzzyThreshold is the minimum similarity for accepting an inexact match
// when the exact string is not present.
const fuzzyThreshold = 0.7

// EditTool replaces text in a file.
type EditTool struct {
	workDir string
}

// EditInput is the wire input for the edit tool.
type EditInput struct {
	FilePath   string `json:"filePath"`
	OldString  string `json:"oldString"`
	NewString  string `json:"newString"`
	ReplaceAll bool   `json:"replaceAll,omitempty"`
}

// NewEditTool creates a new edit tool.
func NewEditTool(workDir string) *EditTool {
	return &EditTool{workDir: workDir}
}

func (t *EditTool) ID() string          { return "edit" }
func (t *EditTool) Description() string { return editDescription }

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {
				"type": "string",
				"description": "The absolute path to the file to edit"
			},
			"oldString": {
				"type": "string",
				"description": "The exact text to replace"
			},
			"newString": {
				"type": "string",
				"description": "The text to replace it with"
			},
			"replaceAll": {
				"type": "boolean",
				"description": "Replace all occurrences (default: false)"
			}
		},
		"required": ["filePath", "oldString", "newString"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params EditInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.OldString == params.NewString {
		return nil, fmt.Errorf("old_string and new_string must be different")
	}

	content, err := os.ReadFile(params.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	before := string(content)

	after, count, note, err := applyEdit(before, params)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(params.FilePath, []byte(after), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	diff, additions, deletions := buildDiffMetadata(params.FilePath, before, after, t.workDir)

	title := fmt.Sprintf("Edited %s", filepath.Base(params.FilePath))
	output := fmt.Sprintf("Replaced %d occurrence(s)", count)
	if note != "" {
		title += " (" + note + ")"
		output += " (" + note + ")"
	}

	return &Result{
		Title:  title,
		Output: output,
		Metadata: map[string]any{
			"file":         params.FilePath,
			"replacements": count,
			"diff":         diff,
			"additions":    additions,
			"deletions":    deletions,
		},
	}, nil
}

func (t *EditTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// applyEdit performs the replacement, falling back to CRLF normalization and
// then fuzzy matching when the exact string is absent. The note describes
// which fallback fired, empty for an exact match.
func applyEdit(text string, params EditInput) (after string, count int, note string, err error) {
	occurrences := strings.Count(text, params.OldString)
	switch {
	case occurrences == 0:
		return inexactEdit(text, params)
	case params.ReplaceAll:
		return strings.ReplaceAll(text, params.OldString, params.NewString), occurrences, "", nil
	case occurrences > 1:
		return "", 0, "", fmt.Errorf("old_string appears %d times in file. Use replace_all or provide more context", occurrences)
	default:
		return strings.Replace(text, params.OldString, params.NewString, 1), 1, "", nil
	}
}

func inexactEdit(text string, params EditInput) (string, int, string, error) {
	// CRLF in either the file or the requested string is the common cause
	// of a near miss.
	normText := strings.ReplaceAll(text, "\r\n", "\n")
	normOld := strings.ReplaceAll(params.OldString, "\r\n", "\n")
	if strings.Contains(normText, normOld) {
		return strings.Replace(normText, normOld, params.NewString, 1), 1, "normalized", nil
	}

	match, score := closestBlock(text, params.OldString)
	if match != "" && score >= fuzzyThreshold {
		note := fmt.Sprintf("%.0f%% similarity", score*100)
		return strings.Replace(text, match, params.NewString, 1), 1, note, nil
	}

	return "", 0, "", fmt.Errorf("old_string not found in file. The content may have changed or the string doesn't exist")
}

// closestBlock scans the file for the window of lines most similar to
// target, sized to target's own line count.
func closestBlock(text, target string) (string, float64) {
	lines := strings.Split(text, "\n")
	window := len(strings.Split(target, "\n"))
	if window > len(lines) {
		return "", 0
	}

	best, bestScore := "", 0.0
	for i := 0; i+window <= len(lines); i++ {
		block := strings.Join(lines[i:i+window], "\n")
		if score := similarity(block, target); score > bestScore {
			best, bestScore = block, score
		}
	}
	return best, bestScore
}

// similarity is Levenshtein distance normalized to [0, 1].
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	// Distance on huge inputs is quadratic; approximate by length ratio.
	if len(a) > 10000 || len(b) > 10000 {
		return float64(min(len(a), len(b))) / float64(max(len(a), len(b)))
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(max(len(a), len(b)))
}
