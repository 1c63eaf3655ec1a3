package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	einotool "github.com/cloudwego/eino/components/tool"
)

const globDescription = `Fast file pattern matching tool that works with any codebase size.

Usage:
- Supports glob patterns like "**/*.js" or "src/**/*.ts"
- Returns matching file paths sorted by modification time
- Use this tool when you need to find files by name patterns`

const globMaxResults = 100

// Directories never descended into during a glob walk.
var globSkipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// GlobTool finds files by name pattern.
type GlobTool struct {
	workDir string
}

// GlobInput is the wire input for the glob tool.
type GlobInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// NewGlobTool creates a new glob tool.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{workDir: workDir}
}

func (t *GlobTool) ID() string          { return "glob" }
func (t *GlobTool) Description() string { return globDescription }

func (t *GlobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The glob pattern to match files against"
			},
			"path": {
				"type": "string",
				"description": "Directory to search in (default: current directory)"
			}
		},
		"required": ["pattern"]
	}`)
}

type globHit struct {
	path    string
	modTime time.Time
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GlobInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}

	searchDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		searchDir = toolCtx.WorkDir
	}
	if params.Path != "" {
		if filepath.IsAbs(params.Path) {
			searchDir = params.Path
		} else {
			searchDir = filepath.Join(searchDir, params.Path)
		}
	}

	hits, err := globWalk(ctx, searchDir, params.Pattern)
	if err != nil {
		return nil, err
	}

	if len(hits) == 0 {
		return &Result{
			Title:  "Glob search",
			Output: "No files matched the pattern",
			Metadata: map[string]any{
				"pattern": params.Pattern,
				"count":   0,
			},
		}, nil
	}

	// Most recently modified first.
	sort.Slice(hits, func(i, j int) bool {
		return hits[i].modTime.After(hits[j].modTime)
	})

	truncated := len(hits) > globMaxResults
	if truncated {
		hits = hits[:globMaxResults]
	}

	paths := make([]string, len(hits))
	for i, h := range hits {
		paths[i] = h.path
	}

	output := strings.Join(paths, "\n")
	if truncated {
		output += fmt.Sprintf("\n\n(Showing %d of more files)", globMaxResults)
	}

	return &Result{
		Title:  fmt.Sprintf("Found %d files", len(paths)),
		Output: output,
		Metadata: map[string]any{
			"pattern":   params.Pattern,
			"count":     len(paths),
			"truncated": truncated,
		},
	}, nil
}

func (t *GlobTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}

// globWalk matches pattern against paths relative to root. A pattern without
// a path separator matches the file name at any depth.
func globWalk(ctx context.Context, root, pattern string) ([]globHit, error) {
	baseOnly := !strings.Contains(pattern, "/")

	var hits []globHit
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if globSkipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}

		candidate, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		candidate = filepath.ToSlash(candidate)
		if baseOnly {
			candidate = d.Name()
		}

		matched, err := doublestar.Match(pattern, candidate)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if !matched {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		hits = append(hits, globHit{path: filepath.ToSlash(mustRel(root, path)), modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func mustRel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
