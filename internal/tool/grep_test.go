package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGrep(t *testing.T, workDir string, input GrepInput) (*Result, error) {
	t.Helper()
	raw, err := json.Marshal(input)
	require.NoError(t, err)
	return NewGrepTool(workDir).Execute(context.Background(), raw, testContext())
}

func TestGrepTool_Identity(t *testing.T) {
	tool := NewGrepTool("/tmp")
	assert.Equal(t, "grep", tool.ID())
	assert.NotEmpty(t, tool.Description())
}

func TestGrepTool_FindsMatchingLines(t *testing.T) {
	dir := globTree(t, map[string]string{
		"app.go":  "package app\nfunc Run() error { return nil }\n",
		"util.go": "package app\nfunc helper() {}\n",
	})

	result, err := runGrep(t, dir, GrepInput{Pattern: `func\s+Run`})
	require.NoError(t, err)

	assert.Contains(t, result.Output, "app.go:2: func Run() error { return nil }")
	assert.NotContains(t, result.Output, "helper")
	assert.Equal(t, 1, result.Metadata["count"])
}

func TestGrepTool_IncludeFilter(t *testing.T) {
	dir := globTree(t, map[string]string{
		"notes.md": "needle here\n",
		"code.go":  "needle there\n",
	})

	result, err := runGrep(t, dir, GrepInput{Pattern: "needle", Include: "*.go"})
	require.NoError(t, err)

	assert.Contains(t, result.Output, "code.go")
	assert.NotContains(t, result.Output, "notes.md")
}

func TestGrepTool_IncludePathPattern(t *testing.T) {
	dir := globTree(t, map[string]string{
		"src/a/deep.ts": "needle\n",
		"top.ts":        "needle\n",
	})

	result, err := runGrep(t, dir, GrepInput{Pattern: "needle", Include: "src/**/*.ts"})
	require.NoError(t, err)

	assert.Contains(t, result.Output, "deep.ts")
	assert.NotContains(t, result.Output, "top.ts")
}

func TestGrepTool_SkipsBinaryAndVendoredFiles(t *testing.T) {
	dir := globTree(t, map[string]string{
		"plain.txt":            "needle\n",
		"node_modules/dep.txt": "needle\n",
	})
	binary := append([]byte("needle"), 0x00, 0x01)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.bin"), binary, 0o644))

	result, err := runGrep(t, dir, GrepInput{Pattern: "needle"})
	require.NoError(t, err)

	assert.Contains(t, result.Output, "plain.txt")
	assert.NotContains(t, result.Output, "blob.bin")
	assert.NotContains(t, result.Output, "dep.txt")
}

func TestGrepTool_NoMatches(t *testing.T) {
	dir := globTree(t, map[string]string{"a.txt": "haystack only\n"})

	result, err := runGrep(t, dir, GrepInput{Pattern: "needle"})
	require.NoError(t, err)
	assert.Equal(t, "No matches found", result.Output)
	assert.Equal(t, 0, result.Metadata["count"])
}

func TestGrepTool_Truncation(t *testing.T) {
	var content strings.Builder
	for i := 0; i < grepMaxMatches+50; i++ {
		fmt.Fprintf(&content, "needle %d\n", i)
	}
	dir := globTree(t, map[string]string{"big.txt": content.String()})

	result, err := runGrep(t, dir, GrepInput{Pattern: "needle"})
	require.NoError(t, err)

	assert.Equal(t, grepMaxMatches, result.Metadata["count"])
	assert.Equal(t, true, result.Metadata["truncated"])
	assert.Contains(t, result.Output, "(Showing 100 of more matches)")
}

func TestGrepTool_BadInput(t *testing.T) {
	_, err := runGrep(t, t.TempDir(), GrepInput{Pattern: "[unclosed"})
	assert.ErrorContains(t, err, "invalid pattern")

	_, err = NewGrepTool("").Execute(context.Background(), json.RawMessage(`{bad`), testContext())
	assert.ErrorContains(t, err, "invalid input")
}

func TestGrepTool_ExplicitPath(t *testing.T) {
	dir := globTree(t, map[string]string{
		"inner/hit.txt": "needle\n",
		"miss.txt":      "needle\n",
	})

	result, err := runGrep(t, t.TempDir(), GrepInput{Pattern: "needle", Path: filepath.Join(dir, "inner")})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "hit.txt")
	assert.NotContains(t, result.Output, "miss.txt")
}
