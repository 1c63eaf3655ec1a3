package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runList(t *testing.T, workDir string, input ListInput) (*Result, error) {
	t.Helper()
	raw, err := json.Marshal(input)
	require.NoError(t, err)
	return NewListTool(workDir).Execute(context.Background(), raw, testContext())
}

func TestListTool_Identity(t *testing.T) {
	tool := NewListTool("/tmp")
	assert.Equal(t, "list", tool.ID())
	assert.NotEmpty(t, tool.Description())
}

func TestListTool_DirsFirstThenAlphabetical(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zeta.txt"), []byte("zz"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.txt"), []byte("a"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	result, err := runList(t, dir, ListInput{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(result.Output), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[dir ] sub", lines[0])
	assert.Equal(t, "[file] alpha.txt (1 bytes)", lines[1])
	assert.Equal(t, "[file] zeta.txt (2 bytes)", lines[2])
	assert.Equal(t, 3, result.Metadata["count"])
}

func TestListTool_HidesVendoredDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "src"), 0o755))

	result, err := runList(t, dir, ListInput{})
	require.NoError(t, err)

	assert.Contains(t, result.Output, "src")
	assert.NotContains(t, result.Output, "node_modules")
	assert.NotContains(t, result.Output, ".git")
}

func TestListTool_CustomIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drop.log"), nil, 0o644))

	result, err := runList(t, dir, ListInput{Ignore: []string{"*.log"}})
	require.NoError(t, err)

	assert.Contains(t, result.Output, "keep.go")
	assert.NotContains(t, result.Output, "drop.log")
}

func TestListTool_DirPatternOnlyHidesDirs(t *testing.T) {
	dir := t.TempDir()
	// "vendor/" in the defaults must not hide a plain file named vendor.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor"), []byte("file"), 0o644))

	result, err := runList(t, dir, ListInput{})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "[file] vendor")
}

func TestListTool_RelativePathParam(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "inner.txt"), nil, 0o644))

	result, err := runList(t, dir, ListInput{Path: "sub"})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "inner.txt")
	assert.Equal(t, filepath.Join(dir, "sub"), result.Metadata["path"])
}

func TestListTool_Errors(t *testing.T) {
	_, err := runList(t, filepath.Join(t.TempDir(), "missing"), ListInput{})
	assert.ErrorContains(t, err, "failed to read directory")

	_, err = NewListTool("").Execute(context.Background(), json.RawMessage(`{bad`), testContext())
	assert.ErrorContains(t, err, "invalid input")
}

func TestListIgnored(t *testing.T) {
	patterns := []string{"dist/", "*.tmp"}
	assert.True(t, listIgnored("dist", true, patterns))
	assert.False(t, listIgnored("dist", false, patterns))
	assert.True(t, listIgnored("scratch.tmp", false, patterns))
	assert.False(t, listIgnored("main.go", false, patterns))
}
