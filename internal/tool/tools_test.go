package tool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() *Context {
	return &Context{
		CallID:  "test-call",
		WorkDir: "",
		AbortCh: make(chan struct{}),
	}
}

func TestEinoToolWrapper_Info(t *testing.T) {
	info, err := NewReadTool("/tmp").EinoTool().Info(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "read", info.Name)
	assert.NotEmpty(t, info.Desc)
}

func TestEinoToolWrapper_InvokableRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoke.txt")
	require.NoError(t, os.WriteFile(path, []byte("invokable content"), 0o644))

	result, err := NewReadTool(dir).EinoTool().InvokableRun(context.Background(), `{"filePath": "`+path+`"}`)
	require.NoError(t, err)
	assert.Contains(t, result, "invokable content")
}

func TestContext_SetMetadata(t *testing.T) {
	var gotTitle string
	var gotMeta map[string]any
	ctx := &Context{
		OnMetadata: func(title string, meta map[string]any) {
			gotTitle = title
			gotMeta = meta
		},
	}

	ctx.SetMetadata("progress", map[string]any{"key": "value"})
	assert.Equal(t, "progress", gotTitle)
	assert.Equal(t, "value", gotMeta["key"])

	// No callback installed: must be a no-op, not a panic.
	(&Context{}).SetMetadata("ignored", nil)
}

func TestContext_IsAborted(t *testing.T) {
	abortCh := make(chan struct{})
	ctx := &Context{AbortCh: abortCh}

	assert.False(t, ctx.IsAborted())
	close(abortCh)
	assert.True(t, ctx.IsAborted())
}

func TestBaseTool(t *testing.T) {
	executed := false
	base := NewBaseTool(
		"custom",
		"a custom tool",
		json.RawMessage(`{"type": "object"}`),
		func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
			executed = true
			return &Result{Output: "custom result"}, nil
		},
	)

	assert.Equal(t, "custom", base.ID())
	assert.Equal(t, "a custom tool", base.Description())

	result, err := base.Execute(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, "custom result", result.Output)
}
