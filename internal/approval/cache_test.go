package approval

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolgate-ai/toolgate/internal/pattern"
	"github.com/toolgate-ai/toolgate/internal/signature"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	store, err := pattern.Open(filepath.Join(t.TempDir(), "tool_patterns.json"))
	require.NoError(t, err)
	return NewCache(store)
}

func bashSig(command, dir string) signature.Signature {
	input, _ := json.Marshal(map[string]string{"command": command})
	return signature.Build("bash", input, dir)
}

func TestCache_MissOnEmpty(t *testing.T) {
	c := testCache(t)
	_, ok := c.Lookup(bashSig("cargo test", "/project"))
	assert.False(t, ok)
}

func TestCache_TierOrder(t *testing.T) {
	sig := bashSig("cargo test", "/project")

	t.Run("persistent exact beats everything", func(t *testing.T) {
		c := testCache(t)
		require.NoError(t, c.AddPersistentExact(sig))
		c.AddSessionExact(sig)
		require.NoError(t, c.AddSessionPattern(pattern.New("cargo * in *", "bash", "")))
		require.NoError(t, c.AddPersistentPattern(pattern.New("cargo * in /project", "bash", "")))

		source, ok := c.Lookup(sig)
		require.True(t, ok)
		assert.Equal(t, SourcePersistentExact, source)
	})

	t.Run("session exact beats patterns", func(t *testing.T) {
		c := testCache(t)
		c.AddSessionExact(sig)
		require.NoError(t, c.AddPersistentPattern(pattern.New("cargo * in /project", "bash", "")))

		source, ok := c.Lookup(sig)
		require.True(t, ok)
		assert.Equal(t, SourceSessionExact, source)
	})

	t.Run("persistent pattern beats session pattern", func(t *testing.T) {
		c := testCache(t)
		require.NoError(t, c.AddSessionPattern(pattern.New("cargo test in /project", "bash", "")))
		require.NoError(t, c.AddPersistentPattern(pattern.New("cargo * in *", "bash", "")))

		source, ok := c.Lookup(sig)
		require.True(t, ok)
		assert.Equal(t, SourcePersistentPattern, source)
	})

	t.Run("session pattern as last resort", func(t *testing.T) {
		c := testCache(t)
		require.NoError(t, c.AddSessionPattern(pattern.New("cargo * in *", "bash", "")))

		source, ok := c.Lookup(sig)
		require.True(t, ok)
		assert.Equal(t, SourceSessionPattern, source)
	})
}

func TestCache_ExactNeverGeneralizes(t *testing.T) {
	c := testCache(t)
	c.AddSessionExact(bashSig("cargo test", "/project"))

	_, ok := c.Lookup(bashSig("cargo test", "/other"))
	assert.False(t, ok)
	_, ok = c.Lookup(bashSig("cargo build", "/project"))
	assert.False(t, ok)
}

func TestCache_SessionRulesDoNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool_patterns.json")
	store, err := pattern.Open(path)
	require.NoError(t, err)

	c := NewCache(store)
	c.AddSessionExact(bashSig("cargo test", "/project"))
	require.NoError(t, c.AddSessionPattern(pattern.New("cargo * in *", "bash", "")))
	require.NoError(t, c.Flush())

	reopened, err := pattern.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Len())
}

func TestCache_InvalidSessionPattern(t *testing.T) {
	c := testCache(t)
	bad := pattern.NewWithType(`([`, "bash", "", pattern.TypeRegex)
	assert.Error(t, c.AddSessionPattern(bad))
}

func TestCache_SessionRules(t *testing.T) {
	c := testCache(t)
	c.AddSessionExact(bashSig("ls", "/project"))
	require.NoError(t, c.AddSessionPattern(pattern.New("cargo * in *", "bash", "")))

	exact, patterns := c.SessionRules()
	assert.Len(t, exact, 1)
	assert.Len(t, patterns, 1)
}
