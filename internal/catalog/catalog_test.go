package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeJSON(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNormalizeArray(t *testing.T) {
	var raw any
	require.NoError(t, json.Unmarshal([]byte(`[
		{"reference": "https://github.com/a/one", "title": "One"},
		{"url": "https://github.com/a/two", "title": "Two"},
		{"title": "keyless, dropped"},
		"not an object"
	]`), &raw))

	cat := Normalize(raw)
	require.Len(t, cat, 2)
	assert.Equal(t, "One", cat["https://github.com/a/one"]["title"])
	assert.Equal(t, "Two", cat["https://github.com/a/two"]["title"])
}

func TestNormalizeWrapped(t *testing.T) {
	var raw any
	require.NoError(t, json.Unmarshal([]byte(`{
		"custom_nodes": {
			"https://github.com/a/one": {"title": "One"}
		}
	}`), &raw))

	cat := Normalize(raw)
	require.Len(t, cat, 1)
	assert.Equal(t, "One", cat["https://github.com/a/one"]["title"])
}

func TestNormalizeWrappedArray(t *testing.T) {
	var raw any
	require.NoError(t, json.Unmarshal([]byte(`{
		"custom_nodes": [
			{"reference": "https://github.com/a/one", "title": "One"}
		]
	}`), &raw))

	cat := Normalize(raw)
	require.Len(t, cat, 1)
}

func TestNormalizeScalar(t *testing.T) {
	assert.Empty(t, Normalize("just a string"))
	assert.Empty(t, Normalize(nil))
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	first := writeJSON(t, dir, "core.json", `{
		"https://github.com/a/one": {"title": "One", "author": "core"},
		"https://github.com/a/two": {"title": "Two"}
	}`)
	second := writeJSON(t, dir, "extra.json", `[
		{"reference": "https://github.com/a/one", "title": "One Updated"},
		{"reference": "https://github.com/a/three", "title": "Three"}
	]`)
	malformed := writeJSON(t, dir, "broken.json", `{nope`)
	missing := filepath.Join(dir, "ghost.json")

	m := NewMerger(zap.NewNop())
	merged := m.Merge(first, missing, malformed, second)

	require.Len(t, merged, 3)
	assert.Equal(t, "One Updated", merged["https://github.com/a/one"]["title"],
		"later inputs win on collisions")
	assert.Equal(t, "Two", merged["https://github.com/a/two"]["title"])
	assert.Equal(t, "Three", merged["https://github.com/a/three"]["title"])
}

func TestWriteLoadRoundTrip(t *testing.T) {
	cat := Catalog{
		"https://github.com/a/one": {"title": "One"},
	}
	path := filepath.Join(t.TempDir(), "nested", "catalog.json")
	require.NoError(t, cat.Write(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "One", loaded["https://github.com/a/one"]["title"])
}

func TestServiceLookup(t *testing.T) {
	svc, err := NewService(Catalog{
		"KSampler": {"title": "KSampler"},
	})
	require.NoError(t, err)

	entry, ok := svc.Lookup("KSampler")
	require.True(t, ok)
	assert.Equal(t, "KSampler", entry["title"])

	// Second lookup comes from the cache and must agree.
	again, ok := svc.Lookup("KSampler")
	require.True(t, ok)
	assert.Equal(t, entry, again)

	_, ok = svc.Lookup("NotANode")
	assert.False(t, ok)

	assert.Equal(t, 1, svc.Len())
}
