package merkle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_DecimalAndDeterministic(t *testing.T) {
	h1 := Hash([]byte("function a() {}"))
	h2 := Hash([]byte("function a() {}"))
	h3 := Hash([]byte("function b() {}"))

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Regexp(t, `^\d+$`, h1)
	assert.Equal(t, Hash([]byte("x")), HashString("x"))
}

func TestUnchanged(t *testing.T) {
	m := Load(t.TempDir())
	content := []byte("<?php function f() {}")

	assert.False(t, m.Unchanged("src/f.php", content))

	m.Update("src/f.php", content, []string{"function f() {}"})
	assert.True(t, m.Unchanged("src/f.php", content))
	assert.False(t, m.Unchanged("src/f.php", []byte("<?php function f() { changed }")))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := Load(dir)
	m.Update("a.go", []byte("package a"), []string{"chunk1", "chunk2"})
	m.Update("b.py", []byte("x = 1"), []string{"chunk3"})
	require.NoError(t, m.Save(dir))

	loaded := Load(dir)
	assert.True(t, loaded.Unchanged("a.go", []byte("package a")))
	assert.Len(t, loaded.ChunkShas("a.go"), 2)
	assert.Len(t, loaded.ChunkShas("b.py"), 1)
	assert.ElementsMatch(t, []string{"a.go", "b.py"}, loaded.Files())
}

func TestLoad_MissingOrCorrupt(t *testing.T) {
	dir := t.TempDir()

	m := Load(dir)
	assert.Empty(t, m.Files())

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644))
	m = Load(dir)
	assert.Empty(t, m.Files())
}

func TestRemove(t *testing.T) {
	m := Load(t.TempDir())
	m.Update("gone.js", []byte("x"), nil)
	require.True(t, m.Has("gone.js"))

	m.Remove("gone.js")
	assert.False(t, m.Has("gone.js"))
}
