package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	require.NoError(t, AtomicWriteJSON(path, map[string]string{"item": "abc1234"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"item\": \"abc1234\"\n}", string(content))
	assert.NoFileExists(t, path+".tmp")
}

func TestAtomicWriteFile_Mode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screenshot.png")

	require.NoError(t, AtomicWriteFile(path, []byte("png"), 0600))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.NoFileExists(t, path+".tmp")
}

func TestAtomicWriteFile_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slides.md")

	require.NoError(t, AtomicWriteJSON(path, "first"))
	require.NoError(t, AtomicWriteJSON(path, "second"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `"second"`, string(content))
}

func TestAtomicWriteFile_RenameOntoDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "taken")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0755))

	err := AtomicWriteFile(target, []byte("x"), 0644)
	require.Error(t, err)
	assert.NoFileExists(t, target+".tmp")
}

func TestAtomicWriteJSON_Unmarshalable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	err := AtomicWriteJSON(path, make(chan int))
	require.Error(t, err)
	assert.NoFileExists(t, path)
}
