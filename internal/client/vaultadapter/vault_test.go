package vaultadapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsync/vaultsync/internal/ignore"
)

func TestFilesystemVault_WriteReadDelete(t *testing.T) {
	v, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, v.WriteFile("notes/todo.md", []byte("hello"), time.Time{}))

	content, err := v.ReadFile("notes/todo.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	require.NoError(t, v.DeleteFile("notes/todo.md"))
	_, err = v.ReadFile("notes/todo.md")
	assert.Error(t, err)
}

func TestFilesystemVault_Scan_SkipsReservedAndExcluded(t *testing.T) {
	v, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, v.WriteFile("notes/a.md", []byte("a"), time.Time{}))
	require.NoError(t, v.WriteFile("notes/b.tmp", []byte("b"), time.Time{}))

	reservedDir := filepath.Join(v.Dir(), ".vaultsync")
	require.NoError(t, os.MkdirAll(reservedDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(reservedDir, "manifest.json"), []byte("{}"), 0o644))

	excl := ignore.NewList([]string{"*.tmp"})

	entries, err := v.Scan(excl)
	require.NoError(t, err)

	_, hasA := entries["notes/a.md"]
	_, hasTmp := entries["notes/b.tmp"]
	_, hasManifest := entries[".vaultsync/manifest.json"]

	assert.True(t, hasA)
	assert.False(t, hasTmp)
	assert.False(t, hasManifest)
	assert.Len(t, entries["notes/a.md"].Hash, 64)
}

func TestFilesystemVault_Resolve_RejectsTraversal(t *testing.T) {
	v, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = v.ReadFile("../outside.md")
	assert.Error(t, err)
}

func TestFilesystemVault_Resolve_RejectsSymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.md"), []byte("secret"), 0o644))

	v, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.Symlink(outside, filepath.Join(v.Dir(), "escape")))

	_, err = v.ReadFile("escape/secret.md")
	assert.Error(t, err)

	err = v.WriteFile("escape/new.md", []byte("x"), time.Time{})
	assert.Error(t, err)
}

func TestFilesystemVault_WriteFile_AtomicallyReplacesExisting(t *testing.T) {
	v, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, v.WriteFile("notes/a.md", []byte("first"), time.Time{}))
	require.NoError(t, v.WriteFile("notes/a.md", []byte("second"), time.Time{}))

	content, err := v.ReadFile("notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	matches, err := filepath.Glob(filepath.Join(v.Dir(), "notes", ".vaultsync-write-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
