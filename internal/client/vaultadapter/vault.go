// Package vaultadapter implements the reference filesystem vault: the
// concrete adapter the sync engine drives through a small interface so
// that the engine itself never touches the local filesystem directly.
// Grounded on the pack's Obsidian vault-sync adapter (its path-traversal
// defenses and mutex-guarded read/write discipline), rewired to produce
// vaultmodel.FileEntry values keyed by SHA-256 rather than the reference's
// unhashed byte comparison.
package vaultadapter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vaultsync/vaultsync/internal/ignore"
	"github.com/vaultsync/vaultsync/internal/vaultmodel"
)

const (
	dirPerm  = fs.FileMode(0o755)
	filePerm = fs.FileMode(0o644)
)

// FilesystemVault is the reference Vault adapter: a directory on local
// disk. All writes are serialized by an exclusive lock; reads take a
// shared lock so a scan never observes a partially written file.
type FilesystemVault struct {
	dir string
	mu  sync.RWMutex
}

// New creates a FilesystemVault rooted at dir, creating the directory if
// it does not exist. dir must be an absolute path.
func New(dir string) (*FilesystemVault, error) {
	if dir == "" {
		return nil, fmt.Errorf("vault directory must not be empty")
	}
	if !filepath.IsAbs(dir) {
		return nil, fmt.Errorf("vault directory %q must be absolute", dir)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}
	return &FilesystemVault{dir: filepath.Clean(dir)}, nil
}

// Dir returns the vault's root directory.
func (v *FilesystemVault) Dir() string {
	return v.dir
}

// Scan walks the vault and returns a FileEntry per tracked file, skipping
// anything excl matches and everything under the reserved prefix.
func (v *FilesystemVault) Scan(excl *ignore.List) (map[string]vaultmodel.FileEntry, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	entries := make(map[string]vaultmodel.FileEntry)

	err := filepath.WalkDir(v.dir, func(absPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(v.dir, absPath)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if strings.HasPrefix(relPath, vaultmodel.ReservedPrefix) {
			return nil
		}
		if excl != nil && excl.Match(relPath) {
			return nil
		}
		if err := vaultmodel.ValidatePath(relPath); err != nil {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hash, err := hashFile(absPath)
		if err != nil {
			return err
		}

		entries[relPath] = vaultmodel.FileEntry{
			Path:  relPath,
			Hash:  hash,
			MTime: info.ModTime().UnixMilli(),
			Size:  info.Size(),
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}

	return entries, nil
}

// ReadFile reads a tracked path's current content.
func (v *FilesystemVault) ReadFile(relPath string) ([]byte, error) {
	absPath, err := v.resolve(relPath)
	if err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	return os.ReadFile(absPath)
}

// WriteFile writes content to relPath, creating parent directories as
// needed, and stamps the file's mtime if mtime is non-zero. The write is
// atomic: content lands in a temp file in the same directory, which is
// then renamed over the target, so a crash or concurrent read never
// observes a partially written file.
func (v *FilesystemVault) WriteFile(relPath string, content []byte, mtime time.Time) error {
	absPath, err := v.resolve(relPath)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create parent directory for %s: %w", relPath, err)
	}

	tmp, err := os.CreateTemp(dir, ".vaultsync-write-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", relPath, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file for %s: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file for %s: %w", relPath, err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("set permissions for %s: %w", relPath, err)
	}
	if err := os.Rename(tmpName, absPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file for %s: %w", relPath, err)
	}

	if !mtime.IsZero() {
		if err := os.Chtimes(absPath, mtime, mtime); err != nil {
			return fmt.Errorf("set mtime for %s: %w", relPath, err)
		}
	}
	return nil
}

// DeleteFile removes relPath. Not an error if it does not exist.
func (v *FilesystemVault) DeleteFile(relPath string) error {
	absPath, err := v.resolve(relPath)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", relPath, err)
	}
	return nil
}

// resolve converts a vault-relative path to an absolute path, rejecting
// traversal outside the vault root. It also resolves symlinks along the
// longest existing prefix of the path, so a symlink placed inside the
// vault that points outside of it cannot be used to escape the root.
func (v *FilesystemVault) resolve(relPath string) (string, error) {
	if err := vaultmodel.ValidatePath(relPath); err != nil {
		return "", err
	}

	absPath := filepath.Join(v.dir, filepath.FromSlash(relPath))
	if !strings.HasPrefix(absPath, v.dir+string(os.PathSeparator)) && absPath != v.dir {
		return "", fmt.Errorf("path %q resolves outside the vault", relPath)
	}

	real, err := evalExistingPrefix(absPath)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", relPath, err)
	}
	if !strings.HasPrefix(real, v.dir+string(os.PathSeparator)) && real != v.dir {
		return "", fmt.Errorf("path %q escapes the vault via a symlink", relPath)
	}

	return absPath, nil
}

// evalExistingPrefix resolves symlinks for the longest existing prefix of
// abs, so it also works for paths whose final component does not exist
// yet (a write target being created for the first time).
func evalExistingPrefix(abs string) (string, error) {
	real, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return real, nil
	}
	dir := filepath.Dir(abs)
	if dir == abs {
		return abs, nil
	}
	parentReal, err := evalExistingPrefix(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(parentReal, filepath.Base(abs)), nil
}

func hashFile(absPath string) (string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
