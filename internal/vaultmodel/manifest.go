// Package vaultmodel defines the manifest data model shared by the sync
// engine and the manifest service, and the pure three-manifest diff
// algorithm that drives reconciliation.
package vaultmodel

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ReservedPrefix is the storage-layout prefix no file route may address.
const ReservedPrefix = ".vaultsync/"

// ManifestKey is the reserved object-store key for the canonical manifest.
const ManifestKey = ReservedPrefix + "manifest.json"

// FilesPrefix is the object-store key prefix under which tracked files live.
const FilesPrefix = "vault/"

var hexHash = regexp.MustCompile(`^[0-9a-f]{64}$`)

// FileEntry is one tracked file at a point in time.
type FileEntry struct {
	Path           string `json:"path"`
	Hash           string `json:"hash"`
	MTime          int64  `json:"mtime"`
	Size           int64  `json:"size"`
	LastModifiedBy string `json:"lastModifiedBy"`
}

// SyncManifest is the canonical set of tracked files.
type SyncManifest struct {
	Files         map[string]FileEntry `json:"files"`
	LastUpdated   string               `json:"lastUpdated"`
	LastUpdatedBy string               `json:"lastUpdatedBy"`
}

// NewManifest returns an empty manifest ready for population.
func NewManifest() *SyncManifest {
	return &SyncManifest{Files: make(map[string]FileEntry)}
}

// ValidatePath rejects paths that violate the path constraints shared by
// the manifest and the file routes: empty, a leading slash or backslash,
// any ".." segment, or the reserved internal prefix.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "\\") {
		return fmt.Errorf("path %q must not start with a slash", path)
	}
	for _, seg := range strings.Split(strings.ReplaceAll(path, "\\", "/"), "/") {
		if seg == ".." {
			return fmt.Errorf("path %q contains a traversal segment", path)
		}
	}
	if matched, _ := doublestar.Match(ReservedPrefix+"**", path); matched || path == strings.TrimSuffix(ReservedPrefix, "/") {
		return fmt.Errorf("path %q addresses the internal reserved prefix", path)
	}
	return nil
}

// Validate checks manifest invariants I1-I3: every entry's path equals its
// key, every hash is exactly 64 lowercase hex chars, and no path violates
// the path constraints.
func (m *SyncManifest) Validate() error {
	for key, entry := range m.Files {
		if entry.Path != key {
			return fmt.Errorf("entry key %q does not match entry path %q", key, entry.Path)
		}
		if !hexHash.MatchString(entry.Hash) {
			return fmt.Errorf("entry %q has malformed hash %q", key, entry.Hash)
		}
		if err := ValidatePath(entry.Path); err != nil {
			return fmt.Errorf("entry %q: %w", key, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the manifest. Used anywhere a manifest must
// not be mutated in place (see applyDiffToManifest, P4).
func (m *SyncManifest) Clone() *SyncManifest {
	out := &SyncManifest{
		Files:         make(map[string]FileEntry, len(m.Files)),
		LastUpdated:   m.LastUpdated,
		LastUpdatedBy: m.LastUpdatedBy,
	}
	for k, v := range m.Files {
		out.Files[k] = v
	}
	return out
}

// ConflictEntry describes a path modified on both sides since base. When
// one side of a delete-vs-modify conflict is missing, that side is
// synthesized from the base entry (so Local/Remote are never both nil)
// and the corresponding *Deleted flag records which side that actually
// was, since a synthesized entry must not be treated as live content.
type ConflictEntry struct {
	Path          string     `json:"path"`
	Local         *FileEntry `json:"local,omitempty"`
	Remote        *FileEntry `json:"remote,omitempty"`
	BaseHash      string     `json:"baseHash,omitempty"`
	LocalDeleted  bool       `json:"localDeleted,omitempty"`
	RemoteDeleted bool       `json:"remoteDeleted,omitempty"`
}

// DiffResult is the reconciliation plan produced by DiffManifests.
type DiffResult struct {
	ToUpload       []FileEntry     `json:"toUpload"`
	ToDownload     []FileEntry     `json:"toDownload"`
	ToDeleteRemote []string        `json:"toDeleteRemote"`
	ToDeleteLocal  []string        `json:"toDeleteLocal"`
	Conflicts      []ConflictEntry `json:"conflicts"`
}
