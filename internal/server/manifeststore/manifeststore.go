// Package manifeststore implements the Manifest Service's conditional
// read/write of the canonical manifest object. The backing S3-compatible
// store has no native If-Match support on PutObject, so the compare-and-
// swap the protocol requires is implemented here at the application
// layer: read the current ETag, compare it against the caller's
// If-Match, and only then write. The narrow TOCTOU race between that
// compare and the write is closed with a process-local mutex, which is
// sufficient because the service is specified as a single logical
// process in front of the store — the store's own ETag on the final Put
// response is still what the client persists as its new lastEtag, so a
// client can never observe a falsely-accepted stale commit even if two
// requests interleave inside the critical section.
package manifeststore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/vaultsync/vaultsync/internal/server/objectstore"
	"github.com/vaultsync/vaultsync/internal/vaultmodel"
)

// ErrPreconditionRequired corresponds to HTTP 428: a manifest exists but
// If-Match was not supplied.
var ErrPreconditionRequired = errors.New("manifest exists, If-Match header is required")

// ErrPreconditionFailed corresponds to HTTP 412: If-Match was supplied
// but did not match the manifest's current ETag.
var ErrPreconditionFailed = errors.New("If-Match does not match the current manifest ETag")

// Store mediates all reads and conditional writes of the canonical
// manifest object.
type Store struct {
	objects *objectstore.Store
	mu      sync.Mutex
}

// New builds a manifest Store over the given object store.
func New(objects *objectstore.Store) *Store {
	return &Store{objects: objects}
}

// Get returns the current manifest and its ETag. If no manifest has
// ever been committed, returns an empty manifest and an empty ETag.
func (s *Store) Get(ctx context.Context) (*vaultmodel.SyncManifest, string, error) {
	obj, err := s.objects.Get(ctx, vaultmodel.ManifestKey)
	if errors.Is(err, objectstore.ErrNotExist) {
		return vaultmodel.NewManifest(), "", nil
	}
	if err != nil {
		return nil, "", err
	}

	manifest := vaultmodel.NewManifest()
	if err := json.Unmarshal(obj.Body, manifest); err != nil {
		return nil, "", err
	}

	return manifest, obj.ETag, nil
}

// Put conditionally commits a new manifest. ifMatch is the caller's
// If-Match header value (already stripped of quotes by the HTTP layer),
// or empty if the header was absent. Returns the new ETag on success.
func (s *Store) Put(ctx context.Context, manifest *vaultmodel.SyncManifest, ifMatch string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentETag, err := s.objects.HeadETag(ctx, vaultmodel.ManifestKey)
	exists := true
	if errors.Is(err, objectstore.ErrNotExist) {
		exists = false
		err = nil
	}
	if err != nil {
		return "", err
	}

	switch {
	case !exists && ifMatch != "":
		// The object doesn't exist yet; any If-Match a caller supplies
		// cannot possibly match, but the spec only mandates 428 for the
		// "exists and If-Match absent" case and 412 for "present but
		// wrong" - a client racing a concurrent first-write loses here
		// too, which is the same 412 a stale ETag produces once the
		// object exists.
		return "", ErrPreconditionFailed
	case exists && ifMatch == "":
		return "", ErrPreconditionRequired
	case exists && ifMatch != currentETag:
		return "", ErrPreconditionFailed
	}

	body, err := json.Marshal(manifest)
	if err != nil {
		return "", err
	}

	return s.objects.Put(ctx, vaultmodel.ManifestKey, body)
}
