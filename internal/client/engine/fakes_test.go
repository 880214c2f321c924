package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/vaultsync/vaultsync/internal/client/sdk"
	"github.com/vaultsync/vaultsync/internal/ignore"
	"github.com/vaultsync/vaultsync/internal/vaultmodel"
)

func sha256hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// fakeVault is an in-memory Vault used by engine tests.
type fakeVault struct {
	files map[string][]byte
	mtime map[string]int64
}

func newFakeVault() *fakeVault {
	return &fakeVault{files: make(map[string][]byte), mtime: make(map[string]int64)}
}

func (v *fakeVault) set(path string, content []byte, mtime int64) {
	v.files[path] = content
	v.mtime[path] = mtime
}

func (v *fakeVault) Scan(excl *ignore.List) (map[string]vaultmodel.FileEntry, error) {
	out := make(map[string]vaultmodel.FileEntry, len(v.files))
	for path, content := range v.files {
		if excl != nil && excl.Match(path) {
			continue
		}
		hash := sha256.Sum256(content)
		out[path] = vaultmodel.FileEntry{
			Path:  path,
			Hash:  hex.EncodeToString(hash[:]),
			MTime: v.mtime[path],
			Size:  int64(len(content)),
		}
	}
	return out, nil
}

func (v *fakeVault) ReadFile(relPath string) ([]byte, error) {
	content, ok := v.files[relPath]
	if !ok {
		return nil, fmt.Errorf("not found: %s", relPath)
	}
	return content, nil
}

func (v *fakeVault) WriteFile(relPath string, content []byte, mtime time.Time) error {
	v.files[relPath] = content
	v.mtime[relPath] = mtime.UnixMilli()
	return nil
}

func (v *fakeVault) DeleteFile(relPath string) error {
	delete(v.files, relPath)
	delete(v.mtime, relPath)
	return nil
}

// fakeManifestService plays the role of both the Manifest Service and
// the object store behind the presigned URLs, in memory.
type fakeManifestService struct {
	manifest *vaultmodel.SyncManifest
	etag     int
	objects  map[string][]byte
}

func newFakeManifestService() *fakeManifestService {
	return &fakeManifestService{manifest: vaultmodel.NewManifest(), objects: make(map[string][]byte)}
}

func (s *fakeManifestService) currentETag() string {
	if s.etag == 0 {
		return ""
	}
	return fmt.Sprintf("etag-%d", s.etag)
}

func (s *fakeManifestService) GetManifest(ctx context.Context) (*vaultmodel.SyncManifest, string, error) {
	return s.manifest.Clone(), s.currentETag(), nil
}

func (s *fakeManifestService) PutManifest(ctx context.Context, manifest *vaultmodel.SyncManifest, ifMatch string) (string, error) {
	current := s.currentETag()
	if current == "" && ifMatch != "" {
		return "", sdk.ErrPreconditionFailed
	}
	if current != "" && ifMatch != current {
		return "", sdk.ErrPreconditionFailed
	}
	s.manifest = manifest.Clone()
	s.etag++
	return s.currentETag(), nil
}

func (s *fakeManifestService) UploadURL(ctx context.Context, path, hash string) (string, time.Time, error) {
	return "upload:" + path, time.Now().Add(15 * time.Minute), nil
}

func (s *fakeManifestService) DownloadURL(ctx context.Context, path string) (string, time.Time, error) {
	return "download:" + path, time.Now().Add(15 * time.Minute), nil
}

func (s *fakeManifestService) DeleteFiles(ctx context.Context, paths []string) ([]string, error) {
	for _, p := range paths {
		delete(s.objects, p)
	}
	return paths, nil
}

func (s *fakeManifestService) UploadToPresignedURL(ctx context.Context, url string, content []byte) error {
	path := strings.TrimPrefix(url, "upload:")
	s.objects[path] = content
	return nil
}

func (s *fakeManifestService) DownloadFromPresignedURL(ctx context.Context, url string) ([]byte, error) {
	path := strings.TrimPrefix(url, "download:")
	content, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", path)
	}
	return content, nil
}

// fakeState is an in-memory StateStore.
type fakeState struct {
	base  *vaultmodel.SyncManifest
	etag  string
	cache map[string][]byte
	hash  map[string]string
}

func newFakeState() *fakeState {
	return &fakeState{base: vaultmodel.NewManifest(), cache: make(map[string][]byte), hash: make(map[string]string)}
}

func (s *fakeState) LoadBase(ctx context.Context) (*vaultmodel.SyncManifest, string, error) {
	return s.base.Clone(), s.etag, nil
}

func (s *fakeState) SaveBase(ctx context.Context, manifest *vaultmodel.SyncManifest, etag string) error {
	s.base = manifest.Clone()
	s.etag = etag
	return nil
}

func (s *fakeState) PutMergeBase(ctx context.Context, path, hash string, content []byte) error {
	s.cache[path] = content
	s.hash[path] = hash
	return nil
}

func (s *fakeState) GetMergeBase(ctx context.Context, path, expectedHash string) ([]byte, bool, error) {
	if s.hash[path] != expectedHash {
		return nil, false, nil
	}
	return s.cache[path], true, nil
}
