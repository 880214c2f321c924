// Package engine implements the Sync Engine: the cycle orchestrator that
// drives one pass of local scan, remote fetch, three-manifest diff,
// conflict resolution, transfer execution, and conditional commit.
// Grounded on the reference architecture's sync3.SyncEngine (the
// muSync.TryLock at-most-one-in-progress guard, the runFullSync
// entrypoint, slog.Info timing summary at the end of a cycle), adapted
// from its journal-replay reconciliation to this system's three-manifest
// diff plus conditional-commit design.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vaultsync/vaultsync/internal/client/config"
	"github.com/vaultsync/vaultsync/internal/client/sdk"
	"github.com/vaultsync/vaultsync/internal/ignore"
	"github.com/vaultsync/vaultsync/internal/vaultmodel"
	"github.com/vaultsync/vaultsync/internal/xferqueue"
)

// maxManifestRetries bounds the number of times a cycle restarts after
// losing the conditional-write race on PUT /manifest.
const maxManifestRetries = 3

// ErrSyncAlreadyRunning is returned when Sync is called while a cycle is
// already in flight; the caller dropped it rather than queuing it.
var ErrSyncAlreadyRunning = errors.New("sync already running")

// Vault is the local filesystem surface the engine needs. vaultadapter.
// FilesystemVault implements it; tests supply a fake.
type Vault interface {
	Scan(excl *ignore.List) (map[string]vaultmodel.FileEntry, error)
	ReadFile(relPath string) ([]byte, error)
	WriteFile(relPath string, content []byte, mtime time.Time) error
	DeleteFile(relPath string) error
}

// ManifestClient is the Manifest Service surface the engine needs.
// sdk.Client implements it.
type ManifestClient interface {
	GetManifest(ctx context.Context) (*vaultmodel.SyncManifest, string, error)
	PutManifest(ctx context.Context, manifest *vaultmodel.SyncManifest, ifMatch string) (string, error)
	UploadURL(ctx context.Context, path, hash string) (string, time.Time, error)
	DownloadURL(ctx context.Context, path string) (string, time.Time, error)
	DeleteFiles(ctx context.Context, paths []string) ([]string, error)
	UploadToPresignedURL(ctx context.Context, url string, content []byte) error
	DownloadFromPresignedURL(ctx context.Context, url string) ([]byte, error)
}

// StateStore is the device-local persistence surface the engine needs.
// state.Store implements it.
type StateStore interface {
	LoadBase(ctx context.Context) (*vaultmodel.SyncManifest, string, error)
	SaveBase(ctx context.Context, manifest *vaultmodel.SyncManifest, etag string) error
	PutMergeBase(ctx context.Context, path, hash string, content []byte) error
	GetMergeBase(ctx context.Context, path, expectedHash string) ([]byte, bool, error)
}

// TransferQueue is the bounded-concurrency executor the engine submits
// uploads and downloads to. xferqueue.Queue implements it.
type TransferQueue interface {
	Enqueue(task xferqueue.Task) *xferqueue.Future
}

// Resolver asks an operator how to resolve one conflict, given the
// conflict's metadata plus the local and remote text content (so the
// prompt can show a diff summary rather than asking blind). prompt.Resolver
// implements this; engine depends on the interface, not the package, so
// tests can supply a scripted resolver.
type Resolver interface {
	Resolve(conflict vaultmodel.ConflictEntry, localText, remoteText string) (Resolution, error)
}

// ResolverFunc adapts a function (e.g. a wrapped prompt.Resolver) to the
// Resolver interface.
type ResolverFunc func(conflict vaultmodel.ConflictEntry, localText, remoteText string) (Resolution, error)

func (f ResolverFunc) Resolve(conflict vaultmodel.ConflictEntry, localText, remoteText string) (Resolution, error) {
	return f(conflict, localText, remoteText)
}

// Resolution mirrors prompt.Resolution without importing the prompt
// package, avoiding a dependency from engine on a terminal UI.
type Resolution string

const (
	ResolveKeepLocal  Resolution = "keep-local"
	ResolveKeepRemote Resolution = "keep-remote"
	ResolveMerge      Resolution = "merge"
)

// Engine runs sync cycles for one device against one vault.
type Engine struct {
	vault    Vault
	client   ManifestClient
	state    StateStore
	queue    TransferQueue
	excludes *ignore.List
	strategy config.ConflictStrategy
	deviceID string
	resolver Resolver

	syncing atomic.Bool
}

// New builds an Engine. resolver is only consulted under the "ask"
// conflict strategy and may be nil otherwise.
func New(cfg *config.Config, vault Vault, client ManifestClient, store StateStore, queue TransferQueue, resolver Resolver) *Engine {
	return &Engine{
		vault:    vault,
		client:   client,
		state:    store,
		queue:    queue,
		excludes: ignore.NewList(cfg.ExcludePatterns),
		strategy: cfg.ConflictStrategy,
		deviceID: cfg.DeviceID,
		resolver: resolver,
	}
}

// Sync runs one sync cycle. forceFullSync discards the locally cached
// base manifest, forcing every path to be reclassified as though this
// were the device's first sync. Overlapping calls are dropped, not
// queued: ErrSyncAlreadyRunning is returned immediately.
func (e *Engine) Sync(ctx context.Context, forceFullSync bool) error {
	if !e.syncing.CompareAndSwap(false, true) {
		return ErrSyncAlreadyRunning
	}
	defer e.syncing.Store(false)

	tstart := time.Now()

	for attempt := 1; attempt <= maxManifestRetries; attempt++ {
		stats, err := e.cycle(ctx, forceFullSync)
		if err == nil {
			slog.Info("sync cycle complete",
				"took", time.Since(tstart),
				"attempt", attempt,
				"uploaded", stats.uploaded,
				"downloaded", stats.downloaded,
				"conflicts", stats.conflicts,
				"deletedRemote", stats.deletedRemote,
				"deletedLocal", stats.deletedLocal,
			)
			return nil
		}

		if errors.Is(err, sdk.ErrPreconditionFailed) {
			slog.Warn("manifest commit lost the conditional-write race, retrying", "attempt", attempt)
			forceFullSync = false
			continue
		}

		return fmt.Errorf("sync cycle: %w", err)
	}

	return fmt.Errorf("sync: exhausted %d manifest commit retries", maxManifestRetries)
}

type cycleStats struct {
	uploaded      int
	downloaded    int
	conflicts     int
	deletedRemote int
	deletedLocal  int
}

// cycle runs steps 1-10 of the sync cycle once. A 412 from the
// conditional commit surfaces as sdk.ErrPreconditionFailed so Sync can
// decide whether to restart.
func (e *Engine) cycle(ctx context.Context, forceFullSync bool) (cycleStats, error) {
	var stats cycleStats

	// Step 1: build the local manifest.
	localFiles, err := e.vault.Scan(e.excludes)
	if err != nil {
		return stats, fmt.Errorf("scan vault: %w", err)
	}
	for path, entry := range localFiles {
		entry.LastModifiedBy = e.deviceID
		localFiles[path] = entry
	}
	local := &vaultmodel.SyncManifest{Files: localFiles}

	// Step 2: fetch the remote manifest and its ETag.
	remote, etag, err := e.client.GetManifest(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetch remote manifest: %w", err)
	}

	// Step 3: select the base manifest.
	var base *vaultmodel.SyncManifest
	if !forceFullSync {
		base, _, err = e.state.LoadBase(ctx)
		if err != nil {
			return stats, fmt.Errorf("load base manifest: %w", err)
		}
	}

	// Step 4: diff.
	diff := vaultmodel.DiffManifests(local, remote, base)
	stats.conflicts = len(diff.Conflicts)

	// Step 5: resolve conflicts.
	resolution, err := e.resolveConflicts(ctx, diff.Conflicts)
	if err != nil {
		return stats, fmt.Errorf("resolve conflicts: %w", err)
	}

	toUpload := append(append([]vaultmodel.FileEntry{}, diff.ToUpload...), resolution.toUpload...)
	toDownload := append(append([]vaultmodel.FileEntry{}, diff.ToDownload...), resolution.toDownload...)
	toDeleteRemote := append(append([]string{}, diff.ToDeleteRemote...), resolution.toDeleteRemote...)
	toDeleteLocal := append(append([]string{}, diff.ToDeleteLocal...), resolution.toDeleteLocal...)

	// Step 6: execute transfers, awaiting all of them.
	uploaded, downloaded, err := e.executeTransfers(ctx, toUpload, toDownload)
	stats.uploaded = len(uploaded)
	stats.downloaded = len(downloaded)
	if err != nil {
		return stats, fmt.Errorf("execute transfers: %w", err)
	}

	// Step 7: apply deletions, remote first.
	if len(toDeleteRemote) > 0 {
		deleted, err := e.client.DeleteFiles(ctx, toDeleteRemote)
		if err != nil {
			return stats, fmt.Errorf("delete remote files: %w", err)
		}
		stats.deletedRemote = len(deleted)
	}
	for _, path := range toDeleteLocal {
		if err := e.vault.DeleteFile(path); err != nil {
			slog.Warn("local delete failed, will retry next cycle", "path", path, "error", err)
			continue
		}
		stats.deletedLocal++
	}

	// Step 8: build the next manifest.
	next := vaultmodel.ApplyDiffToManifest(remote, uploaded, downloaded, resolution.resolved, toDeleteRemote, toDeleteLocal)

	// Step 9: commit.
	newEtag, err := e.client.PutManifest(ctx, next, etag)
	if err != nil {
		return stats, err
	}

	// Step 10: persist.
	if err := e.state.SaveBase(ctx, next, newEtag); err != nil {
		return stats, fmt.Errorf("persist base manifest: %w", err)
	}

	e.cacheMergeBases(ctx, next)

	return stats, nil
}

// cacheMergeBases best-effort refreshes the merge-base content cache for
// every markdown file in the newly committed manifest, so a future
// three-way merge on that path has a base to diff against. Failures are
// non-fatal: an evicted or missing entry just degrades the next merge to
// a two-way merge.
func (e *Engine) cacheMergeBases(ctx context.Context, manifest *vaultmodel.SyncManifest) {
	for path, entry := range manifest.Files {
		if !isMergeable(path) {
			continue
		}
		content, err := e.vault.ReadFile(path)
		if err != nil {
			continue
		}
		_ = e.state.PutMergeBase(ctx, path, entry.Hash, content)
	}
}
