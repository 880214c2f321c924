package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vaultsync/vaultsync/internal/vaultmodel"
)

// executeTransfers enqueues every upload and download to the Transfer
// Queue and awaits all of them before returning, per step 6: order
// within the cycle is not guaranteed, but every transfer completes (or
// the cycle fails) before deletions and commit.
func (e *Engine) executeTransfers(ctx context.Context, toUpload, toDownload []vaultmodel.FileEntry) (uploaded, downloaded []vaultmodel.FileEntry, err error) {
	type future struct {
		entry vaultmodel.FileEntry
		wait  func() (any, error)
	}

	futures := make([]future, 0, len(toUpload)+len(toDownload))

	for _, entry := range toUpload {
		entry := entry
		f := e.queue.Enqueue(func(ctx context.Context) (any, error) {
			return nil, e.uploadOne(ctx, entry)
		})
		futures = append(futures, future{entry: entry, wait: f.Wait})
	}

	uploadCount := len(toUpload)

	for _, entry := range toDownload {
		entry := entry
		f := e.queue.Enqueue(func(ctx context.Context) (any, error) {
			return nil, e.downloadOne(ctx, entry)
		})
		futures = append(futures, future{entry: entry, wait: f.Wait})
	}

	for i, f := range futures {
		if _, err := f.wait(); err != nil {
			return nil, nil, fmt.Errorf("transfer %q: %w", f.entry.Path, err)
		}
		if i < uploadCount {
			uploaded = append(uploaded, f.entry)
		} else {
			downloaded = append(downloaded, f.entry)
		}
	}

	return uploaded, downloaded, nil
}

// uploadOne requests a presigned PUT URL and writes the path's current
// local content to it.
func (e *Engine) uploadOne(ctx context.Context, entry vaultmodel.FileEntry) error {
	content, err := e.vault.ReadFile(entry.Path)
	if err != nil {
		return fmt.Errorf("read local file: %w", err)
	}

	url, _, err := e.client.UploadURL(ctx, entry.Path, entry.Hash)
	if err != nil {
		return fmt.Errorf("request upload url: %w", err)
	}

	if err := e.client.UploadToPresignedURL(ctx, url, content); err != nil {
		return fmt.Errorf("upload content: %w", err)
	}

	return nil
}

// downloadOne requests a presigned GET URL and writes the fetched
// content locally, stamping the entry's recorded mtime.
func (e *Engine) downloadOne(ctx context.Context, entry vaultmodel.FileEntry) error {
	url, _, err := e.client.DownloadURL(ctx, entry.Path)
	if err != nil {
		return fmt.Errorf("request download url: %w", err)
	}

	content, err := e.client.DownloadFromPresignedURL(ctx, url)
	if err != nil {
		return fmt.Errorf("download content: %w", err)
	}

	mtime := time.UnixMilli(entry.MTime)
	if err := e.vault.WriteFile(entry.Path, content, mtime); err != nil {
		return fmt.Errorf("write local file: %w", err)
	}

	return nil
}
