package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/vaultsync/vaultsync/internal/client/config"
	"github.com/vaultsync/vaultsync/internal/merge"
	"github.com/vaultsync/vaultsync/internal/vaultmodel"
)

// resolvedConflicts is the combined effect of resolving every conflict in
// a cycle: additional transfers to fold into the regular diff transfer
// lists, additional deletions, and the resolved FileEntry (or nil, for a
// deletion) each conflicted path settles on.
type resolvedConflicts struct {
	toUpload       []vaultmodel.FileEntry
	toDownload     []vaultmodel.FileEntry
	toDeleteRemote []string
	toDeleteLocal  []string
	resolved       map[string]*vaultmodel.FileEntry
}

func isMergeable(path string) bool {
	return strings.HasSuffix(path, ".md")
}

// resolveConflicts applies the engine's conflict strategy to every
// conflict from the diff, per §4.1.2.
func (e *Engine) resolveConflicts(ctx context.Context, conflicts []vaultmodel.ConflictEntry) (resolvedConflicts, error) {
	out := resolvedConflicts{resolved: make(map[string]*vaultmodel.FileEntry, len(conflicts))}

	for _, conflict := range conflicts {
		strategy := e.strategy
		if strategy == config.StrategyThreeWayMerge && !isMergeable(conflict.Path) {
			strategy = config.StrategyKeepRemote
		}

		if strategy == config.StrategyAsk {
			resolution, err := e.askResolver(ctx, conflict)
			if err != nil {
				return out, err
			}
			switch resolution {
			case ResolveKeepLocal:
				strategy = config.StrategyKeepLocal
			case ResolveMerge:
				if !isMergeable(conflict.Path) {
					strategy = config.StrategyKeepRemote
				} else {
					strategy = config.StrategyThreeWayMerge
				}
			default:
				strategy = config.StrategyKeepRemote
			}
		}

		switch strategy {
		case config.StrategyKeepLocal:
			applyKeepLocal(conflict, &out)
		case config.StrategyKeepRemote:
			applyKeepRemote(conflict, &out)
		case config.StrategyThreeWayMerge:
			if err := e.applyThreeWayMerge(ctx, conflict, &out); err != nil {
				return out, fmt.Errorf("merge %q: %w", conflict.Path, err)
			}
		default:
			applyKeepRemote(conflict, &out)
		}
	}

	return out, nil
}

// askResolver defaults a missing resolver (strategy misconfigured without
// a terminal attached, e.g. a daemon process) to keep-local, matching the
// spec's dismissed-prompt default. Before prompting, it reads the local
// and remote text so the prompt can show a diff summary instead of
// asking the operator to choose blind.
func (e *Engine) askResolver(ctx context.Context, conflict vaultmodel.ConflictEntry) (Resolution, error) {
	if e.resolver == nil {
		return ResolveKeepLocal, nil
	}
	localText, remoteText := e.conflictTexts(ctx, conflict)
	return e.resolver.Resolve(conflict, localText, remoteText)
}

// conflictTexts best-effort fetches the local and remote text for a
// conflict. A deleted side, or a read/fetch failure, degrades to an empty
// string rather than aborting the cycle: a diff summary is a convenience
// for the prompt, not worth failing a sync over.
func (e *Engine) conflictTexts(ctx context.Context, conflict vaultmodel.ConflictEntry) (localText, remoteText string) {
	if !conflict.LocalDeleted {
		if content, err := e.vault.ReadFile(conflict.Path); err == nil {
			localText = string(content)
		}
	}
	if !conflict.RemoteDeleted {
		if content, err := e.fetchRemoteContent(ctx, conflict.Path); err == nil {
			remoteText = string(content)
		}
	}
	return localText, remoteText
}

// applyKeepLocal treats the local side of the conflict as authoritative:
// upload it if it exists, or delete it remotely if local's side of the
// conflict is itself a deletion. conflict.Local may be a base-synthesized
// entry (see ConflictEntry), so deletion is detected via LocalDeleted
// rather than nil-ness.
func applyKeepLocal(conflict vaultmodel.ConflictEntry, out *resolvedConflicts) {
	if conflict.LocalDeleted {
		out.toDeleteRemote = append(out.toDeleteRemote, conflict.Path)
		out.resolved[conflict.Path] = nil
		return
	}
	out.toUpload = append(out.toUpload, *conflict.Local)
	out.resolved[conflict.Path] = conflict.Local
}

// applyKeepRemote treats the remote side of the conflict as authoritative.
func applyKeepRemote(conflict vaultmodel.ConflictEntry, out *resolvedConflicts) {
	if conflict.RemoteDeleted {
		out.toDeleteLocal = append(out.toDeleteLocal, conflict.Path)
		out.resolved[conflict.Path] = nil
		return
	}
	out.toDownload = append(out.toDownload, *conflict.Remote)
	out.resolved[conflict.Path] = conflict.Remote
}

// applyThreeWayMerge merges remote changes (relative to the cached base)
// onto the current local text, writes the merged content locally, and
// queues it for upload. Only reachable for conflicts where both sides
// are present (resolveConflicts routes delete-side conflicts to
// keep-remote before reaching here).
func (e *Engine) applyThreeWayMerge(ctx context.Context, conflict vaultmodel.ConflictEntry, out *resolvedConflicts) error {
	if conflict.LocalDeleted || conflict.RemoteDeleted {
		applyKeepRemote(conflict, out)
		return nil
	}

	localContent, err := e.vault.ReadFile(conflict.Path)
	if err != nil {
		return fmt.Errorf("read local content: %w", err)
	}

	remoteContent, err := e.fetchRemoteContent(ctx, conflict.Path)
	if err != nil {
		return fmt.Errorf("fetch remote content: %w", err)
	}

	baseContent := ""
	if conflict.BaseHash != "" {
		if cached, ok, err := e.state.GetMergeBase(ctx, conflict.Path, conflict.BaseHash); err == nil && ok {
			baseContent = string(cached)
		}
	}

	result := merge.ThreeWay(baseContent, string(localContent), string(remoteContent))

	mtime := time.Now()
	if err := e.vault.WriteFile(conflict.Path, []byte(result.Merged), mtime); err != nil {
		return fmt.Errorf("write merged content: %w", err)
	}

	hash := sha256.Sum256([]byte(result.Merged))
	entry := vaultmodel.FileEntry{
		Path:           conflict.Path,
		Hash:           hex.EncodeToString(hash[:]),
		MTime:          mtime.UnixMilli(),
		Size:           int64(len(result.Merged)),
		LastModifiedBy: e.deviceID,
	}

	out.toUpload = append(out.toUpload, entry)
	out.resolved[conflict.Path] = &entry
	return nil
}

// fetchRemoteContent downloads a path's current remote bytes via a fresh
// presigned URL, independent of the transfer queue: a merge needs the
// content before transfers are enqueued, not after.
func (e *Engine) fetchRemoteContent(ctx context.Context, path string) ([]byte, error) {
	url, _, err := e.client.DownloadURL(ctx, path)
	if err != nil {
		return nil, err
	}
	return e.client.DownloadFromPresignedURL(ctx, url)
}
