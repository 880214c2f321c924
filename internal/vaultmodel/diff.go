package vaultmodel

// DiffManifests classifies every path in local ∪ remote ∪ base into
// exactly one bucket of the returned DiffResult, per the three-manifest
// diff algorithm: upload, download, delete-local, delete-remote, conflict,
// or no-op (omitted from the result entirely). base may be nil, which is
// treated identically to an empty manifest (forceFullSync, or no prior
// sync).
func DiffManifests(local, remote, base *SyncManifest) *DiffResult {
	localFiles := filesOf(local)
	remoteFiles := filesOf(remote)
	baseFiles := filesOf(base)

	paths := make(map[string]struct{})
	for p := range localFiles {
		paths[p] = struct{}{}
	}
	for p := range remoteFiles {
		paths[p] = struct{}{}
	}
	for p := range baseFiles {
		paths[p] = struct{}{}
	}

	result := &DiffResult{
		ToUpload:       []FileEntry{},
		ToDownload:     []FileEntry{},
		ToDeleteRemote: []string{},
		ToDeleteLocal:  []string{},
		Conflicts:      []ConflictEntry{},
	}

	for path := range paths {
		l, hasL := localFiles[path]
		r, hasR := remoteFiles[path]
		b, hasB := baseFiles[path]

		switch {
		case hasL && hasR:
			// Hashes equal short-circuits before any base check.
			if l.Hash == r.Hash {
				continue // no-op
			}

			if !hasB {
				result.Conflicts = append(result.Conflicts, conflictOf(path, &l, &r, ""))
				continue
			}

			localChanged := l.Hash != b.Hash
			remoteChanged := r.Hash != b.Hash

			switch {
			case localChanged && !remoteChanged:
				result.ToUpload = append(result.ToUpload, l)
			case !localChanged && remoteChanged:
				result.ToDownload = append(result.ToDownload, r)
			default:
				// Both changed, or neither changed yet hashes differ
				// (impossible under the invariants; classified
				// conservatively as conflict).
				result.Conflicts = append(result.Conflicts, conflictOf(path, &l, &r, b.Hash))
			}

		case hasL && !hasR:
			if !hasB {
				result.ToUpload = append(result.ToUpload, l)
				continue
			}
			if l.Hash != b.Hash {
				conflict := conflictOf(path, &l, &b, b.Hash)
				conflict.RemoteDeleted = true
				result.Conflicts = append(result.Conflicts, conflict)
			} else {
				result.ToDeleteLocal = append(result.ToDeleteLocal, path)
			}

		case !hasL && hasR:
			if !hasB {
				result.ToDownload = append(result.ToDownload, r)
				continue
			}
			if r.Hash != b.Hash {
				conflict := conflictOf(path, &b, &r, b.Hash)
				conflict.LocalDeleted = true
				result.Conflicts = append(result.Conflicts, conflict)
			} else {
				result.ToDeleteRemote = append(result.ToDeleteRemote, path)
			}

		default:
			// Neither local nor remote has it; already deleted on both
			// sides relative to base. No-op regardless of hasB.
		}
	}

	return result
}

func conflictOf(path string, local, remote *FileEntry, baseHash string) ConflictEntry {
	return ConflictEntry{Path: path, Local: local, Remote: remote, BaseHash: baseHash}
}

func filesOf(m *SyncManifest) map[string]FileEntry {
	if m == nil {
		return map[string]FileEntry{}
	}
	return m.Files
}
