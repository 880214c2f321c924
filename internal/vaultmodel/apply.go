package vaultmodel

// ApplyDiffToManifest builds the next manifest from a base (typically the
// remote manifest fetched in step 2 of the cycle) overlaid with the
// outcomes of a completed diff/resolve pass: uploaded and downloaded
// entries are added or updated, resolved-conflict entries are added or
// removed depending on their outcome, and deleted paths are removed.
// It never mutates base (P4); it returns a new manifest.
func ApplyDiffToManifest(base *SyncManifest, uploaded, downloaded []FileEntry, resolved map[string]*FileEntry, deletedRemote, deletedLocal []string) *SyncManifest {
	next := base.Clone()
	if next.Files == nil {
		next.Files = make(map[string]FileEntry)
	}

	for _, e := range uploaded {
		next.Files[e.Path] = e
	}
	for _, e := range downloaded {
		next.Files[e.Path] = e
	}
	for path, e := range resolved {
		if e == nil {
			delete(next.Files, path)
			continue
		}
		next.Files[path] = *e
	}
	for _, path := range deletedRemote {
		delete(next.Files, path)
	}
	for _, path := range deletedLocal {
		delete(next.Files, path)
	}

	return next
}
