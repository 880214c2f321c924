package vaultmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(path, hash string) FileEntry {
	return FileEntry{Path: path, Hash: hash, Size: int64(len(hash))}
}

func manifestOf(entries ...FileEntry) *SyncManifest {
	m := NewManifest()
	for _, e := range entries {
		m.Files[e.Path] = e
	}
	return m
}

func TestDiffManifests_FreshClientFreshServer(t *testing.T) {
	local := manifestOf(entry("a.md", hash('a')))
	remote := manifestOf()

	d := DiffManifests(local, remote, nil)

	require.Len(t, d.ToUpload, 1)
	assert.Equal(t, "a.md", d.ToUpload[0].Path)
	assert.Empty(t, d.ToDownload)
	assert.Empty(t, d.Conflicts)
}

func TestDiffManifests_NonConflictingEdits(t *testing.T) {
	h1 := hash('1')
	h2 := hash('2')
	h3 := hash('3')

	base := manifestOf(entry("a.md", h1), entry("b.md", h1))
	local := manifestOf(entry("a.md", h2), entry("b.md", h1))
	remote := manifestOf(entry("a.md", h1), entry("b.md", h3))

	d := DiffManifests(local, remote, base)

	require.Len(t, d.ToUpload, 1)
	assert.Equal(t, "a.md", d.ToUpload[0].Path)
	assert.Equal(t, h2, d.ToUpload[0].Hash)

	require.Len(t, d.ToDownload, 1)
	assert.Equal(t, "b.md", d.ToDownload[0].Path)
	assert.Equal(t, h3, d.ToDownload[0].Hash)

	assert.Empty(t, d.Conflicts)
}

func TestDiffManifests_RacingCommit_FinalStateMatchesServer(t *testing.T) {
	// Client Y re-diffs against the server's post-commit manifest (E1)
	// using its own stale base; after re-sync its plan must converge to
	// a no-op against that same manifest.
	h1 := hash('1')
	base := manifestOf(entry("a.md", h1))
	serverAfterX := manifestOf(entry("a.md", h1))

	d := DiffManifests(serverAfterX, serverAfterX, base)
	assert.Empty(t, d.ToUpload)
	assert.Empty(t, d.ToDownload)
	assert.Empty(t, d.Conflicts)
}

func TestDiffManifests_DeleteVsModifyConflict(t *testing.T) {
	h1 := hash('1')
	h2 := hash('2')

	base := manifestOf(entry("a.md", h1))
	local := manifestOf() // deleted locally
	remote := manifestOf(entry("a.md", h2))

	d := DiffManifests(local, remote, base)

	require.Len(t, d.Conflicts, 1)
	c := d.Conflicts[0]
	assert.Equal(t, "a.md", c.Path)
	require.NotNil(t, c.Remote)
	assert.Equal(t, h2, c.Remote.Hash)
	require.NotNil(t, c.Local)
	assert.Equal(t, h1, c.Local.Hash)
	assert.True(t, c.LocalDeleted)
	assert.False(t, c.RemoteDeleted)
}

func TestDiffManifests_NoBaseBothPresentDifferentHashes_IsConflict(t *testing.T) {
	local := manifestOf(entry("a.md", hash('1')))
	remote := manifestOf(entry("a.md", hash('2')))

	d := DiffManifests(local, remote, nil)

	require.Len(t, d.Conflicts, 1)
	assert.Empty(t, d.ToUpload)
	assert.Empty(t, d.ToDownload)
}

// P1: every path appears in at most one bucket.
func TestDiffManifests_P1_AtMostOneBucket(t *testing.T) {
	base := manifestOf(entry("a.md", hash('1')), entry("b.md", hash('1')), entry("c.md", hash('1')))
	local := manifestOf(entry("a.md", hash('2')), entry("c.md", hash('1')))
	remote := manifestOf(entry("b.md", hash('3')), entry("c.md", hash('1')), entry("d.md", hash('4')))

	d := DiffManifests(local, remote, base)

	seen := map[string]int{}
	for _, e := range d.ToUpload {
		seen[e.Path]++
	}
	for _, e := range d.ToDownload {
		seen[e.Path]++
	}
	for _, p := range d.ToDeleteRemote {
		seen[p]++
	}
	for _, p := range d.ToDeleteLocal {
		seen[p]++
	}
	for _, c := range d.Conflicts {
		seen[c.Path]++
	}

	for path, count := range seen {
		assert.LessOrEqualf(t, count, 1, "path %q appeared in %d buckets", path, count)
	}
}

// P2: identical local and remote file sets produce an empty diff for any base.
func TestDiffManifests_P2_IdenticalProducesEmptyDiff(t *testing.T) {
	shared := manifestOf(entry("a.md", hash('1')), entry("b.md", hash('2')))

	for _, base := range []*SyncManifest{nil, manifestOf(), manifestOf(entry("a.md", hash('9')))} {
		d := DiffManifests(shared, shared, base)
		assert.Empty(t, d.ToUpload)
		assert.Empty(t, d.ToDownload)
		assert.Empty(t, d.ToDeleteLocal)
		assert.Empty(t, d.ToDeleteRemote)
		assert.Empty(t, d.Conflicts)
	}
}

// P3: matching hashes never appear in upload/download/conflict buckets.
func TestDiffManifests_P3_MatchingHashNeverMoved(t *testing.T) {
	base := manifestOf(entry("a.md", hash('9')))
	local := manifestOf(entry("a.md", hash('1')))
	remote := manifestOf(entry("a.md", hash('1')))

	d := DiffManifests(local, remote, base)

	assert.Empty(t, d.ToUpload)
	assert.Empty(t, d.ToDownload)
	assert.Empty(t, d.Conflicts)
}

// P4: ApplyDiffToManifest must not mutate its input.
func TestApplyDiffToManifest_P4_DoesNotMutateInput(t *testing.T) {
	base := manifestOf(entry("a.md", hash('1')))
	snapshot := base.Clone()

	_ = ApplyDiffToManifest(base, []FileEntry{entry("b.md", hash('2'))}, nil, nil, nil, nil)

	assert.Equal(t, snapshot, base)
}

func hash(b byte) string {
	out := make([]byte, 64)
	for i := range out {
		out[i] = b
	}
	return string(out)
}
