package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultsync/vaultsync/internal/client/config"
	"github.com/vaultsync/vaultsync/internal/vaultmodel"
	"github.com/vaultsync/vaultsync/internal/xferqueue"
)

func newTestEngine(t *testing.T, vault *fakeVault, svc *fakeManifestService, st *fakeState, strategy config.ConflictStrategy, resolver Resolver) *Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	queue := xferqueue.New(ctx)
	t.Cleanup(queue.Close)

	cfg := &config.Config{DeviceID: "device-1", ConflictStrategy: strategy}
	return New(cfg, vault, svc, st, queue, resolver)
}

func TestEngine_Sync_UploadsNewLocalFile(t *testing.T) {
	vault := newFakeVault()
	vault.set("notes/a.md", []byte("hello"), time.Now().UnixMilli())
	svc := newFakeManifestService()
	st := newFakeState()

	e := newTestEngine(t, vault, svc, st, config.StrategyKeepLocal, nil)

	require.NoError(t, e.Sync(context.Background(), false))

	assert.Contains(t, svc.manifest.Files, "notes/a.md")
	assert.Equal(t, []byte("hello"), svc.objects["notes/a.md"])
	assert.NotEmpty(t, st.etag)
}

func TestEngine_Sync_DownloadsNewRemoteFile(t *testing.T) {
	vault := newFakeVault()
	svc := newFakeManifestService()
	svc.objects["notes/b.md"] = []byte("remote content")
	svc.manifest.Files["notes/b.md"] = vaultmodel.FileEntry{Path: "notes/b.md", Hash: sha256hex("remote content"), MTime: 1, Size: int64(len("remote content"))}
	svc.etag = 1
	st := newFakeState()

	e := newTestEngine(t, vault, svc, st, config.StrategyKeepLocal, nil)

	require.NoError(t, e.Sync(context.Background(), false))

	content, err := vault.ReadFile("notes/b.md")
	require.NoError(t, err)
	assert.Equal(t, "remote content", string(content))
}

func TestEngine_Sync_ConflictKeepLocal(t *testing.T) {
	vault := newFakeVault()
	vault.set("notes/c.md", []byte("local version"), time.Now().UnixMilli())

	svc := newFakeManifestService()
	svc.objects["notes/c.md"] = []byte("remote version")
	svc.manifest.Files["notes/c.md"] = vaultmodel.FileEntry{Path: "notes/c.md", Hash: sha256hex("remote version"), MTime: 1, Size: int64(len("remote version"))}
	svc.etag = 1

	st := newFakeState()
	// base has a third, older hash so both sides look changed relative to it.
	st.base.Files["notes/c.md"] = vaultmodel.FileEntry{Path: "notes/c.md", Hash: sha256hex("base version"), MTime: 0, Size: 1}
	st.etag = "etag-1"

	e := newTestEngine(t, vault, svc, st, config.StrategyKeepLocal, nil)

	require.NoError(t, e.Sync(context.Background(), false))

	assert.Equal(t, []byte("local version"), svc.objects["notes/c.md"])
	content, err := vault.ReadFile("notes/c.md")
	require.NoError(t, err)
	assert.Equal(t, "local version", string(content))
}

func TestEngine_Sync_AlreadyRunningIsDropped(t *testing.T) {
	vault := newFakeVault()
	svc := newFakeManifestService()
	st := newFakeState()
	e := newTestEngine(t, vault, svc, st, config.StrategyKeepLocal, nil)

	e.syncing.Store(true)
	defer e.syncing.Store(false)

	err := e.Sync(context.Background(), false)
	assert.ErrorIs(t, err, ErrSyncAlreadyRunning)
}

func TestEngine_Sync_AskResolverDrivesResolution(t *testing.T) {
	vault := newFakeVault()
	vault.set("notes/d.md", []byte("local"), time.Now().UnixMilli())

	svc := newFakeManifestService()
	svc.objects["notes/d.md"] = []byte("remote")
	svc.manifest.Files["notes/d.md"] = vaultmodel.FileEntry{Path: "notes/d.md", Hash: sha256hex("remote"), MTime: 1, Size: int64(len("remote"))}
	svc.etag = 1

	st := newFakeState()
	st.base.Files["notes/d.md"] = vaultmodel.FileEntry{Path: "notes/d.md", Hash: sha256hex("base"), MTime: 0, Size: 1}
	st.etag = "etag-1"

	resolver := ResolverFunc(func(conflict vaultmodel.ConflictEntry, localText, remoteText string) (Resolution, error) {
		assert.Equal(t, "notes/d.md", conflict.Path)
		assert.Equal(t, "local", localText)
		assert.Equal(t, "remote", remoteText)
		return ResolveKeepRemote, nil
	})

	e := newTestEngine(t, vault, svc, st, config.StrategyAsk, resolver)

	require.NoError(t, e.Sync(context.Background(), false))

	content, err := vault.ReadFile("notes/d.md")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(content))
}
