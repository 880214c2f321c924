package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesBurstIntoOneTrigger(t *testing.T) {
	dir := t.TempDir()

	var triggerCount atomic.Int32
	w := New(dir, 100*time.Millisecond, func(ctx context.Context) {
		triggerCount.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("v"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)

	assert.Equal(t, int32(1), triggerCount.Load())
}
