package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/shadowsync/shadow/workspace"
)

func TestManager_Resolve_idempotent(t *testing.T) {
	t.Parallel()

	mgr := workspace.NewManager(t.TempDir())

	first, err := mgr.Resolve("acme", "app")
	require.NoError(t, err)

	second, err := mgr.Resolve("acme", "app")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(
		t, filepath.Join(mgr.Root, "acme", "app"), first,
	)

	fi, err := os.Stat(first)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestManager_Resolve_keys_by_owner_and_repo(
	t *testing.T,
) {
	t.Parallel()

	mgr := workspace.NewManager(t.TempDir())

	a, err := mgr.Resolve("acme", "app")
	require.NoError(t, err)

	b, err := mgr.Resolve("other", "app")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestManager_Resolve_rejects_bad_segments(
	t *testing.T,
) {
	t.Parallel()

	mgr := workspace.NewManager(t.TempDir())

	tests := []struct {
		name  string
		owner string
		repo  string
	}{
		{name: "empty owner", owner: "", repo: "app"},
		{name: "empty repo", owner: "acme", repo: ""},
		{name: "dot dot", owner: "..", repo: "app"},
		{name: "separator", owner: "acme", repo: "a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := mgr.Resolve(tt.owner, tt.repo)
			assert.ErrorIs(t, err, workspace.ErrWorkspace)
		})
	}
}

func TestNewManager_default_root(t *testing.T) {
	t.Parallel()

	mgr := workspace.NewManager("")

	assert.Equal(t, workspace.DefaultRoot(), mgr.Root)
}

func TestManager_Lock_exclusive(t *testing.T) {
	t.Parallel()

	mgr := workspace.NewManager(t.TempDir())

	path, err := mgr.Resolve("acme", "app")
	require.NoError(t, err)

	unlock, err := mgr.Lock(context.Background(), path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(
		context.Background(), 300*time.Millisecond,
	)
	defer cancel()

	_, err = mgr.Lock(ctx, path)
	require.ErrorIs(t, err, workspace.ErrWorkspace)

	unlock()

	unlock2, err := mgr.Lock(context.Background(), path)
	require.NoError(t, err)
	unlock2()
}

func TestManager_Acquire_recreates_evicted_dir(t *testing.T) {
	t.Parallel()

	mgr := workspace.NewManager(t.TempDir())

	resolved, err := mgr.Resolve("acme", "app")
	require.NoError(t, err)

	// Removed by an eviction before the pass locks it.
	require.NoError(t, os.RemoveAll(resolved))

	path, unlock, err := mgr.Acquire(
		context.Background(), "acme", "app",
	)
	require.NoError(t, err)

	defer unlock()

	assert.Equal(t, resolved, path)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestManager_Acquire_exclusive(t *testing.T) {
	t.Parallel()

	mgr := workspace.NewManager(t.TempDir())

	_, unlock, err := mgr.Acquire(
		context.Background(), "acme", "app",
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(
		context.Background(), 300*time.Millisecond,
	)
	defer cancel()

	_, _, err = mgr.Acquire(ctx, "acme", "app")
	require.ErrorIs(t, err, workspace.ErrWorkspace)

	unlock()
}

func TestManager_Acquire_rejects_bad_segments(t *testing.T) {
	t.Parallel()

	mgr := workspace.NewManager(t.TempDir())

	_, _, err := mgr.Acquire(context.Background(), "..", "app")
	assert.ErrorIs(t, err, workspace.ErrWorkspace)
}

func TestManager_Evict(t *testing.T) {
	t.Parallel()

	mgr := workspace.NewManager(t.TempDir())

	stale, err := mgr.Resolve("acme", "stale")
	require.NoError(t, err)

	fresh, err := mgr.Resolve("acme", "fresh")
	require.NoError(t, err)

	unlock, err := mgr.Lock(context.Background(), fresh)
	require.NoError(t, err)
	unlock()

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	removed, err := mgr.Evict(
		context.Background(), time.Hour,
	)
	require.NoError(t, err)

	assert.Equal(t, []string{stale}, removed)

	_, statErr := os.Stat(stale)
	assert.True(t, os.IsNotExist(statErr))

	_, statErr = os.Stat(fresh)
	assert.NoError(t, statErr)
}

func TestManager_Evict_skips_locked(t *testing.T) {
	t.Parallel()

	mgr := workspace.NewManager(t.TempDir())

	path, err := mgr.Resolve("acme", "busy")
	require.NoError(t, err)

	unlock, err := mgr.Lock(context.Background(), path)
	require.NoError(t, err)

	defer unlock()

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path+".lock", old, old))

	removed, err := mgr.Evict(
		context.Background(), time.Hour,
	)
	require.NoError(t, err)
	assert.Empty(t, removed)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestManager_Evict_missing_root(t *testing.T) {
	t.Parallel()

	mgr := workspace.NewManager(
		filepath.Join(t.TempDir(), "absent"),
	)

	removed, err := mgr.Evict(
		context.Background(), time.Minute,
	)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
