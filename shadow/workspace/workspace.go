// Package workspace manages the local working copies
// used to stage source-to-shadow replication. Each
// (owner, repo) pair owns one directory under a stable
// root; directories are reused across events and
// guarded by a lock file while a sync pass runs.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// ErrWorkspace marks a filesystem failure while
// resolving, locking or evicting a workspace.
var ErrWorkspace = errors.New("workspace failure")

const (
	dirMode      = 0o750
	lockSuffix   = ".lock"
	lockInterval = 100 * time.Millisecond
)

// Manager resolves workspace directories under Root.
type Manager struct {
	// Root is the directory holding every workspace.
	Root string
}

// DefaultRoot returns the stable root used when none is
// configured.
func DefaultRoot() string {
	return filepath.Join(os.TempDir(), "shadowsync")
}

// NewManager returns a Manager rooted at root, or at
// DefaultRoot when root is empty.
func NewManager(root string) *Manager {
	if root == "" {
		root = DefaultRoot()
	}

	return &Manager{Root: root}
}

// Resolve returns the workspace path for owner/repo,
// creating missing directories. Calling it twice with
// the same arguments returns the same path.
func (m *Manager) Resolve(
	owner string,
	repo string,
) (string, error) {
	const errCtx = "resolving workspace"

	for _, seg := range []string{owner, repo} {
		if err := validSegment(seg); err != nil {
			return "", fmt.Errorf(
				"%w: %s: %w", ErrWorkspace, errCtx, err,
			)
		}
	}

	path := filepath.Join(m.Root, owner, repo)

	if err := os.MkdirAll(path, dirMode); err != nil {
		return "", fmt.Errorf(
			"%w: %s: %w", ErrWorkspace, errCtx, err,
		)
	}

	return path, nil
}

// Lock takes the exclusive lock of the workspace at
// path, waiting until ctx is done. The returned function
// releases it.
func (m *Manager) Lock(
	ctx context.Context,
	path string,
) (func(), error) {
	const errCtx = "locking workspace"

	fl := flock.New(path + lockSuffix)

	ok, err := fl.TryLockContext(ctx, lockInterval)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: %s %s: %w",
			ErrWorkspace, errCtx, path, err,
		)
	}

	if !ok {
		return nil, fmt.Errorf(
			"%w: %s %s: not acquired",
			ErrWorkspace, errCtx, path,
		)
	}

	// The lock file mtime records the last sync pass.
	now := time.Now()
	if err := os.Chtimes(fl.Path(), now, now); err != nil {
		slog.Warn(
			"cannot touch workspace lock",
			"path", fl.Path(),
			"error", err,
		)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			slog.Error(
				"failed to unlock workspace",
				"path", path,
				"error", err,
			)
		}
	}, nil
}

// Acquire resolves and locks the workspace of
// owner/repo. The directory exists for as long as the
// lock is held, even when an eviction removed it
// between resolution and locking.
func (m *Manager) Acquire(
	ctx context.Context,
	owner string,
	repo string,
) (string, func(), error) {
	const errCtx = "acquiring workspace"

	path, err := m.Resolve(owner, repo)
	if err != nil {
		return "", nil, err
	}

	unlock, err := m.Lock(ctx, path)
	if err != nil {
		return "", nil, err
	}

	if err := os.MkdirAll(path, dirMode); err != nil {
		unlock()

		return "", nil, fmt.Errorf(
			"%w: %s %s: %w", ErrWorkspace, errCtx, path, err,
		)
	}

	return path, unlock, nil
}

// Evict removes workspaces idle for longer than maxIdle.
// Workspaces locked by a running pass are skipped.
// Returns the removed paths.
func (m *Manager) Evict(
	ctx context.Context,
	maxIdle time.Duration,
) ([]string, error) {
	const errCtx = "evicting workspaces"

	owners, err := os.ReadDir(m.Root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf(
			"%w: %s: %w", ErrWorkspace, errCtx, err,
		)
	}

	var removed []string

	for _, owner := range owners {
		if !owner.IsDir() {
			continue
		}

		ownerDir := filepath.Join(m.Root, owner.Name())

		repos, err := os.ReadDir(ownerDir)
		if err != nil {
			return removed, fmt.Errorf(
				"%w: %s: %w", ErrWorkspace, errCtx, err,
			)
		}

		for _, repo := range repos {
			if ctx.Err() != nil {
				return removed, ctx.Err()
			}

			if !repo.IsDir() {
				continue
			}

			path := filepath.Join(ownerDir, repo.Name())

			ok, err := m.evictOne(path, maxIdle)
			if err != nil {
				return removed, fmt.Errorf(
					"%w: %s: %w",
					ErrWorkspace, errCtx, err,
				)
			}

			if ok {
				removed = append(removed, path)
			}
		}
	}

	return removed, nil
}

// evictOne removes path when idle and unlocked.
func (m *Manager) evictOne(
	path string,
	maxIdle time.Duration,
) (bool, error) {
	last, err := lastUsed(path)
	if err != nil {
		return false, err
	}

	if time.Since(last) <= maxIdle {
		return false, nil
	}

	fl := flock.New(path + lockSuffix)

	ok, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", path, err)
	}

	if !ok {
		slog.Info("workspace busy, not evicting", "path", path)

		return false, nil
	}

	defer func() {
		_ = fl.Unlock()
		_ = os.Remove(fl.Path())
	}()

	if err := os.RemoveAll(path); err != nil {
		return false, fmt.Errorf("remove %s: %w", path, err)
	}

	slog.Info(
		"evicted workspace",
		"path", path,
		"idle", time.Since(last).Round(time.Second),
	)

	return true, nil
}

// lastUsed returns the lock file mtime, falling back
// to the directory mtime for never-locked workspaces.
func lastUsed(path string) (time.Time, error) {
	fi, err := os.Stat(path + lockSuffix)
	if err == nil {
		return fi.ModTime(), nil
	}

	fi, err = os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}

	return fi.ModTime(), nil
}

func validSegment(seg string) error {
	switch {
	case seg == "", seg == ".", seg == "..":
		return fmt.Errorf("invalid path segment %q", seg)
	case strings.ContainsAny(seg, `/\`):
		return fmt.Errorf(
			"path segment %q contains a separator", seg,
		)
	default:
		return nil
	}
}
