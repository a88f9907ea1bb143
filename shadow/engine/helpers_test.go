package engine_test

import (
	"context"
	"os"
	oe "os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// newSourceRepo creates the bare repository
// root/owner/name.git holding main plus the given
// branches.
func newSourceRepo(
	tb testing.TB,
	root string,
	owner string,
	name string,
	branches ...string,
) {
	tb.Helper()

	seed := filepath.Join(tb.TempDir(), "seed")
	if err := os.MkdirAll(seed, 0o750); err != nil {
		tb.Fatalf("mkdir %s: %v", seed, err)
	}

	for _, args := range [][]string{
		{"init", "-b", "main"},
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test"},
		{"config", "core.hooksPath", "/dev/null"},
		{"commit", "--allow-empty", "-m", "initial"},
	} {
		gitOut(tb, seed, args...)
	}

	for _, br := range branches {
		gitOut(tb, seed, "checkout", "-b", br)
		gitOut(tb, seed, "commit", "--allow-empty", "-m", "on "+br)
		gitOut(tb, seed, "checkout", "main")
	}

	bare := newBareRepo(tb, root, owner, name)
	gitOut(tb, seed, "push", "-q", bare, "--all")
}

// newBareRepo creates the empty bare repository
// root/owner/name.git and returns its path.
func newBareRepo(
	tb testing.TB,
	root string,
	owner string,
	name string,
) string {
	tb.Helper()

	dir := filepath.Join(root, owner)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		tb.Fatalf("mkdir %s: %v", dir, err)
	}

	path := filepath.Join(dir, name+".git")
	gitOut(tb, dir, "init", "-q", "--bare", "-b", "main", path)

	return path
}

// headsOf lists the branch names of the repository at
// dir.
func headsOf(tb testing.TB, dir string) []string {
	tb.Helper()

	return strings.Fields(gitOut(
		tb, dir,
		"for-each-ref",
		"--format=%(refname:short)",
		"refs/heads",
	))
}

func gitOut(
	tb testing.TB,
	dir string,
	args ...string,
) string {
	tb.Helper()

	//nolint:gosec // test helper
	cmd := oe.CommandContext(
		context.Background(), "git", args...,
	)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		tb.Fatalf(
			"git %v failed: %s: %v",
			args, string(out), err,
		)
	}

	return string(out)
}
