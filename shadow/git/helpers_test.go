package git_test

import (
	"context"
	"os"
	oe "os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// initGitRepo creates a git repository with one
// initial commit. Git hooks are disabled to avoid
// interference from pre-commit hooks.
func initGitRepo(tb testing.TB, dir string) {
	tb.Helper()

	cmds := [][]string{
		{"init", "-b", "main"},
		{
			"config",
			"user.email", "test@test.com",
		},
		{"config", "user.name", "Test"},
		// Disable hooks so pre-commit scanners do
		// not interfere with tests.
		{
			"config", "core.hooksPath",
			"/dev/null",
		},
		{
			"commit", "--allow-empty",
			"-m", "initial",
		},
	}

	for _, args := range cmds {
		gitCmd(tb, dir, args...)
	}
}

// newSource builds a seed working copy with the given
// extra branches and pushes everything to a bare
// repository. Returns the seed and bare paths.
func newSource(
	tb testing.TB,
	root string,
	branches ...string,
) (string, string) {
	tb.Helper()

	seed := filepath.Join(root, "seed")
	bare := filepath.Join(root, "source.git")

	if err := os.MkdirAll(seed, 0o750); err != nil {
		tb.Fatalf("mkdir %s: %v", seed, err)
	}

	initGitRepo(tb, seed)

	for _, br := range branches {
		gitCmd(tb, seed, "checkout", "-b", br)
		gitCmd(
			tb, seed,
			"commit", "--allow-empty", "-m", "on "+br,
		)
		gitCmd(tb, seed, "checkout", "main")
	}

	newBare(tb, bare)
	gitCmd(tb, seed, "push", "-q", bare, "--all")

	return seed, bare
}

// newBare creates an empty bare repository at path.
func newBare(tb testing.TB, path string) {
	tb.Helper()

	gitCmd(
		tb, filepath.Dir(path),
		"init", "-q", "--bare", path,
	)
}

// headsOf lists the branch names of the repository at
// dir.
func headsOf(tb testing.TB, dir string) []string {
	tb.Helper()

	out := gitOut(
		tb, dir,
		"for-each-ref",
		"--format=%(refname:short)",
		"refs/heads",
	)

	return strings.Fields(out)
}

// gitCmd runs a git command in the given directory.
func gitCmd(
	tb testing.TB,
	dir string,
	args ...string,
) {
	tb.Helper()

	gitOut(tb, dir, args...)
}

// gitOut runs a git command in the given directory
// and returns its output.
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
