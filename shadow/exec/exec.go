// Package exec provides command execution helpers.
package exec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Options controls where and with which extra
// environment a command runs.
type Options struct {
	// Dir is the working directory. Empty means the
	// current working directory.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the
	// process environment. Values are never logged.
	Env []string
}

// Ex executes the named command and returns combined
// stdout+stderr output. The command is killed when ctx
// is done.
func Ex(
	ctx context.Context,
	opts Options,
	name string,
	arg ...string,
) (string, error) {
	const errCtx = "executing command"

	slog.Debug(
		"executing",
		"cmd", name,
		"args", strings.Join(arg, " "),
		"dir", opts.Dir,
	)

	//nolint:gosec // callers pass fixed binaries
	cmd := exec.CommandContext(ctx, name, arg...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}

	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	by, err := cmd.CombinedOutput()

	slog.Debug("output", "result", string(by))

	if err != nil {
		return string(by), fmt.Errorf(
			"%s: %s %s: %w: %s",
			errCtx,
			name,
			strings.Join(arg, " "),
			err,
			strings.TrimSpace(string(by)),
		)
	}

	return string(by), nil
}
