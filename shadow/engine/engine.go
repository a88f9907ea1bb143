package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/shadowsync/shadow/filter"
	"github.com/byte4ever/shadowsync/shadow/git"
	"github.com/byte4ever/shadowsync/shadow/metrics"
	"github.com/byte4ever/shadowsync/shadow/workspace"
)

// DefaultBodyTemplate is the body of mirrored pull
// requests unless Config.BodyTemplate overrides it.
const DefaultBodyTemplate = "This pull request was opened in " +
	"{{full_name}} and has been mirrored here for review."

// Config holds every collaborator of the engine. Use a
// Config struct instead of many arguments.
type Config struct {
	// Policy gates repositories. Nil allows all.
	Policy *filter.Policy

	// Shadows lists the target organizations.
	Shadows []string

	// Provider opens mirrored pull requests.
	Provider git.GitProvider

	// Credentials authenticates git network calls.
	Credentials git.CredentialProvider

	// Workspaces resolves and locks working copies.
	// Defaults to a manager rooted at
	// workspace.DefaultRoot.
	Workspaces *workspace.Manager

	// GitBaseURL prefixes remote URLs (e.g.
	// "https://github.com").
	GitBaseURL string

	// CrossForkHead qualifies mirrored heads as
	// "<org>:<branch>".
	CrossForkHead bool

	// BodyTemplate renders mirrored pull request
	// bodies. Placeholders: {{full_name}}, {{repo}},
	// {{number}}, {{title}}, {{head}}, {{base}}.
	BodyTemplate string

	// TargetTimeout bounds the work on one target.
	// Zero means no bound.
	TargetTimeout time.Duration

	// Metrics records outcomes. Nil disables.
	Metrics *metrics.Recorder
}

// Engine replicates source events into shadow orgs.
type Engine struct {
	cfg  Config
	body *fasttemplate.Template
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	const errCtx = "creating sync engine"

	if cfg.Provider == nil {
		return nil, fmt.Errorf(
			"%w: %s: provider must be set",
			filter.ErrConfig, errCtx,
		)
	}

	if cfg.GitBaseURL == "" {
		return nil, fmt.Errorf(
			"%w: %s: git base url must be set",
			filter.ErrConfig, errCtx,
		)
	}

	if cfg.Workspaces == nil {
		cfg.Workspaces = workspace.NewManager("")
	}

	if cfg.BodyTemplate == "" {
		cfg.BodyTemplate = DefaultBodyTemplate
	}

	body, err := fasttemplate.NewTemplate(
		cfg.BodyTemplate, "{{", "}}",
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: %s: body template: %w",
			filter.ErrConfig, errCtx, err,
		)
	}

	return &Engine{cfg: cfg, body: body}, nil
}

// targetContext derives the context of one target.
func (e *Engine) targetContext(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	if e.cfg.TargetTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.TargetTimeout)
	}

	return context.WithCancel(ctx)
}

// logTargetError logs a per-target failure, adding the
// upstream status and message for API errors.
func logTargetError(msg, shadow string, err error) {
	attrs := []any{"shadow", shadow, "error", err}

	var apiErr *git.APIError
	if errors.As(err, &apiErr) {
		attrs = append(
			attrs,
			"status", apiErr.StatusCode,
			"message", apiErr.Message,
		)
	}

	slog.Error(msg, attrs...)
}
