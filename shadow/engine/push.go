package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/byte4ever/shadowsync/shadow/git"
	"github.com/byte4ever/shadowsync/shadow/metrics"
)

const eventPush = "push"

// SyncPush replays the full branch history of the
// pushed repository into every shadow org. The workspace
// is locked for the whole pass. Per-target failures are
// recorded in the Report; an error is returned only
// when the pass could not reach the publishing stage.
func (e *Engine) SyncPush(
	ctx context.Context,
	ev PushEvent,
) (*Report, error) {
	const errCtx = "syncing push"

	start := time.Now()
	defer e.cfg.Metrics.ObservePass(eventPush, start)

	report := newReport()

	dec := e.cfg.Policy.Allows(ev.Repository.Name)
	if !dec.Allowed {
		slog.Info(
			"push ignored",
			"repo", ev.Repository.FullName,
			"reason", dec.Reason,
			"pattern", dec.Pattern,
		)
		e.cfg.Metrics.Event(eventPush, metrics.OutcomeSkipped)

		return report.skip(dec.Reason), nil
	}

	slog.Info(
		"received push",
		"commits", ev.Commits,
		"repo", ev.Repository.FullName,
		"ref", ev.Ref,
	)

	if len(e.cfg.Shadows) == 0 {
		slog.Info("no shadow targets configured")
		e.cfg.Metrics.Event(eventPush, metrics.OutcomeSuccess)

		return report, nil
	}

	repo, unlock, err := e.prepare(ctx, ev.Repository)
	if err != nil {
		e.cfg.Metrics.Event(eventPush, metrics.OutcomeFailure)

		return report, fmt.Errorf("%s: %w", errCtx, err)
	}

	defer unlock()

	set, err := repo.SyncFromSource(ctx)
	if err != nil {
		e.cfg.Metrics.Event(eventPush, metrics.OutcomeFailure)

		return report, fmt.Errorf(
			"%s %s: %w", errCtx, ev.Repository.FullName, err,
		)
	}

	report.Branches = set.Branches
	e.cfg.Metrics.BranchFailures(len(set.Failed))

	if len(set.Failed) > 0 {
		slog.Warn(
			"some branches were not pulled",
			"repo", ev.Repository.FullName,
			"failed", len(set.Failed),
			"total", len(set.Branches),
		)
	}

	for _, org := range e.cfg.Shadows {
		shadowRepo := org + "/" + ev.Repository.Name

		tctx, cancel := e.targetContext(ctx)
		err := e.publishTo(tctx, repo, org, ev.Repository.Name)

		cancel()

		if err != nil {
			logTargetError(
				"failed to push commits to shadow",
				shadowRepo, err,
			)
			report.Failed[org] = err
			e.cfg.Metrics.Target(metrics.OpPublish, metrics.OutcomeFailure)

			continue
		}

		slog.Info(
			"pushed commits to shadow",
			"shadow", shadowRepo,
			"branches", len(set.Branches),
		)
		report.Succeeded = append(report.Succeeded, org)
		e.cfg.Metrics.Target(metrics.OpPublish, metrics.OutcomeSuccess)
	}

	e.cfg.Metrics.Event(eventPush, outcomeOf(report))

	return report, nil
}

// prepare acquires the workspace of src and
// points its source remote at src.
func (e *Engine) prepare(
	ctx context.Context,
	src Repository,
) (*git.Repo, func(), error) {
	path, unlock, err := e.cfg.Workspaces.Acquire(
		ctx, src.Owner, src.Name,
	)
	if err != nil {
		return nil, nil, err
	}

	repo := git.NewRepo(path, e.cfg.Credentials)

	sourceURL := git.RemoteURL(e.cfg.GitBaseURL, src.Owner, src.Name)
	if err := repo.AttachRemote(git.SourceRemote, sourceURL); err != nil {
		unlock()

		return nil, nil, err
	}

	return repo, unlock, nil
}

// publishTo points the target remote at org/name and
// pushes every local branch to it.
func (e *Engine) publishTo(
	ctx context.Context,
	repo *git.Repo,
	org string,
	name string,
) error {
	targetURL := git.RemoteURL(e.cfg.GitBaseURL, org, name)
	if err := repo.AttachRemote(git.TargetRemote, targetURL); err != nil {
		return err
	}

	return repo.Publish(ctx, git.TargetRemote)
}
