package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/byte4ever/shadowsync/shadow/git"
	"github.com/byte4ever/shadowsync/shadow/metrics"
)

const eventPullRequest = "pull_request"

// MirrorPullRequest opens the pull request described by
// ev in every shadow org. Failures are logged per
// target and never stop the loop. An empty shadow list
// is a no-op.
func (e *Engine) MirrorPullRequest(
	ctx context.Context,
	ev PullRequestEvent,
) *Report {
	start := time.Now()
	defer e.cfg.Metrics.ObservePass(eventPullRequest, start)

	report := newReport()

	dec := e.cfg.Policy.Allows(ev.Repository.Name)
	if !dec.Allowed {
		slog.Info(
			"pull request ignored",
			"repo", ev.Repository.FullName,
			"reason", dec.Reason,
			"pattern", dec.Pattern,
		)
		e.cfg.Metrics.Event(eventPullRequest, metrics.OutcomeSkipped)

		return report.skip(dec.Reason)
	}

	slog.Info(
		"received pull request",
		"number", ev.Number,
		"repo", ev.Repository.FullName,
	)

	body := e.renderBody(ev)

	for _, org := range e.cfg.Shadows {
		shadowRepo := org + "/" + ev.Repository.Name

		spec := git.PullRequestSpec{
			Owner: org,
			Repo:  ev.Repository.Name,
			Title: ev.Title,
			Head:  ev.HeadRef,
			Base:  ev.BaseRef,
			Body:  body,
		}
		if e.cfg.CrossForkHead {
			spec.HeadOwner = org
		}

		tctx, cancel := e.targetContext(ctx)
		url, err := e.cfg.Provider.CreatePR(tctx, spec)

		cancel()

		if err != nil {
			logTargetError(
				"failed to open pull request in shadow",
				shadowRepo, err,
			)
			report.Failed[org] = err
			e.cfg.Metrics.Target(metrics.OpMirrorPR, metrics.OutcomeFailure)

			continue
		}

		slog.Info(
			"opened pull request in shadow",
			"shadow", shadowRepo,
			"url", url,
		)
		report.Succeeded = append(report.Succeeded, org)
		e.cfg.Metrics.Target(metrics.OpMirrorPR, metrics.OutcomeSuccess)
	}

	e.cfg.Metrics.Event(eventPullRequest, outcomeOf(report))

	return report
}

// renderBody expands the body template for ev. Unknown
// placeholders are kept verbatim.
func (e *Engine) renderBody(ev PullRequestEvent) string {
	return e.body.ExecuteStringStd(map[string]any{
		"full_name": ev.Repository.FullName,
		"repo":      ev.Repository.Name,
		"number":    strconv.Itoa(ev.Number),
		"title":     ev.Title,
		"head":      ev.HeadRef,
		"base":      ev.BaseRef,
	})
}

func outcomeOf(r *Report) string {
	if len(r.Failed) > 0 {
		return metrics.OutcomeFailure
	}

	return metrics.OutcomeSuccess
}
