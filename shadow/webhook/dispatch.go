package webhook

import (
	"context"
	"log/slog"

	"github.com/google/go-github/v68/github"

	"github.com/byte4ever/shadowsync/shadow/config"
	"github.com/byte4ever/shadowsync/shadow/engine"
)

// Event kinds as sent in X-GitHub-Event.
const (
	EventPullRequest = "pull_request"
	EventPush        = "push"
)

// ActionOpened is the only pull request action
// mirrored.
const ActionOpened = "opened"

// Job is one background pass.
type Job func(ctx context.Context)

// Route turns a parsed payload into a Job. A nil Job
// acknowledges the delivery without work.
type Route func(payload any) Job

// Dispatch maps event kinds to routes. Kinds missing
// from the table are acknowledged and ignored.
type Dispatch map[string]Route

// Syncer runs sync passes. *engine.Engine implements
// it.
type Syncer interface {
	MirrorPullRequest(
		ctx context.Context,
		ev engine.PullRequestEvent,
	) *engine.Report
	SyncPush(
		ctx context.Context,
		ev engine.PushEvent,
	) (*engine.Report, error)
}

// NewDispatch builds the table enabled by features.
func NewDispatch(
	features config.Features,
	syncer Syncer,
) Dispatch {
	d := make(Dispatch, 2)

	if features.SyncPullRequests {
		d[EventPullRequest] = pullRequestRoute(syncer)
	}

	if features.SyncPushes {
		d[EventPush] = pushRoute(syncer)
	}

	return d
}

func pullRequestRoute(syncer Syncer) Route {
	return func(payload any) Job {
		ev, ok := payload.(*github.PullRequestEvent)
		if !ok || ev.GetAction() != ActionOpened {
			return nil
		}

		pr := ev.GetPullRequest()
		in := engine.PullRequestEvent{
			Action:     ev.GetAction(),
			Number:     ev.GetNumber(),
			Title:      pr.GetTitle(),
			HeadRef:    pr.GetHead().GetRef(),
			BaseRef:    pr.GetBase().GetRef(),
			Repository: fromRepository(ev.GetRepo()),
		}

		return func(ctx context.Context) {
			syncer.MirrorPullRequest(ctx, in)
		}
	}
}

func pushRoute(syncer Syncer) Route {
	return func(payload any) Job {
		ev, ok := payload.(*github.PushEvent)
		if !ok {
			return nil
		}

		in := engine.PushEvent{
			Ref:        ev.GetRef(),
			Commits:    len(ev.Commits),
			Repository: fromPushRepository(ev.GetRepo()),
		}

		return func(ctx context.Context) {
			if _, err := syncer.SyncPush(ctx, in); err != nil {
				slog.Error(
					"push sync failed",
					"repo", in.Repository.FullName,
					"error", err,
				)
			}
		}
	}
}

func fromRepository(r *github.Repository) engine.Repository {
	return engine.Repository{
		Name:     r.GetName(),
		FullName: r.GetFullName(),
		Owner:    r.GetOwner().GetLogin(),
	}
}

// fromPushRepository reads the owner from login, or
// from name on payloads that only carry the latter.
func fromPushRepository(
	r *github.PushEventRepository,
) engine.Repository {
	owner := r.GetOwner().GetLogin()
	if owner == "" {
		owner = r.GetOwner().GetName()
	}

	return engine.Repository{
		Name:     r.GetName(),
		FullName: r.GetFullName(),
		Owner:    owner,
	}
}
