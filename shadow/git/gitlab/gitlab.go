// Package gitlab implements a git.GitProvider that opens
// merge requests on GitLab. Shadow organizations map to
// GitLab groups: the request targets the project
// "<owner>/<repo>".
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	gl "gitlab.com/gitlab-org/api/client-go"

	"github.com/byte4ever/shadowsync/shadow/git"
)

const platform = "gitlab"

// Config holds the settings needed to create a GitLab
// merge request provider.
type Config struct {
	// Host is the base URL of the GitLab instance
	// (e.g. "https://gitlab.com").
	Host string
	// AccessToken is a personal or group access
	// token used for authentication.
	AccessToken string
}

// Provider creates merge requests on GitLab.
//
// Pattern: Strategy -- implements git.GitProvider.
type Provider struct {
	client *gl.Client
}

// NewProvider validates cfg and returns a Provider
// ready to create merge requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating gitlab provider"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	host := cfg.Host
	if host == "" {
		host = "https://gitlab.com"
	}

	client, err := gl.NewClient(
		cfg.AccessToken,
		gl.WithBaseURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: new client: %w", errCtx, err,
		)
	}

	return &Provider{client: client}, nil
}

// CreatePR opens a merge request from spec.Head into
// spec.Base. GitLab has no cross-fork head syntax, so
// spec.HeadOwner is ignored. If a MR already exists
// (HTTP 409) the error is suppressed.
func (p *Provider) CreatePR(
	ctx context.Context,
	spec git.PullRequestSpec,
) (string, error) {
	const errCtx = "creating gitlab merge request"

	project := spec.Owner + "/" + spec.Repo

	opts := gl.CreateMergeRequestOptions{
		Title:        &spec.Title,
		Description:  &spec.Body,
		SourceBranch: &spec.Head,
		TargetBranch: &spec.Base,
	}

	created, resp, err := p.client.MergeRequests.CreateMergeRequest(
		project, &opts, gl.WithContext(ctx),
	)
	if err == nil {
		slog.Info(
			"created merge request",
			"url", created.WebURL,
		)

		return created.WebURL, nil
	}

	// HTTP 409: MR already exists for this source
	// branch.
	if resp != nil &&
		resp.StatusCode == http.StatusConflict {
		slog.Info(
			"reusing existing merge request",
			"project", project,
			"head", spec.Head,
		)

		return "", nil
	}

	if resp == nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	msg := err.Error()

	var glErr *gl.ErrorResponse
	if errors.As(err, &glErr) && glErr.Message != "" {
		msg = glErr.Message
	}

	return "", fmt.Errorf("%s: %w", errCtx, &git.APIError{
		Platform:   platform,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Err:        err,
	})
}
