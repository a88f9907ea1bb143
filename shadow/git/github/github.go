package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/byte4ever/shadowsync/shadow/git"
)

const platform = "github"

// Config holds the settings needed to create a GitHub
// pull request provider.
type Config struct {
	// AccessToken is a personal access token or
	// GitHub App token used for authentication.
	AccessToken string
	// EnterpriseHost is an optional GitHub Enterprise
	// hostname (e.g. "git.corp.example.com"). Leave
	// empty for github.com.
	EnterpriseHost string
	// APIURL overrides the REST base URL. Takes
	// precedence over EnterpriseHost.
	APIURL string
}

// Provider creates pull requests on GitHub.
//
// Pattern: Strategy -- implements git.GitProvider.
type Provider struct {
	client *gh.Client
}

// NewProvider validates cfg and returns a Provider
// ready to create pull requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(nil).
		WithAuthToken(cfg.AccessToken)

	switch {
	case cfg.APIURL != "":
		base, err := url.Parse(
			strings.TrimSuffix(cfg.APIURL, "/") + "/",
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: api url: %w", errCtx, err,
			)
		}

		client.BaseURL = base

	case cfg.EnterpriseHost != "":
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	return &Provider{client: client}, nil
}

// CreatePR opens a pull request in spec.Owner/spec.Repo.
// When spec.HeadOwner is set the head is sent as
// "owner:branch". If the same pull request already
// exists (HTTP 422) the error is suppressed.
func (p *Provider) CreatePR(
	ctx context.Context,
	spec git.PullRequestSpec,
) (string, error) {
	const errCtx = "creating github pull request"

	head := spec.Head
	if spec.HeadOwner != "" {
		head = spec.HeadOwner + ":" + spec.Head
	}

	pr := &gh.NewPullRequest{
		Title: &spec.Title,
		Head:  &head,
		Base:  &spec.Base,
		Body:  &spec.Body,
	}

	created, _, err := p.client.PullRequests.Create(
		ctx, spec.Owner, spec.Repo, pr,
	)
	if err == nil {
		slog.Info(
			"created pull request",
			"url", created.GetHTMLURL(),
		)

		return created.GetHTMLURL(), nil
	}

	var ghErr *gh.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	// HTTP 422: PR already exists for this
	// head/base pair.
	if ghErr.Response.StatusCode ==
		http.StatusUnprocessableEntity &&
		alreadyExists(ghErr) {
		slog.Info(
			"reusing existing pull request",
			"owner", spec.Owner,
			"repo", spec.Repo,
			"head", head,
		)

		return "", nil
	}

	return "", fmt.Errorf("%s: %w", errCtx, &git.APIError{
		Platform:   platform,
		StatusCode: ghErr.Response.StatusCode,
		Message:    describe(ghErr),
		Err:        err,
	})
}

func alreadyExists(e *gh.ErrorResponse) bool {
	for _, item := range e.Errors {
		if strings.Contains(item.Message, "already exists") {
			return true
		}
	}

	return strings.Contains(e.Message, "already exists")
}

// describe joins the top-level message with the
// per-field validation messages.
func describe(e *gh.ErrorResponse) string {
	parts := []string{e.Message}

	for _, item := range e.Errors {
		switch {
		case item.Message != "":
			parts = append(parts, item.Message)
		case item.Field != "":
			parts = append(
				parts, item.Field+" "+item.Code,
			)
		}
	}

	return strings.Join(parts, "; ")
}
