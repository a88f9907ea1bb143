// Package bitbucket implements a git.GitProvider for
// Bitbucket Server. Shadow organizations map to project
// keys and repositories to slugs.
package bitbucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/shadowsync/shadow/git"
)

const platform = "bitbucket"

// Config holds the settings needed to create a
// Bitbucket pull request provider.
type Config struct {
	// BaseURL is the Bitbucket Server root (e.g.
	// "https://bb.example.com").
	BaseURL string
	// User is the API username. Defaults to
	// git.DefaultTokenUser.
	User string
	// Token is the password or HTTP access token.
	Token string
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// Provider creates pull requests on Bitbucket Server.
//
// Pattern: Strategy -- implements git.GitProvider.
type Provider struct {
	base   string
	user   string
	token  string
	client *http.Client
}

type project struct {
	Key string `json:"key"`
}

type repository struct {
	Slug    string  `json:"slug"`
	Project project `json:"project"`
}

type ref struct {
	ID         string     `json:"id"`
	Repository repository `json:"repository"`
}

type pullRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	FromRef     ref    `json:"fromRef"`
	ToRef       ref    `json:"toRef"`
}

type created struct {
	Links struct {
		Self []struct {
			Href string `json:"href"`
		} `json:"self"`
	} `json:"links"`
}

type errorBody struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// NewProvider validates cfg and returns a Provider
// ready to create pull requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating bitbucket provider"

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf(
			"%s: base url must be set", errCtx,
		)
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf(
			"%s: token must be set", errCtx,
		)
	}

	user := cfg.User
	if user == "" {
		user = git.DefaultTokenUser
	}

	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	return &Provider{
		base:   strings.TrimSuffix(cfg.BaseURL, "/"),
		user:   user,
		token:  cfg.Token,
		client: client,
	}, nil
}

// CreatePR opens a pull request in the repository
// spec.Repo of project spec.Owner. HTTP 409 means the
// pull request already exists and is not an error.
// Bitbucket heads always live in the target repository,
// so spec.HeadOwner is ignored.
func (p *Provider) CreatePR(
	ctx context.Context,
	spec git.PullRequestSpec,
) (string, error) {
	const errCtx = "creating bitbucket pull request"

	repo := repository{
		Slug:    spec.Repo,
		Project: project{Key: spec.Owner},
	}

	payload, err := json.Marshal(&pullRequest{
		Title:       spec.Title,
		Description: spec.Body,
		FromRef:     ref{ID: "refs/heads/" + spec.Head, Repository: repo},
		ToRef:       ref{ID: "refs/heads/" + spec.Base, Repository: repo},
	})
	if err != nil {
		return "", fmt.Errorf(
			"%s: marshal request: %w", errCtx, err,
		)
	}

	endpoint := p.base + "/rest/api/1.0/projects/" +
		url.PathEscape(spec.Owner) + "/repos/" +
		url.PathEscape(spec.Repo) + "/pull-requests"

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", fmt.Errorf(
			"%s: build request: %w", errCtx, err,
		)
	}

	req.Header.Set(
		"Content-Type",
		"application/json; charset=utf-8",
	)
	req.SetBasicAuth(p.user, p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf(
			"%s: send request: %w", errCtx, err,
		)
	}

	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn(
			"cannot read response body",
			"error", err,
		)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		var out created
		if err := json.Unmarshal(body, &out); err != nil {
			slog.Warn("cannot decode bitbucket answer", "error", err)
		}

		var link string
		if len(out.Links.Self) > 0 {
			link = out.Links.Self[0].Href
		}

		slog.Info("created pull request", "url", link)

		return link, nil

	case http.StatusConflict:
		slog.Info(
			"reusing existing pull request",
			"project", spec.Owner,
			"repo", spec.Repo,
			"head", spec.Head,
		)

		return "", nil
	}

	return "", fmt.Errorf("%s: %w", errCtx, &git.APIError{
		Platform:   platform,
		StatusCode: resp.StatusCode,
		Message:    message(body, resp.Status),
	})
}

// message extracts the error messages of a Bitbucket
// answer, falling back to the HTTP status text.
func message(body []byte, status string) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil ||
		len(eb.Errors) == 0 {
		return status
	}

	msgs := make([]string, 0, len(eb.Errors))
	for _, e := range eb.Errors {
		msgs = append(msgs, e.Message)
	}

	return strings.Join(msgs, "; ")
}
