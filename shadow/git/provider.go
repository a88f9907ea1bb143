package git

import "context"

// Pattern: Strategy -- swap git platform without
// changing PR mirroring logic.

// PullRequestSpec describes a pull request to open in
// Owner/Repo.
type PullRequestSpec struct {
	Owner string
	Repo  string
	Title string
	// Head is the source branch name.
	Head string
	// HeadOwner qualifies Head as "HeadOwner:Head" on
	// platforms supporting cross-fork heads. Empty
	// means an unqualified head.
	HeadOwner string
	Base      string
	Body      string
}

// GitProvider creates pull requests on a git hosting
// platform. It returns the URL of the created (or
// already existing) pull request.
type GitProvider interface {
	CreatePR(
		ctx context.Context,
		spec PullRequestSpec,
	) (string, error)
}

// GitProviderFunc adapts a plain function to the
// GitProvider interface.
type GitProviderFunc func(
	ctx context.Context,
	spec PullRequestSpec,
) (string, error)

// CreatePR delegates to the wrapped function.
func (f GitProviderFunc) CreatePR(
	ctx context.Context,
	spec PullRequestSpec,
) (string, error) {
	return f(ctx, spec)
}
