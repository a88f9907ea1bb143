package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/byte4ever/shadowsync/shadow/exec"
)

// Remote names used by a sync pass.
const (
	SourceRemote = "origin"
	TargetRemote = "target"
)

// Sentinel errors of the sync taxonomy.
var (
	// ErrRemoteAttach marks a failure to initialize the
	// repository or (re)register a remote.
	ErrRemoteAttach = errors.New("remote attach failed")
	// ErrBranchPull marks a failure to materialize one
	// source branch.
	ErrBranchPull = errors.New("branch pull failed")
	// ErrPublish marks a failed push to a shadow remote.
	ErrPublish = errors.New("publish failed")
)

// Repo is a workspace directory used as a git staging
// area between the source and its shadows.
type Repo struct {
	// Dir is the filesystem location of the working
	// copy.
	Dir string
	// Credentials authenticates network operations.
	// Nil means anonymous.
	Credentials CredentialProvider
}

// NewRepo returns a Repo for dir. The directory does
// not need to be a git repository yet.
func NewRepo(dir string, creds CredentialProvider) *Repo {
	return &Repo{Dir: dir, Credentials: creds}
}

// BranchSet is the result of SyncFromSource.
type BranchSet struct {
	// Branches lists every branch seen on the source
	// remote, in enumeration order.
	Branches []string
	// Failed maps branches that could not be pulled to
	// their error.
	Failed map[string]error
}

// Synced returns the branches pulled without error.
func (b *BranchSet) Synced() []string {
	out := make([]string, 0, len(b.Branches))

	for _, br := range b.Branches {
		if _, bad := b.Failed[br]; !bad {
			out = append(out, br)
		}
	}

	return out
}

// AttachRemote registers url under name, initializing
// the repository first when needed. An existing remote
// with the same name is replaced. A blank url is
// rejected and leaves any existing remote untouched.
func (r *Repo) AttachRemote(name, url string) error {
	const errCtx = "attaching remote"

	if strings.TrimSpace(url) == "" {
		return fmt.Errorf(
			"%w: %s %s: empty url",
			ErrRemoteAttach, errCtx, name,
		)
	}

	repo, err := r.openOrInit()
	if err != nil {
		return fmt.Errorf(
			"%w: %s %s: %w",
			ErrRemoteAttach, errCtx, name, err,
		)
	}

	err = repo.DeleteRemote(name)
	if err != nil && !errors.Is(err, gogit.ErrRemoteNotFound) {
		return fmt.Errorf(
			"%w: %s %s: remove: %w",
			ErrRemoteAttach, errCtx, name, err,
		)
	}

	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	}); err != nil {
		return fmt.Errorf(
			"%w: %s %s: add: %w",
			ErrRemoteAttach, errCtx, name, err,
		)
	}

	slog.Debug(
		"attached remote",
		"dir", r.Dir,
		"remote", name,
	)

	return nil
}

// RemoteURL returns the URL registered under name.
func (r *Repo) RemoteURL(name string) (string, error) {
	const errCtx = "reading remote url"

	repo, err := gogit.PlainOpen(r.Dir)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	rem, err := repo.Remote(name)
	if err != nil {
		return "", fmt.Errorf(
			"%s %s: %w", errCtx, name, err,
		)
	}

	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf(
			"%s %s: no url", errCtx, name,
		)
	}

	return urls[0], nil
}

// SyncFromSource prunes and fetches the source remote,
// then checks out and fast-forwards a local branch for
// every remote branch. A branch that fails is recorded
// in BranchSet.Failed and the loop moves on.
func (r *Repo) SyncFromSource(
	ctx context.Context,
) (*BranchSet, error) {
	const errCtx = "syncing from source"

	env, err := r.remoteEnv(ctx, SourceRemote)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := r.git(
		ctx, env, "remote", "prune", SourceRemote,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: prune: %w", errCtx, err,
		)
	}

	if _, err := r.git(
		ctx, env, "fetch", "--force", SourceRemote,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: fetch: %w", errCtx, err,
		)
	}

	branches, err := r.remoteBranches(SourceRemote)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: list branches: %w", errCtx, err,
		)
	}

	set := &BranchSet{
		Branches: branches,
		Failed:   make(map[string]error),
	}

	for _, branch := range branches {
		if err := r.pullBranch(ctx, env, branch); err != nil {
			slog.Error(
				"failed to pull branch",
				"dir", r.Dir,
				"branch", branch,
				"error", err,
			)

			set.Failed[branch] = err

			continue
		}

		slog.Debug(
			"pulled branch",
			"dir", r.Dir,
			"branch", branch,
		)
	}

	return set, nil
}

// Publish pushes every local branch to remote.
func (r *Repo) Publish(
	ctx context.Context,
	remote string,
) error {
	const errCtx = "publishing branches"

	env, err := r.remoteEnv(ctx, remote)
	if err != nil {
		return fmt.Errorf(
			"%w: %s to %s: %w",
			ErrPublish, errCtx, remote, err,
		)
	}

	if _, err := r.git(
		ctx, env, "push", "--all", remote,
	); err != nil {
		return fmt.Errorf(
			"%w: %s to %s: %w",
			ErrPublish, errCtx, remote, err,
		)
	}

	return nil
}

// LocalBranches lists the local branch names.
func (r *Repo) LocalBranches() ([]string, error) {
	const errCtx = "listing local branches"

	repo, err := gogit.PlainOpen(r.Dir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var out []string

	err = iter.ForEach(func(ref *plumbing.Reference) error {
		out = append(out, ref.Name().Short())

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	sort.Strings(out)

	return out, nil
}

// pullBranch checks out branch, creating it to track the
// source when absent, and fast-forwards it.
func (r *Repo) pullBranch(
	ctx context.Context,
	env []string,
	branch string,
) error {
	exists, err := r.hasLocalBranch(branch)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBranchPull, branch, err)
	}

	// The workspace is not authoritative: local edits
	// are discarded.
	checkout := []string{"checkout", "--force", branch}
	if !exists {
		checkout = []string{
			"checkout", "--force",
			"-b", branch,
			"--track", SourceRemote + "/" + branch,
		}
	}

	if _, err := r.git(ctx, nil, checkout...); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBranchPull, branch, err)
	}

	if _, err := r.git(
		ctx, env,
		"pull", "--ff-only", "--no-rebase",
		SourceRemote, branch,
	); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBranchPull, branch, err)
	}

	return nil
}

// remoteBranches lists refs/remotes/<remote>/* with the
// prefix stripped, skipping the symbolic HEAD.
func (r *Repo) remoteBranches(remote string) ([]string, error) {
	repo, err := gogit.PlainOpen(r.Dir)
	if err != nil {
		return nil, err
	}

	refs, err := repo.References()
	if err != nil {
		return nil, err
	}

	prefix := "refs/remotes/" + remote + "/"

	var branches []string

	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if !strings.HasPrefix(name, prefix) {
			return nil
		}

		branch := strings.TrimPrefix(name, prefix)
		if branch == "HEAD" {
			return nil
		}

		branches = append(branches, branch)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(branches)

	return branches, nil
}

func (r *Repo) hasLocalBranch(branch string) (bool, error) {
	repo, err := gogit.PlainOpen(r.Dir)
	if err != nil {
		return false, err
	}

	_, err = repo.Reference(
		plumbing.NewBranchReferenceName(branch), false,
	)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// openOrInit opens the repository at r.Dir, creating an
// empty one when it does not exist yet.
func (r *Repo) openOrInit() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpen(r.Dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		slog.Info("initializing workspace", "dir", r.Dir)

		return gogit.PlainInit(r.Dir, false)
	}

	return repo, err
}

// remoteEnv resolves the credential environment for the
// remote registered under name.
func (r *Repo) remoteEnv(
	ctx context.Context,
	name string,
) ([]string, error) {
	if r.Credentials == nil {
		return nil, nil
	}

	url, err := r.RemoteURL(name)
	if err != nil {
		return nil, err
	}

	cred, err := r.Credentials.Credential(ctx, url)
	if err != nil {
		return nil, fmt.Errorf(
			"resolving credential for %s: %w", name, err,
		)
	}

	return cred.GitEnv(), nil
}

func (r *Repo) git(
	ctx context.Context,
	env []string,
	args ...string,
) (string, error) {
	return exec.Ex(
		ctx,
		exec.Options{Dir: r.Dir, Env: env},
		"git", args...,
	)
}
