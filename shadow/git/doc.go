// Package git provides the local git operations of a shadow sync pass and a
// strategy interface for opening pull requests on a hosting platform.
//
// Repo wraps a workspace directory. AttachRemote registers a named remote with
// replace semantics, SyncFromSource fetches the "origin" remote and
// materializes every remote branch as an up-to-date local branch, and Publish
// pushes the whole local branch set to a shadow remote.
//
// Remote URLs never carry credentials. A CredentialProvider is consulted
// before each network operation and its answer reaches git through
// GIT_CONFIG_* environment variables, so tokens stay out of argv, .git/config
// and logs.
//
// The GitProvider interface abstracts pull request creation. Implementations
// exist for GitHub, GitLab and Bitbucket Server in sub-packages.
package git
