// Package engine runs shadow sync passes. A pass replicates one source event
// into every configured shadow organization: MirrorPullRequest opens the
// equivalent pull request through a git.GitProvider, SyncPush replays the full
// branch history of the source repository through a locked workspace.
//
// Targets are processed sequentially and independently. A failing target is
// logged and recorded in the Report; the pass moves on to the next one. Only
// configuration, workspace and source failures end a pass early.
//
// All collaborators arrive through Config; the package holds no global state.
package engine
