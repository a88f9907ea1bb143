package engine

// Repository identifies the source repository of an
// event.
type Repository struct {
	// Name is the short name matched by the filter.
	Name string
	// FullName is "owner/name".
	FullName string
	// Owner is the owner login.
	Owner string
}

// PullRequestEvent carries the fields of an opened pull
// request needed to mirror it.
type PullRequestEvent struct {
	Action     string
	Number     int
	Title      string
	HeadRef    string
	BaseRef    string
	Repository Repository
}

// PushEvent carries the fields of a push needed to
// replay the source history.
type PushEvent struct {
	Ref        string
	Commits    int
	Repository Repository
}
