package engine

import "sort"

// Report is the outcome of one pass.
type Report struct {
	// Skipped is true when the filter rejected the
	// repository. SkipReason names the list.
	Skipped    bool
	SkipReason string
	// Succeeded lists the shadow orgs replicated.
	Succeeded []string
	// Failed maps shadow orgs to their error.
	Failed map[string]error
	// Branches is the source branch set of a push
	// pass.
	Branches []string
}

func newReport() *Report {
	return &Report{Failed: make(map[string]error)}
}

func (r *Report) skip(reason string) *Report {
	r.Skipped = true
	r.SkipReason = reason

	return r
}

// FailedTargets returns the failed orgs, sorted.
func (r *Report) FailedTargets() []string {
	out := make([]string, 0, len(r.Failed))
	for org := range r.Failed {
		out = append(out, org)
	}

	sort.Strings(out)

	return out
}
