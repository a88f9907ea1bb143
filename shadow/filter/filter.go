package filter

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrConfig marks a malformed policy. It is fatal to
// the sync pass that hit it.
var ErrConfig = errors.New("invalid sync policy")

// Skip reasons reported in Decision.Reason.
const (
	ReasonWhitelist  = "whitelist"
	ReasonExceptions = "exceptions"
)

// Policy is a compiled whitelist/exception pair. The
// zero value allows every repository.
type Policy struct {
	whitelist  []matcher
	exceptions []matcher
}

type matcher struct {
	raw string
	re  *regexp.Regexp
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	// Allowed is true when the repository is
	// processed.
	Allowed bool
	// Reason names the list that rejected the
	// repository. Empty when allowed.
	Reason string
	// Pattern is the exception pattern that matched,
	// if any.
	Pattern string
}

// Compile builds a Policy from raw patterns. An invalid
// pattern yields an error wrapping ErrConfig.
func Compile(
	whitelist []string,
	exceptions []string,
) (*Policy, error) {
	const errCtx = "compiling sync policy"

	wl, err := compileAll(whitelist)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: whitelist: %w", errCtx, err,
		)
	}

	ex, err := compileAll(exceptions)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: exceptions: %w", errCtx, err,
		)
	}

	return &Policy{whitelist: wl, exceptions: ex}, nil
}

// Allows evaluates repoName against the policy:
// whitelist first, then exceptions.
func (p *Policy) Allows(repoName string) Decision {
	if p == nil {
		return Decision{Allowed: true}
	}

	if len(p.whitelist) > 0 &&
		firstMatch(p.whitelist, repoName) == "" {
		return Decision{Reason: ReasonWhitelist}
	}

	if pat := firstMatch(
		p.exceptions, repoName,
	); pat != "" {
		return Decision{
			Reason:  ReasonExceptions,
			Pattern: pat,
		}
	}

	return Decision{Allowed: true}
}

// Whitelist returns the raw whitelist patterns.
func (p *Policy) Whitelist() []string {
	return raws(p.whitelist)
}

// Exceptions returns the raw exception patterns.
func (p *Policy) Exceptions() []string {
	return raws(p.exceptions)
}

// Allowed compiles the patterns and evaluates repoName
// in one call. Prefer Compile when the same policy is
// evaluated repeatedly.
func Allowed(
	repoName string,
	whitelist []string,
	exceptions []string,
) (bool, error) {
	p, err := Compile(whitelist, exceptions)
	if err != nil {
		return false, err
	}

	return p.Allows(repoName).Allowed, nil
}

func compileAll(patterns []string) ([]matcher, error) {
	out := make([]matcher, 0, len(patterns))

	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf(
				"%w: pattern %q: %w",
				ErrConfig, pat, err,
			)
		}

		out = append(out, matcher{raw: pat, re: re})
	}

	return out, nil
}

// firstMatch returns the first pattern matching name,
// or empty string.
func firstMatch(ms []matcher, name string) string {
	for _, m := range ms {
		if m.re.MatchString(name) {
			return m.raw
		}
	}

	return ""
}

func raws(ms []matcher) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.raw)
	}

	return out
}
