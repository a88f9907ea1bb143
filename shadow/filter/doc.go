// Package filter decides whether a repository takes part in shadow
// synchronization. A Policy holds a whitelist and an exception list of
// regular expressions matched against the repository short name.
//
// The whitelist is evaluated first: when it is non-empty the name must match
// at least one pattern. Any exception match then excludes the repository.
// Compile the patterns once with Compile and reuse the Policy for every
// event; Allowed is the one-shot form that compiles on each call.
package filter
