// Package github implements a git.GitProvider that opens pull requests on
// GitHub (cloud or enterprise). Configure with a Config containing the access
// token. Set EnterpriseHost for GitHub Enterprise installations, or APIURL to
// point the client at an arbitrary REST endpoint.
package github
