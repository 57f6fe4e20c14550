package gitx

import (
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// NormalizeURL reduces a remote URL to host/path so that different spellings
// of the same remote compare equal.
//
//	git@github.com:Org/Repo.git     → github.com/Org/Repo
//	https://github.com/Org/Repo.git → github.com/Org/Repo
func NormalizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	endpoint, err := transport.NewEndpoint(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.ToLower(endpoint.Host)
	path := strings.TrimPrefix(endpoint.Path, "/")
	path = strings.TrimRight(strings.TrimSuffix(strings.TrimRight(path, "/"), ".git"), "/")
	if host == "" {
		return path
	}
	return host + "/" + path
}

// SameRemote reports whether two remote URLs point at the same repository.
func SameRemote(a, b string) bool {
	return a != "" && NormalizeURL(a) == NormalizeURL(b)
}

// OrderRemotes returns names with "origin" first and the rest alphabetical.
func OrderRemotes(names []string) []string {
	ordered := make([]string, 0, len(names))
	rest := make([]string, 0, len(names))
	for _, name := range names {
		if name == "origin" {
			ordered = append(ordered, name)
			continue
		}
		rest = append(rest, name)
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}
