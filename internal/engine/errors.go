package engine

import (
	"context"
	"errors"
)

var (
	// ErrRefNotFound: no branch in scope resolves under the requested name.
	ErrRefNotFound = errors.New("ref not found")
	// ErrAmbiguousRef: several branches share the name but point at different commits.
	ErrAmbiguousRef = errors.New("ambiguous ref")
	// ErrUnresolvableRef: the only matching branch does not point at a commit.
	ErrUnresolvableRef = errors.New("unresolvable ref")
	// ErrAuthenticationFailed: no usable credentials for the remote.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrFetchFailed: the fetch failed for a network or protocol reason.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrRepositoryAccess: the repository could not be opened or read.
	ErrRepositoryAccess = errors.New("repository access error")
)

type errorClassifier interface {
	ErrorClass() string
}

// DefaultClassify returns the class an engine error carries, "timeout" for
// context errors and "unknown" otherwise.
func DefaultClassify(err error) string {
	if err == nil {
		return ""
	}
	var classified errorClassifier
	if errors.As(err, &classified) {
		if class := classified.ErrorClass(); class != "" {
			return class
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, ErrFetchFailed) {
		return "fetch"
	}
	return "unknown"
}
