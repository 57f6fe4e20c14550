// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"errors"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/skaphos/repomon/internal/credentials"
)

var (
	// ErrNetworkFailure marks network/transport failures.
	ErrNetworkFailure = errors.New("git network error")
	// ErrCorruptRepo marks corrupt or invalid-repository failures.
	ErrCorruptRepo = errors.New("git corrupt repository")
	// ErrMissingRemoteRef marks missing upstream/ref/remote failures.
	ErrMissingRemoteRef = errors.New("git missing remote")
)

// Classifier lets callers contribute classes for their own error types.
type Classifier interface {
	ErrorClass() string
}

// ClassifyError maps git errors into broad actionable categories.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	var classified Classifier
	if errors.As(err, &classified) {
		if class := classified.ErrorClass(); class != "" {
			return class
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, credentials.ErrUnavailable),
		errors.Is(err, credentials.ErrRejected),
		errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return "auth"
	case errors.Is(err, ErrNetworkFailure):
		return "network"
	case errors.Is(err, ErrCorruptRepo), errors.Is(err, git.ErrRepositoryNotExists), errors.Is(err, plumbing.ErrObjectNotFound):
		return "corrupt"
	case errors.Is(err, ErrMissingRemoteRef),
		errors.Is(err, git.ErrRemoteNotFound),
		errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository):
		return "missing_remote"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "permission denied", "authentication failed", "unable to authenticate", "access denied", "publickey", "could not read username", "credential"):
		return "auth"
	case containsAny(msg, "could not resolve host", "no such host", "network is unreachable", "connection refused", "connection timed out", "failed to connect", "temporary failure in name resolution", "tls handshake timeout"):
		return "network"
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return "timeout"
	case containsAny(msg, "not a git repository", "repository does not exist", "bad object", "corrupt", "object not found"):
		return "corrupt"
	case containsAny(msg, "repository not found", "couldn't find remote ref", "remote ref does not exist", "no such remote", "remote not found"):
		return "missing_remote"
	default:
		return "unknown"
	}
}

// IsAuthError reports whether err is a credential or authorization failure.
func IsAuthError(err error) bool {
	return ClassifyError(err) == "auth"
}

func containsAny(msg string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
