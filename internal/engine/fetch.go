package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/skaphos/repomon/internal/credentials"
	"github.com/skaphos/repomon/internal/model"
)

// Fetcher performs a pruning fetch of one remote.
type Fetcher interface {
	Fetch(ctx context.Context, remote string, provider credentials.Provider, progress io.Writer) (model.FetchStats, error)
}

// FetchError reports a failed fetch. It matches ErrAuthenticationFailed or
// ErrFetchFailed through errors.Is.
type FetchError struct {
	Remote string
	Reason string
	Err    error
	auth   bool
}

func (e *FetchError) Error() string {
	if e.auth {
		return fmt.Sprintf("authentication failed for remote %s: %s", e.Remote, e.Reason)
	}
	return fmt.Sprintf("fetch of remote %s failed: %s", e.Remote, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	if e.auth {
		return target == ErrAuthenticationFailed
	}
	return target == ErrFetchFailed
}

func (e *FetchError) ErrorClass() string {
	if e.auth {
		return "auth"
	}
	return ""
}

// ProgressFunc returns the sink for transfer progress of one fetch, or nil.
type ProgressFunc func(repository, remote string) io.Writer

// FetchCoordinator runs fetches with injected credentials and progress sinks.
type FetchCoordinator struct {
	// Credentials supplies authentication. Nil means anonymous.
	Credentials credentials.Provider
	// Progress supplies the progress sink per fetch. Nil discards progress.
	Progress ProgressFunc
	// Timeout bounds a single fetch when positive.
	Timeout time.Duration
}

// Fetch fetches remote of the named repository with pruning. Failures are
// returned as *FetchError; context cancellation is returned unchanged.
func (f *FetchCoordinator) Fetch(ctx context.Context, repo Fetcher, repository, remote string) (model.FetchStats, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	var progress io.Writer
	if f.Progress != nil {
		progress = f.Progress(repository, remote)
	}

	stats, err := repo.Fetch(ctx, remote, f.Credentials, progress)
	if err == nil {
		return stats, nil
	}
	if errors.Is(err, context.Canceled) {
		return stats, err
	}
	return stats, &FetchError{Remote: remote, Reason: err.Error(), Err: err, auth: isAuthFailure(err)}
}

func isAuthFailure(err error) bool {
	return errors.Is(err, credentials.ErrUnavailable) ||
		errors.Is(err, credentials.ErrRejected) ||
		errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed)
}
