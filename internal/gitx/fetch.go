package gitx

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/skaphos/repomon/internal/credentials"
	"github.com/skaphos/repomon/internal/model"
)

// Fetch performs a pruning fetch of remote. SSH remotes get credentials from
// provider up front. HTTP remotes are fetched anonymously and provider is
// consulted only once the server asks for authentication. Transfer progress
// and side-band text are written to progress verbatim; write errors are
// ignored.
func (r *Repo) Fetch(ctx context.Context, remoteName string, provider credentials.Provider, progress io.Writer) (model.FetchStats, error) {
	stats := model.FetchStats{Remote: remoteName}

	remote, err := r.repo.Remote(remoteName)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return stats, fmt.Errorf("remote %q: %w", remoteName, ErrMissingRemoteRef)
		}
		return stats, err
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return stats, fmt.Errorf("remote %q has no url: %w", remoteName, ErrMissingRemoteRef)
	}

	opts := &git.FetchOptions{RemoteName: remoteName, Prune: true}
	kind, user, err := credentials.KindForURL(urls[0])
	if err != nil {
		return stats, fmt.Errorf("remote %q: %w", remoteName, err)
	}
	if provider != nil && kind == credentials.KindSSHKey {
		auth, err := provider.Credentials(ctx, urls[0], user, kind)
		if err != nil {
			return stats, fmt.Errorf("credentials for %s: %w", urls[0], err)
		}
		opts.Auth = auth
	}
	if progress != nil {
		opts.Progress = sinkWriter{w: progress}
	}

	before, err := r.remoteTrackingRefs(remoteName)
	if err != nil {
		return stats, err
	}
	err = r.repo.FetchContext(ctx, opts)
	if authRequested(err) && provider != nil && kind == credentials.KindUserPass && opts.Auth == nil {
		auth, credErr := provider.Credentials(ctx, urls[0], user, kind)
		if credErr != nil {
			return stats, fmt.Errorf("credentials for %s: %w", urls[0], credErr)
		}
		opts.Auth = auth
		err = r.repo.FetchContext(ctx, opts)
	}
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		stats.UpToDate = true
	case err != nil:
		return stats, wrapFetchError(remoteName, err)
	}

	after, err := r.remoteTrackingRefs(remoteName)
	if err != nil {
		return stats, err
	}
	for name, hash := range after {
		old, ok := before[name]
		switch {
		case !ok:
			stats.Created++
		case old != hash:
			stats.Updated++
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			stats.Pruned++
		}
	}
	stats.UpToDate = stats.Created == 0 && stats.Updated == 0 && stats.Pruned == 0
	return stats, nil
}

func authRequested(err error) bool {
	return errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed)
}

func wrapFetchError(remote string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if authRequested(err) {
		return fmt.Errorf("fetch %s: %w: %w", remote, credentials.ErrRejected, err)
	}
	switch ClassifyError(err) {
	case "auth":
		return fmt.Errorf("fetch %s: %w: %w", remote, credentials.ErrRejected, err)
	case "network":
		return fmt.Errorf("fetch %s: %w: %w", remote, ErrNetworkFailure, err)
	}
	return fmt.Errorf("fetch %s: %w", remote, err)
}

// sinkWriter keeps a failing progress sink from aborting the transfer.
type sinkWriter struct {
	w io.Writer
}

func (s sinkWriter) Write(p []byte) (int, error) {
	_, _ = s.w.Write(p)
	return len(p), nil
}
