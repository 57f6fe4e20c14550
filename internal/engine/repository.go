// Package engine is the repository-monitoring core: it resolves branch refs,
// computes divergence, runs fetch-and-compare check cycles on a schedule and
// emits one status message per (repository, branch) cycle.
package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/skaphos/repomon/internal/credentials"
	"github.com/skaphos/repomon/internal/model"
)

// Repository is the repository-access capability the engine reads through.
// Implementations need not be safe for concurrent use; the engine serializes
// access per repository.
type Repository interface {
	Branches(ctx context.Context, scope model.Scope) ([]model.BranchRef, error)
	Fetch(ctx context.Context, remote string, provider credentials.Provider, progress io.Writer) (model.FetchStats, error)
	AheadBehind(ctx context.Context, local, remote model.CommitID) (model.Divergence, error)
	WorktreeStatus(ctx context.Context) ([]model.PathStatus, error)
	RemoteNames(ctx context.Context) ([]string, error)
}

// Opener opens the repository stored at path.
type Opener interface {
	Open(path string) (Repository, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Repository, error)

func (f OpenerFunc) Open(path string) (Repository, error) {
	return f(path)
}

// RepositoryError reports a repository that could not be opened or read.
// It is fatal for every task of that repository.
type RepositoryError struct {
	Repository string
	Path       string
	Err        error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s (%s): %v", e.Repository, e.Path, e.Err)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

func (e *RepositoryError) Is(target error) bool {
	return target == ErrRepositoryAccess
}

func (e *RepositoryError) ErrorClass() string {
	return "repository"
}
