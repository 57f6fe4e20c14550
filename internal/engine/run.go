package engine

import (
	"context"
	"errors"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/model"
	"github.com/skaphos/repomon/internal/sortutil"
)

// RunOptions configures a single pass over a config.
type RunOptions struct {
	Checker *Checker
	Opener  Opener
	// Concurrency bounds how many repositories are checked at once. Zero means 4.
	Concurrency int
	// Repos restricts the pass to these repository names when non-empty.
	Repos []string
}

// Report is the result of a single pass.
type Report struct {
	Messages []model.StatusMessage
	// RepositoryErrors lists repositories that could not be opened.
	RepositoryErrors []*RepositoryError
}

// Failed reports whether any remote entry in r is an error.
func (r *Report) Failed() bool {
	for _, msg := range r.Messages {
		if msg.Failed() {
			return true
		}
	}
	return len(r.RepositoryErrors) > 0
}

// RunOnce checks every branch with remotes once. Repositories run in
// parallel; branches of one repository run one after another. Per-remote
// failures are reported in the messages, not as an error.
func RunOnce(ctx context.Context, cfg *config.Config, opts RunOptions) (*Report, error) {
	if opts.Checker == nil || opts.Opener == nil {
		return nil, errors.New("run requires a checker and an opener")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	names := cfg.RepoNames()
	if len(opts.Repos) > 0 {
		wanted := make(map[string]struct{}, len(opts.Repos))
		for _, name := range opts.Repos {
			wanted[name] = struct{}{}
		}
		filtered := names[:0]
		for _, name := range names {
			if _, ok := wanted[name]; ok {
				filtered = append(filtered, name)
			}
		}
		names = filtered
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	results := make([][]model.StatusMessage, len(names))
	repoErrs := make([]*RepositoryError, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, name := range names {
		g.Go(func() error {
			results[i], repoErrs[i] = runRepository(gctx, cfg, name, opts)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	for i := range names {
		report.Messages = append(report.Messages, results[i]...)
		if repoErrs[i] != nil {
			report.RepositoryErrors = append(report.RepositoryErrors, repoErrs[i])
		}
	}
	sortutil.SortMessages(report.Messages)
	return report, nil
}

func runRepository(ctx context.Context, cfg *config.Config, name string, opts RunOptions) ([]model.StatusMessage, *RepositoryError) {
	repoCfg := cfg.Repos[name]
	var branches []config.Branch
	for _, branch := range repoCfg.Branches {
		if len(branch.Remotes) > 0 {
			branches = append(branches, branch)
		}
	}
	if len(branches) == 0 {
		return nil, nil
	}

	path := filepath.Clean(cfg.RepoPath(name))
	repo, err := opts.Opener.Open(path)
	if err != nil {
		repoErr := &RepositoryError{Repository: name, Path: path, Err: err}
		msgs := make([]model.StatusMessage, 0, len(branches))
		for _, branch := range branches {
			msgs = append(msgs, opts.Checker.Unavailable(name, branch.Name, branch.Remotes, repoErr))
		}
		return msgs, repoErr
	}
	defer func() { _ = closeRepository(repo) }()

	msgs := make([]model.StatusMessage, 0, len(branches))
	for _, branch := range branches {
		msg, ok := opts.Checker.Check(ctx, repo, name, branch.Name, branch.Remotes)
		if !ok {
			break
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
