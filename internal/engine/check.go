package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/skaphos/repomon/internal/logging"
	"github.com/skaphos/repomon/internal/model"
)

// Checker runs check cycles: for each remote of a branch, fetch, resolve the
// local and remote-tracking refs, compute divergence, then emit one message.
type Checker struct {
	fetcher  *FetchCoordinator
	emitter  *Emitter
	classify func(error) string
	worktree bool
	logger   *zap.SugaredLogger
}

// CheckerOptions configures a Checker.
type CheckerOptions struct {
	Fetcher *FetchCoordinator
	Emitter *Emitter
	// Classify maps per-remote errors to coarse classes. Defaults to DefaultClassify.
	Classify func(error) string
	// IncludeWorktree attaches working-tree entries to each message.
	IncludeWorktree bool
	Logger          *zap.SugaredLogger
}

// NewChecker builds a Checker. Missing collaborators get no-op defaults.
func NewChecker(opts CheckerOptions) *Checker {
	c := &Checker{
		fetcher:  opts.Fetcher,
		emitter:  opts.Emitter,
		classify: opts.Classify,
		worktree: opts.IncludeWorktree,
		logger:   logging.Nop(opts.Logger),
	}
	if c.fetcher == nil {
		c.fetcher = &FetchCoordinator{}
	}
	if c.emitter == nil {
		c.emitter = NewEmitter(nil)
	}
	if c.classify == nil {
		c.classify = DefaultClassify
	}
	return c
}

// Check runs one cycle of branch against remotes. It returns false, and emits
// nothing, when ctx is cancelled before the message is published.
func (c *Checker) Check(ctx context.Context, repo Repository, repository, branch string, remotes []string) (model.StatusMessage, bool) {
	started := time.Now()

	var paths []model.PathStatus
	if c.worktree {
		var err error
		if paths, err = repo.WorktreeStatus(ctx); err != nil {
			c.logger.Warnw("worktree status failed", "repository", repository, "branch", branch, "error", err)
		}
	}

	results := make([]RemoteResult, 0, len(remotes))
	for _, remote := range remotes {
		if ctx.Err() != nil {
			return model.StatusMessage{}, false
		}
		results = append(results, c.checkRemote(ctx, repo, repository, branch, remote, paths))
	}

	if ctx.Err() != nil {
		return model.StatusMessage{}, false
	}
	msg := c.emitter.Emit(repository, branch, results, paths)
	c.logger.Debugw("check cycle complete",
		"repository", repository, "branch", branch, "remotes", len(remotes),
		"failed", len(msg.ErrorClasses), "elapsed", time.Since(started))
	return msg, true
}

func (c *Checker) checkRemote(ctx context.Context, repo Repository, repository, branch, remote string, paths []model.PathStatus) RemoteResult {
	res := RemoteResult{Remote: remote}
	fail := func(err error) RemoteResult {
		res.Err = err
		res.ErrorClass = c.classify(err)
		res.Status = ErrorStatusText(remote, branch, err)
		c.logger.Infow("remote check failed",
			"repository", repository, "branch", branch, "remote", remote,
			"class", res.ErrorClass, "error", err)
		return res
	}

	stats, err := c.fetcher.Fetch(ctx, repo, repository, remote)
	res.Fetch = stats
	if err != nil {
		return fail(err)
	}
	c.logger.Debugw("fetched", "repository", repository, "remote", remote,
		"up_to_date", stats.UpToDate, "created", stats.Created, "updated", stats.Updated, "pruned", stats.Pruned)

	local, err := Resolve(ctx, repo, branch, model.ScopeLocal)
	if err != nil {
		return fail(err)
	}
	tracking, err := Resolve(ctx, repo, remote+"/"+branch, model.ScopeRemote)
	if err != nil {
		return fail(err)
	}
	d, err := Diverge(ctx, repo, local.CommitID, tracking.CommitID, paths)
	if err != nil {
		return fail(err)
	}
	res.Divergence = d
	res.Status = StatusText(remote, branch, d.Divergence)
	return res
}

// Unavailable builds the message for a cycle that could not open its
// repository: every remote carries the same error.
func (c *Checker) Unavailable(repository, branch string, remotes []string, err error) model.StatusMessage {
	results := make([]RemoteResult, 0, len(remotes))
	class := c.classify(err)
	for _, remote := range remotes {
		results = append(results, RemoteResult{
			Remote:     remote,
			Status:     ErrorStatusText(remote, branch, err),
			Err:        err,
			ErrorClass: class,
		})
	}
	return c.emitter.Emit(repository, branch, results, nil)
}
