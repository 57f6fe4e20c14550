package gitx

import (
	"context"
	"errors"
	"sort"

	"github.com/go-git/go-git/v5"

	"github.com/skaphos/repomon/internal/model"
)

// WorktreeStatus lists every path whose index or working-tree state differs
// from HEAD, untracked files included and ignored files excluded. Bare
// repositories report no entries.
func (r *Repo) WorktreeStatus(ctx context.Context) ([]model.PathStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		if errors.Is(err, git.ErrIsBareRepository) {
			return nil, nil
		}
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}

	out := make([]model.PathStatus, 0, len(status))
	for path, fs := range status {
		out = append(out, model.PathStatus{Path: path, Flags: StatusFlags(fs.Staging, fs.Worktree)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// StatusFlags maps go-git staging and worktree codes onto the status vocabulary.
// go-git reports no type changes and never lists ignored paths, so
// idx-typechange, wt-typechange and ignored are not produced here.
func StatusFlags(staging, worktree git.StatusCode) model.StatusFlags {
	var flags model.StatusFlags
	switch staging {
	case git.Added, git.Copied:
		flags = flags.With(model.FlagIndexNew)
	case git.Modified:
		flags = flags.With(model.FlagIndexModified)
	case git.Deleted:
		flags = flags.With(model.FlagIndexDeleted)
	case git.Renamed:
		flags = flags.With(model.FlagIndexRenamed)
	case git.UpdatedButUnmerged:
		flags = flags.With(model.FlagConflicted)
	}
	switch worktree {
	case git.Untracked:
		flags = flags.With(model.FlagWorktreeNew)
	case git.Modified:
		flags = flags.With(model.FlagWorktreeModified)
	case git.Deleted:
		flags = flags.With(model.FlagWorktreeDeleted)
	case git.Renamed:
		flags = flags.With(model.FlagWorktreeRenamed)
	case git.UpdatedButUnmerged:
		flags = flags.With(model.FlagConflicted)
	}
	return flags
}
