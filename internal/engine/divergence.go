package engine

import (
	"context"
	"fmt"

	"github.com/skaphos/repomon/internal/model"
)

// CommitGraph computes ahead/behind counts between two commits.
type CommitGraph interface {
	AheadBehind(ctx context.Context, local, remote model.CommitID) (model.Divergence, error)
}

// WorktreeSource enumerates changed paths.
type WorktreeSource interface {
	WorktreeStatus(ctx context.Context) ([]model.PathStatus, error)
}

// AheadBehind returns how far local is ahead of and behind remote.
func AheadBehind(ctx context.Context, graph CommitGraph, local, remote model.CommitID) (model.Divergence, error) {
	d, err := graph.AheadBehind(ctx, local, remote)
	if err != nil {
		return model.Divergence{}, err
	}
	if d.Ahead < 0 || d.Behind < 0 {
		return model.Divergence{}, fmt.Errorf("negative ahead/behind %d/%d for %s..%s", d.Ahead, d.Behind, shortID(local), shortID(remote))
	}
	return d, nil
}

// Diverge combines the commit relationship with the working-tree state.
func Diverge(ctx context.Context, graph CommitGraph, local, remote model.CommitID, paths []model.PathStatus) (model.DivergenceResult, error) {
	d, err := AheadBehind(ctx, graph, local, remote)
	if err != nil {
		return model.DivergenceResult{}, err
	}
	flags, _ := ClassifyWorktree(paths)
	return model.DivergenceResult{Divergence: d, WorktreeFlags: flags}, nil
}

// ClassifyWorktree renders each changed path with its comma-joined flags and
// returns the union of all flags. Paths with no recognised flag are omitted.
func ClassifyWorktree(paths []model.PathStatus) (model.StatusFlags, []model.WorktreeEntry) {
	var union model.StatusFlags
	entries := make([]model.WorktreeEntry, 0, len(paths))
	for _, p := range paths {
		if p.Flags == 0 {
			continue
		}
		union |= p.Flags
		entries = append(entries, model.WorktreeEntry{Path: p.Path, Status: p.Flags.String()})
	}
	return union, entries
}

// StatusText renders the relationship of branch to remote/branch.
func StatusText(remote, branch string, d model.Divergence) string {
	tracking := remote + "/" + branch
	switch d.State() {
	case model.DivergenceAhead:
		return fmt.Sprintf("Your branch is ahead of '%s' by %d commit(s)", tracking, d.Ahead)
	case model.DivergenceBehind:
		return fmt.Sprintf("Your branch is behind '%s' by %d commit(s)", tracking, d.Behind)
	case model.DivergenceDiverged:
		return fmt.Sprintf("Your branch and '%s' have diverged, and have %d and %d different commits each, respectively", tracking, d.Ahead, d.Behind)
	default:
		return fmt.Sprintf("Your branch is up to date with '%s'", tracking)
	}
}

// ErrorStatusText renders a failed comparison of branch with remote/branch.
func ErrorStatusText(remote, branch string, err error) string {
	return fmt.Sprintf("Unable to compare with '%s/%s': %v", remote, branch, err)
}
