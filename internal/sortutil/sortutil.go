// Package sortutil holds the deterministic orderings shared by engine output
// and CLI rendering.
package sortutil

import (
	"sort"

	"github.com/skaphos/repomon/internal/model"
)

// LessRepositoryBranch orders by repository name first, then by branch name.
func LessRepositoryBranch(repoI, branchI, repoJ, branchJ string) bool {
	if repoI == repoJ {
		return branchI < branchJ
	}
	return repoI < repoJ
}

// SortMessages orders status messages by repository, then branch. Messages
// for the same pair keep their emission order.
func SortMessages(msgs []model.StatusMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return LessRepositoryBranch(msgs[i].Repository, msgs[i].Branch, msgs[j].Repository, msgs[j].Branch)
	})
}

// SortWorktree orders working-tree entries by path.
func SortWorktree(entries []model.WorktreeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
}
