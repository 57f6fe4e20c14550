package gitx

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/skaphos/repomon/internal/model"
)

// AheadBehind counts commits reachable from local but not remote (ahead) and
// from remote but not local (behind).
func (r *Repo) AheadBehind(ctx context.Context, local, remote model.CommitID) (model.Divergence, error) {
	if local == remote {
		if _, err := r.commit(local); err != nil {
			return model.Divergence{}, err
		}
		return model.Divergence{}, nil
	}
	localCommit, err := r.commit(local)
	if err != nil {
		return model.Divergence{}, err
	}
	remoteCommit, err := r.commit(remote)
	if err != nil {
		return model.Divergence{}, err
	}

	localSet, err := reachable(ctx, localCommit)
	if err != nil {
		return model.Divergence{}, err
	}
	remoteSet, err := reachable(ctx, remoteCommit)
	if err != nil {
		return model.Divergence{}, err
	}
	return model.Divergence{Ahead: countMissing(localSet, remoteSet), Behind: countMissing(remoteSet, localSet)}, nil
}

func countMissing(from, in map[plumbing.Hash]struct{}) int {
	n := 0
	for hash := range from {
		if _, ok := in[hash]; !ok {
			n++
		}
	}
	return n
}

func (r *Repo) commit(id model.CommitID) (*object.Commit, error) {
	hash := plumbing.NewHash(string(id))
	if hash.IsZero() {
		return nil, fmt.Errorf("invalid commit id %q: %w", id, ErrCorruptRepo)
	}
	c, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", id, err)
	}
	return c, nil
}

// reachable returns every commit in the history of start.
func reachable(ctx context.Context, start *object.Commit) (map[plumbing.Hash]struct{}, error) {
	out := make(map[plumbing.Hash]struct{})
	iter := object.NewCommitPreorderIter(start, nil, nil)
	defer iter.Close()
	err := iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out[c.Hash] = struct{}{}
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, err
	}
	return out, nil
}
