package engine_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/skaphos/repomon/internal/credentials"
	"github.com/skaphos/repomon/internal/engine"
	"github.com/skaphos/repomon/internal/model"
)

const (
	commitA model.CommitID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	commitB model.CommitID = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	commitC model.CommitID = "cccccccccccccccccccccccccccccccccccccccc"
)

type pair struct {
	local, remote model.CommitID
}

// fakeRepo is an in-memory engine.Repository.
type fakeRepo struct {
	mu         sync.Mutex
	branches   []model.BranchRef
	divergence map[pair]model.Divergence
	fetchErr   map[string]error
	branchErr  error
	worktree   []model.PathStatus
	// fetchHook runs inside Fetch before it returns.
	fetchHook func(ctx context.Context, remote string) error

	fetched   []string
	providers []credentials.Provider
	progress  []io.Writer
	active    atomic.Int32
	overlap   atomic.Bool
	closed    atomic.Bool
}

func newFakeRepo(branches ...model.BranchRef) *fakeRepo {
	return &fakeRepo{branches: branches, divergence: map[pair]model.Divergence{}, fetchErr: map[string]error{}}
}

func local(name string, target model.CommitID) model.BranchRef {
	return model.BranchRef{Name: name, Scope: model.ScopeLocal, Target: target}
}

func tracking(name string, target model.CommitID) model.BranchRef {
	return model.BranchRef{Name: name, Scope: model.ScopeRemote, Target: target}
}

func (f *fakeRepo) Branches(ctx context.Context, scope model.Scope) ([]model.BranchRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.branchErr != nil {
		return nil, f.branchErr
	}
	var out []model.BranchRef
	for _, b := range f.branches {
		if scope.Includes(b.Scope) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepo) Fetch(ctx context.Context, remote string, provider credentials.Provider, progress io.Writer) (model.FetchStats, error) {
	if f.active.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.active.Add(-1)

	f.mu.Lock()
	f.fetched = append(f.fetched, remote)
	f.providers = append(f.providers, provider)
	f.progress = append(f.progress, progress)
	err := f.fetchErr[remote]
	hook := f.fetchHook
	f.mu.Unlock()

	if hook != nil {
		if hookErr := hook(ctx, remote); hookErr != nil {
			return model.FetchStats{Remote: remote}, hookErr
		}
	}
	if err != nil {
		return model.FetchStats{Remote: remote}, err
	}
	if progress != nil {
		_, _ = io.WriteString(progress, "Receiving objects: 100%\n")
	}
	return model.FetchStats{Remote: remote, UpToDate: true}, nil
}

func (f *fakeRepo) AheadBehind(ctx context.Context, l, r model.CommitID) (model.Divergence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l == r {
		return model.Divergence{}, nil
	}
	d, ok := f.divergence[pair{l, r}]
	if !ok {
		return model.Divergence{}, errors.New("object not found")
	}
	return d, nil
}

func (f *fakeRepo) WorktreeStatus(ctx context.Context) ([]model.PathStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.worktree, nil
}

func (f *fakeRepo) RemoteNames(ctx context.Context) ([]string, error) {
	return []string{"gh", "origin"}, nil
}

func (f *fakeRepo) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeRepo) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

// collector records published messages.
type collector struct {
	mu   sync.Mutex
	msgs []model.StatusMessage
}

func (c *collector) Publish(msg model.StatusMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) all() []model.StatusMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.StatusMessage(nil), c.msgs...)
}

func (c *collector) count(repository, branch string) int {
	n := 0
	for _, msg := range c.all() {
		if msg.Repository == repository && msg.Branch == branch {
			n++
		}
	}
	return n
}

// openerFor maps paths to fake repositories; unknown paths fail to open.
func openerFor(repos map[string]*fakeRepo) engine.Opener {
	return engine.OpenerFunc(func(path string) (engine.Repository, error) {
		if repo, ok := repos[path]; ok {
			return repo, nil
		}
		return nil, errors.New("repository does not exist")
	})
}
