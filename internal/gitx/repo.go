// Package gitx is the go-git backed repository-access layer used by repomon.
// A Repo is not safe for concurrent use.
package gitx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/skaphos/repomon/internal/model"
)

// Remote is a configured remote of an on-disk repository.
type Remote struct {
	Name string
	URL  string
}

// Repo wraps an opened go-git repository.
type Repo struct {
	path string
	repo *git.Repository
}

// Open opens the repository at path or any parent of it.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &Repo{path: path, repo: repo}, nil
}

// IsRepo reports whether path is the root of a git repository.
func IsRepo(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}

// Path is the path the repository was opened with.
func (r *Repo) Path() string {
	return r.path
}

// Root returns the working tree root, or the opened path for bare repositories.
func (r *Repo) Root() string {
	wt, err := r.repo.Worktree()
	if err != nil {
		return r.path
	}
	return wt.Filesystem.Root()
}

// Close releases file handles held by the object storage.
func (r *Repo) Close() error {
	if closer, ok := r.repo.Storer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// CurrentBranch returns the branch HEAD is attached to, or "" when detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", nil
		}
		return "", err
	}
	if !head.Name().IsBranch() {
		return "", nil
	}
	return head.Name().Short(), nil
}

// Remotes lists configured remotes ordered by name.
func (r *Repo) Remotes(ctx context.Context) ([]Remote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	remotes, err := r.repo.Remotes()
	if err != nil {
		return nil, err
	}
	out := make([]Remote, 0, len(remotes))
	for _, remote := range remotes {
		cfg := remote.Config()
		entry := Remote{Name: cfg.Name}
		if len(cfg.URLs) > 0 {
			entry.URL = cfg.URLs[0]
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetRemoteURL points remote at url, creating the remote when it does not exist.
func (r *Repo) SetRemoteURL(name, url string) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return err
	}
	if remote, ok := cfg.Remotes[name]; ok {
		remote.URLs = []string{url}
	} else {
		cfg.Remotes[name] = &gitconfig.RemoteConfig{
			Name:  name,
			URLs:  []string{url},
			Fetch: []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf(gitconfig.DefaultFetchRefSpec, name))},
		}
	}
	return r.repo.Storer.SetConfig(cfg)
}

// RemoteNames lists configured remote names ordered by name.
func (r *Repo) RemoteNames(ctx context.Context) ([]string, error) {
	remotes, err := r.Remotes(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(remotes))
	for i, remote := range remotes {
		names[i] = remote.Name
	}
	return names, nil
}

// Branches enumerates local and remote-tracking branches visible in scope.
// Remote-tracking branches are named "<remote>/<branch>". Symbolic refs are
// followed; a ref that cannot be resolved is returned with an empty Target.
func (r *Repo) Branches(ctx context.Context, scope model.Scope) ([]model.BranchRef, error) {
	iter, err := r.repo.References()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []model.BranchRef
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := ref.Name()
		var branch model.BranchRef
		switch {
		case name.IsBranch():
			branch = model.BranchRef{Name: name.Short(), Scope: model.ScopeLocal}
		case name.IsRemote():
			branch = model.BranchRef{Name: strings.TrimPrefix(name.String(), "refs/remotes/"), Scope: model.ScopeRemote}
		default:
			return nil
		}
		if !scope.Includes(branch.Scope) {
			return nil
		}
		branch.Target = r.target(ref)
		out = append(out, branch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) target(ref *plumbing.Reference) model.CommitID {
	if ref.Type() == plumbing.SymbolicReference {
		resolved, err := storer.ResolveReference(r.repo.Storer, ref.Name())
		if err != nil {
			return ""
		}
		ref = resolved
	}
	if ref.Hash().IsZero() {
		return ""
	}
	return model.CommitID(ref.Hash().String())
}

// remoteTrackingRefs snapshots refs/remotes/<remote>/* as name → hash.
func (r *Repo) remoteTrackingRefs(remote string) (map[string]plumbing.Hash, error) {
	iter, err := r.repo.References()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	prefix := "refs/remotes/" + remote + "/"
	out := make(map[string]plumbing.Hash)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().String()
		if ref.Type() == plumbing.HashReference && strings.HasPrefix(name, prefix) {
			out[name] = ref.Hash()
		}
		return nil
	})
	return out, err
}
