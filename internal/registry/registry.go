// SPDX-License-Identifier: MIT
// Package registry checks the repositories named in a config against the
// filesystem and records the remotes of those that are present.
package registry

import (
	"context"
	"errors"
	"os"

	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/gitx"
)

// EntryStatus represents whether a configured repository is still on disk.
type EntryStatus string

const (
	StatusPresent EntryStatus = "present"
	StatusMissing EntryStatus = "missing"
	// StatusInvalid marks a path that exists but cannot be opened as a repository.
	StatusInvalid EntryStatus = "invalid"
)

// Entry is the on-disk state of one configured repository.
type Entry struct {
	Repository string
	Path       string
	Status     EntryStatus
	// Remotes are the live remotes of a present repository.
	Remotes []gitx.Remote
	// Error explains StatusInvalid.
	Error string
}

// Registry holds one entry per configured repository, ordered by name.
type Registry struct {
	Entries []Entry
}

// RemoteReader returns the remotes of the repository at path.
type RemoteReader func(ctx context.Context, path string) ([]gitx.Remote, error)

// GitRemotes reads remotes through gitx.
func GitRemotes(ctx context.Context, path string) ([]gitx.Remote, error) {
	repo, err := gitx.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = repo.Close() }()
	return repo.Remotes(ctx)
}

// Build stats every configured repository path and reads the remotes of those
// that exist. A nil read uses GitRemotes.
func Build(ctx context.Context, cfg *config.Config, read RemoteReader) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if read == nil {
		read = GitRemotes
	}
	reg := &Registry{}
	for _, name := range cfg.RepoNames() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := Entry{Repository: name, Path: cfg.RepoPath(name), Status: StatusPresent}
		if _, err := os.Stat(entry.Path); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			entry.Status = StatusMissing
		} else if remotes, err := read(ctx, entry.Path); err != nil {
			entry.Status = StatusInvalid
			entry.Error = err.Error()
		} else {
			entry.Remotes = remotes
		}
		reg.Entries = append(reg.Entries, entry)
	}
	return reg, nil
}

// Find returns the entry of the named repository, or nil.
func (r *Registry) Find(name string) *Entry {
	for i := range r.Entries {
		if r.Entries[i].Repository == name {
			return &r.Entries[i]
		}
	}
	return nil
}

// WithStatus returns the entries in status.
func (r *Registry) WithStatus(status EntryStatus) []Entry {
	var out []Entry
	for _, entry := range r.Entries {
		if entry.Status == status {
			out = append(out, entry)
		}
	}
	return out
}

// Prune returns a copy of cfg without the repositories whose path is missing,
// together with the names it removed. cfg is not modified.
func (r *Registry) Prune(cfg *config.Config) (*config.Config, []string) {
	out := cfg.Clone()
	var pruned []string
	for _, entry := range r.WithStatus(StatusMissing) {
		if _, ok := out.Repos[entry.Repository]; ok {
			delete(out.Repos, entry.Repository)
			pruned = append(pruned, entry.Repository)
		}
	}
	return out, pruned
}
