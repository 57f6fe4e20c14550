package engine

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
)

// RepositoryPool opens repositories lazily and allows one check cycle per
// repository at a time. Different repositories are independent.
type RepositoryPool struct {
	opener Opener

	mu      sync.Mutex
	entries map[string]*poolEntry
	closed  bool
}

type poolEntry struct {
	// slot is a one-token semaphore; holding it grants exclusive use of repo.
	slot chan struct{}
	repo Repository
}

// NewRepositoryPool returns a pool opening repositories with opener.
func NewRepositoryPool(opener Opener) *RepositoryPool {
	return &RepositoryPool{opener: opener, entries: make(map[string]*poolEntry)}
}

var errPoolClosed = errors.New("repository pool closed")

// Acquire waits for exclusive use of the repository at path, opening it on
// first use. The returned release func must be called exactly once.
func (p *RepositoryPool) Acquire(ctx context.Context, path string) (Repository, func(), error) {
	key := filepath.Clean(path)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, nil, errPoolClosed
	}
	entry, ok := p.entries[key]
	if !ok {
		entry = &poolEntry{slot: make(chan struct{}, 1)}
		p.entries[key] = entry
	}
	p.mu.Unlock()

	select {
	case entry.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	release := func() { <-entry.slot }

	if entry.repo == nil {
		repo, err := p.opener.Open(key)
		if err != nil {
			release()
			return nil, nil, err
		}
		entry.repo = repo
	}
	return entry.repo, release, nil
}

// Retain closes and forgets every repository whose path is not in keep.
// Callers must ensure no cycle is using those repositories.
func (p *RepositoryPool) Retain(keep map[string]struct{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for key, entry := range p.entries {
		if _, ok := keep[key]; ok {
			continue
		}
		errs = append(errs, closeRepository(entry.repo))
		delete(p.entries, key)
	}
	return errors.Join(errs...)
}

// Close releases every opened repository. Later Acquire calls fail.
func (p *RepositoryPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	for key, entry := range p.entries {
		errs = append(errs, closeRepository(entry.repo))
		delete(p.entries, key)
	}
	return errors.Join(errs...)
}

func closeRepository(repo Repository) error {
	if closer, ok := repo.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
