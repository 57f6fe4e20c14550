// Package discovery walks a base directory to find git repositories and
// describes each one well enough to seed a repomon config.
package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/skaphos/repomon/internal/gitx"
	"github.com/skaphos/repomon/internal/model"
)

// Result represents a discovered git repository.
type Result struct {
	Path    string // absolute path to the repo root
	Name    string // slash-separated path relative to the scanned root
	Remotes []gitx.Remote
	Branch  string   // checked-out branch, empty when detached
	Tracked []string // remotes holding a remote-tracking ref for Branch, origin first
	Bare    bool
}

// Inspector describes the repository at dir.
type Inspector interface {
	Inspect(ctx context.Context, dir string) (Result, error)
}

// Options configures the discovery scan.
type Options struct {
	Roots          []string
	Exclude        []string // glob patterns to skip
	FollowSymlinks bool
	// Inspector defaults to a go-git backed implementation.
	Inspector Inspector
}

// Scan walks all roots and returns discovered repos.
// It skips directories matching exclude patterns and does not recurse
// into .git directories, matched exclusions or discovered repositories.
func Scan(ctx context.Context, opts Options) ([]Result, error) {
	if opts.Inspector == nil {
		opts.Inspector = GitInspector{}
	}

	visited := make(map[string]struct{})
	var results []Result
	skipDirs := make(map[string]struct{})

	for _, root := range opts.Roots {
		if root == "" {
			continue
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
			absRoot = resolved
		}
		w := walker{opts: opts, root: absRoot, visited: visited, skipDirs: skipDirs, results: &results}
		if err := w.walk(ctx, absRoot); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// MatchesExclude checks whether a path matches any of the given exclude
// glob patterns.
func MatchesExclude(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	slashPath := filepath.ToSlash(path)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		match, err := doublestar.Match(pattern, slashPath)
		if err != nil {
			continue
		}
		if match {
			return true
		}
	}
	return false
}

type walker struct {
	opts     Options
	root     string
	visited  map[string]struct{}
	skipDirs map[string]struct{}
	results  *[]Result
}

func (w walker) walk(ctx context.Context, dir string) error {
	realDir := dir
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		realDir = resolved
	}
	if _, ok := w.visited[realDir]; ok {
		return nil
	}
	w.visited[realDir] = struct{}{}

	return filepath.WalkDir(realDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		isSymlink := d.Type()&os.ModeSymlink != 0
		if !d.IsDir() && !isSymlink {
			return nil
		}
		if isSymlink {
			if !w.opts.FollowSymlinks {
				return nil
			}
			return w.followSymlink(ctx, path)
		}

		if _, ok := w.skipDirs[path]; ok {
			return fs.SkipDir
		}
		if d.Name() == ".git" {
			return fs.SkipDir
		}
		if MatchesExclude(path, w.opts.Exclude) {
			return fs.SkipDir
		}

		isRepoRoot, bare, gitdir := detectRepo(path)
		if !isRepoRoot {
			return nil
		}
		if gitdir != "" {
			w.skipDirs[gitdir] = struct{}{}
		}
		result, err := w.opts.Inspector.Inspect(ctx, path)
		if err != nil {
			return err
		}
		result.Path = path
		result.Name = w.name(path)
		result.Bare = result.Bare || bare
		*w.results = append(*w.results, result)
		return fs.SkipDir
	})
}

func (w walker) followSymlink(ctx context.Context, path string) error {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return nil
	}
	return w.walkAs(ctx, target, path)
}

// walkAs scans target but reports repositories under the symlink path.
func (w walker) walkAs(ctx context.Context, target, link string) error {
	var found []Result
	inner := walker{opts: w.opts, root: target, visited: w.visited, skipDirs: w.skipDirs, results: &found}
	if err := inner.walk(ctx, target); err != nil {
		return err
	}
	for _, result := range found {
		rel, err := filepath.Rel(target, result.Path)
		if err != nil {
			continue
		}
		result.Path = filepath.Join(link, rel)
		result.Name = w.name(result.Path)
		*w.results = append(*w.results, result)
	}
	return nil
}

func (w walker) name(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

// detectRepo reports whether dir is a repository root, whether it is bare and,
// for linked checkouts, the git directory the .git file points at.
func detectRepo(dir string) (bool, bool, string) {
	gitPath := filepath.Join(dir, ".git")
	if info, err := os.Stat(gitPath); err == nil {
		if info.Mode().IsRegular() {
			if gitdir, ok := gitdirFromFile(gitPath); ok {
				return true, false, gitdir
			}
			return false, false, ""
		}
		return true, false, ""
	}

	// Bare repo heuristic: HEAD file and objects dir.
	if _, err := os.Stat(filepath.Join(dir, "HEAD")); err == nil {
		if info, err := os.Stat(filepath.Join(dir, "objects")); err == nil && info.IsDir() {
			return true, true, ""
		}
	}
	return false, false, ""
}

func gitdirFromFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	content := strings.TrimSpace(string(data))
	if !strings.HasPrefix(content, "gitdir:") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(content, "gitdir:"))
	if raw == "" {
		return "", false
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw), true
	}
	return filepath.Clean(filepath.Join(filepath.Dir(path), raw)), true
}

// GitInspector reads remotes and the current branch with go-git.
type GitInspector struct{}

func (GitInspector) Inspect(ctx context.Context, dir string) (Result, error) {
	repo, err := gitx.Open(dir)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = repo.Close() }()

	remotes, err := repo.Remotes(ctx)
	if err != nil {
		return Result{}, err
	}
	branch, err := repo.CurrentBranch()
	if err != nil {
		return Result{}, err
	}
	result := Result{Remotes: remotes, Branch: branch}
	if branch == "" {
		return result, nil
	}

	tracking, err := repo.Branches(ctx, model.ScopeRemote)
	if err != nil {
		return Result{}, err
	}
	var tracked []string
	for _, remote := range remotes {
		want := remote.Name + "/" + branch
		if slices.ContainsFunc(tracking, func(ref model.BranchRef) bool { return ref.Name == want }) {
			tracked = append(tracked, remote.Name)
		}
	}
	result.Tracked = gitx.OrderRemotes(tracked)
	return result, nil
}
