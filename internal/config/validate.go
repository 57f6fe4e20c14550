package config

import (
	"fmt"
	"strings"

	"github.com/skaphos/repomon/internal/interval"
)

// ConfigError reports a configuration that cannot be used. It is fatal at load.
type ConfigError struct {
	// Path is the config file, when known.
	Path string
	// Problems lists every issue found.
	Problems []string
	// Err is the underlying decode error, if any.
	Err error
}

func (e *ConfigError) Error() string {
	prefix := "invalid config"
	if e.Path != "" {
		prefix = fmt.Sprintf("invalid config %s", e.Path)
	}
	return prefix + ": " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Validate checks names, intervals and remote references. All problems are
// collected into a single *ConfigError.
func Validate(cfg *Config) error {
	if cfg == nil {
		return &ConfigError{Problems: []string{"config is nil"}}
	}
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for _, name := range cfg.RepoNames() {
		repo := cfg.Repos[name]
		if strings.TrimSpace(name) == "" {
			add("repository name must not be empty")
		}
		if strings.TrimSpace(cfg.Basedir) == "" && strings.TrimSpace(repo.Path) == "" {
			add("repository %q: basedir or path is required", name)
		}

		remotes := make(map[string]struct{}, len(repo.Remotes))
		for i, remote := range repo.Remotes {
			if strings.TrimSpace(remote.Name) == "" {
				add("repository %q: remote #%d has no name", name, i+1)
				continue
			}
			if _, dup := remotes[remote.Name]; dup {
				add("repository %q: duplicate remote %q", name, remote.Name)
			}
			remotes[remote.Name] = struct{}{}
			if strings.TrimSpace(remote.URL) == "" {
				add("repository %q: remote %q has no url", name, remote.Name)
			}
		}

		branches := make(map[string]struct{}, len(repo.Branches))
		for i, branch := range repo.Branches {
			if strings.TrimSpace(branch.Name) == "" {
				add("repository %q: branch #%d has no name", name, i+1)
				continue
			}
			if _, dup := branches[branch.Name]; dup {
				add("repository %q: duplicate branch %q", name, branch.Name)
			}
			branches[branch.Name] = struct{}{}
			if !interval.Valid(branch.Interval) {
				add("repository %q: branch %q: invalid interval %q", name, branch.Name, branch.Interval)
			}
			seen := make(map[string]struct{}, len(branch.Remotes))
			for _, ref := range branch.Remotes {
				if _, ok := remotes[ref]; !ok {
					add("repository %q: branch %q references unknown remote %q", name, branch.Name, ref)
				}
				if _, dup := seen[ref]; dup {
					add("repository %q: branch %q lists remote %q more than once", name, branch.Name, ref)
				}
				seen[ref] = struct{}{}
			}
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}
