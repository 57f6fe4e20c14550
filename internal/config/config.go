// Package config handles loading, saving, validating and resolving the repomon
// repository-set configuration file.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

const (
	// LocalConfigFilename is the per-directory repomon config file.
	LocalConfigFilename = ".repomon.toml"
	// GlobalConfigFilename is the file name used inside the platform config directory.
	GlobalConfigFilename = "config.toml"
	// EnvConfig overrides config path resolution.
	EnvConfig = "REPOMON_CONFIG"
)

// Config is the set of monitored repositories. Values loaded from disk are
// treated as immutable snapshots; use Clone before modifying one that is in use.
type Config struct {
	// Basedir is the directory repository names are resolved against.
	Basedir string `toml:"basedir" yaml:"basedir"`
	// Repos maps repository name to its configuration.
	Repos map[string]Repository `toml:"repos" yaml:"repos"`
}

// Repository lists the remotes and monitored branches of one repository.
type Repository struct {
	// Path overrides the default location of basedir/<name>. Relative paths are
	// resolved against basedir.
	Path     string   `toml:"path,omitempty" yaml:"path,omitempty"`
	Remotes  []Remote `toml:"remotes,omitempty" yaml:"remotes,omitempty"`
	Branches []Branch `toml:"branch,omitempty" yaml:"branch,omitempty"`
}

// Remote is a named fetch URL.
type Remote struct {
	Name string `toml:"name" yaml:"name"`
	URL  string `toml:"url" yaml:"url"`
}

// Branch is one monitored local branch.
type Branch struct {
	Name     string   `toml:"name" yaml:"name"`
	Interval string   `toml:"interval" yaml:"interval"`
	Remotes  []string `toml:"remotes" yaml:"remotes"`
}

// Equal reports whether b and other describe the same monitored branch.
func (b Branch) Equal(other Branch) bool {
	return b.Name == other.Name && b.Interval == other.Interval && slices.Equal(b.Remotes, other.Remotes)
}

// Remote returns the remote named name.
func (r Repository) Remote(name string) (Remote, bool) {
	for _, remote := range r.Remotes {
		if remote.Name == name {
			return remote, true
		}
	}
	return Remote{}, false
}

// Branch returns the monitored branch named name.
func (r Repository) Branch(name string) (Branch, bool) {
	for _, branch := range r.Branches {
		if branch.Name == name {
			return branch, true
		}
	}
	return Branch{}, false
}

// RepoNames returns repository names in sorted order.
func (c *Config) RepoNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Repos))
	for name := range c.Repos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RepoPath returns the filesystem location of the named repository.
func (c *Config) RepoPath(name string) string {
	base := ExpandHome(c.Basedir)
	repo := c.Repos[name]
	if p := strings.TrimSpace(repo.Path); p != "" {
		p = ExpandHome(p)
		if filepath.IsAbs(p) || base == "" {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}
	return filepath.Join(base, name)
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := &Config{Basedir: c.Basedir}
	if c.Repos != nil {
		out.Repos = make(map[string]Repository, len(c.Repos))
	}
	for name, repo := range c.Repos {
		cp := Repository{Path: repo.Path}
		if repo.Remotes != nil {
			cp.Remotes = append([]Remote(nil), repo.Remotes...)
		}
		if repo.Branches != nil {
			cp.Branches = make([]Branch, len(repo.Branches))
			for i, b := range repo.Branches {
				cp.Branches[i] = Branch{Name: b.Name, Interval: b.Interval}
				if b.Remotes != nil {
					cp.Branches[i].Remotes = append([]string(nil), b.Remotes...)
				}
			}
		}
		out.Repos[name] = cp
	}
	return out
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ConfigDir returns the platform-appropriate config directory path.
// It checks, in order: the override parameter, REPOMON_CONFIG env var,
// and finally os.UserConfigDir()/repomon.
func ConfigDir(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return filepath.Dir(override), nil
		}
		return override, nil
	}

	if env := os.Getenv(EnvConfig); env != "" {
		if isConfigFilePath(env) {
			return filepath.Dir(env), nil
		}
		return env, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "repomon"), nil
}

// ConfigPath resolves the config file path from override/env/defaults.
func ConfigPath(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return override, nil
		}
		return filepath.Join(override, GlobalConfigFilename), nil
	}

	if env := os.Getenv(EnvConfig); env != "" {
		if isConfigFilePath(env) {
			return env, nil
		}
		return filepath.Join(env, GlobalConfigFilename), nil
	}

	dir, err := ConfigDir("")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, GlobalConfigFilename), nil
}

// InitConfigPath resolves where "repomon init" should write config.
// Order: explicit override, REPOMON_CONFIG, then local dotfile in cwd.
func InitConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv(EnvConfig) != "" {
		return ConfigPath(override)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(cwd, LocalConfigFilename), nil
}

// ResolveConfigPath resolves config for runtime commands.
// Order: explicit override, REPOMON_CONFIG, nearest local dotfile in cwd/parents,
// then global platform config path.
func ResolveConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv(EnvConfig) != "" {
		return ConfigPath(override)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	localPath, err := FindNearestConfigPath(cwd)
	if err != nil {
		return "", err
	}
	if localPath != "" {
		return localPath, nil
	}

	return ConfigPath("")
}

// FindNearestConfigPath searches cwd and each parent directory for .repomon.toml.
// It returns an empty string when no local config file is found.
func FindNearestConfigPath(cwd string) (string, error) {
	dir := cwd
	for {
		candidate := filepath.Join(dir, LocalConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func isConfigFilePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".yaml", ".yml":
		return true
	}
	return false
}
