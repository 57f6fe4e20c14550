package repomon

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/gitx"
	"github.com/skaphos/repomon/internal/interval"
)

var addCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a repository to the config",
	Long: "Adds the repository containing <path> with its remotes. Each --branch (default: the checked-out branch) " +
		"is monitored against --remote, or every remote when none is given.",
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addAddFlags(addCmd)
	rootCmd.AddCommand(addCmd)
}

func addAddFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "repository name (default: path relative to basedir, or the directory name)")
	cmd.Flags().StringSlice("branch", nil, "branch to monitor (repeatable)")
	cmd.Flags().StringSlice("remote", nil, "remote to compare against (repeatable)")
	cmd.Flags().String("interval", defaultInterval, "check interval")
}

func runAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	branches, _ := cmd.Flags().GetStringSlice("branch")
	only, _ := cmd.Flags().GetStringSlice("remote")
	every, _ := cmd.Flags().GetString("interval")
	if !interval.Valid(every) {
		return fmt.Errorf("invalid --interval %q: expected <digits><s|m|h|d>", every)
	}

	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(config.ExpandHome(args[0]))
	if err != nil {
		return err
	}
	repo, err := gitx.Open(abs)
	if err != nil {
		return fmt.Errorf("open %s: %w", abs, err)
	}
	defer func() { _ = repo.Close() }()

	remotes, err := repo.Remotes(commandContext(cmd))
	if err != nil {
		return err
	}
	if len(branches) == 0 {
		current, err := repo.CurrentBranch()
		if err != nil {
			return err
		}
		if current == "" {
			return fmt.Errorf("%s has no checked-out branch; pass --branch", repo.Root())
		}
		branches = []string{current}
	}

	entry, err := repositoryEntry(remotes, branches, only, every)
	if err != nil {
		return err
	}
	name, entry.Path = placeRepository(cfg.Basedir, repo.Root(), name)
	if _, exists := cfg.Repos[name]; exists {
		return fmt.Errorf("repository %q is already configured", name)
	}
	for _, other := range cfg.RepoNames() {
		if dup := sharedRemote(cfg.Repos[other], entry); dup != "" {
			infof(cmd, "note: %s already monitors %s", other, dup)
		}
	}

	updated := cfg.Clone()
	if updated.Repos == nil {
		updated.Repos = map[string]config.Repository{}
	}
	updated.Repos[name] = entry
	if err := config.Save(updated, cfgPath); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) to %s\n", name, strings.Join(branches, ", "), cfgPath)
	return err
}

// repositoryEntry builds the config entry for a repository with the given
// remotes. An empty only selects every remote that has a URL.
func repositoryEntry(remotes []gitx.Remote, branches, only []string, every string) (config.Repository, error) {
	var entry config.Repository
	urls := map[string]string{}
	for _, remote := range remotes {
		if remote.URL != "" {
			urls[remote.Name] = remote.URL
			entry.Remotes = append(entry.Remotes, config.Remote{Name: remote.Name, URL: remote.URL})
		}
	}
	if len(entry.Remotes) == 0 {
		return entry, fmt.Errorf("repository has no remotes with a url")
	}

	selected := only
	if len(selected) == 0 {
		for _, remote := range entry.Remotes {
			selected = append(selected, remote.Name)
		}
		selected = gitx.OrderRemotes(selected)
	}
	for _, name := range selected {
		if _, ok := urls[name]; !ok {
			return entry, fmt.Errorf("remote %q is not configured in the repository", name)
		}
	}
	for _, branch := range branches {
		entry.Branches = append(entry.Branches, config.Branch{Name: branch, Interval: every, Remotes: append([]string(nil), selected...)})
	}
	return entry, nil
}

// placeRepository picks the config name and path override for root. Roots
// under basedir are addressed by their relative path.
func placeRepository(basedir, root, name string) (string, string) {
	rel := ""
	if basedir != "" {
		if r, err := filepath.Rel(filepath.Clean(config.ExpandHome(basedir)), root); err == nil && r != "." && !strings.HasPrefix(r, "..") {
			rel = filepath.ToSlash(r)
		}
	}
	if name == "" {
		name = rel
		if name == "" {
			name = filepath.Base(root)
		}
	}
	if rel == name {
		return name, ""
	}
	return name, root
}

// sharedRemote returns the URL of the first remote of b that a also fetches.
func sharedRemote(a, b config.Repository) string {
	for _, ra := range a.Remotes {
		for _, rb := range b.Remotes {
			if gitx.SameRemote(ra.URL, rb.URL) {
				return rb.URL
			}
		}
	}
	return ""
}
