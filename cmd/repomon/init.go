package repomon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/skaphos/repomon/internal/cliio"
	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/discovery"
	"github.com/skaphos/repomon/internal/interval"
	"github.com/skaphos/repomon/internal/strutil"
)

const defaultInterval = "1m"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config for the repositories found under a base directory",
	Long: "Scans --basedir (default: the current directory) for git repositories and writes a config that " +
		"monitors each repository's checked-out branch against every remote tracking it.",
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	addInitFlags(initCmd)
	rootCmd.AddCommand(initCmd)
}

func addInitFlags(cmd *cobra.Command) {
	cmd.Flags().String("basedir", "", "directory to scan (default: current directory)")
	cmd.Flags().String("exclude", "", "comma-separated glob patterns to skip")
	cmd.Flags().String("interval", defaultInterval, "check interval for discovered branches")
	cmd.Flags().Bool("follow-symlinks", false, "descend into symlinked directories")
	cmd.Flags().Bool("force", false, "overwrite an existing config without prompting")
}

func runInit(cmd *cobra.Command, _ []string) error {
	basedir, _ := cmd.Flags().GetString("basedir")
	exclude, _ := cmd.Flags().GetString("exclude")
	every, _ := cmd.Flags().GetString("interval")
	followSymlinks, _ := cmd.Flags().GetBool("follow-symlinks")
	force, _ := cmd.Flags().GetBool("force")
	if !interval.Valid(every) {
		return fmt.Errorf("invalid --interval %q: expected <digits><s|m|h|d>", every)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfgPath, err := config.InitConfigPath(flagConfig, cwd)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); err == nil && !force {
		ok, err := cliio.PromptYesNo(cmd.ErrOrStderr(), cmd.InOrStdin(), fmt.Sprintf("Config %s exists. Overwrite? [y/N]: ", cfgPath))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
		}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if basedir == "" {
		basedir = cwd
	}
	basedir, err = filepath.Abs(config.ExpandHome(basedir))
	if err != nil {
		return err
	}
	results, err := discovery.Scan(commandContext(cmd), discovery.Options{
		Roots:          []string{basedir},
		Exclude:        strutil.SplitCSV(exclude),
		FollowSymlinks: followSymlinks,
	})
	if err != nil {
		return err
	}

	cfg := configFromDiscovery(basedir, results, every)
	if err := config.Save(cfg, cfgPath); err != nil {
		return err
	}
	branches := 0
	for _, repo := range cfg.Repos {
		branches += len(repo.Branches)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d repositories, %d monitored branches\n", cfgPath, len(cfg.Repos), branches)
	return err
}

// configFromDiscovery monitors the checked-out branch of each non-bare result
// against the remotes tracking it. Remotes without a URL are left out.
func configFromDiscovery(basedir string, results []discovery.Result, every string) *config.Config {
	cfg := &config.Config{Basedir: basedir, Repos: make(map[string]config.Repository, len(results))}
	for _, res := range results {
		repo := config.Repository{}
		if samePath(res.Path, basedir) {
			repo.Path = res.Path
		}

		known := make(map[string]struct{}, len(res.Remotes))
		for _, remote := range res.Remotes {
			if remote.URL == "" {
				continue
			}
			repo.Remotes = append(repo.Remotes, config.Remote{Name: remote.Name, URL: remote.URL})
			known[remote.Name] = struct{}{}
		}

		var tracked []string
		for _, remote := range res.Tracked {
			if _, ok := known[remote]; ok {
				tracked = append(tracked, remote)
			}
		}
		if !res.Bare && res.Branch != "" && len(tracked) > 0 {
			repo.Branches = []config.Branch{{Name: res.Branch, Interval: every, Remotes: tracked}}
		}
		cfg.Repos[res.Name] = repo
	}
	return cfg
}
