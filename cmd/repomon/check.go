package repomon

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skaphos/repomon/internal/engine"
)

var checkCmd = &cobra.Command{
	Use:   "check [repo-path]",
	Short: "Fetch every monitored branch once and report its divergence",
	Long: "Fetches each configured remote of every monitored branch and prints one status line per remote. " +
		"With repo-path only the configured repository containing that path is checked.\n\n" +
		"Exit codes: 0 all remotes compared, 1 a remote reported an error, 2 a repository could not be opened, 3 fatal error.",
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	addFormatFlag(checkCmd, formatTable)
	addNoHeadersFlag(checkCmd)
	addWorktreeFlag(checkCmd)
	rootCmd.AddCommand(checkCmd)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runCheck(cmd *cobra.Command, args []string) error {
	rawFormat, _ := cmd.Flags().GetString("format")
	noHeaders, _ := cmd.Flags().GetBool("no-headers")
	worktree, _ := cmd.Flags().GetBool("worktree")
	format, err := validateFormat(rawFormat)
	if err != nil {
		return err
	}
	s, err := loadSettings(settings)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var repos []string
	if len(args) == 1 {
		name, err := repositoryAt(cfg, args[0])
		if err != nil {
			return err
		}
		debugf(cmd, "checking repository %s", name)
		repos = []string{name}
	}

	logger, err := newLogger(cmd, s)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	setColorOutputMode(cmd, format)

	checker := newChecker(s, logger, checkerConfig{worktree: worktree, progress: progressToLog(logger)})
	report, err := engine.RunOnce(commandContext(cmd), cfg, engine.RunOptions{
		Checker:     checker,
		Opener:      repositoryOpener(),
		Concurrency: s.Concurrency,
		Repos:       repos,
	})
	if err != nil {
		return err
	}

	for _, repoErr := range report.RepositoryErrors {
		infof(cmd, "%v", repoErr)
	}
	if len(report.Messages) == 0 {
		infof(cmd, "no branches with remotes are configured")
	}
	logOutputWriteFailure(cmd, "check output", writeMessages(cmd, report.Messages, format, noHeaders))

	switch {
	case len(report.RepositoryErrors) > 0:
		raiseExitCode(exitRepositoryError)
	case report.Failed():
		raiseExitCode(exitRemoteError)
	}
	return nil
}
