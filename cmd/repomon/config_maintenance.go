package repomon

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skaphos/repomon/internal/cliio"
	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/registry"
	"github.com/skaphos/repomon/internal/remotemismatch"
)

var (
	// readRemotes is overridable in tests.
	readRemotes registry.RemoteReader = registry.GitRemotes
	// remoteSetter is overridable in tests.
	remoteSetter remotemismatch.RemoteSetter = remotemismatch.GitSetter{}
)

var configPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove repositories whose directory no longer exists",
	Args:  cobra.NoArgs,
	RunE:  runConfigPrune,
}

var configReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile configured remote URLs with the remotes on disk",
	Long: "Compares each configured remote with the remote of the same name in the repository. " +
		"--mode config copies the repository URL into the config; --mode git rewrites the repository remote.",
	Args: cobra.NoArgs,
	RunE: runConfigReconcile,
}

func init() {
	addConfigPruneFlags(configPruneCmd)
	addConfigReconcileFlags(configReconcileCmd)
	configCmd.AddCommand(configPruneCmd, configReconcileCmd)
}

func addConfigPruneFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "list what would be removed without writing the config")
}

func addConfigReconcileFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", string(remotemismatch.ReconcileNone), "which side to rewrite: none, config, git")
	cmd.Flags().Bool("dry-run", false, "list mismatches without changing anything")
	addNoHeadersFlag(cmd)
}

func loadRegistry(cmd *cobra.Command) (*config.Config, string, *registry.Registry, error) {
	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return nil, "", nil, err
	}
	reg, err := registry.Build(commandContext(cmd), cfg, readRemotes)
	if err != nil {
		return nil, "", nil, err
	}
	for _, entry := range reg.WithStatus(registry.StatusInvalid) {
		infof(cmd, "%s: %s is not a usable repository: %s", entry.Repository, entry.Path, entry.Error)
	}
	return cfg, cfgPath, reg, nil
}

func runConfigPrune(cmd *cobra.Command, _ []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	cfg, cfgPath, reg, err := loadRegistry(cmd)
	if err != nil {
		return err
	}
	pruned, names := reg.Prune(cfg)
	out := cmd.OutOrStdout()
	for _, name := range names {
		entry := reg.Find(name)
		if _, err := fmt.Fprintf(out, "%s\t%s\n", name, entry.Path); err != nil {
			return err
		}
	}
	if len(names) == 0 || dryRun {
		infof(cmd, "%d missing repositories", len(names))
		return nil
	}
	if err := config.Save(pruned, cfgPath); err != nil {
		return err
	}
	infof(cmd, "removed %d missing repositories from %s", len(names), cfgPath)
	return nil
}

func runConfigReconcile(cmd *cobra.Command, _ []string) error {
	rawMode, _ := cmd.Flags().GetString("mode")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	noHeaders, _ := cmd.Flags().GetBool("no-headers")
	mode, err := remotemismatch.ParseReconcileMode(rawMode)
	if err != nil {
		return err
	}
	cfg, cfgPath, reg, err := loadRegistry(cmd)
	if err != nil {
		return err
	}

	// Plans are listed in git mode terms when only reporting.
	listMode := mode
	if listMode == remotemismatch.ReconcileNone {
		listMode = remotemismatch.ReconcileGit
	}
	plans := remotemismatch.BuildPlans(cfg, reg, listMode)
	if err := writePlans(cmd, plans, noHeaders); err != nil {
		return err
	}
	if len(plans) == 0 || dryRun || mode == remotemismatch.ReconcileNone {
		if len(plans) > 0 {
			raiseExitCode(exitRemoteError)
		}
		return nil
	}
	return applyPlans(commandContext(cmd), cmd, plans, cfg, cfgPath, mode)
}

func applyPlans(ctx context.Context, cmd *cobra.Command, plans []remotemismatch.Plan, cfg *config.Config, cfgPath string, mode remotemismatch.ReconcileMode) error {
	updated, err := remotemismatch.ApplyPlans(ctx, plans, cfg, mode, remoteSetter)
	if err != nil {
		return err
	}
	if mode == remotemismatch.ReconcileConfig {
		if err := config.Save(updated, cfgPath); err != nil {
			return err
		}
	}
	infof(cmd, "reconciled %d remote(s) in %s mode", len(plans), mode)
	return nil
}

func writePlans(cmd *cobra.Command, plans []remotemismatch.Plan, noHeaders bool) error {
	if len(plans) == 0 {
		infof(cmd, "configured remotes match the repositories")
		return nil
	}
	rows := make([][]string, 0, len(plans))
	for _, plan := range plans {
		live := plan.RepositoryURL
		if live == "" {
			live = "-"
		}
		rows = append(rows, []string{plan.Repository, plan.Remote, plan.ConfiguredURL, live, plan.Action})
	}
	return cliio.WriteTable(cmd.OutOrStdout(), false, noHeaders, []string{"REPOSITORY", "REMOTE", "CONFIG_URL", "GIT_URL", "ACTION"}, rows)
}
