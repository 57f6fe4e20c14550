package repomon

import "github.com/spf13/cobra"

const (
	formatTable = "table"
	formatJSON  = "json"
	formatText  = "text"

	formatUsage    = "output format: table, json, text"
	noHeadersUsage = "when using table format, do not print headers"
	worktreeUsage  = "include working-tree changes in each status message"
)

func addFormatFlag(cmd *cobra.Command, def string) {
	cmd.Flags().StringP("format", "o", def, formatUsage)
}

func addNoHeadersFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-headers", false, noHeadersUsage)
}

func addWorktreeFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("worktree", false, worktreeUsage)
}
