package repomon

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/skaphos/repomon/internal/cliio"
	"github.com/skaphos/repomon/internal/model"
	"github.com/skaphos/repomon/internal/termstyle"
)

// logOutputWriteFailure records non-fatal output write/flush failures.
// CLI consumers frequently pipe to tools that close early (for example `head`),
// so we log and continue instead of treating these as command failures.
func logOutputWriteFailure(cmd *cobra.Command, context string, err error) {
	if err == nil {
		return
	}
	debugf(cmd, "ignored output write failure (%s): %v", context, err)
}

func validateFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case formatTable, formatJSON, formatText:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want table, json or text)", format)
	}
}

func writeMessages(cmd *cobra.Command, msgs []model.StatusMessage, format string, noHeaders bool) error {
	switch format {
	case formatJSON:
		return writeMessagesJSON(cmd.OutOrStdout(), msgs)
	case formatText:
		return writeMessagesText(cmd.OutOrStdout(), msgs)
	default:
		return writeMessagesTable(cmd, msgs, noHeaders)
	}
}

// writeMessagesJSON writes one message per line.
func writeMessagesJSON(out io.Writer, msgs []model.StatusMessage) error {
	enc := json.NewEncoder(out)
	for _, msg := range msgs {
		if err := enc.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

func writeMessagesText(out io.Writer, msgs []model.StatusMessage) error {
	for _, msg := range msgs {
		for _, remote := range msg.RemoteNames() {
			if _, err := fmt.Fprintf(out, "%s -- %s: %s\n", msg.Repository, msg.Branch, msg.Remotes[remote]); err != nil {
				return err
			}
		}
		for _, entry := range msg.Worktree {
			if _, err := fmt.Fprintf(out, "%s -- %s: %s [%s]\n", msg.Repository, msg.Branch, entry.Path, entry.Status); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeMessagesTable(cmd *cobra.Command, msgs []model.StatusMessage, noHeaders bool) error {
	headers := []string{"REPOSITORY", "BRANCH", "REMOTE", "STATUS"}
	type row struct {
		cells  [3]string
		status string
		color  string
	}
	var rows []row
	fixed := [3]int{}
	if !noHeaders {
		for i := range fixed {
			fixed[i] = len(headers[i])
		}
	}
	for _, msg := range msgs {
		for _, remote := range msg.RemoteNames() {
			_, failed := msg.ErrorClasses[remote]
			r := row{
				cells:  [3]string{msg.Repository, msg.Branch, remote},
				status: msg.Remotes[remote],
				color:  termstyle.DivergenceColor(msg.Divergence[remote].State(), failed),
			}
			for i, cell := range r.cells {
				fixed[i] = max(fixed[i], utf8.RuneCountInString(cell))
			}
			rows = append(rows, r)
		}
	}

	limit := statusCellLimit(cmd, fixed[0]+fixed[1]+fixed[2]+3*2)
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		status := termstyle.Colorize(colorOutputEnabled, cliio.Truncate(r.status, limit), r.color)
		table = append(table, []string{r.cells[0], r.cells[1], r.cells[2], status})
	}
	if err := cliio.WriteTable(cmd.OutOrStdout(), colorOutputEnabled, noHeaders, headers, table); err != nil {
		return err
	}
	return writeWorktreeTable(cmd, msgs, noHeaders)
}

func writeWorktreeTable(cmd *cobra.Command, msgs []model.StatusMessage, noHeaders bool) error {
	var rows [][]string
	for _, msg := range msgs {
		for _, entry := range msg.Worktree {
			rows = append(rows, []string{msg.Repository, msg.Branch, entry.Path, entry.Status})
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout()); err != nil {
		return err
	}
	return cliio.WriteTable(cmd.OutOrStdout(), false, noHeaders, []string{"REPOSITORY", "BRANCH", "PATH", "CHANGES"}, rows)
}
