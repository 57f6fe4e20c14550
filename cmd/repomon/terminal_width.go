// SPDX-License-Identifier: MIT
package repomon

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	narrowTableWidth = 100
	tinyTableWidth   = 80
	// minStatusWidth keeps status text readable however narrow the terminal is.
	minStatusWidth = 24
)

var getTerminalSize = term.GetSize

func tableWidth(cmd *cobra.Command) (int, bool) {
	if cmd == nil {
		return 0, false
	}
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(file.Fd())
	if !isTerminalFD(fd) {
		return 0, false
	}
	width, _, err := getTerminalSize(fd)
	if err != nil || width <= 0 {
		return 0, false
	}
	return width, true
}

// statusCellLimit returns how many runes of status text fit next to columns
// already occupying fixed cells, or 0 when output is not a sized terminal.
func statusCellLimit(cmd *cobra.Command, fixed int) int {
	width, ok := tableWidth(cmd)
	if !ok {
		return 0
	}
	return statusCellLimitForWidth(width, fixed)
}

func statusCellLimitForWidth(width, fixed int) int {
	available := width - fixed
	switch {
	case width < tinyTableWidth:
		// Tiny terminals wrap anyway; keep only the leading words.
		available = min(available, minStatusWidth)
	case width < narrowTableWidth:
		available = min(available, width/2)
	}
	return max(available, minStatusWidth)
}
