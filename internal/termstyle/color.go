// SPDX-License-Identifier: MIT
package termstyle

import (
	"github.com/liggitt/tabwriter"

	"github.com/skaphos/repomon/internal/model"
)

const (
	Reset = "\x1b[0m"
	Green = "\x1b[32m"
	Brown = "\x1b[33m"
	Red   = "\x1b[31m"
	Blue  = "\x1b[34m"

	// Semantic aliases used by table output.
	Healthy = Green
	Warn    = Brown
	Error   = Red
	Info    = Blue
)

// Colorize wraps a value in ANSI escapes when color output is enabled.
func Colorize(enabled bool, value, color string) string {
	if !enabled || value == "" || color == "" {
		return value
	}
	// Hide ANSI sequences from tabwriter width calculations so columns align.
	esc := string([]byte{tabwriter.Escape})
	return esc + color + esc + value + esc + Reset + esc
}

// DivergenceColor picks the color for a remote entry: errors are red, a
// branch behind or diverged is a warning, ahead is informational.
func DivergenceColor(state model.DivergenceState, failed bool) string {
	if failed {
		return Error
	}
	switch state {
	case model.DivergenceEqual:
		return Healthy
	case model.DivergenceAhead:
		return Info
	default:
		return Warn
	}
}
