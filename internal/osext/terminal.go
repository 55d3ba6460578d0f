// Package osext contains OS helpers.
package osext

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal returns true if f is a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
