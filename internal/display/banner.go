package display

import (
	"fmt"
	"os"

	"github.com/backmassage/clipforge/internal/term"
)

// PrintBanner prints the ASCII art banner; uses Magenta if colors are enabled.
func PrintBanner() {
	if term.Enabled() {
		fmt.Fprint(os.Stdout, term.Magenta)
	}
	fmt.Fprint(os.Stdout, `  ____ _ _        __
 / ___| (_)_ __  / _| ___  _ __ __ _  ___
| |   | | | '_ \| |_ / _ \| '__/ _`+"`"+` |/ _ \
| |___| | | |_) |  _| (_) | | | (_| |  __/
 \____|_|_| .__/|_|  \___/|_|  \__, |\___|
          |_|                  |___/
`)
	if term.Enabled() {
		fmt.Fprintln(os.Stdout, term.NC)
	}
}
