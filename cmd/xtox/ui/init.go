// Package ui provides user interface components for the xtox CLI.
package ui

import (
	"os"

	"github.com/fatih/color"
)

var (
	noColorFlag bool
	verboseFlag bool
	jsonFlag    bool
)

// InitUI initializes the UI with color, verbose and JSON settings. In JSON
// mode all human-oriented output is suppressed.
func InitUI(noColor, verbose, jsonMode bool) {
	noColorFlag = noColor
	verboseFlag = verbose
	jsonFlag = jsonMode

	if noColor {
		color.NoColor = true
	}
}

// Verbose reports whether verbose output was requested.
func Verbose() bool {
	return verboseFlag
}

// JSON reports whether machine-readable output was requested.
func JSON() bool {
	return jsonFlag
}

// IsTerminal checks if output is going to a terminal.
func IsTerminal() bool {
	fileInfo, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
