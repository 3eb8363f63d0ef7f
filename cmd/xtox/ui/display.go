package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects human output, mainly for tests.
func SetOutput(out, errOut io.Writer) {
	stdout = out
	stderr = errOut
}

func printColored(w io.Writer, attr color.Attribute, symbol, format string, args ...interface{}) {
	if jsonFlag {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if noColorFlag {
		fmt.Fprintf(w, "%s %s\n", symbol, msg)
		return
	}
	color.New(attr).Fprintf(w, "%s %s\n", symbol, msg)
}

// Success displays a success message.
func Success(format string, args ...interface{}) {
	printColored(stdout, color.FgGreen, "✓", format, args...)
}

// Error displays an error message to stderr.
func Error(format string, args ...interface{}) {
	printColored(stderr, color.FgRed, "✗", format, args...)
}

// Warning displays a warning message.
func Warning(format string, args ...interface{}) {
	printColored(stdout, color.FgYellow, "⚠", format, args...)
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	printColored(stdout, color.FgCyan, "ℹ", format, args...)
}

// Step displays a step message.
func Step(format string, args ...interface{}) {
	printColored(stdout, color.FgBlue, "→", format, args...)
}

// Debug displays a message only in verbose mode.
func Debug(format string, args ...interface{}) {
	if !verboseFlag {
		return
	}
	printColored(stderr, color.FgHiBlack, "·", format, args...)
}

// Section displays a section header.
func Section(title string) {
	if jsonFlag {
		return
	}
	if noColorFlag {
		fmt.Fprintf(stdout, "\n%s\n%s\n", title, strings.Repeat("=", len(title)))
		return
	}
	color.New(color.FgMagenta, color.Bold).Fprintf(stdout, "\n━━━ %s ━━━\n", strings.ToUpper(title))
}

// Table displays data in a formatted table.
func Table(headers []string, rows [][]string) {
	if jsonFlag {
		return
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, strings.Join(headers, "\t"))
	separator := make([]string, len(headers))
	for i := range separator {
		separator[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	_ = w.Flush()
}

// List prints items as bullets under an optional label.
func List(label string, items []string) {
	if jsonFlag || len(items) == 0 {
		return
	}
	if label != "" {
		fmt.Fprintf(stdout, "%s:\n", label)
	}
	fmt.Fprint(stdout, FormatList(items))
}

// FormatList formats a list of items as bullets.
func FormatList(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("  • %s\n", item))
	}
	return sb.String()
}

// FormatSize renders a byte count with a binary unit.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
