// Package style holds the terminal styles used for human-facing output.
package style

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/steveyegge/sitelapse/internal/ui"
)

func init() {
	if !ui.ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

var (
	// Bold is used for identifiers (item IDs, PIDs).
	Bold = lipgloss.NewStyle().Bold(true)

	// Dim is used for secondary detail.
	Dim = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	// Success marks completed steps.
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("76")).Bold(true)

	// Warning marks recoverable problems.
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	// Error marks fatal problems.
	Error = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// Info marks neutral notices.
	Info = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

// Prefixes for status lines. They degrade to ASCII when symbols are disabled.
var (
	SuccessPrefix = prefix(Success, "✓", "ok")
	WarningPrefix = prefix(Warning, "⚠", "!!")
	ErrorPrefix   = prefix(Error, "✗", "xx")
	ArrowPrefix   = prefix(Info, "→", "->")
)

func prefix(s lipgloss.Style, symbol, plain string) string {
	if ui.ShouldUseEmoji() {
		return s.Render(symbol)
	}
	return s.Render(plain)
}

// PrintWarning prints a formatted warning line to stdout.
func PrintWarning(format string, args ...interface{}) {
	fmt.Printf("%s %s\n", WarningPrefix, fmt.Sprintf(format, args...))
}
