// Package ui answers questions about the terminal sitelapse writes to.
package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal returns true if stdout is connected to a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor determines if ANSI color codes should be used.
// Respects NO_COLOR (https://no-color.org/), CLICOLOR, and CLICOLOR_FORCE conventions.
func ShouldUseColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if _, exists := os.LookupEnv("CLICOLOR_FORCE"); exists {
		return true
	}
	return IsTerminal()
}

// ShouldUseEmoji determines if symbol decorations (✓, ✗, ⚠) should be used.
// Disabled by SITELAPSE_PLAIN and in non-TTY mode so logs stay greppable.
func ShouldUseEmoji() bool {
	if _, exists := os.LookupEnv("SITELAPSE_PLAIN"); exists {
		return false
	}
	return IsTerminal()
}
