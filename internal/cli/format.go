// Package cli provides shared formatting helpers for CLI output.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Section rule width, including the title.
const ruleWidth = 42

// Margin is the left indent for list output.
const margin = "  "

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
	dim    = color.New(color.Faint)
)

// ShortenHome replaces $HOME prefix with ~.
func ShortenHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}

// Success prints a green check line to stdout.
func Success(format string, args ...any) {
	green.Fprint(os.Stdout, "✓ ")
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

// Info prints a plain status line to stdout.
func Info(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format+"\n", args...)
}

// Warn prints a yellow warning line to stderr.
func Warn(format string, args ...any) {
	yellow.Fprint(os.Stderr, "! ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Fail prints a red failure line to stderr.
func Fail(format string, args ...any) {
	red.Fprint(os.Stderr, "✗ ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Item prints an indented list line with a dim trailing detail.
func Item(text, detail string) {
	fmt.Fprintf(os.Stdout, "%s%s", margin, text)
	if detail != "" {
		dim.Fprintf(os.Stdout, "  %s", detail)
	}
	fmt.Fprintln(os.Stdout)
}

// Section prints a section divider line: ── Name ─────────────────
func Section(name string) {
	prefix := "── " + name + " "
	remaining := ruleWidth - runeLen(prefix)
	if remaining < 0 {
		remaining = 0
	}
	fmt.Fprintln(os.Stdout)
	cyan.Fprintf(os.Stdout, "%s%s%s\n", margin, prefix, strings.Repeat("─", remaining))
}

// runeLen counts the display width in runes.
func runeLen(s string) int {
	return len([]rune(s))
}
