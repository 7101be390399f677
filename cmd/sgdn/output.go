package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	styleRed    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	styleGreen  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	styleYellow = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7DC6F"))
	styleCyan   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4A90E2"))
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	styleBold   = lipgloss.NewStyle().Bold(true)
)

func colorize(style lipgloss.Style, text string) string {
	if noColor {
		return text
	}
	return style.Render(text)
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(styleGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(styleRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(styleYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(styleBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(styleCyan, "→ "+msg))
}
