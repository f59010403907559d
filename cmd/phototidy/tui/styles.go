// Package tui renders live progress for long phototidy operations using
// Charmbracelet's Bubble Tea, Lip Gloss and Bubbles.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette. The 256-colour codes match the report formatter.
var (
	brandColor   = lipgloss.Color("#5FAFD7")
	activeColor  = lipgloss.Color("#87D7FF")
	okColor      = lipgloss.Color("42")
	pendingColor = lipgloss.Color("214")
	failedColor  = lipgloss.Color("196")
	dimColor     = lipgloss.Color("245")
	ruleColor    = lipgloss.Color("238")
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(brandColor).
			Padding(0, 1)

	ruleStyle      = lipgloss.NewStyle().Foreground(ruleColor)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(brandColor)
	mutedTextStyle = lipgloss.NewStyle().Foreground(dimColor)
	errorTextStyle = lipgloss.NewStyle().Foreground(failedColor)
	phaseStyle     = lipgloss.NewStyle().Bold(true).Foreground(activeColor)
	warnTextStyle  = lipgloss.NewStyle().Foreground(pendingColor)
)

// phaseStatusStyle colours a finished phase: ok is green, cancelled is
// amber and anything else is red.
func phaseStatusStyle(status string) lipgloss.Style {
	switch status {
	case "ok":
		return lipgloss.NewStyle().Foreground(okColor)
	case "cancelled":
		return lipgloss.NewStyle().Foreground(pendingColor)
	default:
		return lipgloss.NewStyle().Foreground(failedColor)
	}
}

func rule(width int) string {
	if width <= 0 {
		return ""
	}
	return ruleStyle.Render(strings.Repeat("─", width))
}

// truncatePath shortens path to maxLen, keeping the file name end.
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	if maxLen <= 3 {
		return path[:maxLen]
	}
	return "..." + path[len(path)-(maxLen-3):]
}
