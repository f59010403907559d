package output

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette shared by the pretty formatter and the TUI.
const (
	ColorPrimary = lipgloss.Color("39")
	ColorSuccess = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
	ColorDanger  = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("245")
	ColorText    = lipgloss.Color("255")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	// HeaderBox frames the run information.
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	// FooterBox frames the totals.
	FooterBox = HeaderBox.
			BorderForeground(ColorMuted).
			MarginBottom(0).
			MarginTop(1)

	TitleStyle       = fg(ColorPrimary).Bold(true)
	LabelStyle       = fg(ColorMuted)
	ValueStyle       = fg(ColorText)
	PathStyle        = fg(ColorText)
	SizeStyle        = fg(ColorPrimary).Bold(true)
	SuccessStyle     = fg(ColorSuccess)
	WarningStyle     = fg(ColorWarning)
	ErrorStyle       = fg(ColorDanger)
	MutedStyle       = fg(ColorMuted)
	TableHeaderStyle = fg(ColorMuted).Bold(true)
)

// statusStyles maps journal and outcome statuses to their colour.
// Statuses not listed (PLANNED, ROLLBACK_SKIPPED) render muted.
var statusStyles = map[string]lipgloss.Style{
	"SUCCESS":           SuccessStyle,
	"MOVED":             SuccessStyle,
	"COPIED":            SuccessStyle,
	"RENAMED":           SuccessStyle,
	"ROLLED_BACK":       SuccessStyle,
	"ROLLBACK_TRASHED":  SuccessStyle,
	"STARTED":           WarningStyle,
	"ROLLBACK_CONFLICT": WarningStyle,
	"FAILED":            ErrorStyle,
	"ROLLBACK_ERROR":    ErrorStyle,
}

// statusStyle colours a journal status by outcome.
func statusStyle(status string) string {
	if s, ok := statusStyles[status]; ok {
		return s.Render(status)
	}
	return MutedStyle.Render(status)
}
