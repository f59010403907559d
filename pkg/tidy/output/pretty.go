package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jamesainslie/phototidy/pkg/tidy/types"
)

// defaultMaxActions is the number of actions shown per section before the
// rest are summarized.
const defaultMaxActions = 20

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct {
	// MaxActions limits the rows shown per section. Zero shows all.
	MaxActions int
}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	if len(r.Stats) > 0 {
		w.WriteString(f.formatStats(r.Stats))
	}
	if r.Kind == KindRuns {
		w.WriteString(f.formatRuns(r.Runs))
	} else {
		w.WriteString(f.formatSections(r.Sections))
	}

	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	lines := []string{TitleStyle.Render(r.Title)}

	field := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%s %s", LabelStyle.Render(label), ValueStyle.Render(value)))
		}
	}
	field("Run:", r.RunID)
	field("Mode:", r.Mode)
	field("Source:", r.Source)
	field("Output:", r.Output)
	field("Manifest:", r.Manifest)

	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Interrupted by user"))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatStats(stats []Stat) string {
	width := 0
	for _, s := range stats {
		width = max(width, len(s.Label))
	}

	var sb strings.Builder
	for _, s := range stats {
		line := fmt.Sprintf("  %s  %s", LabelStyle.Render(padRight(s.Label, width)), ValueStyle.Render(fmt.Sprintf("%6d", s.Count)))
		if s.BytesHuman != "" {
			line += "  " + SizeStyle.Render(s.BytesHuman)
		}
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func (f *PrettyFormatter) formatSections(sections []Section) string {
	if len(sections) == 0 {
		return MutedStyle.Render("  No changes needed\n")
	}

	var sb strings.Builder
	for _, sec := range sections {
		sb.WriteString(TitleStyle.Render(fmt.Sprintf("%s (%d)", sec.Name, len(sec.Actions))))
		sb.WriteString("\n")

		sizeWidth := 8
		for _, a := range sec.Actions {
			sizeWidth = max(sizeWidth, len(a.SizeHuman))
		}

		shown := sec.Actions
		if f.MaxActions > 0 && len(shown) > f.MaxActions {
			shown = shown[:f.MaxActions]
		}
		for _, a := range shown {
			fmt.Fprintf(&sb, "  %s  %s %s %s  %s\n",
				SizeStyle.Render(padLeft(a.SizeHuman, sizeWidth)),
				PathStyle.Render(a.Src),
				MutedStyle.Render("->"),
				PathStyle.Render(a.Dst),
				statusStyle(a.Status))
			if a.Error != "" {
				fmt.Fprintf(&sb, "  %s  %s\n", strings.Repeat(" ", sizeWidth), ErrorStyle.Render(a.ErrorCode+": "+a.Error))
			}
		}
		if rest := len(sec.Actions) - len(shown); rest > 0 {
			sb.WriteString(MutedStyle.Render(fmt.Sprintf("  ... and %d more\n", rest)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatRuns(runs []RunInfo) string {
	if len(runs) == 0 {
		return MutedStyle.Render("  No runs found\n")
	}

	nameWidth := 4
	for _, run := range runs {
		nameWidth = max(nameWidth, len(run.Name))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("RUN", nameWidth)),
		TableHeaderStyle.Render("MODE"),
		TableHeaderStyle.Render("ENTRIES"),
		TableHeaderStyle.Render("STATE"))
	for _, run := range runs {
		state := SuccessStyle.Render("complete")
		switch {
		case run.Manifest == "":
			state = ErrorStyle.Render("no manifest")
		case run.Resumable:
			state = WarningStyle.Render(fmt.Sprintf("%d pending", run.Pending))
		}
		fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
			PathStyle.Render(padRight(run.Name, nameWidth)),
			ValueStyle.Render(padRight(run.Mode, 8)),
			ValueStyle.Render(padLeft(fmt.Sprintf("%d", run.Entries), 7)),
			state)
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	var parts []string
	if r.Kind == KindRuns {
		parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Runs:"), ValueStyle.Render(fmt.Sprintf("%d", len(r.Runs)))))
	} else {
		var total int64
		for _, a := range r.Actions() {
			total += a.Size
		}
		parts = append(parts,
			fmt.Sprintf("%s %s", LabelStyle.Render("Actions:"), ValueStyle.Render(fmt.Sprintf("%d", r.ActionCount()))),
			fmt.Sprintf("%s %s", LabelStyle.Render("Total:"), SizeStyle.Render(types.FormatSize(total))))
	}
	if r.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%s %s", LabelStyle.Render("Took:"), ValueStyle.Render(formatDuration(r.Duration))))
	}
	if r.OK {
		parts = append(parts, SuccessStyle.Render("ok"))
	} else {
		parts = append(parts, ErrorStyle.Render("not ok"))
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

// padLeft pads a string with spaces on the left to achieve the desired width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{MaxActions: defaultMaxActions}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
