package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter formats output as aligned plain text with no styling. It
// is also the format of REPORT/summary.txt.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	fmt.Fprintln(w, r.Title)
	for _, kv := range [][2]string{
		{"run", r.RunID},
		{"mode", r.Mode},
		{"source", r.Source},
		{"output", r.Output},
		{"manifest", r.Manifest},
	} {
		if kv[1] != "" {
			fmt.Fprintf(w, "%s: %s\n", kv[0], kv[1])
		}
	}
	if r.Interrupted {
		fmt.Fprintln(w, "interrupted: true")
	}
	w.WriteString("\n")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(r.Stats) > 0 {
		for _, s := range r.Stats {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Label, s.Count, s.BytesHuman)
		}
		fmt.Fprintln(tw)
	}

	if r.Kind == KindRuns {
		fmt.Fprintln(tw, "RUN\tMODE\tENTRIES\tPENDING\tMANIFEST")
		for _, run := range r.Runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", run.Name, run.Mode, run.Entries, run.Pending, run.Manifest)
		}
	} else {
		for _, sec := range r.Sections {
			fmt.Fprintf(tw, "[%s]\t%d\n", sec.Name, len(sec.Actions))
			for _, a := range sec.Actions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Status, a.SizeHuman, a.Src, a.Dst)
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	status := "ok"
	if !r.OK {
		status = "not ok"
	}
	fmt.Fprintf(w, "\nactions: %d  status: %s\n", r.ActionCount(), status)
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
