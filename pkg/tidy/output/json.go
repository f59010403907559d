package output

import (
	"bytes"
	"encoding/json"
	"time"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Meta     jsonMeta  `json:"meta"`
	Stats    []Stat    `json:"stats,omitempty"`
	Sections []Section `json:"sections,omitempty"`
	Runs     []RunInfo `json:"runs,omitempty"`
}

// jsonMeta carries the run information of a Result.
type jsonMeta struct {
	Kind        Kind     `json:"kind"`
	Title       string   `json:"title"`
	RunID       string   `json:"run_id,omitempty"`
	Mode        string   `json:"mode,omitempty"`
	Source      string   `json:"source,omitempty"`
	Output      string   `json:"output,omitempty"`
	Manifest    string   `json:"manifest,omitempty"`
	Actions     int      `json:"actions"`
	Duration    string   `json:"duration,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Interrupted bool     `json:"interrupted"`
	OK          bool     `json:"ok"`
}

func buildMeta(r *Result) jsonMeta {
	return jsonMeta{
		Kind:        r.Kind,
		Title:       r.Title,
		RunID:       r.RunID,
		Mode:        r.Mode,
		Source:      r.Source,
		Output:      r.Output,
		Manifest:    r.Manifest,
		Actions:     r.ActionCount(),
		Duration:    formatDurationString(r.Duration),
		Warnings:    r.Warnings,
		Interrupted: r.Interrupted,
		OK:          r.OK,
	}
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	out := jsonOutput{
		Meta:     buildMeta(r),
		Stats:    r.Stats,
		Sections: r.Sections,
		Runs:     r.Runs,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// formatDurationString formats a duration as a string for structured output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter writes one compact JSON object per action, or per run for
// run listings, suitable for jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Result) error {
	var rows []any
	if r.Kind == KindRuns {
		for _, run := range r.Runs {
			rows = append(rows, run)
		}
	} else {
		for _, a := range r.Actions() {
			rows = append(rows, a)
		}
	}

	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
