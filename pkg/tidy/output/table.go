package output

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

// actionHeader is the column layout of tabular action output.
var actionHeader = []string{
	"op_id", "section", "action", "reason", "status",
	"src_path", "dst_path", "size_bytes", "error_code", "error", "retry_count",
}

func actionRows(r *Result) [][]string {
	var rows [][]string
	for _, sec := range r.Sections {
		for _, a := range sec.Actions {
			rows = append(rows, []string{
				a.OpID, sec.Name, a.Action, a.Reason, a.Status,
				a.Src, a.Dst, strconv.FormatInt(a.Size, 10),
				a.ErrorCode, a.Error, strconv.Itoa(a.RetryCount),
			})
		}
	}
	return rows
}

// CSVFormatter writes one row per action with RFC 4180 quoting. It is
// also the format of REPORT/report.csv.
type CSVFormatter struct {
	// Comma overrides the field delimiter. Zero means ','.
	Comma rune
}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	writer := csv.NewWriter(w)
	if f.Comma != 0 {
		writer.Comma = f.Comma
	}

	if err := writer.Write(actionHeader); err != nil {
		return err
	}
	if err := writer.WriteAll(actionRows(r)); err != nil {
		return err
	}
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
	Register("tsv", func() Formatter {
		return &CSVFormatter{Comma: '\t'}
	})
}

// Ensure CSVFormatter implements Formatter.
var _ Formatter = (*CSVFormatter)(nil)
