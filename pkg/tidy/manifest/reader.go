package manifest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxLine bounds a single journal line.
const maxLine = 16 * 1024 * 1024

// LineError describes a journal line that could not be used.
type LineError struct {
	Line int
	Err  string
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Err)
}

// Journal is the in-memory record set of one manifest. Mutations happen on
// this value and reach disk only through Persist.
type Journal struct {
	Run     *RunHeader
	Entries []Entry

	// Skipped lists malformed lines and lines of an unknown record type.
	// They are dropped by Persist.
	Skipped []LineError
}

// Load reads the manifest at path.
func Load(path string) (*Journal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	j, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return j, nil
}

type probe struct {
	RecordType RecordType `json:"record_type"`
}

// Decode parses NDJSON records from r. Blank lines are ignored; malformed
// lines are recorded in Skipped rather than failing the read.
func Decode(r io.Reader) (*Journal, error) {
	j := &Journal{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var p probe
		if err := json.Unmarshal(raw, &p); err != nil {
			j.Skipped = append(j.Skipped, LineError{Line: line, Err: "malformed JSON: " + err.Error()})
			continue
		}

		switch p.RecordType {
		case RecordRun:
			var h RunHeader
			if err := json.Unmarshal(raw, &h); err != nil {
				j.Skipped = append(j.Skipped, LineError{Line: line, Err: "bad RUN record: " + err.Error()})
				continue
			}
			if j.Run != nil {
				j.Skipped = append(j.Skipped, LineError{Line: line, Err: "duplicate RUN record"})
				continue
			}
			j.Run = &h
		case RecordAction:
			var e Entry
			if err := json.Unmarshal(raw, &e); err != nil {
				j.Skipped = append(j.Skipped, LineError{Line: line, Err: "bad ACTION record: " + err.Error()})
				continue
			}
			j.Entries = append(j.Entries, e)
		default:
			j.Skipped = append(j.Skipped, LineError{Line: line, Err: fmt.Sprintf("unknown record_type %q", p.RecordType)})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return j, nil
}
