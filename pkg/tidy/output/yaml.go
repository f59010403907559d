package output

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// yamlOutput mirrors jsonOutput.
type yamlOutput struct {
	Meta     yamlMeta  `yaml:"meta"`
	Stats    []Stat    `yaml:"stats,omitempty"`
	Sections []Section `yaml:"sections,omitempty"`
	Runs     []RunInfo `yaml:"runs,omitempty"`
}

type yamlMeta struct {
	Kind        Kind     `yaml:"kind"`
	Title       string   `yaml:"title"`
	RunID       string   `yaml:"run_id,omitempty"`
	Mode        string   `yaml:"mode,omitempty"`
	Source      string   `yaml:"source,omitempty"`
	Output      string   `yaml:"output,omitempty"`
	Manifest    string   `yaml:"manifest,omitempty"`
	Actions     int      `yaml:"actions"`
	Duration    string   `yaml:"duration,omitempty"`
	Warnings    []string `yaml:"warnings,omitempty"`
	Interrupted bool     `yaml:"interrupted"`
	OK          bool     `yaml:"ok"`
}

// YAMLFormatter formats output as YAML with the same structure as
// JSONFormatter.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *Result) error {
	m := buildMeta(r)
	out := yamlOutput{
		Meta:     yamlMeta(m),
		Stats:    r.Stats,
		Sections: r.Sections,
		Runs:     r.Runs,
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(out); err != nil {
		return err
	}
	return encoder.Close()
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

// Ensure YAMLFormatter implements Formatter.
var _ Formatter = (*YAMLFormatter)(nil)
