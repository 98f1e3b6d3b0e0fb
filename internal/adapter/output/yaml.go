package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/callfocus/internal/model"
)

// YAMLFormatter formats focus state as YAML.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// FormatState writes the state as a YAML mapping.
func (f *YAMLFormatter) FormatState(w io.Writer, state model.State) error {
	return f.encode(w, state)
}

// FormatHistory writes transitions as a YAML sequence.
func (f *YAMLFormatter) FormatHistory(w io.Writer, transitions []model.Transition) error {
	transitions = recent(transitions, f.opts.ShowRecent)
	if transitions == nil {
		transitions = []model.Transition{}
	}
	return f.encode(w, transitions)
}

func (f *YAMLFormatter) encode(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}
