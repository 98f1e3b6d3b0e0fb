package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/callfocus/internal/model"
)

// JSONFormatter formats focus state as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// FormatState writes the state as a JSON object.
func (f *JSONFormatter) FormatState(w io.Writer, state model.State) error {
	return f.encode(w, state)
}

// FormatHistory writes transitions as a JSON array.
func (f *JSONFormatter) FormatHistory(w io.Writer, transitions []model.Transition) error {
	transitions = recent(transitions, f.opts.ShowRecent)
	if transitions == nil {
		transitions = []model.Transition{}
	}
	return f.encode(w, transitions)
}

func (f *JSONFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
