// Package output provides output formatters for focus state and history.
package output

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jmylchreest/callfocus/internal/model"
)

// ErrUnsupported is returned when a format cannot render the requested data.
var ErrUnsupported = errors.New("unsupported by this output format")

// Formatter formats focus state and transitions for output.
type Formatter interface {
	// FormatState writes a focus state snapshot to the writer.
	FormatState(w io.Writer, state model.State) error
	// FormatHistory writes transitions, oldest first, to the writer.
	FormatHistory(w io.Writer, transitions []model.Transition) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain  FormatType = "plain"
	FormatJSON   FormatType = "json"
	FormatYAML   FormatType = "yaml"
	FormatWaybar FormatType = "waybar"
)

// FormatTypes lists the accepted format names.
func FormatTypes() []FormatType {
	return []FormatType{FormatPlain, FormatJSON, FormatYAML, FormatWaybar}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (FormatType, error) {
	f := FormatType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range FormatTypes() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q, must be one of: plain, json, yaml, waybar", s)
}

// NewFormatter creates a formatter for the specified format type.
// Unknown types fall back to plain text.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	case FormatWaybar:
		return NewWaybarFormatter(opts)
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	ShowTime   bool // Show relative times
	ShowIndex  bool // Number history entries
	ShowRecent int  // Only the last N history entries (0 = all)
}

// DefaultFormatterOptions returns sensible defaults.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowTime:  true,
		ShowIndex: true,
	}
}

// recent trims transitions to the last n entries.
func recent(transitions []model.Transition, n int) []model.Transition {
	if n <= 0 || len(transitions) <= n {
		return transitions
	}
	return transitions[len(transitions)-n:]
}
