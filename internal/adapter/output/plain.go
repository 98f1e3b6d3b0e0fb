package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/callfocus/internal/model"
)

// PlainFormatter formats focus state as plain text.
type PlainFormatter struct {
	opts FormatterOptions
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	return &PlainFormatter{opts: opts}
}

// FormatState writes the state as "key: value" lines.
func (f *PlainFormatter) FormatState(w io.Writer, state model.State) error {
	var sb strings.Builder

	mode := state.Mode.String()
	if state.Behavior != "" && state.Behavior != model.BehaviorNone {
		mode += fmt.Sprintf(" (%s)", state.Behavior)
	}
	sb.WriteString("mode:     " + mode + "\n")

	if state.HasPendingCall() {
		sb.WriteString("caller:   " + state.CallerID + "\n")
	}

	if state.HasFocus() && state.HeldSince > 0 {
		held := state.HeldSinceTime()
		since := held.Format(time.DateTime)
		if f.opts.ShowTime {
			since = humanize.Time(held)
		}
		sb.WriteString("held:     " + since + "\n")
	}

	sb.WriteString(fmt.Sprintf("revision: %d\n", state.Revision))

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatHistory writes one line per transition.
func (f *PlainFormatter) FormatHistory(w io.Writer, transitions []model.Transition) error {
	transitions = recent(transitions, f.opts.ShowRecent)
	if len(transitions) == 0 {
		_, err := fmt.Fprintln(w, "no focus changes recorded")
		return err
	}

	for i, t := range transitions {
		if _, err := fmt.Fprintln(w, f.formatTransition(i+1, t)); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatTransition(index int, t model.Transition) string {
	var parts []string

	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("[%d]", index))
	}

	at := t.TimestampTime().Format(time.TimeOnly)
	if f.opts.ShowTime {
		at = humanize.Time(t.TimestampTime())
	}
	parts = append(parts, at, t.Command, t.From.String()+" -> "+t.To.String())

	if t.CallerID != "" {
		parts = append(parts, "<"+t.CallerID+">")
	}

	return strings.Join(parts, " ")
}
