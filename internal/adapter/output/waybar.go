package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/callfocus/internal/model"
)

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text    string `json:"text"`
	Alt     string `json:"alt,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
	Class   string `json:"class,omitempty"`
}

// WaybarFormatter writes a single-line status for a Waybar custom module:
//
//	"custom/callfocus": {
//	  "exec": "callfocus status -o waybar",
//	  "interval": 2,
//	  "return-type": "json"
//	}
type WaybarFormatter struct {
	opts FormatterOptions
}

// NewWaybarFormatter creates a new Waybar formatter.
func NewWaybarFormatter(opts FormatterOptions) *WaybarFormatter {
	return &WaybarFormatter{opts: opts}
}

// FormatState writes the state as one line of Waybar JSON.
func (f *WaybarFormatter) FormatState(w io.Writer, state model.State) error {
	return json.NewEncoder(w).Encode(StatusFor(state))
}

// FormatHistory is not supported: Waybar modules render a single status.
func (f *WaybarFormatter) FormatHistory(io.Writer, []model.Transition) error {
	return fmt.Errorf("history: waybar: %w", ErrUnsupported)
}

// StatusFor builds the Waybar status for a focus state.
func StatusFor(state model.State) WaybarStatus {
	if !state.HasFocus() {
		return WaybarStatus{
			Text:    "",
			Alt:     "idle",
			Tooltip: "No audio focus held",
			Class:   "idle",
		}
	}

	text := state.Mode.String()
	if state.HasPendingCall() {
		text = state.CallerID
	}

	lines := []string{"Mode: " + state.Mode.String()}
	if state.Behavior != "" && state.Behavior != model.BehaviorNone {
		lines = append(lines, "Behavior: "+string(state.Behavior))
	}
	if state.HasPendingCall() {
		lines = append(lines, "Caller: "+state.CallerID)
	}
	if state.HeldSince > 0 {
		lines = append(lines, "Held: "+humanize.Time(state.HeldSinceTime()))
	}

	return WaybarStatus{
		Text:    text,
		Alt:     state.Mode.String(),
		Tooltip: strings.Join(lines, "\n"),
		Class:   state.Mode.String(),
	}
}
