// Package model defines the core data structures for callfocus.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Mode is the audio routing/priority state a caller asks for.
// The numeric values are part of the public command surface and must not change.
type Mode int

const (
	// ModeNone means no focus is held. It is never a valid request.
	ModeNone Mode = 0
	// ModeInCommunication routes audio for a voice call.
	ModeInCommunication Mode = 100
	// ModeNormal is ordinary media playback priority.
	ModeNormal Mode = 101
	// ModeRingtone is used while a ring tone is sounding.
	ModeRingtone Mode = 102
)

// ModeNames maps modes to their command-line names.
var ModeNames = map[Mode]string{
	ModeNone:            "none",
	ModeInCommunication: "in-communication",
	ModeNormal:          "normal",
	ModeRingtone:        "ringtone",
}

// ErrInvalidMode is returned when a mode code or name is not recognised.
var ErrInvalidMode = errors.New("mode must be 100 (in-communication), 101 (normal) or 102 (ringtone)")

// RequestableModes returns the modes that may be passed to requestFocus.
func RequestableModes() []Mode {
	return []Mode{ModeInCommunication, ModeNormal, ModeRingtone}
}

// String returns the command-line name of the mode.
func (m Mode) String() string {
	if name, ok := ModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Valid reports whether m can be requested.
func (m Mode) Valid() bool {
	switch m {
	case ModeInCommunication, ModeNormal, ModeRingtone:
		return true
	default:
		return false
	}
}

// IsCall reports whether m is a call-related mode, which is required
// for a pending call notification to exist.
func (m Mode) IsCall() bool {
	return m == ModeInCommunication || m == ModeRingtone
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// Both the numeric code and the name are accepted, "none" included.
func (m *Mode) UnmarshalText(text []byte) error {
	if strings.EqualFold(string(text), ModeNames[ModeNone]) {
		*m = ModeNone
		return nil
	}
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode parses a requestable mode from its numeric code ("100")
// or its name ("in-communication", "normal", "ringtone").
// Constant-style names
// ("IN_COMMUNICATION", "MODE_RINGTONE") are accepted too.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		m := Mode(code)
		if !m.Valid() {
			return ModeNone, fmt.Errorf("%w: got %d", ErrInvalidMode, code)
		}
		return m, nil
	}

	name := strings.ToLower(strings.ReplaceAll(s, "_", "-"))
	name = strings.TrimPrefix(name, "mode-")
	for _, m := range RequestableModes() {
		if ModeNames[m] == name {
			return m, nil
		}
	}
	return ModeNone, fmt.Errorf("%w: got %q", ErrInvalidMode, s)
}

// Behavior is the mode-specific native behavior started together with a mode.
type Behavior string

const (
	// BehaviorNone is a plain focus request.
	BehaviorNone Behavior = "none"
	// BehaviorCommunication switches to call audio routing with the speakerphone off.
	BehaviorCommunication Behavior = "communication"
	// BehaviorIncomingRing plays the ring tone in a loop.
	BehaviorIncomingRing Behavior = "incoming-ring"
	// BehaviorOutgoingRing plays the ring-back tone in a loop.
	BehaviorOutgoingRing Behavior = "outgoing-ring"
)

// PlaysRing reports whether the behavior plays a looping tone.
func (b Behavior) PlaysRing() bool {
	return b == BehaviorIncomingRing || b == BehaviorOutgoingRing
}

// Command identifiers of the public command surface.
// These literal strings are preserved for compatibility with existing callers.
const (
	CommandRequestFocus            = "requestFocus"
	CommandDumpFocus               = "dumpFocus"
	CommandSetModeInCommunication  = "setModeInCommunication"
	CommandPlayIncomingRing        = "playIncomingRing"
	CommandPlayOutgoingRing        = "playOutgoingRing"
	CommandShowCallNotification    = "showCallNotification"
	CommandDismissCallNotification = "dismissCallNotification"
)

// Commands returns every command identifier in surface order.
func Commands() []string {
	return []string{
		CommandRequestFocus,
		CommandDumpFocus,
		CommandSetModeInCommunication,
		CommandPlayIncomingRing,
		CommandPlayOutgoingRing,
		CommandShowCallNotification,
		CommandDismissCallNotification,
	}
}

// State is a snapshot of the focus state.
type State struct {
	Mode      Mode     `json:"mode" yaml:"mode"`
	Behavior  Behavior `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	CallerID  string   `json:"caller_id,omitempty" yaml:"caller_id,omitempty"`
	HeldSince int64    `json:"held_since,omitempty" yaml:"held_since,omitempty"` // Unix timestamp
	RequestID string   `json:"request_id,omitempty" yaml:"request_id,omitempty"` // Last applied request
	Revision  uint64   `json:"revision" yaml:"revision"`
}

// HasFocus reports whether any mode is held.
func (s State) HasFocus() bool {
	return s.Mode != ModeNone
}

// HasPendingCall reports whether a call notification is pending.
func (s State) HasPendingCall() bool {
	return s.CallerID != ""
}

// HeldSinceTime returns the acquisition time, or the zero time when no focus is held.
func (s State) HeldSinceTime() time.Time {
	if s.HeldSince == 0 {
		return time.Time{}
	}
	return time.Unix(s.HeldSince, 0)
}

// Transition records one applied change of the focus state.
type Transition struct {
	Command   string `json:"command" yaml:"command"`
	From      Mode   `json:"from" yaml:"from"`
	To        Mode   `json:"to" yaml:"to"`
	CallerID  string `json:"caller_id,omitempty" yaml:"caller_id,omitempty"`
	RequestID string `json:"request_id" yaml:"request_id"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
}

// TimestampTime returns the timestamp as a time.Time.
func (t Transition) TimestampTime() time.Time {
	return time.Unix(t.Timestamp, 0)
}

// NewRequestID generates a ULID identifying one command invocation.
func NewRequestID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}
