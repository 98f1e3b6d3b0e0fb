package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/callfocus/internal/model"
)

func ringingState() model.State {
	return model.State{
		Mode:      model.ModeRingtone,
		Behavior:  model.BehaviorIncomingRing,
		CallerID:  "alice",
		HeldSince: time.Now().Add(-2 * time.Minute).Unix(),
		RequestID: "01HQGXK5P0000000000000000",
		Revision:  4,
	}
}

func createTestTransitions() []model.Transition {
	now := time.Now().Unix()
	return []model.Transition{
		{Command: model.CommandRequestFocus, From: model.ModeNone, To: model.ModeNormal, RequestID: "r1", Timestamp: now - 60},
		{Command: model.CommandPlayIncomingRing, From: model.ModeNormal, To: model.ModeRingtone, RequestID: "r2", Timestamp: now - 30},
		{Command: model.CommandShowCallNotification, From: model.ModeRingtone, To: model.ModeRingtone, CallerID: "alice", RequestID: "r3", Timestamp: now},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    FormatType
		wantErr bool
	}{
		{"plain", FormatPlain, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"waybar", FormatWaybar, false},
		{"dmenu", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewFormatter(t *testing.T) {
	opts := DefaultFormatterOptions()
	assert.IsType(t, &PlainFormatter{}, NewFormatter(FormatPlain, opts))
	assert.IsType(t, &JSONFormatter{}, NewFormatter(FormatJSON, opts))
	assert.IsType(t, &YAMLFormatter{}, NewFormatter(FormatYAML, opts))
	assert.IsType(t, &WaybarFormatter{}, NewFormatter(FormatWaybar, opts))
	assert.IsType(t, &PlainFormatter{}, NewFormatter("unknown", opts))
}

func TestPlainFormatter_State(t *testing.T) {
	f := NewPlainFormatter(DefaultFormatterOptions())
	var buf bytes.Buffer

	require.NoError(t, f.FormatState(&buf, ringingState()))

	output := buf.String()
	assert.Contains(t, output, "mode:     ringtone (incoming-ring)")
	assert.Contains(t, output, "caller:   alice")
	assert.Contains(t, output, "2 minutes ago")
	assert.Contains(t, output, "revision: 4")
}

func TestPlainFormatter_IdleState(t *testing.T) {
	f := NewPlainFormatter(DefaultFormatterOptions())
	var buf bytes.Buffer

	require.NoError(t, f.FormatState(&buf, model.State{}))

	output := buf.String()
	assert.Contains(t, output, "mode:     none")
	assert.NotContains(t, output, "caller:")
	assert.NotContains(t, output, "held:")
}

func TestPlainFormatter_History(t *testing.T) {
	f := NewPlainFormatter(DefaultFormatterOptions())
	var buf bytes.Buffer

	require.NoError(t, f.FormatHistory(&buf, createTestTransitions()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "[1] "))
	assert.Contains(t, lines[1], "playIncomingRing normal -> ringtone")
	assert.Contains(t, lines[2], "<alice>")
}

func TestPlainFormatter_HistoryOptions(t *testing.T) {
	f := NewPlainFormatter(FormatterOptions{ShowRecent: 1})
	var buf bytes.Buffer

	require.NoError(t, f.FormatHistory(&buf, createTestTransitions()))

	output := strings.TrimSpace(buf.String())
	assert.NotContains(t, output, "\n")
	assert.NotContains(t, output, "[")
	assert.Contains(t, output, "showCallNotification")
}

func TestPlainFormatter_EmptyHistory(t *testing.T) {
	f := NewPlainFormatter(DefaultFormatterOptions())
	var buf bytes.Buffer

	require.NoError(t, f.FormatHistory(&buf, nil))
	assert.Equal(t, "no focus changes recorded\n", buf.String())
}

func TestJSONFormatter_State(t *testing.T) {
	f := NewJSONFormatter(DefaultFormatterOptions())
	var buf bytes.Buffer

	require.NoError(t, f.FormatState(&buf, ringingState()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ringtone", decoded["mode"])
	assert.Equal(t, "incoming-ring", decoded["behavior"])
	assert.Equal(t, "alice", decoded["caller_id"])
	assert.EqualValues(t, 4, decoded["revision"])
}

func TestJSONFormatter_EmptyHistory(t *testing.T) {
	f := NewJSONFormatter(DefaultFormatterOptions())
	var buf bytes.Buffer

	require.NoError(t, f.FormatHistory(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestYAMLFormatter_History(t *testing.T) {
	f := NewYAMLFormatter(DefaultFormatterOptions())
	var buf bytes.Buffer

	require.NoError(t, f.FormatHistory(&buf, createTestTransitions()))

	var decoded []model.Transition
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, model.ModeRingtone, decoded[1].To)
	assert.Contains(t, buf.String(), "command: requestFocus")
}

func TestWaybarFormatter_State(t *testing.T) {
	tests := []struct {
		name      string
		state     model.State
		wantText  string
		wantClass string
	}{
		{"idle", model.State{}, "", "idle"},
		{"normal", model.State{Mode: model.ModeNormal, Behavior: model.BehaviorNone}, "normal", "normal"},
		{"ringing with caller", ringingState(), "alice", "ringtone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewWaybarFormatter(DefaultFormatterOptions())
			var buf bytes.Buffer
			require.NoError(t, f.FormatState(&buf, tt.state))

			var status WaybarStatus
			require.NoError(t, json.Unmarshal(buf.Bytes(), &status))
			assert.Equal(t, tt.wantText, status.Text)
			assert.Equal(t, tt.wantClass, status.Class)
		})
	}
}

func TestWaybarFormatter_HistoryUnsupported(t *testing.T) {
	f := NewWaybarFormatter(DefaultFormatterOptions())
	err := f.FormatHistory(&bytes.Buffer{}, createTestTransitions())
	assert.ErrorIs(t, err, ErrUnsupported)
}
