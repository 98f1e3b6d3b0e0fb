package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeConstants(t *testing.T) {
	assert.Equal(t, 100, int(ModeInCommunication))
	assert.Equal(t, 101, int(ModeNormal))
	assert.Equal(t, 102, int(ModeRingtone))
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"100", ModeInCommunication, false},
		{"101", ModeNormal, false},
		{"102", ModeRingtone, false},
		{" 102 ", ModeRingtone, false},
		{"in-communication", ModeInCommunication, false},
		{"IN_COMMUNICATION", ModeInCommunication, false},
		{"MODE_RINGTONE", ModeRingtone, false},
		{"normal", ModeNormal, false},
		{"0", ModeNone, true},
		{"103", ModeNone, true},
		{"none", ModeNone, true},
		{"loud", ModeNone, true},
		{"", ModeNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMode_Predicates(t *testing.T) {
	assert.False(t, ModeNone.Valid())
	assert.True(t, ModeNormal.Valid())
	assert.False(t, Mode(7).Valid())

	assert.True(t, ModeInCommunication.IsCall())
	assert.True(t, ModeRingtone.IsCall())
	assert.False(t, ModeNormal.IsCall())
	assert.False(t, ModeNone.IsCall())

	assert.Equal(t, "mode(7)", Mode(7).String())
}

func TestMode_TextRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModeInCommunication, ModeNormal, ModeRingtone} {
		text, err := m.MarshalText()
		require.NoError(t, err)

		var got Mode
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, m, got)
	}
}

func TestState_JSON(t *testing.T) {
	s := State{Mode: ModeRingtone, CallerID: "Alice", Revision: 3}
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mode":"ringtone"`)
	assert.Contains(t, string(data), `"caller_id":"Alice"`)
}

func TestState_Helpers(t *testing.T) {
	var s State
	assert.False(t, s.HasFocus())
	assert.False(t, s.HasPendingCall())
	assert.True(t, s.HeldSinceTime().IsZero())

	now := time.Now().Unix()
	s = State{Mode: ModeNormal, HeldSince: now, CallerID: "Bob"}
	assert.True(t, s.HasFocus())
	assert.True(t, s.HasPendingCall())
	assert.Equal(t, now, s.HeldSinceTime().Unix())
}

func TestBehavior_PlaysRing(t *testing.T) {
	assert.True(t, BehaviorIncomingRing.PlaysRing())
	assert.True(t, BehaviorOutgoingRing.PlaysRing())
	assert.False(t, BehaviorCommunication.PlaysRing())
	assert.False(t, BehaviorNone.PlaysRing())
}

func TestNewRequestID(t *testing.T) {
	a, err := NewRequestID()
	require.NoError(t, err)
	b, err := NewRequestID()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = ulid.Parse(a)
	assert.NoError(t, err)
}

func TestCommands(t *testing.T) {
	assert.Equal(t, []string{
		"requestFocus",
		"dumpFocus",
		"setModeInCommunication",
		"playIncomingRing",
		"playOutgoingRing",
		"showCallNotification",
		"dismissCallNotification",
	}, Commands())
}
