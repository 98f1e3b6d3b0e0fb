package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/callfocus/internal/model"
)

func testTransitions() []model.Transition {
	now := time.Now()
	return []model.Transition{
		{Command: model.CommandRequestFocus, From: model.ModeNone, To: model.ModeNormal, RequestID: "1", Timestamp: now.Add(-5 * time.Hour).Unix()},
		{Command: model.CommandPlayIncomingRing, From: model.ModeNormal, To: model.ModeRingtone, RequestID: "2", Timestamp: now.Add(-2 * time.Hour).Unix()},
		{Command: model.CommandShowCallNotification, From: model.ModeRingtone, To: model.ModeRingtone, CallerID: "Alice", RequestID: "3", Timestamp: now.Add(-90 * time.Minute).Unix()},
		{Command: model.CommandSetModeInCommunication, From: model.ModeRingtone, To: model.ModeInCommunication, CallerID: "Alice", RequestID: "4", Timestamp: now.Add(-30 * time.Minute).Unix()},
		{Command: model.CommandDumpFocus, From: model.ModeInCommunication, To: model.ModeNone, RequestID: "5", Timestamp: now.Add(-10 * time.Minute).Unix()},
	}
}

func requestIDs(ts []model.Transition) []string {
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.RequestID
	}
	return ids
}

func TestFilter_Empty(t *testing.T) {
	assert.Empty(t, Filter(nil, FilterOptions{}))
}

func TestFilter_Options(t *testing.T) {
	tests := []struct {
		name string
		opts FilterOptions
		want []string
	}{
		{"no filters", FilterOptions{}, []string{"1", "2", "3", "4", "5"}},
		{"since", FilterOptions{Since: time.Hour}, []string{"4", "5"}},
		{"command case-insensitive", FilterOptions{Command: "playincomingring"}, []string{"2"}},
		{"caller", FilterOptions{Caller: "Alice"}, []string{"3", "4"}},
		{"limit keeps newest", FilterOptions{Limit: 2}, []string{"4", "5"}},
		{"combined", FilterOptions{Caller: "Alice", Since: time.Hour}, []string{"4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, requestIDs(Filter(testTransitions(), tt.opts)))
		})
	}
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		expr    string
		want    []string
		wantErr bool
	}{
		{"", []string{"1", "2", "3", "4", "5"}, false},
		{"command=dumpFocus", []string{"5"}, false},
		{"to=ringtone", []string{"2", "3"}, false},
		{"to=102", []string{"2", "3"}, false},
		{"from!=none,to!=none", []string{"2", "3", "4"}, false},
		{"caller~ali", []string{"3", "4"}, false},
		{"command~=^play", []string{"2"}, false},
		{"time>1h", []string{"4", "5"}, false},
		{"time<1h,caller=Alice", []string{"3"}, false},
		{"to=ringtone,time>=100m", []string{"3"}, false},
		{"request=3", []string{"3"}, false},

		{"urgency=critical", nil, true},
		{"to~ring", nil, true},
		{"to=loud", nil, true},
		{"time=1h", nil, true},
		{"time>soon", nil, true},
		{"command~=(", nil, true},
		{"dumpFocus", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			expr, err := ParseFilter(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, requestIDs(FilterWithExpr(testTransitions(), expr)))
		})
	}
}

func TestFilterWithExpr_Nil(t *testing.T) {
	ts := testTransitions()
	assert.Len(t, FilterWithExpr(ts, nil), len(ts))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		hasError bool
	}{
		{"0", 0, false},
		{"", 0, false},
		{"1h", time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"invalid", 0, true},
		{"xd", 0, true},
		{"xw", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseDuration(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}
