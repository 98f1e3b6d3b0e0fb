package dbus

import (
	"github.com/jmylchreest/callfocus/internal/model"
)

// StateReply is the wire form of model.State: (issxst).
type StateReply struct {
	Mode      int32
	Behavior  string
	CallerID  string
	HeldSince int64
	RequestID string
	Revision  uint64
}

// TransitionReply is the wire form of model.Transition: (siissx).
type TransitionReply struct {
	Command   string
	From      int32
	To        int32
	CallerID  string
	RequestID string
	Timestamp int64
}

func stateToWire(s model.State) StateReply {
	return StateReply{
		Mode:      int32(s.Mode),
		Behavior:  string(s.Behavior),
		CallerID:  s.CallerID,
		HeldSince: s.HeldSince,
		RequestID: s.RequestID,
		Revision:  s.Revision,
	}
}

func stateFromWire(r StateReply) model.State {
	return model.State{
		Mode:      model.Mode(r.Mode),
		Behavior:  model.Behavior(r.Behavior),
		CallerID:  r.CallerID,
		HeldSince: r.HeldSince,
		RequestID: r.RequestID,
		Revision:  r.Revision,
	}
}

func transitionsToWire(ts []model.Transition) []TransitionReply {
	out := make([]TransitionReply, 0, len(ts))
	for _, t := range ts {
		out = append(out, TransitionReply{
			Command:   t.Command,
			From:      int32(t.From),
			To:        int32(t.To),
			CallerID:  t.CallerID,
			RequestID: t.RequestID,
			Timestamp: t.Timestamp,
		})
	}
	return out
}

func transitionsFromWire(rs []TransitionReply) []model.Transition {
	out := make([]model.Transition, 0, len(rs))
	for _, r := range rs {
		out = append(out, model.Transition{
			Command:   r.Command,
			From:      model.Mode(r.From),
			To:        model.Mode(r.To),
			CallerID:  r.CallerID,
			RequestID: r.RequestID,
			Timestamp: r.Timestamp,
		})
	}
	return out
}
