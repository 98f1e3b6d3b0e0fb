package dbus

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/callfocus/internal/model"
)

// FocusChange is the payload of the FocusChanged signal.
type FocusChange struct {
	Mode     model.Mode
	CallerID string
	Revision uint64
}

// EmitFocusChanged emits the FocusChanged signal for state.
func (s *Server) EmitFocusChanged(state model.State) error {
	if s.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}

	err := s.conn.Emit(ObjectPath, Interface+"."+SignalFocusChanged,
		int32(state.Mode), state.CallerID, state.Revision)
	if err != nil {
		return fmt.Errorf("failed to emit FocusChanged signal: %w", err)
	}

	s.logger.Debug("emitted FocusChanged signal", "mode", state.Mode.String(), "revision", state.Revision)
	return nil
}

// parseFocusChanged decodes a FocusChanged signal body.
func parseFocusChanged(sig *dbus.Signal) (FocusChange, bool) {
	if len(sig.Body) < 3 {
		return FocusChange{}, false
	}
	mode, ok := sig.Body[0].(int32)
	if !ok {
		return FocusChange{}, false
	}
	caller, ok := sig.Body[1].(string)
	if !ok {
		return FocusChange{}, false
	}
	revision, ok := sig.Body[2].(uint64)
	if !ok {
		return FocusChange{}, false
	}
	return FocusChange{Mode: model.Mode(mode), CallerID: caller, Revision: revision}, true
}

// parseNotificationClosed decodes a NotificationClosed signal body.
func parseNotificationClosed(sig *dbus.Signal) (uint32, CloseReason, bool) {
	if len(sig.Body) < 2 {
		return 0, 0, false
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return 0, 0, false
	}
	reason, ok := sig.Body[1].(uint32)
	if !ok {
		return 0, 0, false
	}
	return id, CloseReason(reason), true
}

// subscribe routes signals iface.member (optionally limited to path) to
// handle until the returned cancel func is called or the connection closes.
func subscribe(conn *dbus.Conn, iface, member string, path dbus.ObjectPath, handle func(*dbus.Signal)) (func(), error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(member),
	}
	if path != "" {
		opts = append(opts, dbus.WithMatchObjectPath(path))
	}
	if err := conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("failed to add match for %s.%s: %w", iface, member, err)
	}

	ch := make(chan *dbus.Signal, 16)
	conn.Signal(ch)

	done := make(chan struct{})
	go func() {
		name := iface + "." + member
		for {
			select {
			case sig, ok := <-ch:
				if !ok {
					return
				}
				if sig.Name != name || (path != "" && sig.Path != path) {
					continue
				}
				handle(sig)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			conn.RemoveSignal(ch)
			_ = conn.RemoveMatchSignal(opts...)
		})
	}
	return cancel, nil
}
