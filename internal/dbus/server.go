package dbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/callfocus/internal/focus"
	"github.com/jmylchreest/callfocus/internal/model"
)

const (
	// Interface is the focus command interface name.
	Interface = "io.github.jmylchreest.CallFocus"
	// BusName is the bus name callfocusd claims.
	BusName = "io.github.jmylchreest.CallFocus"
	// ObjectPath is the focus command object path.
	ObjectPath dbus.ObjectPath = "/io/github/jmylchreest/CallFocus"

	// SignalFocusChanged is emitted after every applied focus mutation.
	SignalFocusChanged = "FocusChanged"

	methodGetState   = "getState"
	methodGetHistory = "getHistory"
)

// DefaultWaitTimeout bounds how long a method call waits for its command.
const DefaultWaitTimeout = focus.DefaultNativeTimeout + time.Second

// Arbiter is the command surface the server exports.
type Arbiter interface {
	RequestFocus(mode model.Mode) *focus.Result
	DumpFocus() *focus.Result
	SetModeInCommunication() *focus.Result
	PlayIncomingRing() *focus.Result
	PlayOutgoingRing() *focus.Result
	ShowCallNotification(callerID string) *focus.Result
	DismissCallNotification() *focus.Result
	State() model.State
}

// HistoryFunc returns the recorded transitions, oldest first.
type HistoryFunc func() []model.Transition

// Server exports an Arbiter on the session bus.
type Server struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	arbiter Arbiter
	history HistoryFunc

	mu          sync.RWMutex
	waitTimeout time.Duration
	running     bool
}

// NewServer creates a Server for arbiter. history may be nil.
func NewServer(arbiter Arbiter, history HistoryFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if history == nil {
		history = func() []model.Transition { return nil }
	}
	return &Server{
		logger:      logger,
		arbiter:     arbiter,
		history:     history,
		waitTimeout: DefaultWaitTimeout,
	}
}

// SetWaitTimeout changes how long method calls wait for their command.
func (s *Server) SetWaitTimeout(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitTimeout = timeout
}

// Start exports the command surface on conn and claims BusName.
func (s *Server) Start(conn *dbus.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server already running")
	}
	s.conn = conn

	if err := conn.ExportMethodTable(s.methods(), ObjectPath, Interface); err != nil {
		return fmt.Errorf("failed to export methods: %w", err)
	}

	node := &introspect.Node{
		Name: string(ObjectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: focusMethods(),
				Signals: focusSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), ObjectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken, is callfocusd already running?", BusName)
	}

	s.running = true
	s.logger.Info("D-Bus focus server started", "interface", Interface, "path", ObjectPath)
	return nil
}

// Stop unexports the command surface and releases BusName.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	_ = s.conn.Export(nil, ObjectPath, Interface)
	_ = s.conn.Export(nil, ObjectPath, "org.freedesktop.DBus.Introspectable")
	if _, err := s.conn.ReleaseName(BusName); err != nil {
		s.logger.Warn("failed to release bus name", "error", err)
	}

	s.logger.Info("D-Bus focus server stopped")
	return nil
}

// methods maps the exported method names to their handlers.
func (s *Server) methods() map[string]any {
	return map[string]any{
		model.CommandRequestFocus: func(mode int32) (string, *dbus.Error) {
			return s.await(model.CommandRequestFocus, s.arbiter.RequestFocus(model.Mode(mode)))
		},
		model.CommandDumpFocus: func() (string, *dbus.Error) {
			return s.await(model.CommandDumpFocus, s.arbiter.DumpFocus())
		},
		model.CommandSetModeInCommunication: func() (string, *dbus.Error) {
			return s.await(model.CommandSetModeInCommunication, s.arbiter.SetModeInCommunication())
		},
		model.CommandPlayIncomingRing: func() (string, *dbus.Error) {
			return s.await(model.CommandPlayIncomingRing, s.arbiter.PlayIncomingRing())
		},
		model.CommandPlayOutgoingRing: func() (string, *dbus.Error) {
			return s.await(model.CommandPlayOutgoingRing, s.arbiter.PlayOutgoingRing())
		},
		model.CommandShowCallNotification: func(callerID string) (string, *dbus.Error) {
			return s.await(model.CommandShowCallNotification, s.arbiter.ShowCallNotification(callerID))
		},
		// Fire-and-forget: reply before the collaborator returns.
		model.CommandDismissCallNotification: func() (string, *dbus.Error) {
			res := s.arbiter.DismissCallNotification()
			s.logger.Debug("method called", "method", model.CommandDismissCallNotification, "request_id", res.RequestID())
			return res.RequestID(), nil
		},
		methodGetState: func() (StateReply, *dbus.Error) {
			return stateToWire(s.arbiter.State()), nil
		},
		methodGetHistory: func() ([]TransitionReply, *dbus.Error) {
			return transitionsToWire(s.history()), nil
		},
	}
}

// await blocks the method call until res completes and maps its error.
func (s *Server) await(method string, res *focus.Result) (string, *dbus.Error) {
	s.mu.RLock()
	timeout := s.waitTimeout
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := res.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%s: %w waiting for result", method, focus.ErrTimeout)
	}
	if err != nil {
		s.logger.Debug("method failed", "method", method, "request_id", res.RequestID(), "error", err)
		return res.RequestID(), toDBusError(err)
	}

	s.logger.Debug("method completed", "method", method, "request_id", res.RequestID())
	return res.RequestID(), nil
}

// focusMethods returns the D-Bus method introspection data.
func focusMethods() []introspect.Method {
	requestID := introspect.Arg{Name: "request_id", Type: "s", Direction: "out"}
	noArgs := func(name string) introspect.Method {
		return introspect.Method{Name: name, Args: []introspect.Arg{requestID}}
	}

	return []introspect.Method{
		{
			Name: model.CommandRequestFocus,
			Args: []introspect.Arg{
				{Name: "mode", Type: "i", Direction: "in"},
				requestID,
			},
		},
		noArgs(model.CommandDumpFocus),
		noArgs(model.CommandSetModeInCommunication),
		noArgs(model.CommandPlayIncomingRing),
		noArgs(model.CommandPlayOutgoingRing),
		{
			Name: model.CommandShowCallNotification,
			Args: []introspect.Arg{
				{Name: "caller_id", Type: "s", Direction: "in"},
				requestID,
			},
		},
		noArgs(model.CommandDismissCallNotification),
		{
			Name: methodGetState,
			Args: []introspect.Arg{
				{Name: "state", Type: "(issxst)", Direction: "out"},
			},
		},
		{
			Name: methodGetHistory,
			Args: []introspect.Arg{
				{Name: "transitions", Type: "a(siissx)", Direction: "out"},
			},
		},
	}
}

// focusSignals returns the D-Bus signal introspection data.
func focusSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: SignalFocusChanged,
			Args: []introspect.Arg{
				{Name: "mode", Type: "i"},
				{Name: "caller_id", Type: "s"},
				{Name: "revision", Type: "t"},
			},
		},
	}
}
