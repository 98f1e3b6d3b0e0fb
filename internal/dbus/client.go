package dbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/callfocus/internal/model"
)

// Client invokes the focus command surface of a running callfocusd.
// Errors returned by commands match the focus sentinels under errors.Is.
type Client struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger
}

// NewClient creates a Client on conn.
func NewClient(conn *dbus.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:   conn,
		obj:    conn.Object(BusName, ObjectPath),
		logger: logger,
	}
}

// Connect opens a private session bus connection and returns a Client on it.
// The caller closes the Client.
func Connect(logger *slog.Logger) (*Client, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return NewClient(conn, logger), nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RequestFocus acquires focus in mode.
func (c *Client) RequestFocus(ctx context.Context, mode model.Mode) (string, error) {
	return c.command(ctx, model.CommandRequestFocus, int32(mode))
}

// DumpFocus releases focus.
func (c *Client) DumpFocus(ctx context.Context) (string, error) {
	return c.command(ctx, model.CommandDumpFocus)
}

// SetModeInCommunication acquires call focus.
func (c *Client) SetModeInCommunication(ctx context.Context) (string, error) {
	return c.command(ctx, model.CommandSetModeInCommunication)
}

// PlayIncomingRing acquires ring focus and starts the ring tone.
func (c *Client) PlayIncomingRing(ctx context.Context) (string, error) {
	return c.command(ctx, model.CommandPlayIncomingRing)
}

// PlayOutgoingRing acquires call focus and starts the ring-back tone.
func (c *Client) PlayOutgoingRing(ctx context.Context) (string, error) {
	return c.command(ctx, model.CommandPlayOutgoingRing)
}

// ShowCallNotification shows the call notification for callerID.
func (c *Client) ShowCallNotification(ctx context.Context, callerID string) (string, error) {
	return c.command(ctx, model.CommandShowCallNotification, callerID)
}

// DismissCallNotification dismisses the call notification. The daemon
// replies without waiting for the outcome.
func (c *Client) DismissCallNotification(ctx context.Context) (string, error) {
	return c.command(ctx, model.CommandDismissCallNotification)
}

// State fetches the focus state.
func (c *Client) State(ctx context.Context) (model.State, error) {
	var reply StateReply
	if err := c.obj.CallWithContext(ctx, Interface+"."+methodGetState, 0).Store(&reply); err != nil {
		return model.State{}, fmt.Errorf("%s: %w", methodGetState, fromDBusError(err))
	}
	return stateFromWire(reply), nil
}

// History fetches the recorded transitions, oldest first.
func (c *Client) History(ctx context.Context) ([]model.Transition, error) {
	var reply []TransitionReply
	if err := c.obj.CallWithContext(ctx, Interface+"."+methodGetHistory, 0).Store(&reply); err != nil {
		return nil, fmt.Errorf("%s: %w", methodGetHistory, fromDBusError(err))
	}
	return transitionsFromWire(reply), nil
}

// WatchFocusChanged calls handler for every FocusChanged signal until the
// returned cancel func is called.
func (c *Client) WatchFocusChanged(handler func(FocusChange)) (func(), error) {
	return subscribe(c.conn, Interface, SignalFocusChanged, ObjectPath, func(sig *dbus.Signal) {
		change, ok := parseFocusChanged(sig)
		if !ok {
			c.logger.Warn("malformed FocusChanged signal", "body_len", len(sig.Body))
			return
		}
		handler(change)
	})
}

func (c *Client) command(ctx context.Context, method string, args ...any) (string, error) {
	var requestID string
	err := c.obj.CallWithContext(ctx, Interface+"."+method, 0, args...).Store(&requestID)
	if err != nil {
		return "", fromDBusError(err)
	}
	c.logger.Debug("command completed", "method", method, "request_id", requestID)
	return requestID, nil
}
