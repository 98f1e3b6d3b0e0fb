package dbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// ClosedHandler is called when the notification server reports a closed notification.
type ClosedHandler func(id uint32, reason CloseReason)

// NotificationClient talks to the session's notification server.
type NotificationClient struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	logger *slog.Logger

	mu     sync.Mutex
	cancel func()
}

// NewNotificationClient creates a client on conn.
func NewNotificationClient(conn *dbus.Conn, logger *slog.Logger) *NotificationClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationClient{
		conn:   conn,
		obj:    conn.Object(NotificationsBusName, NotificationsPath),
		logger: logger,
	}
}

// Notify shows n and returns the id the server assigned.
func (c *NotificationClient) Notify(ctx context.Context, n *Notification) (uint32, error) {
	var id uint32
	call := c.obj.CallWithContext(ctx, NotificationsInterface+".Notify", 0, n.Args()...)
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to send notification: %w", err)
	}

	c.logger.Debug("notification sent", "id", id, "summary", n.Summary, "replaces_id", n.ReplacesID)
	return id, nil
}

// CloseNotification withdraws the notification with id.
func (c *NotificationClient) CloseNotification(ctx context.Context, id uint32) error {
	if err := c.obj.CallWithContext(ctx, NotificationsInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("failed to close notification %d: %w", id, err)
	}
	c.logger.Debug("notification closed", "id", id)
	return nil
}

// OnClosed subscribes handler to NotificationClosed signals, replacing any
// earlier subscription.
func (c *NotificationClient) OnClosed(handler ClosedHandler) error {
	cancel, err := subscribe(c.conn, NotificationsInterface, "NotificationClosed", NotificationsPath,
		func(sig *dbus.Signal) {
			id, reason, ok := parseNotificationClosed(sig)
			if !ok {
				c.logger.Warn("malformed NotificationClosed signal", "body_len", len(sig.Body))
				return
			}
			handler(id, reason)
		})
	if err != nil {
		return err
	}

	c.mu.Lock()
	prev := c.cancel
	c.cancel = cancel
	c.mu.Unlock()
	if prev != nil {
		prev()
	}
	return nil
}

// Close drops the NotificationClosed subscription. The connection stays open.
func (c *NotificationClient) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
