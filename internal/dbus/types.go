package dbus

import (
	"github.com/godbus/dbus/v5"
)

// Freedesktop notification server coordinates.
const (
	NotificationsInterface = "org.freedesktop.Notifications"
	NotificationsPath      = "/org/freedesktop/Notifications"
	NotificationsBusName   = "org.freedesktop.Notifications"
)

// Urgency levels of org.freedesktop.Notifications.
const (
	UrgencyLow      byte = 0
	UrgencyNormal   byte = 1
	UrgencyCritical byte = 2
)

// CategoryCallIncoming is the notification category for an incoming call.
const CategoryCallIncoming = "call.incoming"

// CloseReason represents the reason for closing a notification.
// These values are defined by org.freedesktop.Notifications.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved by the notification protocol.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// ByUser reports whether the notification went away through user action
// rather than a CloseNotification call.
func (r CloseReason) ByUser() bool {
	return r == CloseReasonDismissed
}

// Notification holds the arguments of an org.freedesktop.Notifications.Notify call.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// CallNotification builds the notification shown for an incoming call from callerID.
// It is critical, resident, and replaces the notification with id replaces.
func CallNotification(appName, icon, callerID, body string, replaces uint32, expireTimeout int32) *Notification {
	return &Notification{
		AppName:    appName,
		ReplacesID: replaces,
		AppIcon:    icon,
		Summary:    callerID,
		Body:       body,
		Hints: map[string]dbus.Variant{
			"urgency":       dbus.MakeVariant(UrgencyCritical),
			"category":      dbus.MakeVariant(CategoryCallIncoming),
			"resident":      dbus.MakeVariant(true),
			"desktop-entry": dbus.MakeVariant(appName),
		},
		ExpireTimeout: expireTimeout,
	}
}

// Urgency extracts the urgency hint from the notification.
// Returns UrgencyNormal if not specified.
func (n *Notification) Urgency() byte {
	if v, ok := n.Hints["urgency"]; ok {
		if b, ok := v.Value().(byte); ok {
			return b
		}
	}
	return UrgencyNormal
}

// Category extracts the category hint from the notification.
func (n *Notification) Category() string {
	return n.stringHint("category")
}

// DesktopEntry extracts the desktop-entry hint.
func (n *Notification) DesktopEntry() string {
	return n.stringHint("desktop-entry")
}

// Resident returns true if the resident hint is set.
func (n *Notification) Resident() bool {
	return n.boolHint("resident")
}

// Transient returns true if the transient hint is set.
func (n *Notification) Transient() bool {
	return n.boolHint("transient")
}

func (n *Notification) stringHint(key string) string {
	if v, ok := n.Hints[key]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

func (n *Notification) boolHint(key string) bool {
	if v, ok := n.Hints[key]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// Args returns the Notify call arguments in wire order.
func (n *Notification) Args() []any {
	actions := n.Actions
	if actions == nil {
		actions = []string{}
	}
	hints := n.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}
	return []any{n.AppName, n.ReplacesID, n.AppIcon, n.Summary, n.Body, actions, hints, n.ExpireTimeout}
}
