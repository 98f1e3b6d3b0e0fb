package dbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// ErrNameTaken is returned when another connection owns the focus bus name.
var ErrNameTaken = errors.New("bus name owned by another connection")

// NameToken owns a well-known bus name while focus is held. Another
// process owning the name means it holds focus.
type NameToken struct {
	conn   *dbus.Conn
	name   string
	logger *slog.Logger

	mu   sync.Mutex
	held bool
}

// NewNameToken creates a token for name on conn.
func NewNameToken(conn *dbus.Conn, name string, logger *slog.Logger) *NameToken {
	if logger == nil {
		logger = slog.Default()
	}
	return &NameToken{conn: conn, name: name, logger: logger}
}

// Name returns the bus name.
func (t *NameToken) Name() string {
	return t.name
}

// Acquire claims the name without queueing. Holding it already succeeds.
func (t *NameToken) Acquire() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	reply, err := t.conn.RequestName(t.name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name %s: %w", t.name, err)
	}

	switch reply {
	case dbus.RequestNameReplyPrimaryOwner, dbus.RequestNameReplyAlreadyOwner:
		if !t.held {
			t.logger.Debug("focus bus name acquired", "name", t.name)
		}
		t.held = true
		return nil
	default:
		return fmt.Errorf("%s: %w", t.name, ErrNameTaken)
	}
}

// Release gives the name up. Releasing a name not held is a no-op.
func (t *NameToken) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.held {
		return nil
	}
	if _, err := t.conn.ReleaseName(t.name); err != nil {
		return fmt.Errorf("failed to release bus name %s: %w", t.name, err)
	}
	t.held = false
	t.logger.Debug("focus bus name released", "name", t.name)
	return nil
}

// Held reports whether this connection owns the name.
func (t *NameToken) Held() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.held
}
