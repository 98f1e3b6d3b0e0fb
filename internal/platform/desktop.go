package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmylchreest/callfocus/internal/audio"
	"github.com/jmylchreest/callfocus/internal/config"
	"github.com/jmylchreest/callfocus/internal/dbus"
	"github.com/jmylchreest/callfocus/internal/model"
)

// ErrFocusDenied is returned when another process holds focus.
var ErrFocusDenied = errors.New("audio focus denied")

// Ringer plays and silences ring tones.
type Ringer interface {
	Ring(kind audio.RingKind) error
	Silence()
}

// FocusToken marks exclusive focus ownership.
type FocusToken interface {
	Acquire() error
	Release() error
	Held() bool
}

// MediaPauser pauses and resumes other media playback.
type MediaPauser interface {
	PauseAll(ctx context.Context) error
	Resume(ctx context.Context)
}

// Notifier shows and withdraws desktop notifications.
type Notifier interface {
	Notify(ctx context.Context, n *dbus.Notification) (uint32, error)
	CloseNotification(ctx context.Context, id uint32) error
}

// DesktopOptions wires the parts of a Desktop. Token and Media may be nil.
type DesktopOptions struct {
	Config   *config.DaemonConfig
	Ringer   Ringer
	Token    FocusToken
	Media    MediaPauser
	Notifier Notifier
	Logger   *slog.Logger
}

// Desktop is the native collaborator for a Linux desktop session.
type Desktop struct {
	logger   *slog.Logger
	ringer   Ringer
	token    FocusToken
	media    MediaPauser
	notifier Notifier

	// ops serializes Acquire and Release so each sees the effects of the last
	ops sync.Mutex

	mu             sync.Mutex
	notification   config.NotificationConfig
	pauseMedia     bool
	mediaPaused    bool
	notificationID uint32
	onDismissed    func()
}

// NewDesktop creates a Desktop from opts.
func NewDesktop(opts DesktopOptions) *Desktop {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultDaemonConfig()
	}
	return &Desktop{
		logger:       logger,
		ringer:       opts.Ringer,
		token:        opts.Token,
		media:        opts.Media,
		notifier:     opts.Notifier,
		notification: cfg.Notification,
		pauseMedia:   cfg.Focus.PauseMedia,
	}
}

// SetDismissedHandler sets the function called when the user closes the
// call notification.
func (d *Desktop) SetDismissedHandler(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDismissed = fn
}

// UpdateConfig applies a reloaded configuration. The focus bus name is
// fixed for the life of the daemon.
func (d *Desktop) UpdateConfig(cfg *config.DaemonConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notification = cfg.Notification
	d.pauseMedia = cfg.Focus.PauseMedia
}

// Acquire takes focus in mode and starts behavior, replacing the behavior
// of the previous acquisition. On failure the token and the media players
// are left as they were before the call.
func (d *Desktop) Acquire(ctx context.Context, mode model.Mode, behavior model.Behavior) (err error) {
	d.ops.Lock()
	defer d.ops.Unlock()

	d.ringer.Silence()

	if d.token != nil {
		heldBefore := d.token.Held()
		if err := d.token.Acquire(); err != nil {
			if errors.Is(err, dbus.ErrNameTaken) {
				return fmt.Errorf("%w: %w", ErrFocusDenied, err)
			}
			return err
		}
		if !heldBefore {
			defer func() {
				if err == nil {
					return
				}
				if rerr := d.token.Release(); rerr != nil {
					d.logger.Warn("failed to give up focus name after failed acquire", "error", rerr)
				}
			}()
		}
	}

	d.mu.Lock()
	pause := d.pauseMedia && mode.IsCall() && d.media != nil && !d.mediaPaused
	resume := !mode.IsCall() && d.mediaPaused
	d.mu.Unlock()

	switch {
	case pause:
		if perr := d.media.PauseAll(ctx); perr != nil {
			d.logger.Warn("failed to pause media players", "error", perr)
			break
		}
		d.setMediaPaused(true)
		defer func() {
			if err != nil {
				d.media.Resume(ctx)
				d.setMediaPaused(false)
			}
		}()
	case resume:
		d.media.Resume(ctx)
		d.setMediaPaused(false)
	}

	switch behavior {
	case model.BehaviorIncomingRing:
		err = d.ringer.Ring(audio.RingIncoming)
	case model.BehaviorOutgoingRing:
		err = d.ringer.Ring(audio.RingOutgoing)
	}
	if err != nil {
		return err
	}

	d.logger.Debug("focus acquired", "mode", mode.String(), "behavior", behavior)
	return nil
}

// Release stops the ring, resumes paused players and gives up focus.
func (d *Desktop) Release(ctx context.Context) error {
	d.ops.Lock()
	defer d.ops.Unlock()

	d.ringer.Silence()

	d.mu.Lock()
	resume := d.mediaPaused
	d.mu.Unlock()
	if resume {
		d.media.Resume(ctx)
		d.setMediaPaused(false)
	}

	if d.token != nil {
		if err := d.token.Release(); err != nil {
			return err
		}
	}

	d.logger.Debug("focus released")
	return nil
}

// ShowCallNotification shows the incoming call notification for callerID,
// replacing the previous one.
func (d *Desktop) ShowCallNotification(ctx context.Context, callerID string) error {
	d.mu.Lock()
	cfg := d.notification
	replaces := d.notificationID
	d.mu.Unlock()

	n := dbus.CallNotification(cfg.AppName, cfg.Icon, callerID, cfg.Body, replaces,
		int32(cfg.Timeout.Milliseconds()))
	id, err := d.notifier.Notify(ctx, n)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.notificationID = id
	d.mu.Unlock()
	return nil
}

// DismissCallNotification withdraws the call notification. Failures are logged.
func (d *Desktop) DismissCallNotification(ctx context.Context) {
	d.mu.Lock()
	id := d.notificationID
	d.notificationID = 0
	d.mu.Unlock()

	if id == 0 {
		return
	}
	if err := d.notifier.CloseNotification(ctx, id); err != nil {
		d.logger.Warn("failed to withdraw call notification", "id", id, "error", err)
	}
}

// NotificationID returns the id of the call notification on screen, or 0.
func (d *Desktop) NotificationID() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.notificationID
}

// HandleNotificationClosed reacts to the notification server closing a
// notification. Only the user dismissing the call notification reaches
// the dismissed handler.
func (d *Desktop) HandleNotificationClosed(id uint32, reason dbus.CloseReason) {
	d.mu.Lock()
	if id == 0 || id != d.notificationID {
		d.mu.Unlock()
		return
	}
	d.notificationID = 0
	handler := d.onDismissed
	d.mu.Unlock()

	d.logger.Debug("call notification closed", "id", id, "reason", reason.String())
	if reason.ByUser() && handler != nil {
		handler()
	}
}

func (d *Desktop) setMediaPaused(paused bool) {
	d.mu.Lock()
	d.mediaPaused = paused
	d.mu.Unlock()
}
