package focus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/callfocus/internal/model"
)

// DefaultNativeTimeout bounds every collaborator call.
const DefaultNativeTimeout = 5 * time.Second

// Collaborator performs the native side of each command.
type Collaborator interface {
	// Acquire takes audio focus in mode and starts the mode-specific behavior,
	// replacing whatever behavior a previous acquisition started.
	Acquire(ctx context.Context, mode model.Mode, behavior model.Behavior) error
	// Release abandons audio focus and stops any running behavior.
	Release(ctx context.Context) error
	// ShowCallNotification displays an incoming call notification.
	ShowCallNotification(ctx context.Context, callerID string) error
	// DismissCallNotification removes the call notification. It has no result.
	DismissCallNotification(ctx context.Context)
}

// ChangeFunc is called after every applied mutation of the focus state.
type ChangeFunc func(state model.State, transition model.Transition)

// Arbiter owns the focus state and serializes commands against it.
type Arbiter struct {
	native Collaborator
	logger *slog.Logger

	mu        sync.Mutex
	state     model.State
	timeout   time.Duration
	listeners []ChangeFunc
	closed    bool
	// nativeDirty is set when an acquisition succeeded after its timeout,
	// so the collaborator may hold focus the state does not show.
	nativeDirty bool

	inflight sync.WaitGroup
}

// NewArbiter creates an Arbiter with no focus held.
func NewArbiter(native Collaborator, logger *slog.Logger) *Arbiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Arbiter{
		native:  native,
		logger:  logger,
		state:   model.State{Mode: model.ModeNone},
		timeout: DefaultNativeTimeout,
	}
}

// SetNativeTimeout changes the bound applied to collaborator calls issued from now on.
// A non-positive value restores the default.
func (a *Arbiter) SetNativeTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultNativeTimeout
	}
	a.mu.Lock()
	a.timeout = timeout
	a.mu.Unlock()
}

// Subscribe registers fn to be called after each applied mutation.
func (a *Arbiter) Subscribe(fn ChangeFunc) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	a.mu.Unlock()
}

// State returns a snapshot of the focus state.
func (a *Arbiter) State() model.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// RequestFocus acquires focus in mode.
func (a *Arbiter) RequestFocus(mode model.Mode) *Result {
	if !mode.Valid() {
		return failedResult("", fmt.Errorf("%s: %w: %w", model.CommandRequestFocus, ErrInvalidArgument, model.ErrInvalidMode))
	}
	return a.acquire(model.CommandRequestFocus, mode, model.BehaviorNone)
}

// SetModeInCommunication acquires call focus for an established voice call.
func (a *Arbiter) SetModeInCommunication() *Result {
	return a.acquire(model.CommandSetModeInCommunication, model.ModeInCommunication, model.BehaviorCommunication)
}

// PlayIncomingRing acquires ring focus and starts the ring tone.
func (a *Arbiter) PlayIncomingRing() *Result {
	return a.acquire(model.CommandPlayIncomingRing, model.ModeRingtone, model.BehaviorIncomingRing)
}

// PlayOutgoingRing acquires call focus and starts the ring-back tone.
func (a *Arbiter) PlayOutgoingRing() *Result {
	return a.acquire(model.CommandPlayOutgoingRing, model.ModeInCommunication, model.BehaviorOutgoingRing)
}

func (a *Arbiter) acquire(name string, mode model.Mode, behavior model.Behavior) *Result {
	return a.dispatch(command{
		name: name,
		native: func(ctx context.Context) error {
			return a.native.Acquire(ctx, mode, behavior)
		},
		late: func() {
			a.mu.Lock()
			a.nativeDirty = true
			a.mu.Unlock()
		},
		apply: func(s *model.State) (string, error) {
			a.nativeDirty = false
			orphaned := ""
			if !mode.IsCall() && s.CallerID != "" {
				orphaned = s.CallerID
				s.CallerID = ""
			}
			s.Mode = mode
			s.Behavior = behavior
			s.HeldSince = time.Now().Unix()
			return orphaned, nil
		},
	})
}

// DumpFocus releases any held focus. It succeeds without contacting the
// collaborator when nothing is held, unless an acquisition that timed out
// went on to succeed.
func (a *Arbiter) DumpFocus() *Result {
	return a.dispatch(command{
		name: model.CommandDumpFocus,
		trivial: func(s model.State) bool {
			return !s.HasFocus() && !a.nativeDirty
		},
		native: func(ctx context.Context) error {
			return a.native.Release(ctx)
		},
		apply: func(s *model.State) (string, error) {
			a.nativeDirty = false
			orphaned := s.CallerID
			s.Mode = model.ModeNone
			s.Behavior = ""
			s.HeldSince = 0
			s.CallerID = ""
			return orphaned, nil
		},
	})
}

// ShowCallNotification displays a call notification for callerID and
// records it as the pending call. A call-related mode must be held.
func (a *Arbiter) ShowCallNotification(callerID string) *Result {
	if callerID == "" {
		return failedResult("", fmt.Errorf("%s: %w", model.CommandShowCallNotification, ErrEmptyCallerID))
	}
	return a.dispatch(command{
		name:     model.CommandShowCallNotification,
		callerID: callerID,
		precheck: func(s model.State) error {
			if !s.Mode.IsCall() {
				return ErrNoCallFocus
			}
			return nil
		},
		native: func(ctx context.Context) error {
			return a.native.ShowCallNotification(ctx, callerID)
		},
		late: func() {
			a.mu.Lock()
			pending := a.state.HasPendingCall()
			timeout := a.timeout
			a.mu.Unlock()
			if !pending {
				a.dismissOrphan(callerID, timeout)
			}
		},
		apply: func(s *model.State) (string, error) {
			// Focus may have moved while the notification was being shown.
			if !s.Mode.IsCall() {
				return callerID, ErrNoCallFocus
			}
			s.CallerID = callerID
			return "", nil
		},
	})
}

// DismissCallNotification removes the call notification and clears the
// pending call. The returned Result always succeeds: the collaborator's
// outcome is discarded.
func (a *Arbiter) DismissCallNotification() *Result {
	return a.dispatch(command{
		name:       model.CommandDismissCallNotification,
		fireForget: true,
		native: func(ctx context.Context) error {
			a.native.DismissCallNotification(ctx)
			return nil
		},
		apply: func(s *model.State) (string, error) {
			s.CallerID = ""
			return "", nil
		},
	})
}

// Close stops accepting commands, waits for in-flight ones, and then
// releases focus and the call notification if still held.
func (a *Arbiter) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	timeout := a.timeout
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight commands: %w", ctx.Err())
	}

	a.mu.Lock()
	state := a.state
	dirty := a.nativeDirty
	a.mu.Unlock()
	if state.HasPendingCall() {
		a.dismissOrphan(state.CallerID, timeout)
	}
	if !state.HasFocus() && !dirty {
		return nil
	}

	requestID, _ := model.NewRequestID()
	if err := a.callNative(model.CommandDumpFocus, requestID, timeout, a.native.Release, nil); err != nil {
		return err
	}
	_ = a.commit(model.CommandDumpFocus, requestID, func(s *model.State) (string, error) {
		a.nativeDirty = false
		s.Mode = model.ModeNone
		s.Behavior = ""
		s.HeldSince = 0
		s.CallerID = ""
		return "", nil
	})
	a.logger.Info("focus released on shutdown")
	return nil
}

// command describes one arbiter operation.
type command struct {
	name     string
	callerID string

	// trivial reports, at issue time, that the command has nothing to do.
	// It runs with the arbiter locked.
	trivial func(s model.State) bool
	// precheck rejects the command at issue time without contacting the collaborator.
	precheck func(s model.State) error
	native   func(ctx context.Context) error
	// late compensates for a native call that succeeded after its timeout.
	late func()
	// apply mutates the state after native success, with the arbiter locked.
	// It returns the caller id of a notification that must be withdrawn, and
	// an error to fail the command without mutating.
	apply func(s *model.State) (string, error)

	// fireForget discards native failures and timeouts.
	fireForget bool
}

func (a *Arbiter) dispatch(cmd command) *Result {
	requestID, err := model.NewRequestID()
	if err != nil {
		return failedResult("", fmt.Errorf("%s: %w", cmd.name, err))
	}
	res := newResult(requestID)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		res.complete(fmt.Errorf("%s: %w", cmd.name, ErrClosed))
		return res
	}
	if cmd.trivial != nil && cmd.trivial(a.state) {
		a.mu.Unlock()
		a.logger.Debug("command has nothing to do", "command", cmd.name, "request_id", requestID)
		res.complete(nil)
		return res
	}
	if cmd.precheck != nil {
		if err := cmd.precheck(a.state); err != nil {
			a.mu.Unlock()
			res.complete(fmt.Errorf("%s: %w", cmd.name, err))
			return res
		}
	}
	timeout := a.timeout
	a.inflight.Add(1)
	a.mu.Unlock()

	a.logger.Debug("command issued", "command", cmd.name, "request_id", requestID, "caller_id", cmd.callerID)

	go func() {
		defer a.inflight.Done()

		err := a.callNative(cmd.name, requestID, timeout, cmd.native, cmd.late)
		if err != nil && cmd.fireForget {
			a.logger.Debug("ignoring native outcome", "command", cmd.name, "request_id", requestID, "error", err)
			err = nil
		}
		if err != nil {
			a.logger.Warn("command failed", "command", cmd.name, "request_id", requestID, "error", err)
			res.complete(err)
			return
		}

		if err := a.commit(cmd.name, requestID, cmd.apply); err != nil {
			a.logger.Warn("command rejected", "command", cmd.name, "request_id", requestID, "error", err)
			res.complete(fmt.Errorf("%s: %w", cmd.name, err))
			return
		}
		res.complete(nil)
	}()

	return res
}

// callNative runs fn bounded by timeout and classifies its error. When fn
// succeeds after the timeout, late is run instead of reporting the result.
func (a *Arbiter) callNative(name, requestID string, timeout time.Duration, fn func(ctx context.Context) error, late func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- fn(ctx)
	}()

	select {
	case err := <-errCh:
		switch {
		case err == nil:
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("%s: %w after %s", name, ErrTimeout, timeout)
		default:
			return fmt.Errorf("%s: %w: %w", name, ErrNativeOperationFailed, err)
		}
	case <-ctx.Done():
		go func() {
			if err := <-errCh; err == nil {
				a.logger.Warn("native call completed after timeout, result discarded",
					"command", name, "request_id", requestID)
				if late != nil {
					late()
				}
			}
		}()
		return fmt.Errorf("%s: %w after %s", name, ErrTimeout, timeout)
	}
}

// commit applies a mutation under the lock and notifies listeners.
func (a *Arbiter) commit(name, requestID string, apply func(s *model.State) (string, error)) error {
	a.mu.Lock()
	next := a.state
	orphaned, err := apply(&next)
	if err != nil {
		timeout := a.timeout
		a.mu.Unlock()
		if orphaned != "" {
			a.dismissOrphan(orphaned, timeout)
		}
		return err
	}

	prev := a.state
	next.RequestID = requestID
	next.Revision = prev.Revision + 1
	a.state = next

	transition := model.Transition{
		Command:   name,
		From:      prev.Mode,
		To:        next.Mode,
		CallerID:  next.CallerID,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
	if transition.CallerID == "" {
		transition.CallerID = prev.CallerID
	}
	listeners := make([]ChangeFunc, len(a.listeners))
	copy(listeners, a.listeners)
	timeout := a.timeout
	a.mu.Unlock()

	a.logger.Info("focus state changed",
		"command", name,
		"request_id", requestID,
		"from", prev.Mode.String(),
		"to", next.Mode.String(),
		"caller_id", next.CallerID,
		"revision", next.Revision,
	)

	if orphaned != "" {
		a.dismissOrphan(orphaned, timeout)
	}
	for _, fn := range listeners {
		fn(next, transition)
	}
	return nil
}

// dismissOrphan withdraws a notification whose call focus is gone.
func (a *Arbiter) dismissOrphan(callerID string, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	a.logger.Debug("withdrawing call notification", "caller_id", callerID)
	a.native.DismissCallNotification(ctx)
}
