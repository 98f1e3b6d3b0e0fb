package focus_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/callfocus/internal/focus"
	"github.com/jmylchreest/callfocus/internal/model"
	"github.com/jmylchreest/callfocus/internal/platform"
)

var errDenied = errors.New("focus denied by another owner")

func newTestArbiter(t *testing.T) (*focus.Arbiter, *platform.Recorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := platform.NewRecorder(logger)
	return focus.NewArbiter(rec, logger), rec
}

func wait(t *testing.T, r *focus.Result) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := r.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "command did not complete")
	return err
}

func TestArbiter_InitialState(t *testing.T) {
	a, _ := newTestArbiter(t)
	s := a.State()
	assert.Equal(t, model.ModeNone, s.Mode)
	assert.Empty(t, s.CallerID)
	assert.Zero(t, s.Revision)
}

func TestArbiter_RequestThenDump(t *testing.T) {
	for _, mode := range model.RequestableModes() {
		t.Run(mode.String(), func(t *testing.T) {
			a, rec := newTestArbiter(t)

			require.NoError(t, wait(t, a.RequestFocus(mode)))
			assert.Equal(t, mode, a.State().Mode)

			require.NoError(t, wait(t, a.DumpFocus()))
			assert.Equal(t, model.ModeNone, a.State().Mode)

			ops := rec.Calls()
			require.Len(t, ops, 2)
			assert.Equal(t, platform.OpAcquire, ops[0].Op)
			assert.Equal(t, mode, ops[0].Mode)
			assert.Equal(t, model.BehaviorNone, ops[0].Behavior)
			assert.Equal(t, platform.OpRelease, ops[1].Op)
		})
	}
}

func TestArbiter_DumpIsIdempotent(t *testing.T) {
	a, rec := newTestArbiter(t)

	require.NoError(t, wait(t, a.RequestFocus(model.ModeNormal)))
	require.NoError(t, wait(t, a.DumpFocus()))
	once := a.State()

	require.NoError(t, wait(t, a.DumpFocus()))
	assert.Equal(t, once, a.State())
	assert.Len(t, rec.CallsOf(platform.OpRelease), 1, "second dump must not reach the collaborator")
}

func TestArbiter_DumpWithoutFocusSucceeds(t *testing.T) {
	a, rec := newTestArbiter(t)
	require.NoError(t, wait(t, a.DumpFocus()))
	assert.Empty(t, rec.Calls())
	assert.Zero(t, a.State().Revision)
}

func TestArbiter_AcquireReplacesMode(t *testing.T) {
	a, _ := newTestArbiter(t)

	require.NoError(t, wait(t, a.RequestFocus(model.ModeInCommunication)))
	assert.Equal(t, model.ModeInCommunication, a.State().Mode)

	require.NoError(t, wait(t, a.RequestFocus(model.ModeRingtone)))
	s := a.State()
	assert.Equal(t, model.ModeRingtone, s.Mode)
	assert.Equal(t, uint64(2), s.Revision)
}

func TestArbiter_FailedAcquireLeavesStateUnchanged(t *testing.T) {
	a, rec := newTestArbiter(t)

	require.NoError(t, wait(t, a.RequestFocus(model.ModeInCommunication)))
	before := a.State()

	rec.FailNext(platform.OpAcquire, errDenied)
	err := wait(t, a.RequestFocus(model.ModeNormal))
	require.Error(t, err)
	assert.ErrorIs(t, err, focus.ErrNativeOperationFailed)
	assert.ErrorIs(t, err, errDenied)
	assert.Equal(t, focus.KindNativeOperationFailed, focus.ErrorKind(err))

	assert.Equal(t, before, a.State())
}

func TestArbiter_InvalidMode(t *testing.T) {
	a, rec := newTestArbiter(t)

	for _, mode := range []model.Mode{model.ModeNone, model.Mode(99), model.Mode(103)} {
		err := wait(t, a.RequestFocus(mode))
		assert.ErrorIs(t, err, focus.ErrInvalidArgument)
		assert.ErrorIs(t, err, model.ErrInvalidMode)
	}
	assert.Empty(t, rec.Calls())
}

func TestArbiter_FixedModeCommands(t *testing.T) {
	tests := []struct {
		name     string
		run      func(a *focus.Arbiter) *focus.Result
		mode     model.Mode
		behavior model.Behavior
	}{
		{"setModeInCommunication", (*focus.Arbiter).SetModeInCommunication, model.ModeInCommunication, model.BehaviorCommunication},
		{"playIncomingRing", (*focus.Arbiter).PlayIncomingRing, model.ModeRingtone, model.BehaviorIncomingRing},
		{"playOutgoingRing", (*focus.Arbiter).PlayOutgoingRing, model.ModeInCommunication, model.BehaviorOutgoingRing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, rec := newTestArbiter(t)
			require.NoError(t, wait(t, tt.run(a)))

			s := a.State()
			assert.Equal(t, tt.mode, s.Mode)
			assert.Equal(t, tt.behavior, s.Behavior)

			calls := rec.CallsOf(platform.OpAcquire)
			require.Len(t, calls, 1)
			assert.Equal(t, tt.behavior, calls[0].Behavior)
		})
	}
}

func TestArbiter_FixedModeFailure(t *testing.T) {
	a, rec := newTestArbiter(t)
	rec.FailNext(platform.OpAcquire, errors.New("unable to setup media player"))

	err := wait(t, a.PlayIncomingRing())
	assert.ErrorIs(t, err, focus.ErrNativeOperationFailed)
	assert.Equal(t, model.ModeNone, a.State().Mode)
}

func TestArbiter_ShowEmptyCallerID(t *testing.T) {
	a, rec := newTestArbiter(t)
	require.NoError(t, wait(t, a.PlayIncomingRing()))
	require.NoError(t, wait(t, a.ShowCallNotification("Alice")))

	err := wait(t, a.ShowCallNotification(""))
	assert.ErrorIs(t, err, focus.ErrInvalidArgument)
	assert.Equal(t, focus.KindInvalidArgument, focus.ErrorKind(err))
	assert.Equal(t, "Alice", a.State().CallerID)
	assert.Len(t, rec.CallsOf(platform.OpShow), 1)
}

func TestArbiter_ShowRequiresCallFocus(t *testing.T) {
	a, rec := newTestArbiter(t)

	err := wait(t, a.ShowCallNotification("Alice"))
	assert.ErrorIs(t, err, focus.ErrNoCallFocus)
	assert.ErrorIs(t, err, focus.ErrInvalidArgument)

	require.NoError(t, wait(t, a.RequestFocus(model.ModeNormal)))
	err = wait(t, a.ShowCallNotification("Alice"))
	assert.ErrorIs(t, err, focus.ErrNoCallFocus)

	assert.Empty(t, rec.CallsOf(platform.OpShow))
	assert.Empty(t, a.State().CallerID)
}

func TestArbiter_ShowFailure(t *testing.T) {
	a, rec := newTestArbiter(t)
	require.NoError(t, wait(t, a.PlayIncomingRing()))

	rec.FailNext(platform.OpShow, errors.New("no notification server"))
	err := wait(t, a.ShowCallNotification("Alice"))
	assert.ErrorIs(t, err, focus.ErrNativeOperationFailed)
	assert.Empty(t, a.State().CallerID)
}

func TestArbiter_ShowThenDismiss(t *testing.T) {
	a, rec := newTestArbiter(t)
	require.NoError(t, wait(t, a.PlayIncomingRing()))

	require.NoError(t, wait(t, a.ShowCallNotification("Alice")))
	s := a.State()
	assert.Equal(t, "Alice", s.CallerID)
	assert.Equal(t, model.ModeRingtone, s.Mode)

	require.NoError(t, wait(t, a.DismissCallNotification()))
	s = a.State()
	assert.Empty(t, s.CallerID)
	assert.Equal(t, model.ModeRingtone, s.Mode, "dismissing must not change focus")
	assert.Len(t, rec.CallsOf(platform.OpDismiss), 1)
}

func TestArbiter_DismissIgnoresNativeOutcome(t *testing.T) {
	a, rec := newTestArbiter(t)
	a.SetNativeTimeout(50 * time.Millisecond)
	require.NoError(t, wait(t, a.PlayIncomingRing()))
	require.NoError(t, wait(t, a.ShowCallNotification("Alice")))

	// The collaborator never answers; dismissal still clears the caller.
	gate := rec.Hold(platform.OpDismiss)
	defer gate.Release(nil)

	require.NoError(t, wait(t, a.DismissCallNotification()))
	assert.Empty(t, a.State().CallerID)
}

func TestArbiter_DumpClearsPendingCall(t *testing.T) {
	a, rec := newTestArbiter(t)
	require.NoError(t, wait(t, a.SetModeInCommunication()))
	require.NoError(t, wait(t, a.ShowCallNotification("Bob")))

	require.NoError(t, wait(t, a.DumpFocus()))
	s := a.State()
	assert.Equal(t, model.ModeNone, s.Mode)
	assert.Empty(t, s.CallerID)
	assert.Len(t, rec.CallsOf(platform.OpDismiss), 1, "orphaned notification must be withdrawn")
}

func TestArbiter_NormalModeClearsPendingCall(t *testing.T) {
	a, rec := newTestArbiter(t)
	require.NoError(t, wait(t, a.PlayIncomingRing()))
	require.NoError(t, wait(t, a.ShowCallNotification("Bob")))

	require.NoError(t, wait(t, a.RequestFocus(model.ModeNormal)))
	assert.Empty(t, a.State().CallerID)
	assert.Len(t, rec.CallsOf(platform.OpDismiss), 1)

	// Switching between call modes keeps the notification.
	require.NoError(t, wait(t, a.PlayIncomingRing()))
	require.NoError(t, wait(t, a.ShowCallNotification("Carol")))
	require.NoError(t, wait(t, a.SetModeInCommunication()))
	assert.Equal(t, "Carol", a.State().CallerID)
}

func TestArbiter_ShowLosesFocusWhileInFlight(t *testing.T) {
	a, rec := newTestArbiter(t)
	require.NoError(t, wait(t, a.PlayIncomingRing()))

	gate := rec.Hold(platform.OpShow)
	show := a.ShowCallNotification("Alice")
	<-gate.Entered()

	require.NoError(t, wait(t, a.DumpFocus()))
	gate.Release(nil)

	err := wait(t, show)
	assert.ErrorIs(t, err, focus.ErrNoCallFocus)
	assert.Empty(t, a.State().CallerID)
	assert.Len(t, rec.CallsOf(platform.OpDismiss), 1)
}

func TestArbiter_ConcurrentRequestsLastCompletionWins(t *testing.T) {
	tests := []struct {
		name      string
		firstDone model.Mode
		want      model.Mode
	}{
		{"ringtone completes last", model.ModeNormal, model.ModeRingtone},
		{"normal completes last", model.ModeRingtone, model.ModeNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, rec := newTestArbiter(t)

			normalGate := rec.Hold(platform.OpAcquire)
			normal := a.RequestFocus(model.ModeNormal)
			<-normalGate.Entered()

			ringGate := rec.Hold(platform.OpAcquire)
			ring := a.RequestFocus(model.ModeRingtone)
			<-ringGate.Entered()

			gates := map[model.Mode]*platform.Gate{
				model.ModeNormal:   normalGate,
				model.ModeRingtone: ringGate,
			}
			results := map[model.Mode]*focus.Result{
				model.ModeNormal:   normal,
				model.ModeRingtone: ring,
			}

			gates[tt.firstDone].Release(nil)
			require.NoError(t, wait(t, results[tt.firstDone]))
			gates[tt.want].Release(nil)
			require.NoError(t, wait(t, results[tt.want]))

			s := a.State()
			assert.Equal(t, tt.want, s.Mode)
			assert.Equal(t, uint64(2), s.Revision)
		})
	}
}

func TestArbiter_ConcurrentRequestsResolveToOneMode(t *testing.T) {
	a, _ := newTestArbiter(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		mode := model.ModeNormal
		if i%2 == 0 {
			mode = model.ModeRingtone
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			assert.NoError(t, a.RequestFocus(mode).Wait(ctx))
		}()
	}
	wg.Wait()

	s := a.State()
	assert.Contains(t, []model.Mode{model.ModeNormal, model.ModeRingtone}, s.Mode)
	assert.Equal(t, uint64(50), s.Revision)
}

func TestArbiter_Timeout(t *testing.T) {
	a, rec := newTestArbiter(t)
	a.SetNativeTimeout(50 * time.Millisecond)

	gate := rec.Hold(platform.OpAcquire)
	defer gate.Release(nil)

	err := wait(t, a.RequestFocus(model.ModeInCommunication))
	assert.ErrorIs(t, err, focus.ErrTimeout)
	assert.Equal(t, focus.KindTimeout, focus.ErrorKind(err))
	assert.Equal(t, model.ModeNone, a.State().Mode)

	// The arbiter stays usable.
	require.NoError(t, wait(t, a.RequestFocus(model.ModeInCommunication)))
	assert.Equal(t, model.ModeInCommunication, a.State().Mode)
}

// lateCollaborator finishes its slow operations after delay, whatever the
// deadline of the call.
type lateCollaborator struct {
	*platform.Recorder
	delay       time.Duration
	slowAcquire bool
	slowShow    bool
}

func (c *lateCollaborator) Acquire(_ context.Context, mode model.Mode, behavior model.Behavior) error {
	if c.slowAcquire {
		time.Sleep(c.delay)
	}
	return c.Recorder.Acquire(context.Background(), mode, behavior)
}

func (c *lateCollaborator) ShowCallNotification(_ context.Context, callerID string) error {
	if c.slowShow {
		time.Sleep(c.delay)
	}
	return c.Recorder.ShowCallNotification(context.Background(), callerID)
}

func newLateArbiter(t *testing.T, c *lateCollaborator) *focus.Arbiter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c.Recorder = platform.NewRecorder(logger)
	a := focus.NewArbiter(c, logger)
	a.SetNativeTimeout(20 * time.Millisecond)
	return a
}

func TestArbiter_LateAcquireIsReleasedByDump(t *testing.T) {
	c := &lateCollaborator{delay: 100 * time.Millisecond, slowAcquire: true}
	a := newLateArbiter(t, c)

	err := wait(t, a.PlayIncomingRing())
	require.ErrorIs(t, err, focus.ErrTimeout)
	assert.Equal(t, model.ModeNone, a.State().Mode)

	// Once the collaborator has acquired behind the arbiter's back, a dump
	// must reach it.
	assert.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := a.DumpFocus().Wait(ctx); err != nil {
			return false
		}
		return len(c.CallsOf(platform.OpRelease)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, model.ModeNone, a.State().Mode)

	// And the one after that is trivial again
	require.NoError(t, wait(t, a.DumpFocus()))
	assert.Len(t, c.CallsOf(platform.OpRelease), 1)
}

func TestArbiter_LateAcquireIsReleasedOnClose(t *testing.T) {
	c := &lateCollaborator{delay: 60 * time.Millisecond, slowAcquire: true}
	a := newLateArbiter(t, c)

	require.ErrorIs(t, wait(t, a.RequestFocus(model.ModeNormal)), focus.ErrTimeout)
	require.Eventually(t, func() bool {
		return len(c.CallsOf(platform.OpAcquire)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	// Give the late result time to be accounted for
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, a.Close(t.Context()))
	assert.Len(t, c.CallsOf(platform.OpRelease), 1)
}

func TestArbiter_LateNotificationIsWithdrawn(t *testing.T) {
	c := &lateCollaborator{delay: 100 * time.Millisecond, slowShow: true}
	a := newLateArbiter(t, c)
	require.NoError(t, wait(t, a.SetModeInCommunication()))

	err := wait(t, a.ShowCallNotification("alice"))
	require.ErrorIs(t, err, focus.ErrTimeout)
	assert.Empty(t, a.State().CallerID)

	assert.Eventually(t, func() bool {
		return len(c.CallsOf(platform.OpDismiss)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestArbiter_ReleaseRacesAcquire(t *testing.T) {
	a, rec := newTestArbiter(t)
	require.NoError(t, wait(t, a.RequestFocus(model.ModeNormal)))

	acquireGate := rec.Hold(platform.OpAcquire)
	acquire := a.RequestFocus(model.ModeRingtone)
	<-acquireGate.Entered()

	require.NoError(t, wait(t, a.DumpFocus()))
	assert.Equal(t, model.ModeNone, a.State().Mode)

	acquireGate.Release(nil)
	require.NoError(t, wait(t, acquire))
	assert.Equal(t, model.ModeRingtone, a.State().Mode, "state follows completion order")
}

func TestArbiter_Subscribe(t *testing.T) {
	a, _ := newTestArbiter(t)

	var mu sync.Mutex
	var transitions []model.Transition
	a.Subscribe(func(state model.State, tr model.Transition) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, tr)
	})

	require.NoError(t, wait(t, a.PlayIncomingRing()))
	require.NoError(t, wait(t, a.ShowCallNotification("Alice")))
	require.NoError(t, wait(t, a.DumpFocus()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, transitions, 3)
	assert.Equal(t, model.CommandPlayIncomingRing, transitions[0].Command)
	assert.Equal(t, model.ModeNone, transitions[0].From)
	assert.Equal(t, model.ModeRingtone, transitions[0].To)
	assert.Equal(t, model.CommandShowCallNotification, transitions[1].Command)
	assert.Equal(t, "Alice", transitions[1].CallerID)
	assert.Equal(t, model.CommandDumpFocus, transitions[2].Command)
	assert.Equal(t, "Alice", transitions[2].CallerID)
	assert.NotEmpty(t, transitions[2].RequestID)
}

func TestArbiter_Close(t *testing.T) {
	a, rec := newTestArbiter(t)
	require.NoError(t, wait(t, a.PlayIncomingRing()))
	require.NoError(t, wait(t, a.ShowCallNotification("Alice")))

	require.NoError(t, a.Close(context.Background()))
	s := a.State()
	assert.Equal(t, model.ModeNone, s.Mode)
	assert.Empty(t, s.CallerID)
	assert.Len(t, rec.CallsOf(platform.OpRelease), 1)
	assert.Len(t, rec.CallsOf(platform.OpDismiss), 1)

	err := wait(t, a.RequestFocus(model.ModeNormal))
	assert.ErrorIs(t, err, focus.ErrClosed)

	// Closing twice is a no-op.
	require.NoError(t, a.Close(context.Background()))
}

func TestResult_OnComplete(t *testing.T) {
	a, rec := newTestArbiter(t)

	okCh := make(chan struct{})
	a.RequestFocus(model.ModeNormal).OnComplete(func() { close(okCh) }, nil)
	select {
	case <-okCh:
	case <-time.After(5 * time.Second):
		t.Fatal("success handler not called")
	}

	rec.FailNext(platform.OpAcquire, errDenied)
	errCh := make(chan error, 1)
	a.RequestFocus(model.ModeRingtone).OnComplete(nil, func(err error) { errCh <- err })
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, focus.ErrNativeOperationFailed)
	case <-time.After(5 * time.Second):
		t.Fatal("error handler not called")
	}

	// Both handlers nil: the outcome is ignored.
	r := a.DumpFocus()
	r.OnComplete(nil, nil)
	require.NoError(t, wait(t, r))
}

func TestResult_RequestIDAndErr(t *testing.T) {
	a, _ := newTestArbiter(t)
	r := a.RequestFocus(model.ModeNormal)
	assert.NotEmpty(t, r.RequestID())
	<-r.Done()
	assert.NoError(t, r.Err())
	assert.Equal(t, r.RequestID(), a.State().RequestID)
}

func TestErrorKindRoundTrip(t *testing.T) {
	for _, kind := range []string{
		focus.KindInvalidArgument,
		focus.KindNativeOperationFailed,
		focus.KindTimeout,
		focus.KindClosed,
	} {
		err := focus.ErrorForKind(kind)
		require.Error(t, err)
		assert.Equal(t, kind, focus.ErrorKind(err))
	}
	assert.Nil(t, focus.ErrorForKind("Bogus"))
	assert.Empty(t, focus.ErrorKind(errors.New("plain")))
	assert.Empty(t, focus.ErrorKind(nil))
}
