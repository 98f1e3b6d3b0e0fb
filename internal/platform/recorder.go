package platform

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmylchreest/callfocus/internal/model"
)

// Operation names recorded by Recorder.
const (
	OpAcquire = "acquire"
	OpRelease = "release"
	OpShow    = "show"
	OpDismiss = "dismiss"
)

// Call is one recorded collaborator invocation.
type Call struct {
	Op       string
	Mode     model.Mode
	Behavior model.Behavior
	CallerID string
}

// Gate holds a single collaborator call until it is released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	err     error
	once    sync.Once
}

// Entered is closed once the gated call has started.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Release lets the gated call return err.
func (g *Gate) Release(err error) {
	g.once.Do(func() {
		g.err = err
		close(g.release)
	})
}

// Recorder is an in-memory collaborator. It records every call, and can be
// scripted to fail or to block individual calls. It backs dry-run mode.
type Recorder struct {
	mu       sync.Mutex
	logger   *slog.Logger
	calls    []Call
	failures map[string][]error
	gates    map[string][]*Gate
}

// NewRecorder creates an empty Recorder.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		logger:   logger,
		failures: make(map[string][]error),
		gates:    make(map[string][]*Gate),
	}
}

// FailNext makes the next call of op return err.
func (r *Recorder) FailNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[op] = append(r.failures[op], err)
}

// Hold makes the next call of op block until the returned gate is released
// or the call's context ends.
func (r *Recorder) Hold(op string) *Gate {
	g := &Gate{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	r.mu.Lock()
	r.gates[op] = append(r.gates[op], g)
	r.mu.Unlock()
	return g
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsOf returns the recorded calls of op.
func (r *Recorder) CallsOf(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Acquire records an acquisition.
func (r *Recorder) Acquire(ctx context.Context, mode model.Mode, behavior model.Behavior) error {
	return r.record(ctx, Call{Op: OpAcquire, Mode: mode, Behavior: behavior})
}

// Release records a release.
func (r *Recorder) Release(ctx context.Context) error {
	return r.record(ctx, Call{Op: OpRelease})
}

// ShowCallNotification records a notification.
func (r *Recorder) ShowCallNotification(ctx context.Context, callerID string) error {
	return r.record(ctx, Call{Op: OpShow, CallerID: callerID})
}

// DismissCallNotification records a dismissal. Scripted failures are dropped.
func (r *Recorder) DismissCallNotification(ctx context.Context) {
	if err := r.record(ctx, Call{Op: OpDismiss}); err != nil {
		r.logger.Debug("dry-run dismiss failed", "error", err)
	}
}

func (r *Recorder) record(ctx context.Context, call Call) error {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	var failure error
	if queue := r.failures[call.Op]; len(queue) > 0 {
		failure = queue[0]
		r.failures[call.Op] = queue[1:]
	}
	var gate *Gate
	if queue := r.gates[call.Op]; len(queue) > 0 {
		gate = queue[0]
		r.gates[call.Op] = queue[1:]
	}
	r.mu.Unlock()

	r.logger.Debug("dry-run native call",
		"op", call.Op,
		"mode", call.Mode.String(),
		"behavior", call.Behavior,
		"caller_id", call.CallerID,
	)

	if gate != nil {
		close(gate.entered)
		select {
		case <-gate.release:
			if gate.err != nil {
				return gate.err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return failure
}
