package focus

import (
	"context"
	"sync"
)

// Result is the pending outcome of a command. It completes exactly once,
// with either success or an error.
type Result struct {
	requestID string
	done      chan struct{}
	once      sync.Once
	err       error
}

func newResult(requestID string) *Result {
	return &Result{
		requestID: requestID,
		done:      make(chan struct{}),
	}
}

// failedResult returns an already-completed Result carrying err.
func failedResult(requestID string, err error) *Result {
	r := newResult(requestID)
	r.complete(err)
	return r
}

// complete resolves the result. Calls after the first are ignored.
func (r *Result) complete(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// RequestID returns the id assigned to the command.
func (r *Result) RequestID() string {
	return r.requestID
}

// Done returns a channel that is closed when the command completes.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Err returns the command error once Done is closed.
// Before completion it returns nil.
func (r *Result) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait blocks until the command completes or ctx is done.
// Giving up on the wait does not cancel the command.
func (r *Result) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnComplete registers handlers run on a separate goroutine when the command
// completes. Exactly one of them is called; a nil handler ignores that outcome.
func (r *Result) OnComplete(onSuccess func(), onError func(error)) {
	go func() {
		<-r.done
		if r.err != nil {
			if onError != nil {
				onError(r.err)
			}
			return
		}
		if onSuccess != nil {
			onSuccess()
		}
	}()
}
