package orchestrator

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrHandleNil = errors.New("operation handle is nil")

// Handle tracks one orchestrator operation. The operation never fails loudly: its
// outcome lands in the store. Wait and Err report the error that was committed, for
// callers that want to act on it.
type Handle struct {
	Operation string

	done chan struct{}

	mu  sync.Mutex
	err error
}

func newHandle(operation string) *Handle {
	return &Handle{
		Operation: operation,
		done:      make(chan struct{}),
	}
}

func completedHandle(operation string, err error) *Handle {
	h := newHandle(operation)
	h.finish(err)
	return h
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	close(h.done)
	h.mu.Unlock()
}

// Done is closed once the operation has committed its last action.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the operation completes.
func (h *Handle) Wait() error {
	if h == nil {
		return ErrHandleNil
	}
	<-h.done
	return h.Err()
}

func (h *Handle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Err is nil while the operation is running or when it succeeded.
func (h *Handle) Err() error {
	if h == nil {
		return ErrHandleNil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// OperationError is what a failed operation committed: Message is the text put in
// the store's error flag, Err the underlying cause.
type OperationError struct {
	Operation string
	Message   string
	Err       error
}

func (e *OperationError) Error() string {
	return e.Operation + ": " + e.Message + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
