package recording

import "sync"

// CancelToken is a one-shot cancellation signal shared between whoever
// requests cancellation, the device callback and the supervising loop.
type CancelToken struct {
	once sync.Once
	ch   chan struct{}
}

// NewCancelToken creates an unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel sets the token. Calling it more than once is a no-op.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.ch) })
}

// Done is closed once the token is cancelled.
func (t *CancelToken) Done() <-chan struct{} {
	return t.ch
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}
