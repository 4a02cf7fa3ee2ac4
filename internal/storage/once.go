package storage

import (
	"sync"
	"sync/atomic"
)

// InitOnce runs an initialization exactly once and hands its result to
// every caller, including callers that arrive while it is running. A
// failure is remembered; later calls return the same error without
// retrying.
type InitOnce struct {
	once sync.Once
	err  error
	done atomic.Bool
}

// Do runs fn on the first call and returns its error on every call.
func (o *InitOnce) Do(fn func() error) error {
	o.once.Do(func() {
		o.err = fn()
		o.done.Store(true)
	})
	return o.err
}

// Done reports whether initialization has finished.
func (o *InitOnce) Done() bool {
	return o.done.Load()
}

// Err returns the remembered initialization error.
func (o *InitOnce) Err() error {
	if !o.Done() {
		return nil
	}
	return o.err
}
