package storage

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of Trigger calls into one run of fn, delay
// after the last trigger. Flush runs a pending fn synchronously and Stop
// flushes and disables further triggers. A failed run stays pending so
// the next trigger or flush retries it.
type Debouncer struct {
	delay   time.Duration
	fn      func() error
	onError func(error)

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool

	// runMu serializes fn between timer and explicit flushes.
	runMu sync.Mutex
}

// NewDebouncer creates a debouncer. onError receives errors from runs
// fired by the timer; it may be nil.
func NewDebouncer(delay time.Duration, fn func() error, onError func(error)) *Debouncer {
	return &Debouncer{delay: delay, fn: fn, onError: onError}
}

// Trigger schedules a run, restarting the delay if one is already scheduled.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Pending reports whether a run is scheduled or failed and awaits retry.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush cancels the timer and runs fn now if a run is pending.
func (d *Debouncer) Flush() error {
	d.cancel()
	return d.run()
}

// Stop makes later Trigger calls no-ops and flushes what is pending.
func (d *Debouncer) Stop() error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	return d.Flush()
}

func (d *Debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire() {
	if err := d.run(); err != nil && d.onError != nil {
		d.onError(err)
	}
}

func (d *Debouncer) run() error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return nil
	}
	d.pending = false
	d.mu.Unlock()

	if err := d.fn(); err != nil {
		d.mu.Lock()
		d.pending = true
		d.mu.Unlock()
		return err
	}
	return nil
}
