// Package metrics records per-operation counters and latency histograms
// for storage backends and renders them in Prometheus text format.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/manav03panchal/taskmap/internal/storage"
)

// Error categories used in the errors_total metric.
const (
	CategoryDuplicate   = "duplicate"
	CategoryNotDeclared = "not_declared"
	CategoryUnavailable = "unavailable"
	CategoryClosed      = "closed"
	CategoryCanceled    = "canceled"
	CategoryInvalid     = "invalid"
	CategoryOther       = "other"
)

// Metrics tracks storage operations.
type Metrics struct {
	set *vm.Set

	// operations mirrors the counters registered in set, keyed by metric
	// name, for Snapshot.
	operations  *xsync.MapOf[string, *vm.Counter]
	errorsTotal atomic.Int64

	mu               sync.RWMutex
	lastError        string
	lastErrorAt      time.Time
	errorsByCategory map[string]int64
}

// New creates an empty metrics set.
func New() *Metrics {
	return &Metrics{
		set:              vm.NewSet(),
		operations:       xsync.NewMapOf[string, *vm.Counter](),
		errorsByCategory: make(map[string]int64),
	}
}

// Observe records one finished operation.
func (m *Metrics) Observe(backend, op, store string, start time.Time, err error) {
	name := fmt.Sprintf(`taskmap_operations_total{backend=%q,op=%q,store=%q}`, backend, op, store)
	c, _ := m.operations.LoadOrCompute(name, func() *vm.Counter {
		return m.set.GetOrCreateCounter(name)
	})
	c.Inc()

	m.set.GetOrCreateHistogram(
		fmt.Sprintf(`taskmap_operation_duration_seconds{backend=%q,op=%q}`, backend, op),
	).Update(time.Since(start).Seconds())

	if err != nil {
		category := Classify(err)
		m.set.GetOrCreateCounter(
			fmt.Sprintf(`taskmap_operation_errors_total{backend=%q,op=%q,category=%q}`, backend, op, category),
		).Inc()
		m.RecordError(category, err)
	}
}

// ObserveBatch records the per-item outcome of a batch operation.
func (m *Metrics) ObserveBatch(backend, op, store string, res storage.BatchResult) {
	m.set.GetOrCreateCounter(
		fmt.Sprintf(`taskmap_batch_items_total{backend=%q,op=%q,store=%q,result="ok"}`, backend, op, store),
	).Add(res.Succeeded)
	if n := len(res.Failed); n > 0 {
		m.set.GetOrCreateCounter(
			fmt.Sprintf(`taskmap_batch_items_total{backend=%q,op=%q,store=%q,result="failed"}`, backend, op, store),
		).Add(n)
	}
}

// RecordError records an error with category.
func (m *Metrics) RecordError(category string, err error) {
	m.errorsTotal.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastError = err.Error()
	m.lastErrorAt = time.Now()
	m.errorsByCategory[category]++
}

// Classify maps a storage error to a metric category.
func Classify(err error) string {
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		return CategoryDuplicate
	case errors.Is(err, storage.ErrUnknownStore), errors.Is(err, storage.ErrUnknownIndex):
		return CategoryNotDeclared
	case errors.Is(err, storage.ErrBackendUnavailable):
		return CategoryUnavailable
	case errors.Is(err, storage.ErrClosed):
		return CategoryClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CategoryCanceled
	case errors.Is(err, storage.ErrInvalidKey), errors.Is(err, storage.ErrInvalidRange):
		return CategoryInvalid
	default:
		return CategoryOther
	}
}

// WritePrometheus writes every metric in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Operations       map[string]uint64 `json:"operations"`
	ErrorsTotal      int64             `json:"errors_total"`
	LastError        string            `json:"last_error,omitempty"`
	LastErrorAt      *time.Time        `json:"last_error_at,omitempty"`
	ErrorsByCategory map[string]int64  `json:"errors_by_category,omitempty"`
}

// Snapshot returns a copy of current metrics.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Operations:  make(map[string]uint64),
		ErrorsTotal: m.errorsTotal.Load(),
	}
	m.operations.Range(func(name string, c *vm.Counter) bool {
		snap.Operations[name] = c.Get()
		return true
	})

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap.LastError = m.lastError
	if !m.lastErrorAt.IsZero() {
		at := m.lastErrorAt
		snap.LastErrorAt = &at
	}
	snap.ErrorsByCategory = make(map[string]int64, len(m.errorsByCategory))
	for k, v := range m.errorsByCategory {
		snap.ErrorsByCategory[k] = v
	}
	return snap
}

// OperationNames returns the recorded operation metric names, sorted.
func (s Snapshot) OperationNames() []string {
	names := make([]string, 0, len(s.Operations))
	for name := range s.Operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JSON returns metrics as JSON.
func (m *Metrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m.Snapshot(), "", "  ")
}
