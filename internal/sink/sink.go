package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/harvest/internal/metrics"
	"github.com/nao1215/harvest/internal/model"
)

// DefaultBatchSize is the number of records buffered before a write.
const DefaultBatchSize = 16

// ErrClosed is wrapped in a SinkError when Append is called after Close.
var ErrClosed = errors.New("sink is closed")

// Store persists batches of records.
type Store interface {
	Write(ctx context.Context, records []model.Record) error
	Close() error
}

// SinkError reports a failed store operation. Once returned, the Adapter
// returns the same error from every further call.
type SinkError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Op, e.Err)
}

// Unwrap returns the store error.
func (e *SinkError) Unwrap() error { return e.Err }

// Counts summarizes the records seen by an Adapter.
type Counts struct {
	// Appended is the number of records passed to Append.
	Appended int
	// Filtered is the number of unresolved subdomain results dropped.
	Filtered int
	// Written is the number of records the store accepted.
	Written int
}

// Adapter is the single writer in front of a Store. It filters unresolved
// subdomain results unless showAll is set and writes in batches.
type Adapter struct {
	store     Store
	batchSize int
	showAll   bool
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	buf    []model.Record
	err    *SinkError
	closed bool
	counts Counts
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBatchSize sets the number of records buffered before a write.
func WithBatchSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithShowAll keeps unresolved subdomain results.
func WithShowAll(showAll bool) Option {
	return func(a *Adapter) {
		a.showAll = showAll
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// NewAdapter creates an Adapter writing to store.
func NewAdapter(store Store, opts ...Option) *Adapter {
	a := &Adapter{
		store:     store,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.buf = make([]model.Record, 0, a.batchSize)
	return a
}

// Append buffers rec and writes the buffer once it is full.
func (a *Adapter) Append(ctx context.Context, rec model.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.err != nil {
		return a.err
	}
	if a.closed {
		return &SinkError{Op: "append", Err: ErrClosed}
	}

	a.counts.Appended++
	if res, ok := rec.(model.SubdomainResult); ok && !res.Resolved && !a.showAll {
		a.counts.Filtered++
		return nil
	}

	a.buf = append(a.buf, rec)
	if len(a.buf) < a.batchSize {
		return nil
	}
	return a.flushLocked(ctx)
}

// Flush writes buffered records.
func (a *Adapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked(ctx)
}

// Close flushes buffered records and closes the store. Closing twice is a
// no-op that returns the first outcome.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return a.errLocked()
	}
	a.closed = true

	flushErr := a.flushLocked(ctx)
	if err := a.store.Close(); err != nil && flushErr == nil {
		a.err = &SinkError{Op: "close", Err: err}
		return a.err
	}
	return flushErr
}

// Counts returns a snapshot of the record counters.
func (a *Adapter) Counts() Counts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts
}

func (a *Adapter) flushLocked(ctx context.Context) error {
	if a.err != nil {
		return a.err
	}
	if len(a.buf) == 0 {
		return nil
	}

	batch := a.buf
	a.buf = make([]model.Record, 0, a.batchSize)

	// Store writes ignore cancellation so buffered records survive an interrupt.
	if err := a.store.Write(context.WithoutCancel(ctx), batch); err != nil {
		a.err = &SinkError{Op: "write", Err: err}
		a.logger.Error("failed to write records", "records", len(batch), "error", err)
		return a.err
	}

	a.counts.Written += len(batch)
	a.metrics.RecordsWritten(len(batch))
	a.logger.Debug("records written", "records", len(batch), "total", a.counts.Written)
	return nil
}

func (a *Adapter) errLocked() error {
	if a.err == nil {
		return nil
	}
	return a.err
}

// MultiStore writes every batch to several stores in order.
type MultiStore struct {
	stores []Store
}

// NewMultiStore fans out to stores. Nil stores are skipped.
func NewMultiStore(stores ...Store) *MultiStore {
	m := &MultiStore{}
	for _, s := range stores {
		if s != nil {
			m.stores = append(m.stores, s)
		}
	}
	return m
}

// Write implements Store. It stops at the first failing store.
func (m *MultiStore) Write(ctx context.Context, records []model.Record) error {
	for _, s := range m.stores {
		if err := s.Write(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Store. Every store is closed.
func (m *MultiStore) Close() error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
