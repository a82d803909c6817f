package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/morezero/script-runtime/pkg/dispatcher"
	"github.com/morezero/script-runtime/pkg/events"
)

const journalLogPrefix = "db:journal"

// Store is the write side of Repository used by Journal.
type Store interface {
	InsertInvocation(ctx context.Context, rec *InvocationRecord) (int64, error)
	InsertDownload(ctx context.Context, rec *DownloadRecord) (int64, error)
}

// JournalOptions configures a Journal.
type JournalOptions struct {
	// Buffer is the number of pending rows held before new ones are dropped. Default 1024.
	Buffer int
	// WriteTimeout bounds each insert. Default 5s.
	WriteTimeout time.Duration
}

// Journal records invocations (as a dispatcher.Observer) and download events (as an
// events.Publisher) to a Store from a single background writer, so neither path
// blocks on the database.
type Journal struct {
	store        Store
	writeTimeout time.Duration
	entries      chan func(ctx context.Context) error
	done         chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewJournal starts a Journal writing to store.
func NewJournal(store Store, opts *JournalOptions) *Journal {
	buffer := 1024
	writeTimeout := 5 * time.Second
	if opts != nil {
		if opts.Buffer > 0 {
			buffer = opts.Buffer
		}
		if opts.WriteTimeout > 0 {
			writeTimeout = opts.WriteTimeout
		}
	}
	j := &Journal{
		store:        store,
		writeTimeout: writeTimeout,
		entries:      make(chan func(ctx context.Context) error, buffer),
		done:         make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *Journal) run() {
	defer close(j.done)
	for write := range j.entries {
		ctx, cancel := context.WithTimeout(context.Background(), j.writeTimeout)
		if err := write(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - write failed: %v", journalLogPrefix, err))
		}
		cancel()
	}
}

func (j *Journal) enqueue(write func(ctx context.Context) error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.entries <- write:
	default:
		if n := j.dropped.Add(1); n == 1 || n%100 == 0 {
			slog.Warn(fmt.Sprintf("%s - buffer full, %d rows dropped", journalLogPrefix, n))
		}
	}
}

// Observe implements dispatcher.Observer.
func (j *Journal) Observe(_ context.Context, inv *dispatcher.Invocation) {
	rec := &InvocationRecord{
		RequestID:  inv.RequestID,
		Namespace:  inv.Namespace,
		Operation:  inv.Operation,
		Signature:  inv.Signature,
		Arity:      inv.Arity,
		Code:       inv.Code,
		DurationMs: inv.Duration.Milliseconds(),
		Started:    inv.Started.UTC(),
	}
	if inv.Err != nil {
		rec.Error = inv.Err.Error()
	}
	j.enqueue(func(ctx context.Context) error {
		_, err := j.store.InsertInvocation(ctx, rec)
		return err
	})
}

// PublishDownload implements events.Publisher. It never fails; write errors are logged.
func (j *Journal) PublishDownload(_ context.Context, event *events.DownloadEvent) error {
	rec := &DownloadRecord{
		RequestID: event.RequestID,
		Namespace: event.Namespace,
		URL:       event.URL,
		Path:      event.Path,
		Proxy:     event.Proxy,
		Status:    event.Status,
		Error:     event.Error,
		Bytes:     event.Bytes,
		Index:     event.Index,
	}
	j.enqueue(func(ctx context.Context) error {
		_, err := j.store.InsertDownload(ctx, rec)
		return err
	})
	return nil
}

// Dropped returns the number of rows discarded because the buffer was full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Close stops accepting rows and waits for the pending ones to be written.
func (j *Journal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.entries)
	}
	j.mu.Unlock()
	<-j.done
}
