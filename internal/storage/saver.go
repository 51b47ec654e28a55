package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"taskdesk/internal/tasks"
)

// Sink is the write side of the persistence gateway.
type Sink interface {
	Save(ctx context.Context, records []tasks.Record) error
}

// Saver coalesces mutation snapshots and writes the latest one after a quiet
// period. At most one write is in flight. Failures are logged and dropped;
// the in-memory store stays authoritative.
type Saver struct {
	sink     Sink
	debounce time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending []tasks.Record
	dirty   bool
	running bool
	closed  bool
	idle    *sync.Cond

	lastErr error
}

type SaverOpts struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

func NewSaver(sink Sink, opts SaverOpts) *Saver {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Saver{sink: sink, debounce: debounce, log: log}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Notify records the latest snapshot and re-arms the debounce timer.
// It never blocks on I/O, so it can be used as a tasks.Subscriber.
func (s *Saver) Notify(records []tasks.Record) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = records
	s.dirty = true
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.onTimer)
		return
	}
	s.timer.Reset(s.debounce)
}

func (s *Saver) onTimer() {
	s.mu.Lock()
	if s.running {
		// Another write is in flight; try again once it settles.
		if s.timer != nil && !s.closed {
			s.timer.Reset(s.debounce)
		}
		s.mu.Unlock()
		return
	}
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	s.write(context.Background())
	if s.dirty && s.timer != nil && !s.closed {
		s.timer.Reset(s.debounce)
	}
	s.mu.Unlock()
}

// write saves the pending snapshot. Called with mu held; mu is released
// around the sink call.
func (s *Saver) write(ctx context.Context) error {
	recs := s.pending
	s.pending = nil
	s.dirty = false
	s.running = true
	s.mu.Unlock()

	err := s.sink.Save(ctx, recs)
	if err != nil {
		s.log.Error("save tasks", "records", len(recs), "err", err)
	} else {
		s.log.Debug("saved tasks", "records", len(recs))
	}

	s.mu.Lock()
	s.running = false
	s.lastErr = err
	s.idle.Broadcast()
	return err
}

// Flush writes any pending snapshot now and waits for an in-flight write.
func (s *Saver) Flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running {
		s.idle.Wait()
	}
	if !s.dirty {
		return nil
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	return s.write(ctx)
}

// Close stops the timer and flushes. Later Notify calls are ignored.
func (s *Saver) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return s.Flush(ctx)
}

// LastErr returns the result of the most recent write.
func (s *Saver) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
