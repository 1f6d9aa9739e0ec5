package store

import (
	"context"
	"sync"
	"time"

	appLog "taskcal/internal/log"
	"taskcal/internal/model"
	"taskcal/internal/sanitize"
)

const defaultDebounce = 50 * time.Millisecond

// Accessor is the raw-store layer the engine reads and writes through. On top
// of a Backend it adds:
//
//   - sanitization of every written record
//   - filtering of generated instances on read (a record with ParentID set
//     and IsException false can only be a leaked expansion product)
//   - seed-data fallback when the backend is empty or unreadable
//   - debounced write coalescing: rapid writes collapse into one backend
//     write of the latest state; the final state is never dropped
//   - an in-memory last-known-good copy, which gives read-your-writes
//     consistency between a write and its flush, and keeps the process
//     serving data when the backend stops accepting writes
type Accessor struct {
	backend Backend
	delay   time.Duration

	mu       sync.Mutex
	current  []model.Event
	loaded   bool
	pending  bool
	flushing bool
	timer    *time.Timer
	hooks    []func()
}

// NewAccessor wraps backend. A non-positive debounce makes writes synchronous.
func NewAccessor(backend Backend, debounce time.Duration) *Accessor {
	return &Accessor{backend: backend, delay: debounce}
}

// OnFlush registers fn to run after every successful backend write. The
// expansion cache registers its invalidation here.
func (a *Accessor) OnFlush(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, fn)
}

// ReadRaw returns the raw record set: parents, standalone events and
// exceptions. It never fails; an empty or unreadable backend yields the
// documented seed events.
func (a *Accessor) ReadRaw(ctx context.Context) []model.Event {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		events, err := a.backend.ReadAll(ctx)
		if err != nil {
			appLog.Error("store: backend read failed, falling back to seed events", err)
			events = nil
		}
		if len(events) == 0 {
			events = DefaultEvents()
		}
		a.current = filterGenerated(events)
		a.loaded = true
	}

	return append([]model.Event(nil), a.current...)
}

// WriteRaw sanitizes events, makes them the current state, and schedules a
// coalesced backend write. Several calls within the debounce window result in
// a single write of the last state.
func (a *Accessor) WriteRaw(ctx context.Context, events []model.Event) {
	clean := sanitize.CleanAll(events)

	a.mu.Lock()
	a.current = clean
	a.loaded = true
	a.pending = true

	if a.delay <= 0 {
		a.mu.Unlock()
		a.Flush(ctx)
		return
	}

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() {
		a.Flush(context.Background())
	})
	a.mu.Unlock()
}

// Flush writes any pending state to the backend immediately. A backend
// failure is logged and the in-memory state stays as last-known-good, with
// pending restored so a later flush retries. Flushes are single-flight: a
// call that races an in-flight backend write returns without issuing a
// duplicate, and the pending flag is cleared before the write so a WriteRaw
// arriving during it is not lost.
func (a *Accessor) Flush(ctx context.Context) {
	a.mu.Lock()
	if !a.pending || a.flushing {
		a.mu.Unlock()
		return
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.flushing = true
	a.pending = false
	snapshot := append([]model.Event(nil), a.current...)
	hooks := append([]func(){}, a.hooks...)
	a.mu.Unlock()

	err := a.backend.WriteAll(ctx, snapshot)

	a.mu.Lock()
	a.flushing = false
	if err != nil {
		a.pending = true
	}
	a.mu.Unlock()

	if err != nil {
		appLog.Error("store: backend write failed, keeping in-memory state", err, "count", len(snapshot))
		return
	}

	for _, fn := range hooks {
		fn()
	}
}

// Close performs a final flush and stops the debounce timer.
func (a *Accessor) Close(ctx context.Context) {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	a.Flush(ctx)
}

func filterGenerated(events []model.Event) []model.Event {
	out := make([]model.Event, 0, len(events))
	dropped := 0
	for _, e := range events {
		if e.IsGeneratedInstance() {
			dropped++
			continue
		}
		out = append(out, e)
	}
	if dropped > 0 {
		appLog.Warn("store: dropped persisted generated instances on read", "count", dropped)
	}
	return out
}
