// Package store provides the raw-record persistence layer: pluggable backends
// holding the canonical event set (parents, standalone events, exceptions) and
// an Accessor that sanitizes, debounces and filters on top of them.
package store

import (
	"context"
	"sync"

	"taskcal/internal/model"
)

// Backend is the persistent collection contract: a whole-document read and a
// whole-document write over the raw record set. The engine only needs
// read-your-writes consistency within one process.
type Backend interface {
	ReadAll(ctx context.Context) ([]model.Event, error)
	WriteAll(ctx context.Context, events []model.Event) error
}

// Memory is the in-process Backend used for development and tests.
type Memory struct {
	mu     sync.RWMutex
	events []model.Event
	loaded bool
}

func NewMemory() *Memory { return &Memory{} }

// NewMemorySeeded builds a Memory backend pre-populated with events.
func NewMemorySeeded(events []model.Event) *Memory {
	m := &Memory{loaded: true}
	m.events = append(m.events, events...)
	return m
}

func (m *Memory) ReadAll(_ context.Context) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		return nil, nil
	}
	return append([]model.Event(nil), m.events...), nil
}

func (m *Memory) WriteAll(_ context.Context, events []model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append([]model.Event(nil), events...)
	m.loaded = true
	return nil
}
