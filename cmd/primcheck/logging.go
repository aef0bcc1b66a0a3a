package main

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// SlogManager is a [slog.Handler] fanning out every record to a set of named
// handlers, which can be added and removed while logging is in progress. The
// attributes and groups of derived handlers are replayed onto handlers that
// are added later.
type SlogManager struct {
	sync.RWMutex
	handlers map[string]slog.Handler
	attrs    []slog.Attr
	groups   []string
	parent   *SlogManager
}

// NewSlogManager returns a pointer to a new [SlogManager].
func NewSlogManager() *SlogManager {
	return &SlogManager{
		handlers: make(map[string]slog.Handler),
	}
}

// Enabled reports whether any of the handlers handles the level.
func (m *SlogManager) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.current() {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

// Handle passes the record to every handler that has the level enabled.
func (m *SlogManager) Handle(ctx context.Context, r slog.Record) error {
	var errs []error

	for _, h := range m.current() {
		if !h.Enabled(ctx, r.Level) {
			continue
		}

		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WithAttrs returns a derived [SlogManager] adding the attributes.
func (m *SlogManager) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SlogManager{
		attrs:  slices.Clone(attrs),
		parent: m,
	}
}

// WithGroup returns a derived [SlogManager] opening the group.
func (m *SlogManager) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}

	return &SlogManager{
		groups: []string{name},
		parent: m,
	}
}

// AddHandler adds (or replaces) a named handler of the root [SlogManager].
func (m *SlogManager) AddHandler(name string, handler slog.Handler) {
	root := m.root()

	root.Lock()
	defer root.Unlock()

	root.handlers[name] = handler
}

// RemoveHandler removes a named handler of the root [SlogManager].
func (m *SlogManager) RemoveHandler(name string) {
	root := m.root()

	root.Lock()
	defer root.Unlock()

	delete(root.handlers, name)
}

// GetHandler returns a named handler of the root [SlogManager].
func (m *SlogManager) GetHandler(name string) (slog.Handler, bool) {
	root := m.root()

	root.RLock()
	defer root.RUnlock()

	h, ok := root.handlers[name]

	return h, ok
}

func (m *SlogManager) root() *SlogManager {
	for m.parent != nil {
		m = m.parent
	}

	return m
}

// current returns the handlers of the root, with the attributes and groups of
// the chain of derived managers applied in order.
func (m *SlogManager) current() []slog.Handler {
	var chain []*SlogManager
	for n := m; n.parent != nil; n = n.parent {
		chain = append(chain, n)
	}

	root := m.root()

	root.RLock()
	handlers := make([]slog.Handler, 0, len(root.handlers))
	for _, h := range root.handlers {
		handlers = append(handlers, h)
	}
	root.RUnlock()

	for i := range handlers {
		for j := len(chain) - 1; j >= 0; j-- {
			if len(chain[j].attrs) > 0 {
				handlers[i] = handlers[i].WithAttrs(chain[j].attrs)
			}
			for _, group := range chain[j].groups {
				handlers[i] = handlers[i].WithGroup(group)
			}
		}
	}

	return handlers
}
