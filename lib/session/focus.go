// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"log/slog"
	"sync"

	"github.com/bureau-foundation/treesync/lib/tree"
)

// FocusManager tracks which tree of a session holds keyboard focus.
// There is one per session.
type FocusManager struct {
	logger *slog.Logger

	mu        sync.Mutex
	focused   string
	listeners map[int]func(target string)
	nextID    int
}

func newFocusManager(logger *slog.Logger) *FocusManager {
	return &FocusManager{logger: logger, listeners: make(map[int]func(string))}
}

// Focused returns the target that last requested focus, or "".
func (m *FocusManager) Focused() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// Subscribe calls fn with the new target each time focus moves.
func (m *FocusManager) Subscribe(fn func(target string)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Release clears focus if target holds it.
func (m *FocusManager) Release(target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.focused == target {
		m.focused = ""
	}
}

func (m *FocusManager) requestFocus(target string) {
	m.mu.Lock()
	if m.focused == target {
		m.mu.Unlock()
		return
	}
	m.focused = target
	listeners := make([]func(string), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	m.logger.Debug("focus moved", "target", target)
	for _, fn := range listeners {
		fn(target)
	}
}

// For returns the [tree.Focuser] of the tree with id target. reveal,
// if not nil, scrolls the tree's selection into view.
func (m *FocusManager) For(target string, reveal func()) tree.Focuser {
	return &focuser{manager: m, target: target, reveal: reveal}
}

type focuser struct {
	manager *FocusManager
	target  string
	reveal  func()
}

func (f *focuser) RequestFocus() { f.manager.requestFocus(f.target) }

func (f *focuser) RevealSelection() {
	if f.reveal != nil {
		f.reveal()
	}
}
