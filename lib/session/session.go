// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/treesync/lib/clock"
	"github.com/bureau-foundation/treesync/lib/schema"
)

// ErrClosed is returned by Deliver after Close.
var ErrClosed = errors.New("session closed")

// Applier applies inbound deltas for one target. A
// *treeadapter.Adapter satisfies it.
type Applier interface {
	ID() string
	Apply(delta schema.Delta) error
}

// Options configures a [Session].
type Options struct {
	// ID names the session in logs. A random UUID is used when empty.
	ID string

	Clock  clock.Clock
	Logger *slog.Logger
}

// Session is the per-connection scope. Create it with [New] and
// release it with [Session.Close].
type Session struct {
	id     string
	clock  clock.Clock
	logger *slog.Logger
	focus  *FocusManager

	mu       sync.Mutex
	appliers map[string]Applier
	closers  []func()
	closed   bool
}

// New creates a session.
func New(options Options) *Session {
	if options.ID == "" {
		options.ID = uuid.NewString()
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	logger := options.Logger.With("session", options.ID)
	return &Session{
		id:       options.ID,
		clock:    options.Clock,
		logger:   logger,
		focus:    newFocusManager(logger),
		appliers: make(map[string]Applier),
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Clock() clock.Clock   { return s.clock }
func (s *Session) Logger() *slog.Logger { return s.logger }
func (s *Session) Focus() *FocusManager { return s.focus }

// Do runs fn under the session lock. Do is not reentrant: fn must not
// call Do, Deliver, Register, or Close.
func (s *Session) Do(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// AfterFunc runs fn under the session lock once d has elapsed. The
// call is dropped if the session was closed in the meantime.
func (s *Session) AfterFunc(d time.Duration, fn func()) *clock.Timer {
	return s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		fn()
	})
}

// Register routes deltas for applier.ID() to applier and returns a
// function that removes the route again.
func (s *Session) Register(applier Applier) (unregister func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := applier.ID()
	s.appliers[target] = applier
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.appliers[target] == applier {
			delete(s.appliers, target)
		}
	}
}

// Deliver applies deltas in order under the session lock. Each delta
// goes to the applier registered for its Target; deltas for unknown
// targets are logged and skipped. Delivery stops at the first error,
// which is returned with the failing delta named.
func (s *Session) Deliver(deltas []schema.Delta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, delta := range deltas {
		applier, ok := s.appliers[delta.Target]
		if !ok {
			s.logger.Warn("dropping delta for unknown target", "target", delta.Target, "delta", delta.String())
			continue
		}
		if err := applier.Apply(delta); err != nil {
			return fmt.Errorf("target %s: %w", delta.Target, err)
		}
	}
	return nil
}

// OnClose registers fn to run on Close. Closers run in reverse order
// of registration.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
}

// Close runs the registered closers and drops all routes. Later calls
// do nothing.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.appliers = make(map[string]Applier)
	s.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	s.logger.Debug("session closed")
}
