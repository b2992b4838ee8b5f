// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"context"
	"errors"
	"sync"
)

// LoadState is the state of a [Load].
type LoadState int

const (
	LoadPending LoadState = iota
	LoadSucceeded
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadPending:
		return "pending"
	case LoadSucceeded:
		return "succeeded"
	case LoadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Load is the handle of a lazy child load. It completes exactly once,
// either succeeded or failed with an error; later Resolve or Reject
// calls are ignored. Every caller that asked for the same in-flight
// load holds the same *Load.
//
// Completion callbacks run on the goroutine that completes the load.
// Loads that mutate a tree are completed under the owning session's
// lock, so their callbacks may touch the tree directly.
type Load struct {
	mu        sync.Mutex
	state     LoadState
	err       error
	done      chan struct{}
	callbacks []func(error)
}

// NewLoad returns a pending load.
func NewLoad() *Load {
	return &Load{done: make(chan struct{})}
}

// SucceededLoad returns a load that has already succeeded.
func SucceededLoad() *Load {
	load := NewLoad()
	load.Resolve()
	return load
}

// FailedLoad returns a load that has already failed with err.
func FailedLoad(err error) *Load {
	load := NewLoad()
	load.Reject(err)
	return load
}

// Resolve marks the load succeeded. It reports whether this call
// completed the load.
func (l *Load) Resolve() bool {
	return l.complete(LoadSucceeded, nil)
}

// Reject marks the load failed with err. A nil err is replaced by a
// generic error so a failed load always carries one.
func (l *Load) Reject(err error) bool {
	if err == nil {
		err = errors.New("load rejected")
	}
	return l.complete(LoadFailed, err)
}

func (l *Load) complete(state LoadState, err error) bool {
	l.mu.Lock()
	if l.state != LoadPending {
		l.mu.Unlock()
		return false
	}
	l.state = state
	l.err = err
	callbacks := l.callbacks
	l.callbacks = nil
	close(l.done)
	l.mu.Unlock()

	for _, callback := range callbacks {
		callback(err)
	}
	return true
}

// OnComplete registers fn to run when the load completes, with the
// failure error or nil. If the load is already complete, fn runs
// before OnComplete returns.
func (l *Load) OnComplete(fn func(err error)) {
	l.mu.Lock()
	if l.state == LoadPending {
		l.callbacks = append(l.callbacks, fn)
		l.mu.Unlock()
		return
	}
	err := l.err
	l.mu.Unlock()
	fn(err)
}

// State returns the current state.
func (l *Load) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns the failure error, or nil while pending or after
// success.
func (l *Load) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Done is closed when the load completes.
func (l *Load) Done() <-chan struct{} { return l.done }

// Wait blocks until the load completes or ctx is done. It must not be
// called while holding the session lock the load is completed under.
func (l *Load) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
