// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock for tests. Time stands still
// until Advance is called; timers whose deadline is reached fire
// during Advance, in deadline order (ties in registration order).
//
// AfterFunc callbacks run synchronously on the goroutine calling
// Advance. A callback that takes a lock the test goroutine holds while
// calling Advance deadlocks, so tests advance the clock outside any
// session lock.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	nextSeq uint64
	changed *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	seq      uint64
	callback func()
	channel  chan time.Time
	active   bool
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{now: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives when the clock has been
// advanced by at least d. Non-positive durations deliver immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	channel := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.scheduleLocked(&fakeTimer{channel: channel}, d)
	return channel
}

// AfterFunc registers f to run during the Advance call that reaches
// the deadline. A non-positive duration runs f before returning.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	entry := &fakeTimer{callback: f}
	c.mu.Lock()
	if d <= 0 {
		c.mu.Unlock()
		f()
	} else {
		c.scheduleLocked(entry, d)
		c.mu.Unlock()
	}
	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := entry.active
			c.removeLocked(entry)
			return wasActive
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := entry.active
			c.removeLocked(entry)
			c.scheduleLocked(entry, d)
			return wasActive
		},
	}
}

// Advance moves time forward by d and fires everything that came due.
// Timers scheduled by callbacks fire in the same call if their
// deadline is also reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		entry := c.popDue()
		if entry == nil {
			return
		}
		if entry.callback != nil {
			entry.callback()
			continue
		}
		select {
		case entry.channel <- entry.deadline:
		default:
		}
	}
}

// PendingCount returns the number of timers that have not fired or
// been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// WaitForTimers blocks until at least n timers are pending. Tests use
// it to wait for a goroutine to arm its timer before advancing.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

func (c *FakeClock) scheduleLocked(entry *fakeTimer, d time.Duration) {
	entry.deadline = c.now.Add(d)
	entry.seq = c.nextSeq
	entry.active = true
	c.nextSeq++
	c.pending = append(c.pending, entry)
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].deadline.Equal(c.pending[j].deadline) {
			return c.pending[i].seq < c.pending[j].seq
		}
		return c.pending[i].deadline.Before(c.pending[j].deadline)
	})
	c.changed.Broadcast()
}

func (c *FakeClock) removeLocked(entry *fakeTimer) {
	entry.active = false
	for i, candidate := range c.pending {
		if candidate == entry {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// popDue removes and returns the earliest timer whose deadline is not
// after the current time, or nil.
func (c *FakeClock) popDue() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 || c.pending[0].deadline.After(c.now) {
		return nil
	}
	entry := c.pending[0]
	c.pending = c.pending[1:]
	entry.active = false
	return entry
}
