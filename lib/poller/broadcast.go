// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import "sync"

// Broadcaster delivers status messages between the pollers of one
// process. A message is delivered to every member except its sender.
type Broadcaster struct {
	mu      sync.Mutex
	members map[*Poller]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{members: make(map[*Poller]struct{})}
}

// join adds p and replays the running members to it, so a late
// poller starts with the right count.
func (b *Broadcaster) join(p *Poller) {
	b.mu.Lock()
	var running []*Poller
	for member := range b.members {
		running = append(running, member)
	}
	b.members[p] = struct{}{}
	b.mu.Unlock()

	for _, member := range running {
		if member.Status() == StatusRunning {
			p.receive(StatusRunning)
		}
	}
}

// leave removes p. A running member is announced as stopped first.
func (b *Broadcaster) leave(p *Poller) {
	if p.Status() == StatusRunning {
		b.publish(p, StatusStopped)
	}
	b.mu.Lock()
	delete(b.members, p)
	b.mu.Unlock()
}

func (b *Broadcaster) publish(from *Poller, status Status) {
	b.mu.Lock()
	recipients := make([]*Poller, 0, len(b.members))
	for member := range b.members {
		if member != from {
			recipients = append(recipients, member)
		}
	}
	b.mu.Unlock()

	for _, member := range recipients {
		member.receive(status)
	}
}
