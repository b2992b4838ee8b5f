// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"fmt"

	"github.com/bureau-foundation/treesync/lib/schema"
)

// Reload replaces the nodes and selection of every served tree named in
// fixture and publishes a fresh snapshot of each, so connected clients
// converge on the new content without reconnecting. Trees new to the
// fixture start being served. Served trees the fixture no longer names
// are left unchanged.
//
// The fixture is validated in full before any tree is touched.
func (a *Authority) Reload(fixture *Fixture) (uint64, error) {
	if _, err := New(fixture, Options{Clock: a.clock, Logger: a.logger}); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, definition := range fixture.Trees {
		t, ok := a.targets[definition.ID]
		if !ok {
			if err := a.addTree(definition); err != nil {
				return a.head(), fmt.Errorf("adding tree %q: %w", definition.ID, err)
			}
			a.logger.Info("serving new tree", "target", definition.ID)
			continue
		}

		replace := []schema.Delta{
			{Kind: schema.DeltaAllChildNodesDeleted, Target: definition.ID},
			{Kind: schema.DeltaNodesInserted, Target: definition.ID, Nodes: definition.Nodes},
			{Kind: schema.DeltaNodesSelected, Target: definition.ID, NodeIDs: definition.Selected},
		}
		for _, delta := range replace {
			if err := t.adapter.Apply(delta); err != nil {
				return a.head(), fmt.Errorf("reloading tree %q: %w", definition.ID, err)
			}
		}
		a.publishLocked(snapshot(definition.ID, t)...)
		a.logger.Info("reloaded tree", "target", definition.ID, "nodes", t.tree.Len())
	}
	return a.head(), nil
}
