// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

// Filter decides whether a node is shown. A node is accepted when
// every filter of its tree accepts it.
type Filter interface {
	Accept(node *Node) bool
}

// FilterFunc adapts a function to [Filter].
type FilterFunc func(node *Node) bool

func (f FilterFunc) Accept(node *Node) bool { return f(node) }

type filterEntry struct {
	id     int
	filter Filter
}

// AddFilter appends a filter, re-evaluates every node, and returns a
// function that removes the filter again (re-evaluating once more).
func (t *Tree) AddFilter(filter Filter) (remove func()) {
	t.nextFilter++
	id := t.nextFilter
	t.filters = append(t.filters, filterEntry{id: id, filter: filter})
	t.ApplyFilters()
	return func() {
		for i, entry := range t.filters {
			if entry.id == id {
				t.filters = append(t.filters[:i:i], t.filters[i+1:]...)
				t.ApplyFilters()
				return
			}
		}
	}
}

// ApplyFilters re-evaluates the filter state of every node. Filters
// whose inputs change outside the tree (a detail table's row filter,
// a search pattern) call it after the change.
func (t *Tree) ApplyFilters() {
	err := t.mutate(func() error {
		for _, node := range t.nodes {
			node.filterDirty = true
		}
		t.Walk(func(node *Node) {
			before := node.filterAccepted
			if node.IsFilterAccepted(false) != before {
				t.markChanged(node)
			}
		})
		t.pending.Filter = true
		return nil
	})
	if err != nil {
		t.logger.Warn("listener failed while applying filters", "error", err)
	}
}

func (t *Tree) accepts(node *Node) bool {
	for _, entry := range t.filters {
		if !entry.filter.Accept(node) {
			return false
		}
	}
	return true
}

// VisibleNodes returns the nodes a renderer shows, in display order:
// filter-accepted nodes whose ancestors are all expanded and accepted.
func (t *Tree) VisibleNodes() []*Node {
	var visible []*Node
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, node := range nodes {
			if !node.IsFilterAccepted(false) {
				continue
			}
			visible = append(visible, node)
			if node.expanded {
				walk(node.children)
			}
		}
	}
	walk(t.roots)
	return visible
}
