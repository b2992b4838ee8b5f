// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

// SelectOptions controls how a selection change is reported.
type SelectOptions struct {
	// Notify reports the change to the authority. Local interaction
	// sets it; inbound deltas do not.
	Notify bool

	// Debounce delays and coalesces the report, for selection that
	// changes rapidly (keyboard navigation).
	Debounce bool
}

// SelectedNodes returns a copy of the ordered selection.
func (t *Tree) SelectedNodes() []*Node { return append([]*Node(nil), t.selected...) }

// SelectedNode returns the first selected node, or nil.
func (t *Tree) SelectedNode() *Node {
	if len(t.selected) == 0 {
		return nil
	}
	return t.selected[0]
}

func (t *Tree) isSelected(node *Node) bool {
	for _, selected := range t.selected {
		if selected == node {
			return true
		}
	}
	return false
}

// SelectNodes replaces the selection. Without multi-select only the
// first node is kept. Selecting the current selection again is a
// no-op and emits nothing.
func (t *Tree) SelectNodes(nodes []*Node, options SelectOptions) error {
	selection := make([]*Node, 0, len(nodes))
	seen := make(map[*Node]bool, len(nodes))
	for _, node := range nodes {
		if !t.registered(node) {
			return unknownNode("select", nodeID(node))
		}
		if seen[node] {
			continue
		}
		seen[node] = true
		selection = append(selection, node)
	}
	if !t.multiSelect && len(selection) > 1 {
		selection = selection[:1]
	}
	if sameMembers(selection, t.selected) {
		return nil
	}

	return t.mutate(func() error {
		for _, node := range t.selected {
			t.markChanged(node)
		}
		t.selected = selection
		for _, node := range selection {
			t.markChanged(node)
		}
		t.pending.Selection = true
		return t.emit(Event{
			Type:     EventNodesSelected,
			Nodes:    append([]*Node(nil), selection...),
			Notify:   options.Notify,
			Debounce: options.Debounce,
		})
	})
}

func sameMembers(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	members := make(map[*Node]bool, len(a))
	for _, node := range a {
		members[node] = true
	}
	for _, node := range b {
		if !members[node] {
			return false
		}
	}
	return true
}

// ClickNode reports a click (activation) on node to the authority.
// It does not change the selection.
func (t *Tree) ClickNode(node *Node) error {
	if !t.registered(node) {
		return unknownNode("click", nodeID(node))
	}
	return t.emit(Event{Type: EventNodeClicked, Nodes: []*Node{node}, Notify: true})
}

// NodeAction reports an action (double click, enter) on node.
func (t *Tree) NodeAction(node *Node) error {
	if !t.registered(node) {
		return unknownNode("action", nodeID(node))
	}
	return t.emit(Event{Type: EventNodeAction, Nodes: []*Node{node}, Notify: true})
}

// ExpandOptions controls an expansion change.
type ExpandOptions struct {
	ExpandedLazy bool

	// Notify reports the change to the authority and, for nodes whose
	// children load on demand, starts loading them.
	Notify bool
}

// ExpandNode expands or collapses node on behalf of the user. Lazy
// expansion follows the node's LazyExpandingEnabled flag.
func (t *Tree) ExpandNode(node *Node, expanded bool) error {
	if !t.registered(node) {
		return unknownNode("expand", nodeID(node))
	}
	return t.SetNodeExpanded(node, expanded, ExpandOptions{
		ExpandedLazy: expanded && node.lazyExpandingEnabled,
		Notify:       true,
	})
}

// SetNodeExpanded sets the expansion flags of node. Nothing is emitted
// when they do not change.
func (t *Tree) SetNodeExpanded(node *Node, expanded bool, options ExpandOptions) error {
	if !t.registered(node) {
		return unknownNode("expand", nodeID(node))
	}
	return t.mutate(func() error { return t.setExpanded(node, expanded, options) })
}

// SetNodesExpandedRecursive applies the expansion flags to each node
// and all of its descendants as one batch.
func (t *Tree) SetNodesExpandedRecursive(nodes []*Node, expanded bool, options ExpandOptions) error {
	for _, node := range nodes {
		if !t.registered(node) {
			return unknownNode("expand", nodeID(node))
		}
	}
	return t.mutate(func() error {
		var errs []error
		for _, node := range nodes {
			node.visit(func(descendant *Node) {
				if descendant.destroyed {
					return
				}
				if err := t.setExpanded(descendant, expanded, options); err != nil {
					errs = append(errs, err)
				}
			})
		}
		return joinErrors(errs)
	})
}

func (t *Tree) setExpanded(node *Node, expanded bool, options ExpandOptions) error {
	lazy := expanded && options.ExpandedLazy
	if node.expanded == expanded && node.expandedLazy == lazy {
		return nil
	}
	node.expanded = expanded
	node.expandedLazy = lazy
	t.markChanged(node)
	t.pending.Structure = true
	err := t.emit(Event{
		Type:         EventNodeExpanded,
		Nodes:        []*Node{node},
		Notify:       options.Notify,
		Expanded:     expanded,
		ExpandedLazy: lazy,
	})
	if expanded && options.Notify && !node.childrenLoaded {
		node.EnsureLoadChildren()
	}
	return err
}

// CheckOptions controls a check change.
type CheckOptions struct {
	// Notify reports the change to the authority. Notified changes
	// are ignored on trees that are not checkable.
	Notify bool

	// IgnoreEnabled applies the change to disabled nodes too. Inbound
	// deltas set it; the authority is not bound by the enabled flag.
	IgnoreEnabled bool
}

// CheckNodes sets the checked flag of nodes. Without multi-check,
// checking a node unchecks every other node. With auto-check, the
// change propagates to all descendants.
func (t *Tree) CheckNodes(nodes []*Node, checked bool, options CheckOptions) error {
	if options.Notify && !t.checkable {
		return nil
	}
	for _, node := range nodes {
		if !t.registered(node) {
			return unknownNode("check", nodeID(node))
		}
	}

	return t.mutate(func() error {
		var changed []*Node
		set := func(node *Node, value bool) {
			if node.checked == value {
				return
			}
			node.checked = value
			changed = append(changed, node)
			t.markChanged(node)
		}

		for _, node := range nodes {
			if !node.enabled && !options.IgnoreEnabled {
				continue
			}
			if checked && !t.multiCheck {
				for _, other := range t.nodes {
					if other != node && other.checked {
						set(other, false)
					}
				}
			}
			set(node, checked)
			if t.autoCheckChildren {
				for _, child := range node.children {
					child.visit(func(descendant *Node) {
						if descendant.enabled || options.IgnoreEnabled {
							set(descendant, checked)
						}
					})
				}
			}
		}
		if len(changed) == 0 {
			return nil
		}
		for _, node := range changed {
			node.refreshChildrenChecked()
			if node.parent != nil {
				t.refreshCheckedAncestors(node.parent)
			}
		}
		return t.emit(Event{Type: EventNodesChecked, Nodes: changed, Notify: options.Notify})
	})
}

// CheckedNodes returns all checked nodes in tree order.
func (t *Tree) CheckedNodes() []*Node {
	var checked []*Node
	t.Walk(func(node *Node) {
		if node.checked {
			checked = append(checked, node)
		}
	})
	return checked
}

func (t *Tree) refreshCheckedAncestors(node *Node) {
	for current := node; current != nil; current = current.parent {
		if !current.refreshChildrenChecked() {
			return
		}
		t.markChanged(current)
	}
}
