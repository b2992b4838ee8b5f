// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"errors"
	"log/slog"

	"github.com/bureau-foundation/treesync/lib/schema"
)

// Options configures a [Tree].
type Options struct {
	// ID identifies the tree to its authority. Outbound commands carry
	// it as their target.
	ID string

	MultiSelect       bool
	Checkable         bool
	MultiCheck        bool
	AutoCheckChildren bool

	// Variants maps node kinds to their behavior. Missing kinds use
	// StaticVariant; more can be added later with SetVariant.
	Variants map[schema.NodeKind]Variant

	// Renderer is told about every mutation batch. Optional.
	Renderer Renderer

	// Focuser handles focus and reveal requests. Optional.
	Focuser Focuser

	Logger *slog.Logger
}

// Tree is a client-side mirror of an authoritative node hierarchy. It
// owns every node, the ordered roots, the ordered selection, and the
// ordered filters, and it is the only way to mutate any of them.
//
// A Tree is not safe for concurrent use. All calls, including calls
// made from load completions and timer callbacks, happen under the
// lock of the session that owns the tree.
type Tree struct {
	id     string
	logger *slog.Logger

	multiSelect       bool
	checkable         bool
	multiCheck        bool
	autoCheckChildren bool

	variants map[schema.NodeKind]Variant
	renderer Renderer
	focuser  Focuser

	nodes    map[string]*Node
	roots    []*Node
	selected []*Node

	filters    []filterEntry
	nextFilter int

	listeners    []listenerEntry
	nextListener int

	depth      int
	pending    Batch
	changedSet map[*Node]struct{}

	destroyed bool
}

type listenerEntry struct {
	id       int
	listener Listener
}

// New creates an empty tree.
func New(options Options) *Tree {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	variants := make(map[schema.NodeKind]Variant, len(options.Variants))
	for kind, variant := range options.Variants {
		variants[kind] = variant
	}
	return &Tree{
		id:                options.ID,
		logger:            logger.With("tree", options.ID),
		multiSelect:       options.MultiSelect,
		checkable:         options.Checkable,
		multiCheck:        options.MultiCheck,
		autoCheckChildren: options.AutoCheckChildren,
		variants:          variants,
		renderer:          options.Renderer,
		focuser:           options.Focuser,
		nodes:             make(map[string]*Node),
		changedSet:        make(map[*Node]struct{}),
	}
}

func (t *Tree) ID() string { return t.id }

// Checkable reports whether nodes carry check boxes.
func (t *Tree) Checkable() bool { return t.checkable }

// SetVariant registers the behavior for a node kind.
func (t *Tree) SetVariant(kind schema.NodeKind, variant Variant) {
	t.variants[kind] = variant
}

// SetRenderer replaces the renderer.
func (t *Tree) SetRenderer(renderer Renderer) { t.renderer = renderer }

// SetFocuser replaces the focus collaborator.
func (t *Tree) SetFocuser(focuser Focuser) { t.focuser = focuser }

func (t *Tree) variantFor(node *Node) Variant {
	if variant, ok := t.variants[node.kind]; ok && variant != nil {
		return variant
	}
	return StaticVariant{}
}

// Subscribe registers a listener for tree events and returns a
// function that removes it. Listeners run in registration order.
func (t *Tree) Subscribe(listener Listener) (unsubscribe func()) {
	t.nextListener++
	id := t.nextListener
	t.listeners = append(t.listeners, listenerEntry{id: id, listener: listener})
	return func() {
		for i, entry := range t.listeners {
			if entry.id == id {
				t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

func (t *Tree) emit(event Event) error {
	event.Tree = t
	var errs []error
	for _, entry := range append([]listenerEntry(nil), t.listeners...) {
		if err := entry.listener(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// mutate runs fn as one render batch. Nested calls join the outermost
// batch; the renderer runs once when the outermost call returns.
func (t *Tree) mutate(fn func() error) error {
	t.depth++
	err := fn()
	t.depth--
	if t.depth == 0 {
		t.flush()
	}
	return err
}

// Batch runs fn with every tree operation inside it rendered as a
// single batch.
func (t *Tree) Batch(fn func() error) error { return t.mutate(fn) }

func (t *Tree) flush() {
	if t.pending.empty() {
		return
	}
	batch := t.pending
	t.pending = Batch{}
	t.changedSet = make(map[*Node]struct{})

	changed := batch.Changed[:0:0]
	for _, node := range batch.Changed {
		if !node.destroyed {
			changed = append(changed, node)
		}
	}
	batch.Changed = changed
	if t.renderer != nil {
		t.renderer.Render(batch)
	}
}

func (t *Tree) markChanged(node *Node) {
	if _, seen := t.changedSet[node]; seen {
		return
	}
	t.changedSet[node] = struct{}{}
	t.pending.Changed = append(t.pending.Changed, node)
}

// Node returns the registered node with id.
func (t *Tree) Node(id string) (*Node, bool) {
	node, ok := t.nodes[id]
	return node, ok
}

// NodesByIDs resolves ids in order. An unknown id is a
// *ConsistencyError naming op.
func (t *Tree) NodesByIDs(op string, ids []string) ([]*Node, error) {
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		node, ok := t.nodes[id]
		if !ok {
			return nil, unknownNode(op, id)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Roots returns a copy of the ordered root list.
func (t *Tree) Roots() []*Node { return append([]*Node(nil), t.roots...) }

// Len returns the number of registered nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Walk calls fn for every node, depth first in child order.
func (t *Tree) Walk(fn func(*Node)) {
	for _, root := range t.roots {
		root.visit(fn)
	}
}

func (t *Tree) registered(node *Node) bool {
	return node != nil && !node.destroyed && t.nodes[node.id] == node
}

func (t *Tree) checkParent(op string, parent *Node) error {
	if parent == nil || t.registered(parent) {
		return nil
	}
	return unknownParent(op, parent.id)
}

func (t *Tree) siblings(parent *Node) []*Node {
	if parent == nil {
		return t.roots
	}
	return parent.children
}

func (t *Tree) setSiblings(parent *Node, nodes []*Node) {
	if parent == nil {
		t.roots = nodes
	} else {
		parent.children = nodes
	}
}

// InsertNodes appends the payloads, including their nested child
// payloads, as children of parent (roots when parent is nil), in the
// given order. The request is validated first: an unregistered parent,
// a payload without id, or an id that is already registered fails with
// a *ConsistencyError and inserts nothing.
//
// It returns the created top-level nodes.
func (t *Tree) InsertNodes(payloads []schema.NodeData, parent *Node) ([]*Node, error) {
	if err := t.checkParent("insert", parent); err != nil {
		return nil, err
	}
	if err := t.validatePayloads(payloads, make(map[string]bool)); err != nil {
		return nil, err
	}

	var created []*Node
	err := t.mutate(func() error {
		level := 0
		if parent != nil {
			level = parent.level + 1
		}
		var registered []*Node
		for _, payload := range payloads {
			created = append(created, t.build(payload, parent, level, &registered))
		}
		t.setSiblings(parent, append(t.siblings(parent), created...))

		for _, node := range registered {
			node.IsFilterAccepted(true)
		}
		if parent != nil {
			t.refreshCheckedAncestors(parent)
			t.markChanged(parent)
		}
		t.pending.Structure = true
		return t.emit(Event{Type: EventNodesInserted, Nodes: registered, Parent: parent})
	})
	return created, err
}

func (t *Tree) validatePayloads(payloads []schema.NodeData, seen map[string]bool) error {
	for _, payload := range payloads {
		if payload.ID == "" {
			return &ConsistencyError{Op: "insert", Kind: "payload", Detail: "node without id"}
		}
		if _, exists := t.nodes[payload.ID]; exists || seen[payload.ID] {
			return &ConsistencyError{Op: "insert", Kind: "node", ID: payload.ID, Detail: "already registered"}
		}
		seen[payload.ID] = true
		if err := t.validatePayloads(payload.ChildNodes, seen); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) build(payload schema.NodeData, parent *Node, level int, registered *[]*Node) *Node {
	node := &Node{
		id:                   payload.ID,
		kind:                 payload.Kind,
		tree:                 t,
		parent:               parent,
		level:                level,
		cell:                 payload.Cell,
		rowKey:               payload.RowKey,
		expanded:             payload.Expanded,
		expandedLazy:         payload.ExpandedLazy,
		lazyExpandingEnabled: payload.LazyExpandingEnabled,
		checked:              payload.Checked,
		leaf:                 payload.Leaf,
		enabled:              payload.Enabled == nil || *payload.Enabled,
		childrenLoaded:       payload.ChildrenLoaded || len(payload.ChildNodes) > 0 || payload.Leaf,
		filterDirty:          true,
	}
	if payload.Lookup != nil {
		lookup := *payload.Lookup
		node.lookup = &lookup
	}
	if payload.Page != nil {
		page := *payload.Page
		node.page = &page
	}
	t.nodes[node.id] = node
	*registered = append(*registered, node)

	for _, child := range payload.ChildNodes {
		node.children = append(node.children, t.build(child, node, level+1, registered))
	}
	node.refreshChildrenChecked()
	return node
}

// UpdateNodes merges state fields of existing nodes by id: leaf,
// enabled (when present), checked, lazy expansion flags, and the
// page's model class, class id and node type. The cell is not touched;
// use ChangeNode for presentation.
func (t *Tree) UpdateNodes(payloads []schema.NodeData) error {
	nodes := make([]*Node, 0, len(payloads))
	for _, payload := range payloads {
		node, ok := t.nodes[payload.ID]
		if !ok {
			return unknownNode("update", payload.ID)
		}
		nodes = append(nodes, node)
	}

	return t.mutate(func() error {
		for i, node := range nodes {
			payload := payloads[i]
			node.leaf = payload.Leaf
			if payload.Enabled != nil {
				node.enabled = *payload.Enabled
			}
			if node.checked != payload.Checked {
				node.checked = payload.Checked
				if node.parent != nil {
					t.refreshCheckedAncestors(node.parent)
				}
			}
			node.expandedLazy = payload.ExpandedLazy
			node.lazyExpandingEnabled = payload.LazyExpandingEnabled
			if payload.Leaf {
				node.childrenLoaded = true
			}
			if payload.Page != nil {
				if node.page == nil {
					node.page = &schema.PageData{}
				}
				node.page.ModelClass = payload.Page.ModelClass
				node.page.ClassID = payload.Page.ClassID
				node.page.NodeType = payload.Page.NodeType
			}
			node.filterDirty = true
			node.IsFilterAccepted(false)
			t.markChanged(node)
		}
		return t.emit(Event{Type: EventNodesUpdated, Nodes: nodes})
	})
}

// DeleteNodes removes nodes, which must all be children of parent
// (roots when parent is nil), together with their descendants. Removed
// nodes leave the node map and the selection and are destroyed.
func (t *Tree) DeleteNodes(nodes []*Node, parent *Node) error {
	if err := t.checkParent("delete", parent); err != nil {
		return err
	}
	doomed := make(map[*Node]bool, len(nodes))
	for _, node := range nodes {
		if !t.registered(node) {
			id := ""
			if node != nil {
				id = node.id
			}
			return unknownNode("delete", id)
		}
		if node.parent != parent {
			return &ConsistencyError{Op: "delete", Kind: "node", ID: node.id, Detail: "not a child of the given parent"}
		}
		doomed[node] = true
	}
	if len(doomed) == 0 {
		return nil
	}

	return t.mutate(func() error {
		var kept []*Node
		var removedTop []*Node
		for _, sibling := range t.siblings(parent) {
			if doomed[sibling] {
				removedTop = append(removedTop, sibling)
			} else {
				kept = append(kept, sibling)
			}
		}
		t.setSiblings(parent, kept)
		return t.removeSubtrees(removedTop, parent)
	})
}

// DeleteAllChildNodes removes every child of parent (every root when
// parent is nil).
func (t *Tree) DeleteAllChildNodes(parent *Node) error {
	if err := t.checkParent("delete", parent); err != nil {
		return err
	}
	return t.mutate(func() error {
		removed := t.siblings(parent)
		t.setSiblings(parent, nil)
		return t.removeSubtrees(removed, parent)
	})
}

func (t *Tree) removeSubtrees(removedTop []*Node, parent *Node) error {
	var removed []*Node
	for _, node := range removedTop {
		node.visit(func(descendant *Node) { removed = append(removed, descendant) })
	}
	if len(removed) == 0 {
		return nil
	}

	gone := make(map[*Node]bool, len(removed))
	for _, node := range removed {
		gone[node] = true
		delete(t.nodes, node.id)
		node.destroyed = true
	}
	// Waiters on a removed node's load would otherwise never wake.
	for _, node := range removed {
		if load := node.load; load != nil {
			load.Reject(&LoadError{NodeID: node.id, Err: ErrNodeDestroyed})
		}
	}
	selection := t.selected[:0:0]
	for _, node := range t.selected {
		if !gone[node] {
			selection = append(selection, node)
		}
	}
	deselected := len(selection) != len(t.selected)
	if deselected {
		t.selected = selection
		t.pending.Selection = true
	}
	if parent != nil {
		t.refreshCheckedAncestors(parent)
		t.markChanged(parent)
	}
	t.pending.Structure = true
	err := t.emit(Event{Type: EventNodesDeleted, Nodes: removed, Parent: parent})
	if !deselected {
		return err
	}
	// The authority deselected the nodes by deleting them; nothing is
	// reported back.
	return errors.Join(err, t.emit(Event{Type: EventNodesSelected, Nodes: append([]*Node(nil), selection...)}))
}

// ChangeNode replaces the presentation cell of node.
func (t *Tree) ChangeNode(node *Node, cell schema.Cell) error {
	if !t.registered(node) {
		return unknownNode("change", nodeID(node))
	}
	return t.mutate(func() error {
		node.cell = cell
		for current := node; current != nil; current = current.parent {
			current.filterDirty = true
			current.IsFilterAccepted(false)
		}
		t.markChanged(node)
		return t.emit(Event{Type: EventNodeChanged, Nodes: []*Node{node}})
	})
}

// UpdateNodeOrder reorders the children of parent (roots when nil).
// ordered must contain exactly the current children.
func (t *Tree) UpdateNodeOrder(ordered []*Node, parent *Node) error {
	if err := t.checkParent("reorder", parent); err != nil {
		return err
	}
	current := t.siblings(parent)
	if len(ordered) != len(current) {
		return &ConsistencyError{Op: "reorder", Kind: "payload", ID: nodeID(parent),
			Detail: "order does not list every child exactly once"}
	}
	seen := make(map[*Node]bool, len(ordered))
	for _, node := range ordered {
		if !t.registered(node) || node.parent != parent || seen[node] {
			return &ConsistencyError{Op: "reorder", Kind: "node", ID: nodeID(node),
				Detail: "not a distinct child of the given parent"}
		}
		seen[node] = true
	}
	return t.mutate(func() error {
		t.setSiblings(parent, append([]*Node(nil), ordered...))
		t.pending.Structure = true
		return t.emit(Event{Type: EventChildNodeOrderChanged, Nodes: append([]*Node(nil), ordered...), Parent: parent})
	})
}

// CompleteLoad finishes the in-flight load of node with the given
// failure, or marks the children loaded if none is in flight. Remote
// variants rely on it.
func (t *Tree) CompleteLoad(node *Node, failure error) error {
	if !t.registered(node) {
		return unknownNode("load", nodeID(node))
	}
	if load := node.load; load != nil {
		if failure != nil {
			load.Reject(&LoadError{NodeID: node.id, Err: failure})
		} else {
			load.Resolve()
		}
		return nil
	}
	if failure != nil {
		t.logger.Warn("children load failed without a pending load", "node", node.id, "error", failure)
		return nil
	}
	t.loadCompleted(node, nil, nil)
	return nil
}

func (t *Tree) loadCompleted(node *Node, load *Load, err error) {
	if node.load == load {
		node.load = nil
	}
	if node.destroyed {
		return
	}
	if err != nil {
		t.logger.Warn("children load failed", "node", node.id, "error", err)
	}
	mutateErr := t.mutate(func() error {
		t.markChanged(node)
		if err != nil || node.childrenLoaded {
			return nil
		}
		node.childrenLoaded = true
		return t.emit(Event{Type: EventChildrenLoaded, Nodes: []*Node{node}})
	})
	if mutateErr != nil {
		t.logger.Warn("listener failed after children load", "node", node.id, "error", mutateErr)
	}
}

// RequestFocus asks the focus collaborator to focus the tree.
func (t *Tree) RequestFocus() {
	if t.focuser != nil {
		t.focuser.RequestFocus()
	}
}

// RevealSelection asks the focus collaborator to scroll the selection
// into view.
func (t *Tree) RevealSelection() {
	if t.focuser != nil {
		t.focuser.RevealSelection()
	}
}

// Destroy removes every node. The tree must not be used afterwards.
func (t *Tree) Destroy() {
	if t.destroyed {
		return
	}
	if err := t.DeleteAllChildNodes(nil); err != nil {
		t.logger.Warn("listener failed during destroy", "error", err)
	}
	t.destroyed = true
	t.listeners = nil
}

func nodeID(node *Node) string {
	if node == nil {
		return ""
	}
	return node.id
}
