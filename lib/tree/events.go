// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

// EventType identifies a tree event.
type EventType string

const (
	EventNodesInserted         EventType = "nodesInserted"
	EventNodesUpdated          EventType = "nodesUpdated"
	EventNodesDeleted          EventType = "nodesDeleted"
	EventNodesSelected         EventType = "nodesSelected"
	EventNodeClicked           EventType = "nodeClicked"
	EventNodeExpanded          EventType = "nodeExpanded"
	EventNodesChecked          EventType = "nodesChecked"
	EventNodeChanged           EventType = "nodeChanged"
	EventChildNodeOrderChanged EventType = "childNodeOrderChanged"
	EventChildrenLoaded        EventType = "childrenLoaded"
	EventNodeAction            EventType = "nodeAction"
)

// Event describes one completed tree mutation. Listeners run
// synchronously inside the mutating call.
type Event struct {
	Type EventType
	Tree *Tree

	// Nodes are the affected nodes. For EventNodesInserted and
	// EventNodesDeleted this includes every descendant, parents before
	// children. Deleted nodes are already destroyed; only their ids
	// and last state are meaningful.
	Nodes []*Node

	// Parent is the parent of inserted, deleted, or reordered nodes,
	// nil for the root level.
	Parent *Node

	// Notify is set when the mutation originates from local user
	// interaction and should be reported to the authority. Mutations
	// applied from inbound deltas never set it.
	Notify bool

	// Debounce asks the outbound side to delay and coalesce the
	// report. Only selection events use it.
	Debounce bool

	Expanded     bool
	ExpandedLazy bool
}

// Listener receives tree events. A returned error aborts nothing (the
// mutation already happened) but is returned from the mutating call.
type Listener func(Event) error

// Batch summarizes one mutation batch for a [Renderer].
type Batch struct {
	// Structure is set when nodes were inserted, deleted, reordered,
	// expanded, or collapsed.
	Structure bool
	Selection bool
	Filter    bool

	// Changed lists nodes whose own state or presentation changed, in
	// first-change order. Destroyed nodes are omitted.
	Changed []*Node
}

func (b *Batch) empty() bool {
	return !b.Structure && !b.Selection && !b.Filter && len(b.Changed) == 0
}

// Renderer is told about each completed mutation batch. It is called
// once per outermost tree operation, not once per changed field.
type Renderer interface {
	Render(Batch)
}

// RendererFunc adapts a function to [Renderer].
type RendererFunc func(Batch)

func (f RendererFunc) Render(batch Batch) { f(batch) }

// Focuser moves input focus to the tree and scrolls the selection
// into view.
type Focuser interface {
	RequestFocus()
	RevealSelection()
}
