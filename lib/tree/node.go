// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"github.com/bureau-foundation/treesync/lib/schema"
)

// Node is one node of a [Tree]. Nodes are created by
// [Tree.InsertNodes] and mutated only through Tree methods; the
// accessors here are read-only views.
type Node struct {
	id   string
	kind schema.NodeKind
	tree *Tree

	parent   *Node
	children []*Node
	level    int

	cell   schema.Cell
	rowKey string
	lookup *schema.LookupRow
	page   *schema.PageData

	expanded             bool
	expandedLazy         bool
	lazyExpandingEnabled bool
	checked              bool
	childrenChecked      bool
	leaf                 bool
	enabled              bool

	childrenLoaded bool
	load           *Load

	filterAccepted bool
	filterDirty    bool

	destroyed bool
}

func (n *Node) ID() string            { return n.id }
func (n *Node) Kind() schema.NodeKind { return n.kind }
func (n *Node) Tree() *Tree           { return n.tree }

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Level is the depth below the root level (roots are 0).
func (n *Node) Level() int { return n.level }

// Children returns a copy of the ordered child list.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

func (n *Node) ChildCount() int { return len(n.children) }

func (n *Node) Cell() schema.Cell { return n.cell }
func (n *Node) RowKey() string    { return n.rowKey }

// Lookup returns the lookup record of a lookup-backed node.
func (n *Node) Lookup() (schema.LookupRow, bool) {
	if n.lookup == nil {
		return schema.LookupRow{}, false
	}
	return *n.lookup, true
}

// Page returns the outline page data the node was inserted with,
// including any later model updates.
func (n *Node) Page() (schema.PageData, bool) {
	if n.page == nil {
		return schema.PageData{}, false
	}
	return *n.page, true
}

func (n *Node) Expanded() bool             { return n.expanded }
func (n *Node) ExpandedLazy() bool         { return n.expandedLazy }
func (n *Node) LazyExpandingEnabled() bool { return n.lazyExpandingEnabled }
func (n *Node) Checked() bool              { return n.checked }

// ChildrenChecked reports whether any descendant is checked.
func (n *Node) ChildrenChecked() bool { return n.childrenChecked }

func (n *Node) Leaf() bool           { return n.leaf }
func (n *Node) Enabled() bool        { return n.enabled }
func (n *Node) ChildrenLoaded() bool { return n.childrenLoaded }
func (n *Node) Destroyed() bool      { return n.destroyed }

// PendingLoad returns the in-flight child load, or nil.
func (n *Node) PendingLoad() *Load { return n.load }

// Selected reports whether the node is part of its tree's selection.
func (n *Node) Selected() bool {
	return !n.destroyed && n.tree.isSelected(n)
}

// IsChildOf reports whether ancestor is a proper ancestor of n.
func (n *Node) IsChildOf(ancestor *Node) bool {
	if ancestor == nil {
		return false
	}
	for current := n.parent; current != nil; current = current.parent {
		if current == ancestor {
			return true
		}
	}
	return false
}

// HasChildNodes reports whether n has children, or might have once an
// incremental load runs.
func (n *Node) HasChildNodes() bool {
	if len(n.children) > 0 {
		return true
	}
	return !n.childrenLoaded && n.tree.variantFor(n).IncrementalLoad(n)
}

// EnsureLoadChildren makes sure the children of n are loaded. It
// returns an already succeeded load when they are, the in-flight load
// when one is running, and otherwise starts a load through the node's
// variant. Completion (including completion before the variant
// returns) clears the in-flight marker; success also marks the
// children loaded. A failed load can be retried by calling again.
func (n *Node) EnsureLoadChildren() *Load {
	if n.destroyed {
		return FailedLoad(&LoadError{NodeID: n.id, Err: ErrNodeDestroyed})
	}
	if n.childrenLoaded {
		return SucceededLoad()
	}
	if n.load != nil {
		return n.load
	}

	load := n.tree.variantFor(n).LoadChildren(n)
	n.load = load
	load.OnComplete(func(err error) { n.tree.loadCompleted(n, load, err) })
	return load
}

// IsFilterAccepted reports whether n passes the tree's filters. The
// cached result is reused unless it is dirty or force is set.
func (n *Node) IsFilterAccepted(force bool) bool {
	if n.filterDirty || force {
		n.filterAccepted = n.tree.accepts(n)
		n.filterDirty = false
	}
	return n.filterAccepted
}

// Decoration returns the presentation of n as computed by its variant.
func (n *Node) Decoration() Decoration { return n.tree.variantFor(n).Decorate(n) }

// Style returns the colors and font of n as chosen by its variant.
func (n *Node) Style() Style { return n.tree.variantFor(n).StyleSource(n) }

// Data returns the payload that would recreate n and, when deep is
// set, its loaded subtree. Nodes whose children were never loaded are
// returned without children and with ChildrenLoaded unset.
func (n *Node) Data(deep bool) schema.NodeData {
	enabled := n.enabled
	data := schema.NodeData{
		ID:                   n.id,
		Kind:                 n.kind,
		Cell:                 n.cell,
		RowKey:               n.rowKey,
		Expanded:             n.expanded,
		ExpandedLazy:         n.expandedLazy,
		LazyExpandingEnabled: n.lazyExpandingEnabled,
		Checked:              n.checked,
		Leaf:                 n.leaf,
		Enabled:              &enabled,
		ChildrenLoaded:       n.childrenLoaded,
	}
	if n.lookup != nil {
		lookup := *n.lookup
		data.Lookup = &lookup
	}
	if n.page != nil {
		page := *n.page
		data.Page = &page
	}
	if deep {
		for _, child := range n.children {
			data.ChildNodes = append(data.ChildNodes, child.Data(true))
		}
	}
	return data
}

// visit calls fn for n and each descendant, parents first.
func (n *Node) visit(fn func(*Node)) {
	fn(n)
	for _, child := range n.children {
		child.visit(fn)
	}
}

func (n *Node) refreshChildrenChecked() bool {
	previous := n.childrenChecked
	n.childrenChecked = false
	for _, child := range n.children {
		if child.checked || child.childrenChecked {
			n.childrenChecked = true
			break
		}
	}
	return previous != n.childrenChecked
}
