// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// NodeKind selects the variant capability a node uses for lazy
// loading and decoration. The zero value is the plain static variant.
type NodeKind string

const (
	// NodeKindStatic nodes have all children supplied by the authority.
	NodeKindStatic NodeKind = ""

	// NodeKindLookup nodes fetch their children incrementally from a
	// lookup source, scoped by the parent key.
	NodeKindLookup NodeKind = "lookup"

	// NodeKindRemote nodes ask the authority for their children with a
	// loadChildren command and complete on the childrenLoaded delta.
	NodeKindRemote NodeKind = "remote"
)

// Cell is the presentation payload of a node. The tree never
// interprets it; renderers do.
type Cell struct {
	Text            string `json:"text,omitempty"`
	IconID          string `json:"icon_id,omitempty"`
	TooltipText     string `json:"tooltip_text,omitempty"`
	ForegroundColor string `json:"foreground_color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	Font            string `json:"font,omitempty"`
	CSSClass        string `json:"css_class,omitempty"`
	HTMLEnabled     bool   `json:"html_enabled,omitempty"`
}

// LookupRow is the lookup record behind a lookup-backed node.
type LookupRow struct {
	Key       string `json:"key"`
	ParentKey string `json:"parent_key,omitempty"`
	Text      string `json:"text,omitempty"`
	Active    bool   `json:"active"`

	ForegroundColor string `json:"foreground_color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	Font            string `json:"font,omitempty"`
	CSSClass        string `json:"css_class,omitempty"`
}

// PageData is the outline page information attached to a node. The
// detail form and detail table are referenced by id; the outline
// resolves them through its registry.
type PageData struct {
	ModelClass string `json:"model_class,omitempty"`
	ClassID    string `json:"class_id,omitempty"`
	NodeType   string `json:"node_type,omitempty"`

	DetailFormID       string `json:"detail_form_id,omitempty"`
	DetailFormVisible  bool   `json:"detail_form_visible,omitempty"`
	DetailTableID      string `json:"detail_table_id,omitempty"`
	DetailTableVisible bool   `json:"detail_table_visible,omitempty"`
}

// NodeData is the payload of a node in nodesInserted and nodesUpdated
// deltas. ChildNodes nests the initial subtree; an insert registers
// the whole subtree in one step.
//
// Enabled is a pointer so that an absent field means "enabled" on
// insert and "unchanged" on update.
type NodeData struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind,omitempty"`

	Cell   Cell   `json:"cell"`
	RowKey string `json:"row_key,omitempty"`

	Expanded             bool  `json:"expanded,omitempty"`
	ExpandedLazy         bool  `json:"expanded_lazy,omitempty"`
	LazyExpandingEnabled bool  `json:"lazy_expanding_enabled,omitempty"`
	Checked              bool  `json:"checked,omitempty"`
	Leaf                 bool  `json:"leaf,omitempty"`
	Enabled              *bool `json:"enabled,omitempty"`
	ChildrenLoaded       bool  `json:"children_loaded,omitempty"`

	Lookup *LookupRow `json:"lookup,omitempty"`
	Page   *PageData  `json:"page,omitempty"`

	ChildNodes []NodeData `json:"child_nodes,omitempty"`
}

// RowData is one row of an outline detail table. NodeID names the
// tree node the row belongs to; the node may not exist yet when the
// row arrives.
type RowData struct {
	ID     string   `json:"id"`
	NodeID string   `json:"node_id,omitempty"`
	Cells  []string `json:"cells,omitempty"`
}
