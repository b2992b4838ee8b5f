// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "fmt"

// DeltaKind identifies an inbound change. Values are the strings used
// on the wire.
type DeltaKind string

const (
	DeltaNodesInserted         DeltaKind = "nodesInserted"
	DeltaNodesUpdated          DeltaKind = "nodesUpdated"
	DeltaNodesDeleted          DeltaKind = "nodesDeleted"
	DeltaAllChildNodesDeleted  DeltaKind = "allChildNodesDeleted"
	DeltaNodesSelected         DeltaKind = "nodesSelected"
	DeltaNodeExpanded          DeltaKind = "nodeExpanded"
	DeltaNodeChanged           DeltaKind = "nodeChanged"
	DeltaNodesChecked          DeltaKind = "nodesChecked"
	DeltaChildNodeOrderChanged DeltaKind = "childNodeOrderChanged"
	DeltaRequestFocus          DeltaKind = "requestFocus"
	DeltaScrollToSelection     DeltaKind = "scrollToSelection"

	// DeltaChildrenLoaded completes (or, with Error set, fails) an
	// outstanding loadChildren command for NodeID.
	DeltaChildrenLoaded DeltaKind = "childrenLoaded"

	// Outline kinds. They are routed to handlers the outline registers
	// on the adapter.
	DeltaPageChanged         DeltaKind = "pageChanged"
	DeltaTableRowsInserted   DeltaKind = "tableRowsInserted"
	DeltaTableRowsDeleted    DeltaKind = "tableRowsDeleted"
	DeltaTableRowsFiltered   DeltaKind = "tableRowsFiltered"
	DeltaTableRowsSelected   DeltaKind = "tableRowsSelected"
	DeltaDetailFormDestroyed DeltaKind = "detailFormDestroyed"
)

// Delta is one inbound change from the authority. Which fields are
// meaningful depends on Kind:
//
//   - nodesInserted: Nodes, ParentID (empty for roots)
//   - nodesUpdated: Nodes (merged by id)
//   - nodesDeleted: NodeIDs, ParentID
//   - allChildNodesDeleted: ParentID (empty for the root level)
//   - nodesSelected: NodeIDs
//   - nodeExpanded: NodeID, Expanded, ExpandedLazy, Recursive
//   - nodeChanged: NodeID, Cell
//   - nodesChecked: Nodes (ID and Checked only)
//   - childNodeOrderChanged: ParentID, NodeIDs (new order)
//   - childrenLoaded: NodeID, Error
//   - pageChanged: NodeID (empty for the outline itself), Page
//   - tableRows*: TableID, Rows or RowIDs
//   - detailFormDestroyed: FormID
type Delta struct {
	Kind   DeltaKind `json:"kind"`
	Target string    `json:"target,omitempty"`

	Nodes    []NodeData `json:"nodes,omitempty"`
	NodeID   string     `json:"node_id,omitempty"`
	NodeIDs  []string   `json:"node_ids,omitempty"`
	ParentID string     `json:"parent_id,omitempty"`

	Expanded     bool `json:"expanded,omitempty"`
	ExpandedLazy bool `json:"expanded_lazy,omitempty"`
	Recursive    bool `json:"recursive,omitempty"`

	Cell  *Cell  `json:"cell,omitempty"`
	Error string `json:"error,omitempty"`

	Page    *PageData `json:"page,omitempty"`
	TableID string    `json:"table_id,omitempty"`
	FormID  string    `json:"form_id,omitempty"`
	Rows    []RowData `json:"rows,omitempty"`
	RowIDs  []string  `json:"row_ids,omitempty"`
}

// String returns a short description for log lines.
func (d Delta) String() string {
	switch {
	case d.NodeID != "":
		return fmt.Sprintf("%s(%s)", d.Kind, d.NodeID)
	case len(d.NodeIDs) > 0:
		return fmt.Sprintf("%s(%d ids)", d.Kind, len(d.NodeIDs))
	case len(d.Nodes) > 0:
		return fmt.Sprintf("%s(%d nodes)", d.Kind, len(d.Nodes))
	case d.TableID != "":
		return fmt.Sprintf("%s(table %s)", d.Kind, d.TableID)
	default:
		return string(d.Kind)
	}
}
