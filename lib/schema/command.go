// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// CommandKind identifies an outbound user action.
type CommandKind string

const (
	CommandNodesSelected CommandKind = "nodesSelected"
	CommandNodeClicked   CommandKind = "nodeClicked"
	CommandNodeExpanded  CommandKind = "nodeExpanded"
	CommandNodesChecked  CommandKind = "nodesChecked"
	CommandLoadChildren  CommandKind = "loadChildren"
	CommandNodeAction    CommandKind = "nodeAction"
)

// Command is one outbound action reported to the authority. Target is
// the id of the adapter (and therefore the tree) that produced it.
type Command struct {
	Kind   CommandKind `json:"kind"`
	Target string      `json:"target"`

	NodeID  string   `json:"node_id,omitempty"`
	NodeIDs []string `json:"node_ids,omitempty"`

	Expanded     bool `json:"expanded,omitempty"`
	ExpandedLazy bool `json:"expanded_lazy,omitempty"`

	Checked []CheckedNode `json:"checked,omitempty"`
}

// CheckedNode reports the check state of one node.
type CheckedNode struct {
	ID      string `json:"id"`
	Checked bool   `json:"checked"`
}
