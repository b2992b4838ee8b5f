// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treeadapter

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/treesync/lib/schema"
	"github.com/bureau-foundation/treesync/lib/tree"
)

// Apply applies one inbound delta. Structural problems (unknown
// parents, unknown nodes, malformed payloads) are returned as wrapped
// *tree.ConsistencyError values; the caller should treat them as fatal
// for the session. Unknown kinds without a registered handler are
// logged and ignored.
func (a *Adapter) Apply(delta schema.Delta) error {
	err := a.apply(delta)
	switch {
	case err == nil:
		a.metrics.applied(string(delta.Kind), "applied")
		return nil
	case tree.IsConsistencyError(err):
		a.metrics.applied(string(delta.Kind), "inconsistent")
	default:
		a.metrics.applied(string(delta.Kind), "error")
	}
	return fmt.Errorf("applying %s: %w", delta, err)
}

// ApplyAll applies deltas in order and stops at the first failure.
func (a *Adapter) ApplyAll(deltas []schema.Delta) error {
	for _, delta := range deltas {
		if err := a.Apply(delta); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) apply(delta schema.Delta) error {
	t := a.tree
	switch delta.Kind {
	case schema.DeltaNodesInserted:
		parent, err := a.parent("insert", delta.ParentID)
		if err != nil {
			return err
		}
		_, err = t.InsertNodes(delta.Nodes, parent)
		return err

	case schema.DeltaNodesUpdated:
		return t.UpdateNodes(delta.Nodes)

	case schema.DeltaNodesDeleted:
		parent, err := a.parent("delete", delta.ParentID)
		if err != nil {
			return err
		}
		nodes, err := t.NodesByIDs("delete", delta.NodeIDs)
		if err != nil {
			return err
		}
		return t.DeleteNodes(nodes, parent)

	case schema.DeltaAllChildNodesDeleted:
		parent, err := a.parent("delete", delta.ParentID)
		if err != nil {
			return err
		}
		return t.DeleteAllChildNodes(parent)

	case schema.DeltaNodesSelected:
		nodes, err := t.NodesByIDs("select", delta.NodeIDs)
		if err != nil {
			return err
		}
		return t.SelectNodes(nodes, tree.SelectOptions{})

	case schema.DeltaNodeExpanded:
		node, err := a.node("expand", delta.NodeID)
		if err != nil {
			return err
		}
		options := tree.ExpandOptions{ExpandedLazy: delta.ExpandedLazy}
		if delta.Recursive {
			return t.SetNodesExpandedRecursive([]*tree.Node{node}, delta.Expanded, options)
		}
		return t.SetNodeExpanded(node, delta.Expanded, options)

	case schema.DeltaNodeChanged:
		if delta.Cell == nil {
			return malformed("change", delta.NodeID, "nodeChanged without cell")
		}
		node, ok := t.Node(delta.NodeID)
		if !ok {
			// The node may have been deleted by an earlier delta in the
			// same response; a late presentation change is harmless.
			a.logger.Warn("ignoring nodeChanged for unknown node", "node", delta.NodeID)
			return nil
		}
		return t.ChangeNode(node, *delta.Cell)

	case schema.DeltaNodesChecked:
		return a.applyChecked(delta.Nodes)

	case schema.DeltaChildNodeOrderChanged:
		parent, err := a.parent("reorder", delta.ParentID)
		if err != nil {
			return err
		}
		nodes, err := t.NodesByIDs("reorder", delta.NodeIDs)
		if err != nil {
			return err
		}
		return t.UpdateNodeOrder(nodes, parent)

	case schema.DeltaRequestFocus:
		t.RequestFocus()
		return nil

	case schema.DeltaScrollToSelection:
		t.RevealSelection()
		return nil

	case schema.DeltaChildrenLoaded:
		if delta.NodeID == "" {
			return malformed("load", "", "missing node id")
		}
		node, ok := t.Node(delta.NodeID)
		if !ok {
			// Deleted while its children were loading; the load was
			// already failed by the deletion.
			a.logger.Warn("ignoring childrenLoaded for unknown node", "node", delta.NodeID)
			return nil
		}
		var failure error
		if delta.Error != "" {
			failure = errors.New(delta.Error)
		}
		return t.CompleteLoad(node, failure)
	}

	if handler, ok := a.handlers[delta.Kind]; ok {
		return handler(delta)
	}
	a.logger.Debug("ignoring delta of unknown kind", "kind", delta.Kind)
	return nil
}

// applyChecked splits the payload into checked and unchecked nodes and
// applies both as one batch, regardless of the enabled flag.
func (a *Adapter) applyChecked(payloads []schema.NodeData) error {
	var checked, unchecked []*tree.Node
	for _, payload := range payloads {
		node, err := a.node("check", payload.ID)
		if err != nil {
			return err
		}
		if payload.Checked {
			checked = append(checked, node)
		} else {
			unchecked = append(unchecked, node)
		}
	}
	options := tree.CheckOptions{IgnoreEnabled: true}
	return a.tree.Batch(func() error {
		if err := a.tree.CheckNodes(unchecked, false, options); err != nil {
			return err
		}
		return a.tree.CheckNodes(checked, true, options)
	})
}

// parent resolves an optional parent id; empty means the root level.
func (a *Adapter) parent(op, id string) (*tree.Node, error) {
	if id == "" {
		return nil, nil
	}
	node, ok := a.tree.Node(id)
	if !ok {
		return nil, &tree.ConsistencyError{Op: op, Kind: "parent", ID: id, Detail: "not registered"}
	}
	return node, nil
}

func (a *Adapter) node(op, id string) (*tree.Node, error) {
	if id == "" {
		return nil, malformed(op, "", "missing node id")
	}
	node, ok := a.tree.Node(id)
	if !ok {
		return nil, &tree.ConsistencyError{Op: op, Kind: "node", ID: id, Detail: "not registered"}
	}
	return node, nil
}

func malformed(op, id, detail string) error {
	return &tree.ConsistencyError{Op: op, Kind: "payload", ID: id, Detail: detail}
}
