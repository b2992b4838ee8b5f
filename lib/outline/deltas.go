// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outline

import (
	"github.com/bureau-foundation/treesync/lib/schema"
	"github.com/bureau-foundation/treesync/lib/tree"
	"github.com/bureau-foundation/treesync/lib/treeadapter"
)

// Register installs the outline's delta handlers on adapter: page
// changes, detail table rows, and detail form destruction.
func (o *Outline) Register(adapter *treeadapter.Adapter) {
	adapter.Handle(schema.DeltaPageChanged, o.applyPageChanged)
	adapter.Handle(schema.DeltaTableRowsInserted, o.applyRowsInserted)
	adapter.Handle(schema.DeltaTableRowsDeleted, func(delta schema.Delta) error {
		table, err := o.table(delta)
		if err != nil {
			return err
		}
		return table.DeleteRows(delta.RowIDs)
	})
	adapter.Handle(schema.DeltaTableRowsFiltered, func(delta schema.Delta) error {
		table, err := o.table(delta)
		if err != nil {
			return err
		}
		return table.FilterRows(delta.RowIDs)
	})
	adapter.Handle(schema.DeltaTableRowsSelected, func(delta schema.Delta) error {
		table, err := o.table(delta)
		if err != nil {
			return err
		}
		return table.SelectRows(delta.RowIDs)
	})
	adapter.Handle(schema.DeltaDetailFormDestroyed, o.applyFormDestroyed)
}

// applyPageChanged replaces the detail form and table of a node, or
// the default detail form when the delta names no node.
func (o *Outline) applyPageChanged(delta schema.Delta) error {
	if delta.Page == nil {
		return &tree.ConsistencyError{Op: "page", Kind: "payload", ID: delta.NodeID, Detail: "pageChanged without page"}
	}
	data := *delta.Page

	if delta.NodeID == "" {
		var form *DetailForm
		if data.DetailFormID != "" {
			form = o.registry.Form(data.DetailFormID)
		}
		o.setDefaultForm(form)
		if o.tree.SelectedNode() == nil {
			o.HandleContent(false)
		}
		return nil
	}

	node, ok := o.tree.Node(delta.NodeID)
	if !ok {
		return &tree.ConsistencyError{Op: "page", Kind: "node", ID: delta.NodeID, Detail: "not registered"}
	}
	page := o.pages[node.ID()]

	if data.DetailFormID != "" {
		o.attachForm(page, o.registry.Form(data.DetailFormID))
	} else {
		o.detachForm(page)
	}
	page.formVisible = data.DetailFormVisible

	if data.DetailTableID != "" {
		if err := o.attachTable(page, o.registry.Table(data.DetailTableID)); err != nil {
			return err
		}
	} else {
		o.detachTable(page)
	}
	page.tableVisible = data.DetailTableVisible

	if node.Selected() {
		o.HandleContent(false)
	}
	return nil
}

func (o *Outline) applyRowsInserted(delta schema.Delta) error {
	if delta.TableID == "" {
		return &tree.ConsistencyError{Op: "rows", Kind: "payload", Detail: "rows without table id"}
	}
	return o.registry.Table(delta.TableID).InsertRows(delta.Rows)
}

func (o *Outline) table(delta schema.Delta) (*DetailTable, error) {
	table, ok := o.registry.LookupTable(delta.TableID)
	if !ok {
		return nil, &tree.ConsistencyError{Op: "rows", Kind: "table", ID: delta.TableID, Detail: "no such detail table"}
	}
	return table, nil
}

func (o *Outline) applyFormDestroyed(delta schema.Delta) error {
	form, ok := o.registry.LookupForm(delta.FormID)
	if !ok {
		o.logger.Warn("ignoring destroy of unknown detail form", "form", delta.FormID)
		return nil
	}
	form.Destroy()
	return nil
}
