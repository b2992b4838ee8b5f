// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outline

import (
	"github.com/bureau-foundation/treesync/lib/tree"
)

// attachTable makes table the detail table of page and links the rows
// it already holds.
func (o *Outline) attachTable(page *Page, table *DetailTable) error {
	if page.table == table {
		return nil
	}
	o.detachTable(page)
	page.table = table
	page.dropTable = table.Subscribe(func(event TableEvent) error {
		return o.onTableEvent(page, event)
	})
	for _, row := range table.rows {
		if err := o.linkRow(page, row); err != nil {
			return err
		}
	}
	o.applyPendingRefilter()
	return nil
}

// detachTable unsubscribes from the page's table and unlinks every
// row of it, including pending ones.
func (o *Outline) detachTable(page *Page) {
	table := page.table
	if table == nil {
		return
	}
	if page.dropTable != nil {
		page.dropTable()
		page.dropTable = nil
	}
	page.table = nil
	o.unlinkRows(table, table.rows)
}

func (o *Outline) unlinkRows(table *DetailTable, rows []*Row) {
	for _, row := range rows {
		if node, ok := o.tree.Node(row.nodeID); ok {
			if child, ok := o.pages[node.ID()]; ok && child.row == row {
				child.row = nil
			}
		}
		if pending, ok := o.pendingRows[row.nodeID]; ok && pending == row {
			delete(o.pendingRows, row.nodeID)
		}
	}
	for nodeID, pending := range o.pendingRows {
		if pending.table == table && table.destroyed {
			delete(o.pendingRows, nodeID)
		}
	}
}

func (o *Outline) onTableEvent(page *Page, event TableEvent) error {
	switch event.Type {
	case RowInitialized:
		for _, row := range event.Rows {
			if err := o.linkRow(page, row); err != nil {
				return err
			}
		}
		o.applyPendingRefilter()

	case RowsDeleted:
		o.unlinkRows(event.Table, event.Rows)

	case RowsFiltered:
		o.tree.ApplyFilters()

	case RowsSelected:
		if o.navigateDownChanged != nil {
			o.navigateDownChanged(page.node, len(event.Rows) > 0)
		}

	case TableDestroyed:
		if page.table == event.Table {
			if page.dropTable != nil {
				page.dropTable()
				page.dropTable = nil
			}
			page.table = nil
			o.unlinkRows(event.Table, event.Table.rows)
			o.ScheduleContent(false)
		}
	}
	return nil
}

// linkRow links row of owner's detail table to the node it names. A
// row whose node has not arrived yet waits in the pending map until
// the node is inserted.
func (o *Outline) linkRow(owner *Page, row *Row) error {
	if row == nil {
		return &tree.ConsistencyError{Op: "link", Kind: "row", ID: owner.node.ID(), Detail: "empty row"}
	}
	node, ok := o.tree.Node(row.nodeID)
	if !ok {
		o.pendingRows[row.nodeID] = row
		return nil
	}
	if node.Parent() != owner.node {
		return &tree.ConsistencyError{
			Op:     "link",
			Kind:   "row",
			ID:     row.id,
			Detail: "row names node " + row.nodeID + ", which is not a child of " + owner.node.ID(),
		}
	}
	page, ok := o.pages[node.ID()]
	if !ok {
		return &tree.ConsistencyError{Op: "link", Kind: "node", ID: node.ID(), Detail: "node has no outline page"}
	}
	o.setRow(page, row)
	return nil
}

func (o *Outline) attachForm(page *Page, form *DetailForm) {
	if page.form == form {
		return
	}
	o.detachForm(page)
	page.form = form
	page.dropForm = form.Subscribe(func(destroyed *DetailForm) {
		if page.form == destroyed {
			page.form = nil
			page.dropForm = nil
		}
		o.ScheduleContent(false)
	})
}

func (o *Outline) detachForm(page *Page) {
	if page.dropForm != nil {
		page.dropForm()
		page.dropForm = nil
	}
	page.form = nil
}

func (o *Outline) setDefaultForm(form *DetailForm) {
	if o.dropDefaultForm != nil {
		o.dropDefaultForm()
		o.dropDefaultForm = nil
	}
	o.defaultForm = form
	if form == nil {
		return
	}
	o.dropDefaultForm = form.Subscribe(func(destroyed *DetailForm) {
		if o.defaultForm == destroyed {
			o.defaultForm = nil
			o.dropDefaultForm = nil
		}
		o.ScheduleContent(false)
	})
}

// DetailTableFilter hides nodes whose linked row is filtered out of
// the parent's detail table. The outline installs it on its tree.
type DetailTableFilter struct {
	outline *Outline
}

func (f *DetailTableFilter) Accept(node *tree.Node) bool {
	page, ok := f.outline.pages[node.ID()]
	if !ok || page.row == nil {
		return true
	}
	return page.row.filterAccepted
}
