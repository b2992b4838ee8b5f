// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outline

import (
	"github.com/bureau-foundation/treesync/lib/tree"
)

// ContentKind says what an outline shows as detail content.
type ContentKind int

const (
	ContentNone ContentKind = iota
	ContentForm
	ContentTable
)

func (k ContentKind) String() string {
	switch k {
	case ContentForm:
		return "form"
	case ContentTable:
		return "table"
	default:
		return "none"
	}
}

// Content is the detail content chosen for the selection.
type Content struct {
	Kind  ContentKind
	Form  *DetailForm
	Table *DetailTable
}

// ContentSink displays outline content.
type ContentSink interface {
	SetOutlineContent(content Content, bringToFront bool)
}

// ContentSinkFunc adapts a function to [ContentSink].
type ContentSinkFunc func(content Content, bringToFront bool)

func (f ContentSinkFunc) SetOutlineContent(content Content, bringToFront bool) {
	f(content, bringToFront)
}

// EvaluateContent picks the detail content for node. The first match
// wins:
//
//  1. its detail form, if visible, visible by UI, and not destroyed
//  2. its detail table, if visible
//  3. nothing
//
// A destroyed detail form is detached from the node first.
func (o *Outline) EvaluateContent(node *tree.Node) Content {
	page, ok := o.Page(node)
	if !ok {
		return Content{}
	}
	if page.form != nil && page.form.destroyed {
		o.detachForm(page)
	}
	if page.form != nil && page.formVisible && page.formVisibleUI {
		return Content{Kind: ContentForm, Form: page.form}
	}
	if page.table != nil && page.tableVisible {
		return Content{Kind: ContentTable, Table: page.table}
	}
	return Content{}
}

// Content returns the content chosen by the last evaluation.
func (o *Outline) Content() Content { return o.content }

// DefaultDetailForm returns the form shown while nothing is selected.
func (o *Outline) DefaultDetailForm() *DetailForm { return o.defaultForm }

// HandleContent evaluates the content now and cancels any scheduled
// evaluation. With no selection the default detail form is shown.
func (o *Outline) HandleContent(bringToFront bool) {
	if o.contentTimer != nil {
		o.contentTimer.Stop()
	}
	selected := o.tree.SelectedNode()
	if selected == nil {
		content := Content{}
		if o.defaultForm != nil && !o.defaultForm.destroyed {
			content = Content{Kind: ContentForm, Form: o.defaultForm}
		}
		o.setContent(content, bringToFront)
		return
	}
	o.setContent(o.EvaluateContent(selected), bringToFront)
}

// ScheduleContent evaluates the content after the content delay.
// Further calls before then postpone the evaluation, so a burst of
// triggers evaluates once. bringToFront is sticky within a burst.
func (o *Outline) ScheduleContent(bringToFront bool) {
	o.contentBringFront = o.contentBringFront || bringToFront
	if o.contentTimer == nil {
		o.contentTimer = o.clock.AfterFunc(o.delay, o.fireContent)
		return
	}
	o.contentTimer.Reset(o.delay)
}

func (o *Outline) fireContent() {
	o.run(func() {
		bringToFront := o.contentBringFront
		o.contentBringFront = false
		o.HandleContent(bringToFront)
	})
}

func (o *Outline) setContent(content Content, bringToFront bool) {
	o.content = content
	if o.sink != nil {
		o.sink.SetOutlineContent(content, bringToFront)
	}
}

// SetDetailFormVisibleByUI records whether the user hid the detail
// form of node, and re-evaluates the content if node is selected.
func (o *Outline) SetDetailFormVisibleByUI(node *tree.Node, visible bool) {
	page, ok := o.Page(node)
	if !ok || page.formVisibleUI == visible {
		return
	}
	page.formVisibleUI = visible
	if node.Selected() {
		o.HandleContent(false)
	}
}

// SelectedRow returns the first selected row of the selected node's
// detail table, or nil.
func (o *Outline) SelectedRow() *Row {
	page, ok := o.Page(o.tree.SelectedNode())
	if !ok || page.table == nil {
		return nil
	}
	rows := page.table.SelectedRows()
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// NavigateUp steps back from the selected node. When it shows its
// detail form while a detail table is available, the form is hidden
// and the table shown; otherwise the parent is selected, keeping the
// parent's form visibility as the user left it.
func (o *Outline) NavigateUp() error {
	node := o.tree.SelectedNode()
	page, ok := o.Page(node)
	if !ok {
		return nil
	}
	if o.EvaluateContent(node).Kind == ContentForm && page.table != nil && page.tableVisible {
		o.SetDetailFormVisibleByUI(node, false)
		return nil
	}
	parent := node.Parent()
	if parent == nil {
		return o.tree.SelectNodes(nil, tree.SelectOptions{Notify: true})
	}
	o.navigateUpInProgress = true
	err := o.tree.SelectNodes([]*tree.Node{parent}, tree.SelectOptions{Notify: true})
	o.navigateUpInProgress = false
	return err
}

// NavigateDown steps into the selected node. A detail form hidden by
// the user is shown again; otherwise the node of the selected detail
// row is selected.
func (o *Outline) NavigateDown() error {
	node := o.tree.SelectedNode()
	page, ok := o.Page(node)
	if !ok {
		return nil
	}
	if page.form != nil && page.formVisible && !page.formVisibleUI {
		o.SetDetailFormVisibleByUI(node, true)
		return nil
	}
	row := o.SelectedRow()
	if row == nil {
		return nil
	}
	target, ok := o.tree.Node(row.nodeID)
	if !ok {
		return &tree.ConsistencyError{Op: "navigate", Kind: "node", ID: row.nodeID, Detail: "selected row has no node"}
	}
	return o.tree.SelectNodes([]*tree.Node{target}, tree.SelectOptions{Notify: true})
}
