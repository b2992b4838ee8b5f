// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outline

import (
	"errors"
	"log/slog"
	"time"

	"github.com/bureau-foundation/treesync/lib/clock"
	"github.com/bureau-foundation/treesync/lib/tree"
)

// DefaultContentDelay is how long content re-evaluation waits for
// further triggers.
const DefaultContentDelay = 300 * time.Millisecond

// Options configures an [Outline].
type Options struct {
	// Registry resolves detail table and form ids. A fresh registry
	// is created when nil.
	Registry *Registry

	// Sink receives the chosen detail content. Optional.
	Sink ContentSink

	Clock clock.Clock

	// Run executes the debounced content evaluation, normally the
	// session's Do. Nil runs it on the timer goroutine.
	Run func(func())

	// ContentDelay overrides DefaultContentDelay.
	ContentDelay time.Duration

	// NavigateDownChanged is told whether navigating down from node
	// is possible, after the rows selected in its detail table change.
	NavigateDownChanged func(node *tree.Node, enabled bool)

	Logger *slog.Logger
}

// Page is the outline state of one node.
type Page struct {
	node *tree.Node

	table        *DetailTable
	tableVisible bool
	dropTable    func()

	form          *DetailForm
	formVisible   bool
	formVisibleUI bool
	dropForm      func()

	row *Row
}

func (p *Page) Node() *tree.Node          { return p.node }
func (p *Page) DetailTable() *DetailTable { return p.table }
func (p *Page) DetailForm() *DetailForm   { return p.form }

// Row is the row of the parent's detail table linked to this node.
func (p *Page) Row() *Row { return p.row }

func (p *Page) DetailTableVisible() bool    { return p.tableVisible }
func (p *Page) DetailFormVisible() bool     { return p.formVisible }
func (p *Page) DetailFormVisibleByUI() bool { return p.formVisibleUI }

// Outline specializes a tree whose nodes are pages. Each node can own
// a detail table (rows for its children) and a detail form; the
// outline keeps nodes and rows linked and decides which detail content
// to show for the selection.
//
// Like its tree, an Outline is used under its session's lock.
type Outline struct {
	tree     *tree.Tree
	registry *Registry
	sink     ContentSink
	clock    clock.Clock
	run      func(func())
	delay    time.Duration
	logger   *slog.Logger

	navigateDownChanged func(*tree.Node, bool)

	pages       map[string]*Page
	pendingRows map[string]*Row

	defaultForm     *DetailForm
	dropDefaultForm func()

	content           Content
	contentTimer      *clock.Timer
	contentBringFront bool

	navigateUpInProgress bool
	refilter             bool

	unsubscribe  func()
	removeFilter func()
}

// New attaches an outline to t. Nodes already in t get pages
// immediately.
func New(t *tree.Tree, options Options) *Outline {
	if options.Registry == nil {
		options.Registry = NewRegistry()
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Run == nil {
		options.Run = func(fn func()) { fn() }
	}
	if options.ContentDelay <= 0 {
		options.ContentDelay = DefaultContentDelay
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	o := &Outline{
		tree:                t,
		registry:            options.Registry,
		sink:                options.Sink,
		clock:               options.Clock,
		run:                 options.Run,
		delay:               options.ContentDelay,
		logger:              options.Logger.With("outline", t.ID()),
		navigateDownChanged: options.NavigateDownChanged,
		pages:               make(map[string]*Page),
		pendingRows:         make(map[string]*Row),
	}
	t.Walk(func(node *tree.Node) {
		if err := o.initNode(node); err != nil {
			o.logger.Error("initializing existing node", "node", node.ID(), "error", err)
		}
	})
	o.unsubscribe = t.Subscribe(o.onTreeEvent)
	o.removeFilter = t.AddFilter(&DetailTableFilter{outline: o})
	return o
}

func (o *Outline) Tree() *tree.Tree    { return o.tree }
func (o *Outline) Registry() *Registry { return o.registry }

// Page returns the outline state of node.
func (o *Outline) Page(node *tree.Node) (*Page, bool) {
	if node == nil {
		return nil, false
	}
	page, ok := o.pages[node.ID()]
	return page, ok
}

// Row returns the detail row linked to node, or nil.
func (o *Outline) Row(node *tree.Node) *Row {
	if page, ok := o.Page(node); ok {
		return page.row
	}
	return nil
}

// PendingRows returns the number of rows waiting for their node.
func (o *Outline) PendingRows() int { return len(o.pendingRows) }

// Close detaches the outline from its tree and its detail objects.
func (o *Outline) Close() {
	if o.contentTimer != nil {
		o.contentTimer.Stop()
	}
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	if o.removeFilter != nil {
		o.removeFilter()
		o.removeFilter = nil
	}
	for _, page := range o.pages {
		o.detachTable(page)
		o.detachForm(page)
	}
	o.setDefaultForm(nil)
}

func (o *Outline) onTreeEvent(event tree.Event) error {
	switch event.Type {
	case tree.EventNodesInserted:
		var errs []error
		for _, node := range event.Nodes {
			if err := o.initNode(node); err != nil {
				errs = append(errs, err)
			}
		}
		o.applyPendingRefilter()
		return errors.Join(errs...)

	case tree.EventNodesDeleted:
		for _, node := range event.Nodes {
			o.removeNode(node)
		}

	case tree.EventNodesSelected:
		if event.Notify && len(event.Nodes) == 1 && !o.navigateUpInProgress {
			if page, ok := o.Page(event.Nodes[0]); ok {
				page.formVisibleUI = true
			}
		}
		o.navigateUpInProgress = false
		o.ScheduleContent(true)
	}
	return nil
}

// initNode creates the page of a freshly inserted node, attaches the
// detail objects named in its page data, and consumes a pending row
// link when the node's parent has a detail table.
func (o *Outline) initNode(node *tree.Node) error {
	page := &Page{node: node, formVisibleUI: true}
	o.pages[node.ID()] = page

	if data, ok := node.Page(); ok {
		if data.DetailTableID != "" {
			if err := o.attachTable(page, o.registry.Table(data.DetailTableID)); err != nil {
				return err
			}
		}
		page.tableVisible = data.DetailTableVisible
		if data.DetailFormID != "" {
			o.attachForm(page, o.registry.Form(data.DetailFormID))
		}
		page.formVisible = data.DetailFormVisible
	}

	parent, ok := o.Page(node.Parent())
	if !ok || parent.table == nil {
		return nil
	}
	row, pending := o.pendingRows[node.ID()]
	if !pending {
		return nil
	}
	delete(o.pendingRows, node.ID())
	if row == nil {
		return &tree.ConsistencyError{Op: "link", Kind: "row", ID: node.ID(), Detail: "pending link without row"}
	}
	if row.table != parent.table {
		o.logger.Warn("dropping pending row of a replaced detail table", "node", node.ID(), "row", row.id)
		return nil
	}
	o.setRow(page, row)
	return nil
}

func (o *Outline) removeNode(node *tree.Node) {
	page, ok := o.pages[node.ID()]
	if !ok {
		return
	}
	if table := page.table; table != nil {
		o.detachTable(page)
		table.Destroy()
	}
	o.detachForm(page)
	page.row = nil
	delete(o.pages, node.ID())
}

func (o *Outline) setRow(page *Page, row *Row) {
	page.row = row
	if !row.filterAccepted {
		o.refilter = true
	}
}

func (o *Outline) applyPendingRefilter() {
	if o.refilter {
		o.refilter = false
		o.tree.ApplyFilters()
	}
}
