// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outline

import (
	"errors"

	"github.com/bureau-foundation/treesync/lib/schema"
)

// Row is one row of a [DetailTable]. NodeID names the tree node the
// row stands for.
type Row struct {
	id             string
	nodeID         string
	cells          []string
	table          *DetailTable
	filterAccepted bool
}

func (r *Row) ID() string           { return r.id }
func (r *Row) NodeID() string       { return r.nodeID }
func (r *Row) Cells() []string      { return append([]string(nil), r.cells...) }
func (r *Row) Table() *DetailTable  { return r.table }
func (r *Row) FilterAccepted() bool { return r.filterAccepted }

// TableEventType identifies a detail table event.
type TableEventType int

const (
	// RowInitialized is emitted once per row when it is added.
	RowInitialized TableEventType = iota
	RowsDeleted
	RowsFiltered
	RowsSelected
	TableDestroyed
)

// TableEvent is one detail table event.
type TableEvent struct {
	Type  TableEventType
	Table *DetailTable
	Rows  []*Row
}

type tableListener struct {
	id int
	fn func(TableEvent) error
}

// DetailTable is a tabular dataset loaded independently of the tree,
// shown as the detail content of an outline node. Its rows correspond
// to the node's children.
type DetailTable struct {
	id        string
	rows      []*Row
	byID      map[string]*Row
	selected  []*Row
	listeners []tableListener
	nextID    int
	destroyed bool
}

// NewDetailTable creates an empty table.
func NewDetailTable(id string) *DetailTable {
	return &DetailTable{id: id, byID: make(map[string]*Row)}
}

func (t *DetailTable) ID() string      { return t.id }
func (t *DetailTable) Destroyed() bool { return t.destroyed }

// Rows returns the rows in insertion order.
func (t *DetailTable) Rows() []*Row { return append([]*Row(nil), t.rows...) }

// Row returns the row with id.
func (t *DetailTable) Row(id string) (*Row, bool) {
	row, ok := t.byID[id]
	return row, ok
}

// SelectedRows returns the selected rows in selection order.
func (t *DetailTable) SelectedRows() []*Row { return append([]*Row(nil), t.selected...) }

// Subscribe registers fn for this table's events.
func (t *DetailTable) Subscribe(fn func(TableEvent) error) (unsubscribe func()) {
	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, tableListener{id: id, fn: fn})
	return func() {
		for i, listener := range t.listeners {
			if listener.id == id {
				t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

func (t *DetailTable) emit(event TableEvent) error {
	event.Table = t
	var errs []error
	for _, listener := range append([]tableListener(nil), t.listeners...) {
		if err := listener.fn(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InsertRows adds rows, or replaces the cells of rows that already
// exist. Each new row emits RowInitialized.
func (t *DetailTable) InsertRows(data []schema.RowData) error {
	var errs []error
	for _, item := range data {
		if existing, ok := t.byID[item.ID]; ok {
			existing.cells = append([]string(nil), item.Cells...)
			continue
		}
		row := &Row{
			id:             item.ID,
			nodeID:         item.NodeID,
			cells:          append([]string(nil), item.Cells...),
			table:          t,
			filterAccepted: true,
		}
		t.rows = append(t.rows, row)
		t.byID[row.id] = row
		if err := t.emit(TableEvent{Type: RowInitialized, Rows: []*Row{row}}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DeleteRows removes rows by id. Unknown ids are skipped.
func (t *DetailTable) DeleteRows(ids []string) error {
	var removed []*Row
	for _, id := range ids {
		row, ok := t.byID[id]
		if !ok {
			continue
		}
		delete(t.byID, id)
		removed = append(removed, row)
	}
	if len(removed) == 0 {
		return nil
	}
	t.rows = withoutRows(t.rows, removed)
	t.selected = withoutRows(t.selected, removed)
	return t.emit(TableEvent{Type: RowsDeleted, Rows: removed})
}

// FilterRows accepts exactly the rows named in accepted and filters
// out the rest. A nil slice accepts every row.
func (t *DetailTable) FilterRows(accepted []string) error {
	keep := make(map[string]bool, len(accepted))
	for _, id := range accepted {
		keep[id] = true
	}
	var changed []*Row
	for _, row := range t.rows {
		value := accepted == nil || keep[row.id]
		if row.filterAccepted != value {
			row.filterAccepted = value
			changed = append(changed, row)
		}
	}
	return t.emit(TableEvent{Type: RowsFiltered, Rows: changed})
}

// SelectRows replaces the row selection.
func (t *DetailTable) SelectRows(ids []string) error {
	t.selected = t.selected[:0:0]
	for _, id := range ids {
		if row, ok := t.byID[id]; ok {
			t.selected = append(t.selected, row)
		}
	}
	return t.emit(TableEvent{Type: RowsSelected, Rows: t.SelectedRows()})
}

// Destroy emits TableDestroyed and drops all listeners.
func (t *DetailTable) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	_ = t.emit(TableEvent{Type: TableDestroyed})
	t.listeners = nil
}

func withoutRows(rows, removed []*Row) []*Row {
	gone := make(map[*Row]bool, len(removed))
	for _, row := range removed {
		gone[row] = true
	}
	kept := rows[:0:0]
	for _, row := range rows {
		if !gone[row] {
			kept = append(kept, row)
		}
	}
	return kept
}

// DetailForm is a form shown as the detail content of an outline node
// or as the outline's default content.
type DetailForm struct {
	id        string
	destroyed bool
	listeners []formListener
	nextID    int
}

type formListener struct {
	id int
	fn func(*DetailForm)
}

// NewDetailForm creates a live form.
func NewDetailForm(id string) *DetailForm { return &DetailForm{id: id} }

func (f *DetailForm) ID() string      { return f.id }
func (f *DetailForm) Destroyed() bool { return f.destroyed }

// Subscribe registers fn to run when the form is destroyed.
func (f *DetailForm) Subscribe(fn func(*DetailForm)) (unsubscribe func()) {
	f.nextID++
	id := f.nextID
	f.listeners = append(f.listeners, formListener{id: id, fn: fn})
	return func() {
		for i, listener := range f.listeners {
			if listener.id == id {
				f.listeners = append(f.listeners[:i:i], f.listeners[i+1:]...)
				return
			}
		}
	}
}

// Destroy closes the form and notifies subscribers once.
func (f *DetailForm) Destroy() {
	if f.destroyed {
		return
	}
	f.destroyed = true
	listeners := f.listeners
	f.listeners = nil
	for _, listener := range listeners {
		listener.fn(f)
	}
}

// Registry resolves detail table and form ids to live objects, creating
// them on first reference. Destroyed objects are replaced by fresh ones
// when their id is referenced again.
type Registry struct {
	tables map[string]*DetailTable
	forms  map[string]*DetailForm
}

func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]*DetailTable),
		forms:  make(map[string]*DetailForm),
	}
}

// Table returns the live table with id, creating it if needed.
func (r *Registry) Table(id string) *DetailTable {
	if table, ok := r.tables[id]; ok && !table.destroyed {
		return table
	}
	table := NewDetailTable(id)
	r.tables[id] = table
	return table
}

// LookupTable returns the live table with id without creating one.
func (r *Registry) LookupTable(id string) (*DetailTable, bool) {
	table, ok := r.tables[id]
	if !ok || table.destroyed {
		return nil, false
	}
	return table, true
}

// Form returns the live form with id, creating it if needed.
func (r *Registry) Form(id string) *DetailForm {
	if form, ok := r.forms[id]; ok && !form.destroyed {
		return form
	}
	form := NewDetailForm(id)
	r.forms[id] = form
	return form
}

// LookupForm returns the live form with id without creating one.
func (r *Registry) LookupForm(id string) (*DetailForm, bool) {
	form, ok := r.forms[id]
	if !ok || form.destroyed {
		return nil, false
	}
	return form, true
}
