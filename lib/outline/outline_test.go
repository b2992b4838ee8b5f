// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package outline

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/treesync/lib/clock"
	"github.com/bureau-foundation/treesync/lib/schema"
	"github.com/bureau-foundation/treesync/lib/tree"
	"github.com/bureau-foundation/treesync/lib/treeadapter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingSink struct {
	contents []Content
}

func (s *recordingSink) SetOutlineContent(content Content, bringToFront bool) {
	s.contents = append(s.contents, content)
}

func (s *recordingSink) last(t *testing.T) Content {
	t.Helper()
	if len(s.contents) == 0 {
		t.Fatal("no content was shown")
	}
	return s.contents[len(s.contents)-1]
}

type fixture struct {
	tree    *tree.Tree
	adapter *treeadapter.Adapter
	outline *Outline
	sink    *recordingSink
	clock   *clock.FakeClock
	sent    []schema.Command
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock: clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		sink:  &recordingSink{},
	}
	f.tree = tree.New(tree.Options{ID: "outline-1", Logger: testLogger()})
	sender := treeadapter.SenderFunc(func(command schema.Command) error {
		f.sent = append(f.sent, command)
		return nil
	})
	queue := treeadapter.NewQueue(sender, treeadapter.QueueOptions{Clock: f.clock, Logger: testLogger()})
	f.adapter = treeadapter.New(f.tree, queue, treeadapter.Options{Logger: testLogger()})
	f.outline = New(f.tree, Options{Sink: f.sink, Clock: f.clock, Logger: testLogger()})
	f.outline.Register(f.adapter)
	return f
}

func (f *fixture) apply(t *testing.T, deltas ...schema.Delta) {
	t.Helper()
	for _, delta := range deltas {
		if err := f.adapter.Apply(delta); err != nil {
			t.Fatalf("Apply(%s): %v", delta, err)
		}
	}
}

func (f *fixture) node(t *testing.T, id string) *tree.Node {
	t.Helper()
	node, ok := f.tree.Node(id)
	if !ok {
		t.Fatalf("node %q not registered", id)
	}
	return node
}

func (f *fixture) page(t *testing.T, id string) *Page {
	t.Helper()
	page, ok := f.outline.Page(f.node(t, id))
	if !ok {
		t.Fatalf("node %q has no page", id)
	}
	return page
}

func pageNode(id, tableID string, children ...schema.NodeData) schema.NodeData {
	return schema.NodeData{
		ID:         id,
		Cell:       schema.Cell{Text: id},
		Page:       &schema.PageData{DetailTableID: tableID, DetailTableVisible: tableID != ""},
		ChildNodes: children,
	}
}

func TestRowBeforeNodeIsLinkedOnInsert(t *testing.T) {
	f := newFixture(t)
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{pageNode("p", "table-p")}})

	f.apply(t, schema.Delta{
		Kind:    schema.DeltaTableRowsInserted,
		TableID: "table-p",
		Rows:    []schema.RowData{{ID: "row-c", NodeID: "c", Cells: []string{"Child"}}},
	})
	if f.outline.PendingRows() != 1 {
		t.Fatalf("PendingRows() = %d, want 1", f.outline.PendingRows())
	}

	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, ParentID: "p", Nodes: []schema.NodeData{pageNode("c", "")}})

	row := f.outline.Row(f.node(t, "c"))
	if row == nil || row.ID() != "row-c" {
		t.Fatalf("Row(c) = %v, want row-c", row)
	}
	if row.Table() != f.page(t, "p").DetailTable() {
		t.Fatal("linked row does not belong to the parent's detail table")
	}
	if f.outline.PendingRows() != 0 {
		t.Fatalf("PendingRows() = %d after insert, want 0", f.outline.PendingRows())
	}
}

func TestRowAfterNodeLinksImmediately(t *testing.T) {
	f := newFixture(t)
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{
		pageNode("p", "table-p", pageNode("c1", ""), pageNode("c2", "")),
	}})
	f.apply(t, schema.Delta{
		Kind:    schema.DeltaTableRowsInserted,
		TableID: "table-p",
		Rows:    []schema.RowData{{ID: "r1", NodeID: "c1"}, {ID: "r2", NodeID: "c2"}},
	})
	if f.outline.Row(f.node(t, "c1")).ID() != "r1" || f.outline.Row(f.node(t, "c2")).ID() != "r2" {
		t.Fatal("rows not linked to existing nodes")
	}

	f.apply(t, schema.Delta{Kind: schema.DeltaTableRowsDeleted, TableID: "table-p", RowIDs: []string{"r1"}})
	if f.outline.Row(f.node(t, "c1")) != nil {
		t.Fatal("deleted row still linked")
	}
}

func TestRowNamingForeignNodeIsInconsistent(t *testing.T) {
	f := newFixture(t)
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{
		pageNode("p", "table-p"),
		pageNode("q", "", pageNode("stranger", "")),
	}})
	err := f.adapter.Apply(schema.Delta{
		Kind:    schema.DeltaTableRowsInserted,
		TableID: "table-p",
		Rows:    []schema.RowData{{ID: "r", NodeID: "stranger"}},
	})
	if !tree.IsConsistencyError(err) {
		t.Fatalf("Apply = %v, want consistency error", err)
	}
}

func TestRemovingNodeDestroysItsDetailTable(t *testing.T) {
	f := newFixture(t)
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{pageNode("p", "table-p")}})
	table := f.page(t, "p").DetailTable()

	f.apply(t, schema.Delta{Kind: schema.DeltaNodesDeleted, NodeIDs: []string{"p"}})
	if !table.Destroyed() {
		t.Fatal("detail table survived its node")
	}
	if _, ok := f.outline.Registry().LookupTable("table-p"); ok {
		t.Fatal("registry still resolves the destroyed table")
	}
}

func TestDetailTableFilterHidesFilteredRows(t *testing.T) {
	f := newFixture(t)
	root := pageNode("p", "table-p", pageNode("c1", ""), pageNode("c2", ""))
	root.Expanded = true
	f.apply(t,
		schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{root}},
		schema.Delta{Kind: schema.DeltaTableRowsInserted, TableID: "table-p", Rows: []schema.RowData{
			{ID: "r1", NodeID: "c1"}, {ID: "r2", NodeID: "c2"},
		}},
	)
	if got := len(f.tree.VisibleNodes()); got != 3 {
		t.Fatalf("visible = %d, want 3", got)
	}

	f.apply(t, schema.Delta{Kind: schema.DeltaTableRowsFiltered, TableID: "table-p", RowIDs: []string{"r2"}})
	visible := f.tree.VisibleNodes()
	if len(visible) != 2 || visible[1].ID() != "c2" {
		t.Fatalf("visible after filter = %v", visible)
	}
}

func TestContentPrecedenceAndFormDestroy(t *testing.T) {
	f := newFixture(t)
	node := schema.NodeData{ID: "n", Page: &schema.PageData{
		DetailFormID: "form-n", DetailFormVisible: true,
		DetailTableID: "table-n", DetailTableVisible: true,
	}}
	f.apply(t,
		schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{node}},
		schema.Delta{Kind: schema.DeltaNodesSelected, NodeIDs: []string{"n"}},
	)
	f.clock.Advance(DefaultContentDelay)
	if content := f.sink.last(t); content.Kind != ContentForm || content.Form.ID() != "form-n" {
		t.Fatalf("content = %v, want form-n", content.Kind)
	}

	f.apply(t, schema.Delta{Kind: schema.DeltaDetailFormDestroyed, FormID: "form-n"})
	shown := len(f.sink.contents)
	f.clock.Advance(DefaultContentDelay)
	if len(f.sink.contents) != shown+1 {
		t.Fatal("form destruction did not re-evaluate the content")
	}
	if content := f.sink.last(t); content.Kind != ContentTable || content.Table.ID() != "table-n" {
		t.Fatalf("content after destroy = %v, want table-n", content.Kind)
	}
	if f.page(t, "n").DetailForm() != nil {
		t.Fatal("destroyed form still attached")
	}
}

func TestDeletingSelectedNodeClearsContent(t *testing.T) {
	f := newFixture(t)
	f.apply(t,
		schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{pageNode("a", "table-a"), pageNode("b", "table-b")}},
		schema.Delta{Kind: schema.DeltaNodesSelected, NodeIDs: []string{"a"}},
	)
	f.clock.Advance(DefaultContentDelay)
	if content := f.sink.last(t); content.Table == nil || content.Table.ID() != "table-a" {
		t.Fatalf("content = %+v, want table-a", content)
	}

	f.sent = nil
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesDeleted, NodeIDs: []string{"a"}})
	shown := len(f.sink.contents)
	f.clock.Advance(DefaultContentDelay)
	if len(f.sink.contents) != shown+1 {
		t.Fatal("deleting the selected node did not re-evaluate the content")
	}
	if content := f.sink.last(t); content.Kind != ContentNone || content.Table != nil {
		t.Fatalf("content after delete = %+v, want none", content)
	}
	if content := f.outline.Content(); content.Table != nil {
		t.Fatalf("Content() still returns table %q", content.Table.ID())
	}
	if len(f.sent) != 0 {
		t.Fatalf("deletion reported commands: %+v", f.sent)
	}
}

func TestContentEvaluationIsDebounced(t *testing.T) {
	f := newFixture(t)
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{
		pageNode("a", "table-a"), pageNode("b", "table-b"), pageNode("c", "table-c"),
	}})
	for _, id := range []string{"a", "b", "c"} {
		f.apply(t, schema.Delta{Kind: schema.DeltaNodesSelected, NodeIDs: []string{id}})
		f.clock.Advance(100 * time.Millisecond)
	}
	if len(f.sink.contents) != 0 {
		t.Fatalf("content evaluated %d times during the burst", len(f.sink.contents))
	}
	f.clock.Advance(200 * time.Millisecond)
	if len(f.sink.contents) != 1 {
		t.Fatalf("content evaluated %d times, want 1", len(f.sink.contents))
	}
	if content := f.sink.last(t); content.Table == nil || content.Table.ID() != "table-c" {
		t.Fatalf("content = %+v, want table-c", content)
	}
}

func TestLocalSelectionResetsFormVisibility(t *testing.T) {
	f := newFixture(t)
	withForm := func(id string, children ...schema.NodeData) schema.NodeData {
		return schema.NodeData{ID: id, ChildNodes: children, Page: &schema.PageData{
			DetailFormID: "form-" + id, DetailFormVisible: true,
			DetailTableID: "table-" + id, DetailTableVisible: true,
		}}
	}
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{withForm("p", withForm("c"))}})
	parent, child := f.node(t, "p"), f.node(t, "c")

	if err := f.tree.SelectNodes([]*tree.Node{parent}, tree.SelectOptions{Notify: true}); err != nil {
		t.Fatalf("SelectNodes: %v", err)
	}
	f.outline.SetDetailFormVisibleByUI(parent, false)
	if f.outline.Content().Kind != ContentTable {
		t.Fatalf("content = %v after hiding the form, want table", f.outline.Content().Kind)
	}

	if err := f.tree.SelectNodes([]*tree.Node{child}, tree.SelectOptions{Notify: true}); err != nil {
		t.Fatalf("SelectNodes: %v", err)
	}
	// Navigate up from the child's form: the form is hidden first.
	if err := f.outline.NavigateUp(); err != nil {
		t.Fatalf("NavigateUp: %v", err)
	}
	if f.page(t, "c").DetailFormVisibleByUI() {
		t.Fatal("navigate up did not hide the child's form")
	}
	if err := f.outline.NavigateUp(); err != nil {
		t.Fatalf("NavigateUp: %v", err)
	}
	if f.tree.SelectedNode() != parent {
		t.Fatal("second navigate up did not select the parent")
	}
	if f.page(t, "p").DetailFormVisibleByUI() {
		t.Fatal("navigate up reset the parent's form visibility")
	}

	// A plain local selection resets it.
	if err := f.tree.SelectNodes([]*tree.Node{child}, tree.SelectOptions{Notify: true}); err != nil {
		t.Fatalf("SelectNodes: %v", err)
	}
	if err := f.tree.SelectNodes([]*tree.Node{parent}, tree.SelectOptions{Notify: true}); err != nil {
		t.Fatalf("SelectNodes: %v", err)
	}
	if !f.page(t, "p").DetailFormVisibleByUI() {
		t.Fatal("local selection did not reset the form visibility")
	}
}

func TestDefaultDetailFormWithoutSelection(t *testing.T) {
	f := newFixture(t)
	f.apply(t, schema.Delta{Kind: schema.DeltaPageChanged, Page: &schema.PageData{DetailFormID: "home"}})
	if content := f.sink.last(t); content.Kind != ContentForm || content.Form.ID() != "home" {
		t.Fatalf("content = %+v, want home form", content)
	}
	if f.outline.DefaultDetailForm() == nil {
		t.Fatal("DefaultDetailForm() = nil")
	}

	f.apply(t, schema.Delta{Kind: schema.DeltaDetailFormDestroyed, FormID: "home"})
	f.clock.Advance(DefaultContentDelay)
	if content := f.sink.last(t); content.Kind != ContentNone {
		t.Fatalf("content after destroying the default form = %v, want none", content.Kind)
	}
}

func TestPageChangedUpdatesSelectedNode(t *testing.T) {
	f := newFixture(t)
	f.apply(t,
		schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{{ID: "n"}}},
		schema.Delta{Kind: schema.DeltaNodesSelected, NodeIDs: []string{"n"}},
	)
	f.clock.Advance(DefaultContentDelay)
	if f.sink.last(t).Kind != ContentNone {
		t.Fatal("page without detail content showed something")
	}

	f.apply(t, schema.Delta{Kind: schema.DeltaPageChanged, NodeID: "n", Page: &schema.PageData{
		DetailTableID: "table-n", DetailTableVisible: true,
	}})
	if content := f.sink.last(t); content.Kind != ContentTable {
		t.Fatalf("content = %v, want table right after pageChanged", content.Kind)
	}

	if err := f.adapter.Apply(schema.Delta{Kind: schema.DeltaPageChanged, NodeID: "ghost", Page: &schema.PageData{}}); !tree.IsConsistencyError(err) {
		t.Fatalf("pageChanged for unknown node = %v, want consistency error", err)
	}
}

func TestNavigateDownSelectsRowNode(t *testing.T) {
	f := newFixture(t)
	var navigable []bool
	f.outline.navigateDownChanged = func(node *tree.Node, enabled bool) { navigable = append(navigable, enabled) }

	f.apply(t,
		schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{pageNode("p", "table-p", pageNode("c", ""))}},
		schema.Delta{Kind: schema.DeltaTableRowsInserted, TableID: "table-p", Rows: []schema.RowData{{ID: "r", NodeID: "c"}}},
		schema.Delta{Kind: schema.DeltaNodesSelected, NodeIDs: []string{"p"}},
		schema.Delta{Kind: schema.DeltaTableRowsSelected, TableID: "table-p", RowIDs: []string{"r"}},
	)
	if len(navigable) != 1 || !navigable[0] {
		t.Fatalf("navigate-down notifications = %v", navigable)
	}
	if row := f.outline.SelectedRow(); row == nil || row.ID() != "r" {
		t.Fatalf("SelectedRow() = %v", row)
	}
	if err := f.outline.NavigateDown(); err != nil {
		t.Fatalf("NavigateDown: %v", err)
	}
	if f.tree.SelectedNode() != f.node(t, "c") {
		t.Fatal("navigate down did not select the row's node")
	}
}
