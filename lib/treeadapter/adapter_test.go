// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treeadapter

import (
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/treesync/lib/clock"
	"github.com/bureau-foundation/treesync/lib/schema"
	"github.com/bureau-foundation/treesync/lib/tree"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingSender collects sent commands.
type recordingSender struct {
	commands []schema.Command
	fail     bool
}

func (s *recordingSender) Send(command schema.Command) error {
	if s.fail {
		return errors.New("connection closed")
	}
	s.commands = append(s.commands, command)
	return nil
}

func (s *recordingSender) kinds() []schema.CommandKind {
	kinds := make([]schema.CommandKind, 0, len(s.commands))
	for _, command := range s.commands {
		kinds = append(kinds, command.Kind)
	}
	return kinds
}

type fixture struct {
	tree    *tree.Tree
	adapter *Adapter
	sender  *recordingSender
	clock   *clock.FakeClock
	metrics *Metrics
}

func newFixture(t *testing.T, options tree.Options) *fixture {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sender := &recordingSender{}
	metrics := NewMetrics(nil)
	if options.ID == "" {
		options.ID = "tree-7"
	}
	options.Logger = testLogger()
	treeInstance := tree.New(options)
	queue := NewQueue(sender, QueueOptions{Clock: fake, Logger: testLogger(), Metrics: metrics})
	adapter := New(treeInstance, queue, Options{Logger: testLogger(), Metrics: metrics})
	return &fixture{tree: treeInstance, adapter: adapter, sender: sender, clock: fake, metrics: metrics}
}

func (f *fixture) apply(t *testing.T, delta schema.Delta) {
	t.Helper()
	if err := f.adapter.Apply(delta); err != nil {
		t.Fatalf("Apply(%s): %v", delta, err)
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

func leaf(id string) schema.NodeData {
	return schema.NodeData{ID: id, Cell: schema.Cell{Text: id}, Leaf: true}
}

func TestDebouncedSelectionCoalesces(t *testing.T) {
	f := newFixture(t, tree.Options{})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{leaf("a"), leaf("b"), leaf("c")}})

	for _, id := range []string{"a", "b", "c"} {
		if err := f.tree.SelectNodes([]*tree.Node{f.node(t, id)}, tree.SelectOptions{Notify: true, Debounce: true}); err != nil {
			t.Fatalf("SelectNodes(%s): %v", id, err)
		}
		f.clock.Advance(100 * time.Millisecond)
	}
	if len(f.sender.commands) != 0 {
		t.Fatalf("debounced selection sent early: %+v", f.sender.commands)
	}

	f.clock.Advance(150 * time.Millisecond)
	if len(f.sender.commands) != 1 {
		t.Fatalf("sent %d commands, want 1: %+v", len(f.sender.commands), f.sender.commands)
	}
	command := f.sender.commands[0]
	if command.Kind != schema.CommandNodesSelected || command.Target != "tree-7" {
		t.Fatalf("command = %+v", command)
	}
	if !reflect.DeepEqual(command.NodeIDs, []string{"c"}) {
		t.Fatalf("selected ids = %v, want [c]", command.NodeIDs)
	}
	if got := testutil.ToFloat64(f.metrics.CommandsCoalesced.WithLabelValues("nodesSelected")); got != 2 {
		t.Fatalf("coalesced = %v, want 2", got)
	}
}

func TestClickIsImmediateAndKeepsOrder(t *testing.T) {
	f := newFixture(t, tree.Options{})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{leaf("a")}})
	node := f.node(t, "a")

	if err := f.tree.SelectNodes([]*tree.Node{node}, tree.SelectOptions{Notify: true, Debounce: true}); err != nil {
		t.Fatalf("SelectNodes: %v", err)
	}
	if err := f.tree.ClickNode(node); err != nil {
		t.Fatalf("ClickNode: %v", err)
	}

	want := []schema.CommandKind{schema.CommandNodesSelected, schema.CommandNodeClicked}
	if got := f.sender.kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	if f.clock.PendingCount() != 0 {
		t.Fatal("flush left the debounce timer armed")
	}
	f.clock.Advance(time.Second)
	if len(f.sender.commands) != 2 {
		t.Fatalf("timer re-sent commands: %v", f.sender.kinds())
	}
}

func TestNodeActionNamesNode(t *testing.T) {
	f := newFixture(t, tree.Options{})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{leaf("a")}})

	if err := f.tree.NodeAction(f.node(t, "a")); err != nil {
		t.Fatalf("NodeAction: %v", err)
	}
	want := []schema.Command{{Kind: schema.CommandNodeAction, Target: "tree-7", NodeID: "a"}}
	if !reflect.DeepEqual(f.sender.commands, want) {
		t.Fatalf("sent %+v, want %+v", f.sender.commands, want)
	}
}

func TestImmediateSelectionSupersedesPending(t *testing.T) {
	f := newFixture(t, tree.Options{})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{leaf("a"), leaf("b")}})

	if err := f.tree.SelectNodes([]*tree.Node{f.node(t, "a")}, tree.SelectOptions{Notify: true, Debounce: true}); err != nil {
		t.Fatalf("SelectNodes: %v", err)
	}
	if err := f.tree.SelectNodes([]*tree.Node{f.node(t, "b")}, tree.SelectOptions{Notify: true}); err != nil {
		t.Fatalf("SelectNodes: %v", err)
	}
	if len(f.sender.commands) != 1 || !reflect.DeepEqual(f.sender.commands[0].NodeIDs, []string{"b"}) {
		t.Fatalf("commands = %+v, want only the selection of b", f.sender.commands)
	}
}

func TestInboundDeltasAreNotEchoed(t *testing.T) {
	f := newFixture(t, tree.Options{Checkable: true, MultiCheck: true})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{
		{ID: "p", Cell: schema.Cell{Text: "p"}, ChildNodes: []schema.NodeData{leaf("c")}},
	}})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesSelected, NodeIDs: []string{"c"}})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodeExpanded, NodeID: "p", Expanded: true})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesChecked, Nodes: []schema.NodeData{{ID: "c", Checked: true}}})
	f.clock.Advance(time.Second)

	if len(f.sender.commands) != 0 {
		t.Fatalf("inbound deltas produced commands: %v", f.sender.kinds())
	}
	if f.tree.SelectedNode() != f.node(t, "c") || !f.node(t, "p").Expanded() || !f.node(t, "c").Checked() {
		t.Fatal("inbound deltas not applied")
	}
}

func TestInsertUnderDanglingParentIsFatal(t *testing.T) {
	f := newFixture(t, tree.Options{})
	err := f.adapter.Apply(schema.Delta{
		Kind:     schema.DeltaNodesInserted,
		ParentID: "missing",
		Nodes:    []schema.NodeData{leaf("x"), leaf("y")},
	})
	var consistencyError *tree.ConsistencyError
	if !errors.As(err, &consistencyError) {
		t.Fatalf("Apply = %v, want *tree.ConsistencyError", err)
	}
	if consistencyError.ID != "missing" || consistencyError.Kind != "parent" {
		t.Fatalf("error = %+v", consistencyError)
	}
	if f.tree.Len() != 0 {
		t.Fatalf("tree has %d nodes after a rejected insert", f.tree.Len())
	}
	if got := testutil.ToFloat64(f.metrics.DeltasApplied.WithLabelValues("nodesInserted", "inconsistent")); got != 1 {
		t.Fatalf("inconsistent count = %v, want 1", got)
	}
}

func TestDeltaValidation(t *testing.T) {
	tests := []struct {
		name  string
		delta schema.Delta
	}{
		{"delete under unknown parent", schema.Delta{Kind: schema.DeltaNodesDeleted, ParentID: "nope", NodeIDs: []string{"a"}}},
		{"delete unknown node", schema.Delta{Kind: schema.DeltaNodesDeleted, NodeIDs: []string{"nope"}}},
		{"clear unknown parent", schema.Delta{Kind: schema.DeltaAllChildNodesDeleted, ParentID: "nope"}},
		{"select unknown node", schema.Delta{Kind: schema.DeltaNodesSelected, NodeIDs: []string{"nope"}}},
		{"expand without id", schema.Delta{Kind: schema.DeltaNodeExpanded, Expanded: true}},
		{"change without cell", schema.Delta{Kind: schema.DeltaNodeChanged, NodeID: "a"}},
		{"reorder unknown parent", schema.Delta{Kind: schema.DeltaChildNodeOrderChanged, ParentID: "nope"}},
		{"check unknown node", schema.Delta{Kind: schema.DeltaNodesChecked, Nodes: []schema.NodeData{{ID: "nope", Checked: true}}}},
		{"children loaded without id", schema.Delta{Kind: schema.DeltaChildrenLoaded}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFixture(t, tree.Options{})
			f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{leaf("a")}})
			if err := f.adapter.Apply(test.delta); !tree.IsConsistencyError(err) {
				t.Fatalf("Apply = %v, want consistency error", err)
			}
			if _, ok := f.tree.Node("a"); !ok {
				t.Fatal("rejected delta removed a node")
			}
		})
	}
}

func TestNodeChangedForUnknownNodeIsIgnored(t *testing.T) {
	f := newFixture(t, tree.Options{})
	err := f.adapter.Apply(schema.Delta{Kind: schema.DeltaNodeChanged, NodeID: "gone", Cell: &schema.Cell{Text: "late"}})
	if err != nil {
		t.Fatalf("Apply = %v, want nil", err)
	}

	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{leaf("a")}})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodeChanged, NodeID: "a", Cell: &schema.Cell{Text: "renamed", IconID: "folder"}})
	if cell := f.node(t, "a").Cell(); cell.Text != "renamed" || cell.IconID != "folder" {
		t.Fatalf("cell = %+v", cell)
	}
}

func TestRecursiveExpandDelta(t *testing.T) {
	f := newFixture(t, tree.Options{})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{{
		ID: "r",
		ChildNodes: []schema.NodeData{
			{ID: "a", ChildNodes: []schema.NodeData{leaf("a1")}},
			leaf("b"),
		},
	}}})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodeExpanded, NodeID: "r", Expanded: true, Recursive: true})

	for _, id := range []string{"r", "a", "a1", "b"} {
		if !f.node(t, id).Expanded() {
			t.Errorf("%s not expanded", id)
		}
	}
	if len(f.sender.commands) != 0 {
		t.Fatalf("recursive expand echoed: %v", f.sender.kinds())
	}

	f.apply(t, schema.Delta{Kind: schema.DeltaNodeExpanded, NodeID: "a", Expanded: false})
	if f.node(t, "a").Expanded() || !f.node(t, "a1").Expanded() {
		t.Fatal("non-recursive collapse touched descendants")
	}
}

func TestNodesCheckedIgnoresEnabled(t *testing.T) {
	f := newFixture(t, tree.Options{MultiCheck: true})
	disabled := false
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{
		{ID: "on", Checked: true},
		{ID: "off", Enabled: &disabled},
	}})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesChecked, Nodes: []schema.NodeData{
		{ID: "on", Checked: false},
		{ID: "off", Checked: true},
	}})
	if f.node(t, "on").Checked() || !f.node(t, "off").Checked() {
		t.Fatalf("on=%v off=%v, want false true", f.node(t, "on").Checked(), f.node(t, "off").Checked())
	}
}

func TestChildNodeOrderChanged(t *testing.T) {
	f := newFixture(t, tree.Options{})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{leaf("a"), leaf("b"), leaf("c")}})
	f.apply(t, schema.Delta{Kind: schema.DeltaChildNodeOrderChanged, NodeIDs: []string{"b", "c", "a"}})
	var got []string
	for _, root := range f.tree.Roots() {
		got = append(got, root.ID())
	}
	if !reflect.DeepEqual(got, []string{"b", "c", "a"}) {
		t.Fatalf("roots = %v", got)
	}
}

type focusCounter struct{ focus, reveal int }

func (f *focusCounter) RequestFocus()    { f.focus++ }
func (f *focusCounter) RevealSelection() { f.reveal++ }

func TestFocusDeltas(t *testing.T) {
	focuser := &focusCounter{}
	f := newFixture(t, tree.Options{Focuser: focuser})
	f.apply(t, schema.Delta{Kind: schema.DeltaRequestFocus})
	f.apply(t, schema.Delta{Kind: schema.DeltaScrollToSelection})
	if focuser.focus != 1 || focuser.reveal != 1 {
		t.Fatalf("focus=%d reveal=%d", focuser.focus, focuser.reveal)
	}
}

func TestUnknownKindsAndHandlers(t *testing.T) {
	f := newFixture(t, tree.Options{})
	if err := f.adapter.Apply(schema.Delta{Kind: "futureKind"}); err != nil {
		t.Fatalf("unknown kind = %v, want nil", err)
	}

	var handled []schema.Delta
	f.adapter.Handle(schema.DeltaPageChanged, func(delta schema.Delta) error {
		handled = append(handled, delta)
		return nil
	})
	f.apply(t, schema.Delta{Kind: schema.DeltaPageChanged, NodeID: "n"})
	if len(handled) != 1 || handled[0].NodeID != "n" {
		t.Fatalf("handled = %+v", handled)
	}
}

func TestRemoteLazyLoadEndToEnd(t *testing.T) {
	f := newFixture(t, tree.Options{})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{
		{ID: "folder", Kind: schema.NodeKindRemote, Cell: schema.Cell{Text: "Folder"}},
	}})
	folder := f.node(t, "folder")
	if !folder.HasChildNodes() {
		t.Fatal("unloaded remote folder reports no children")
	}

	if err := f.tree.ExpandNode(folder, true); err != nil {
		t.Fatalf("ExpandNode: %v", err)
	}
	load := folder.PendingLoad()
	if load == nil || load.State() != tree.LoadPending {
		t.Fatal("expanding did not start a remote load")
	}
	if folder.EnsureLoadChildren() != load {
		t.Fatal("second caller got a different handle")
	}
	want := []schema.CommandKind{schema.CommandNodeExpanded, schema.CommandLoadChildren}
	if got := f.sender.kinds(); !reflect.DeepEqual(got, want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	if f.sender.commands[1].NodeID != "folder" {
		t.Fatalf("loadChildren target node = %q", f.sender.commands[1].NodeID)
	}

	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, ParentID: "folder", Nodes: []schema.NodeData{leaf("x"), leaf("y")}})
	if load.State() != tree.LoadPending {
		t.Fatal("load completed before childrenLoaded")
	}
	f.apply(t, schema.Delta{Kind: schema.DeltaChildrenLoaded, NodeID: "folder"})

	if load.State() != tree.LoadSucceeded {
		t.Fatalf("load state = %v", load.State())
	}
	if !folder.ChildrenLoaded() || folder.PendingLoad() != nil {
		t.Fatal("folder not marked loaded")
	}
	children := folder.Children()
	if len(children) != 2 || children[0].ID() != "x" || children[1].ID() != "y" {
		t.Fatalf("children = %v", children)
	}
}

func TestChildrenLoadedAfterDeleteIsIgnored(t *testing.T) {
	f := newFixture(t, tree.Options{})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{
		{ID: "folder", Kind: schema.NodeKindRemote}, leaf("other"),
	}})
	load := f.node(t, "folder").EnsureLoadChildren()

	f.apply(t, schema.Delta{Kind: schema.DeltaNodesDeleted, NodeIDs: []string{"folder"}})
	if load.State() != tree.LoadFailed || !errors.Is(load.Err(), tree.ErrNodeDestroyed) {
		t.Fatalf("load after delete = %v (%v), want failed with ErrNodeDestroyed", load.State(), load.Err())
	}
	select {
	case <-load.Done():
	default:
		t.Fatal("Done not closed after the node was deleted")
	}

	// The authority answers the loadChildren sent before the delete.
	if err := f.adapter.Apply(schema.Delta{Kind: schema.DeltaChildrenLoaded, NodeID: "folder"}); err != nil {
		t.Fatalf("late childrenLoaded = %v, want nil", err)
	}
	if _, ok := f.tree.Node("other"); !ok {
		t.Fatal("late childrenLoaded disturbed the tree")
	}
}

func TestRemoteLoadFailure(t *testing.T) {
	f := newFixture(t, tree.Options{})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{{ID: "folder", Kind: schema.NodeKindRemote}}})
	folder := f.node(t, "folder")
	load := folder.EnsureLoadChildren()

	f.apply(t, schema.Delta{Kind: schema.DeltaChildrenLoaded, NodeID: "folder", Error: "permission denied"})
	var loadError *tree.LoadError
	if !errors.As(load.Err(), &loadError) {
		t.Fatalf("load error = %v, want *tree.LoadError", load.Err())
	}
	if folder.ChildrenLoaded() || folder.PendingLoad() != nil {
		t.Fatal("failed load left state behind")
	}
}

func TestSenderFailureIsCounted(t *testing.T) {
	f := newFixture(t, tree.Options{})
	f.apply(t, schema.Delta{Kind: schema.DeltaNodesInserted, Nodes: []schema.NodeData{leaf("a")}})
	f.sender.fail = true
	if err := f.tree.ClickNode(f.node(t, "a")); err != nil {
		t.Fatalf("ClickNode: %v", err)
	}
	if got := testutil.ToFloat64(f.metrics.CommandsDropped.WithLabelValues("nodeClicked")); got != 1 {
		t.Fatalf("dropped = %v, want 1", got)
	}
}
