// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/treesync/lib/clock"
	"github.com/bureau-foundation/treesync/lib/schema"
	"github.com/bureau-foundation/treesync/lib/tree"
	"github.com/bureau-foundation/treesync/lib/treeadapter"
)

// DefaultOutboxLimit is the number of outbox entries kept for polls.
const DefaultOutboxLimit = 4096

// ErrCursorExpired is returned by Poll for a cursor whose entries were
// already trimmed from the outbox. The client must take a new
// snapshot.
var ErrCursorExpired = errors.New("poll cursor expired; take a new snapshot")

// ActionFunc answers nodeClicked and nodeAction commands. The
// returned deltas go back to the client that sent the command.
type ActionFunc func(target string, command schema.Command) []schema.Delta

// Options configures an [Authority].
type Options struct {
	Clock       clock.Clock
	OutboxLimit int
	Actions     ActionFunc
	Logger      *slog.Logger
}

// Authority owns the state of its trees. It is safe for concurrent
// use.
type Authority struct {
	clock   clock.Clock
	limit   int
	actions ActionFunc
	logger  *slog.Logger

	mu      sync.Mutex
	targets map[string]*target
	order   []string
	outbox  []schema.Delta
	base    uint64
	wake    chan struct{}
}

// target is one served tree. The adapter applies pushed deltas to the
// authority's own copy, which rejects inconsistent ones before they
// reach any client.
type target struct {
	tree    *tree.Tree
	adapter *treeadapter.Adapter
}

// New creates an authority serving the trees of fixture.
func New(fixture *Fixture, options Options) (*Authority, error) {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.OutboxLimit <= 0 {
		options.OutboxLimit = DefaultOutboxLimit
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	a := &Authority{
		clock:   options.Clock,
		limit:   options.OutboxLimit,
		actions: options.Actions,
		logger:  options.Logger,
		targets: make(map[string]*target),
		wake:    make(chan struct{}),
	}
	if fixture == nil {
		return a, nil
	}
	for _, definition := range fixture.Trees {
		if err := a.addTree(definition); err != nil {
			return nil, fmt.Errorf("loading tree %q: %w", definition.ID, err)
		}
	}
	return a, nil
}

func (a *Authority) addTree(definition FixtureTree) error {
	model := tree.New(tree.Options{
		ID:          definition.ID,
		MultiSelect: true,
		Checkable:   true,
		MultiCheck:  true,
		Logger:      a.logger,
	})
	// The authority never sends commands; its queue only exists to
	// satisfy the adapter.
	queue := treeadapter.NewQueue(treeadapter.SenderFunc(func(schema.Command) error { return nil }),
		treeadapter.QueueOptions{Clock: a.clock, Logger: a.logger})
	adapter := treeadapter.New(model, queue, treeadapter.Options{Logger: a.logger})
	model.SetVariant(schema.NodeKindRemote, tree.StaticVariant{})
	model.SetVariant(schema.NodeKindLookup, tree.StaticVariant{})

	if _, err := model.InsertNodes(definition.Nodes, nil); err != nil {
		return err
	}
	if len(definition.Selected) > 0 {
		nodes, err := model.NodesByIDs("select", definition.Selected)
		if err != nil {
			return err
		}
		if err := model.SelectNodes(nodes, tree.SelectOptions{}); err != nil {
			return err
		}
	}
	a.targets[definition.ID] = &target{tree: model, adapter: adapter}
	a.order = append(a.order, definition.ID)
	return nil
}

// Targets returns the ids of the served trees in fixture order.
func (a *Authority) Targets() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.order...)
}

func (a *Authority) target(id string) (*target, error) {
	t, ok := a.targets[id]
	if !ok {
		return nil, fmt.Errorf("unknown target %q", id)
	}
	return t, nil
}

// served prunes data for a client: nodes of kind remote lose their
// children, which the client loads on demand.
func served(data schema.NodeData) schema.NodeData {
	if data.Kind == schema.NodeKindRemote {
		data.ChildNodes = nil
		data.ChildrenLoaded = false
		data.Expanded = false
		data.ExpandedLazy = false
		return data
	}
	children := data.ChildNodes
	data.ChildNodes = make([]schema.NodeData, 0, len(children))
	for _, child := range children {
		data.ChildNodes = append(data.ChildNodes, served(child))
	}
	if len(data.ChildNodes) == 0 {
		data.ChildNodes = nil
	}
	return data
}

// Snapshot returns deltas that rebuild target on a client from any
// state, and the outbox cursor they correspond to.
func (a *Authority) Snapshot(id string) ([]schema.Delta, uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, err := a.target(id)
	if err != nil {
		return nil, 0, err
	}
	return snapshot(id, t), a.head(), nil
}

func snapshot(id string, t *target) []schema.Delta {
	deltas := []schema.Delta{{Kind: schema.DeltaAllChildNodesDeleted, Target: id}}
	roots := t.tree.Roots()
	if len(roots) > 0 {
		nodes := make([]schema.NodeData, 0, len(roots))
		for _, root := range roots {
			nodes = append(nodes, served(root.Data(true)))
		}
		deltas = append(deltas, schema.Delta{Kind: schema.DeltaNodesInserted, Target: id, Nodes: nodes})
	}
	var selected []string
	for _, node := range t.tree.SelectedNodes() {
		if visibleToClient(node) {
			selected = append(selected, node.ID())
		}
	}
	if len(selected) > 0 {
		deltas = append(deltas, schema.Delta{Kind: schema.DeltaNodesSelected, Target: id, NodeIDs: selected})
	}
	return deltas
}

// visibleToClient reports whether node is part of a fresh snapshot,
// that is, no ancestor is a remote node.
func visibleToClient(node *tree.Node) bool {
	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		if parent.Kind() == schema.NodeKindRemote {
			return false
		}
	}
	return true
}

// HandleCommand applies a client command to the authority's state and
// returns the deltas to send back.
func (a *Authority) HandleCommand(command schema.Command) ([]schema.Delta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, err := a.target(command.Target)
	if err != nil {
		return nil, err
	}

	switch command.Kind {
	case schema.CommandLoadChildren:
		return a.loadChildren(t, command), nil

	case schema.CommandNodesSelected:
		nodes, err := t.tree.NodesByIDs("select", command.NodeIDs)
		if err != nil {
			return nil, err
		}
		return nil, t.tree.SelectNodes(nodes, tree.SelectOptions{})

	case schema.CommandNodeExpanded:
		node, ok := t.tree.Node(command.NodeID)
		if !ok {
			return nil, fmt.Errorf("expand: unknown node %q", command.NodeID)
		}
		return nil, t.tree.SetNodeExpanded(node, command.Expanded, tree.ExpandOptions{ExpandedLazy: command.ExpandedLazy})

	case schema.CommandNodesChecked:
		for _, entry := range command.Checked {
			node, ok := t.tree.Node(entry.ID)
			if !ok {
				return nil, fmt.Errorf("check: unknown node %q", entry.ID)
			}
			if err := t.tree.CheckNodes([]*tree.Node{node}, entry.Checked, tree.CheckOptions{IgnoreEnabled: true}); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case schema.CommandNodeClicked, schema.CommandNodeAction:
		if _, ok := t.tree.Node(command.NodeID); !ok {
			return nil, fmt.Errorf("%s: unknown node %q", command.Kind, command.NodeID)
		}
		if a.actions == nil {
			return nil, nil
		}
		deltas := a.actions(command.Target, command)
		for i := range deltas {
			deltas[i].Target = command.Target
			if err := t.adapter.Apply(deltas[i]); err != nil {
				return nil, fmt.Errorf("action response: %w", err)
			}
		}
		return deltas, nil

	default:
		a.logger.Debug("ignoring unknown command", "kind", command.Kind, "target", command.Target)
		return nil, nil
	}
}

// loadChildren answers a loadChildren command. An unknown node fails
// the client's load instead of the request.
func (a *Authority) loadChildren(t *target, command schema.Command) []schema.Delta {
	node, ok := t.tree.Node(command.NodeID)
	if !ok {
		return []schema.Delta{{
			Kind:   schema.DeltaChildrenLoaded,
			Target: command.Target,
			NodeID: command.NodeID,
			Error:  "unknown node",
		}}
	}
	var deltas []schema.Delta
	if children := node.Children(); len(children) > 0 {
		nodes := make([]schema.NodeData, 0, len(children))
		for _, child := range children {
			nodes = append(nodes, served(child.Data(true)))
		}
		deltas = append(deltas, schema.Delta{
			Kind:     schema.DeltaNodesInserted,
			Target:   command.Target,
			ParentID: node.ID(),
			Nodes:    nodes,
		})
	}
	return append(deltas, schema.Delta{Kind: schema.DeltaChildrenLoaded, Target: command.Target, NodeID: node.ID()})
}

// Push applies server-originated deltas to the authority's state and
// appends them to the outbox. It stops at the first delta that is
// inconsistent with the state; the deltas before it stay published.
func (a *Authority) Push(deltas []schema.Delta) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	for _, delta := range deltas {
		t, targetErr := a.target(delta.Target)
		if targetErr != nil {
			err = targetErr
			break
		}
		if applyErr := t.adapter.Apply(delta); applyErr != nil {
			err = applyErr
			break
		}
		a.publishLocked(delta)
	}
	return a.head(), err
}

// publishLocked appends deltas to the outbox, trims it to the limit,
// and wakes waiting polls.
func (a *Authority) publishLocked(deltas ...schema.Delta) {
	if len(deltas) == 0 {
		return
	}
	a.outbox = append(a.outbox, deltas...)
	if excess := len(a.outbox) - a.limit; excess > 0 {
		a.outbox = append([]schema.Delta(nil), a.outbox[excess:]...)
		a.base += uint64(excess)
	}
	close(a.wake)
	a.wake = make(chan struct{})
}

func (a *Authority) head() uint64 { return a.base + uint64(len(a.outbox)) }

// Poll returns the outbox entries after cursor and the new cursor.
// With nothing to return it waits up to wait for a Push.
func (a *Authority) Poll(ctx context.Context, cursor uint64, wait time.Duration) ([]schema.Delta, uint64, error) {
	var timeout <-chan time.Time
	if wait > 0 {
		timeout = a.clock.After(wait)
	}
	for {
		a.mu.Lock()
		if cursor < a.base {
			a.mu.Unlock()
			return nil, 0, ErrCursorExpired
		}
		head := a.head()
		if cursor > head {
			a.mu.Unlock()
			return nil, 0, fmt.Errorf("poll cursor %d is ahead of the outbox (%d)", cursor, head)
		}
		if cursor < head || timeout == nil {
			deltas := append([]schema.Delta(nil), a.outbox[cursor-a.base:]...)
			a.mu.Unlock()
			return deltas, head, nil
		}
		wake := a.wake
		a.mu.Unlock()

		select {
		case <-wake:
		case <-timeout:
			return nil, head, nil
		case <-ctx.Done():
			return nil, head, ctx.Err()
		}
	}
}

// Walk calls fn for every node of target, parents first, under the
// authority's lock.
func (a *Authority) Walk(id string, fn func(*tree.Node)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, err := a.target(id)
	if err != nil {
		return err
	}
	t.tree.Walk(fn)
	return nil
}
