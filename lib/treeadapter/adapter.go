// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package treeadapter

import (
	"log/slog"
	"time"

	"github.com/bureau-foundation/treesync/lib/schema"
	"github.com/bureau-foundation/treesync/lib/tree"
)

// DefaultSelectionDelay is how long a debounced selection waits for a
// newer selection before it is sent.
const DefaultSelectionDelay = 250 * time.Millisecond

// Options configures an [Adapter].
type Options struct {
	// SelectionDelay overrides DefaultSelectionDelay.
	SelectionDelay time.Duration

	Logger  *slog.Logger
	Metrics *Metrics
}

// DeltaHandler applies a delta kind the adapter does not handle
// itself. Outlines register their page and detail table kinds.
type DeltaHandler func(delta schema.Delta) error

// Adapter connects a tree to its authority. Outbound, it listens for
// tree events caused by local interaction and turns them into
// commands with the right delay and coalescing policy. Inbound, it
// applies deltas through the tree's operations.
//
// Like the tree, an Adapter is used under its session's lock.
type Adapter struct {
	tree           *tree.Tree
	queue          *Queue
	selectionDelay time.Duration
	logger         *slog.Logger
	metrics        *Metrics

	handlers    map[schema.DeltaKind]DeltaHandler
	unsubscribe func()
}

// New attaches an adapter to t. Commands go through queue. The
// adapter also installs the remote variant on t, so KindRemote nodes
// load their children through this adapter.
func New(t *tree.Tree, queue *Queue, options Options) *Adapter {
	if options.SelectionDelay <= 0 {
		options.SelectionDelay = DefaultSelectionDelay
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	adapter := &Adapter{
		tree:           t,
		queue:          queue,
		selectionDelay: options.SelectionDelay,
		logger:         options.Logger.With("adapter", t.ID()),
		metrics:        options.Metrics,
		handlers:       make(map[schema.DeltaKind]DeltaHandler),
	}
	adapter.unsubscribe = t.Subscribe(adapter.onTreeEvent)
	t.SetVariant(schema.NodeKindRemote, tree.RemoteVariant{Request: adapter.requestChildren})
	return adapter
}

// ID is the adapter id, which is the id of its tree.
func (a *Adapter) ID() string { return a.tree.ID() }

func (a *Adapter) Tree() *tree.Tree { return a.tree }

// Handle registers handler for a delta kind the adapter does not
// apply itself. Registering a kind twice replaces the handler.
func (a *Adapter) Handle(kind schema.DeltaKind, handler DeltaHandler) {
	a.handlers[kind] = handler
}

// Close detaches the adapter from its tree and discards unsent
// commands.
func (a *Adapter) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.queue.Stop()
}

func (a *Adapter) onTreeEvent(event tree.Event) error {
	if !event.Notify {
		return nil
	}
	switch event.Type {
	case tree.EventNodesSelected:
		a.sendNodesSelected(event.Nodes, event.Debounce)
	case tree.EventNodeClicked:
		a.sendNodeClicked(event.Nodes[0])
	case tree.EventNodeAction:
		a.send(schema.Command{Kind: schema.CommandNodeAction, NodeID: event.Nodes[0].ID()})
	case tree.EventNodeExpanded:
		a.send(schema.Command{
			Kind:         schema.CommandNodeExpanded,
			NodeID:       event.Nodes[0].ID(),
			Expanded:     event.Expanded,
			ExpandedLazy: event.ExpandedLazy,
		})
	case tree.EventNodesChecked:
		command := schema.Command{Kind: schema.CommandNodesChecked}
		for _, node := range event.Nodes {
			command.Checked = append(command.Checked, schema.CheckedNode{ID: node.ID(), Checked: node.Checked()})
		}
		a.send(command)
	default:
		a.send(schema.Command{Kind: schema.CommandKind(event.Type), NodeIDs: nodeIDs(event.Nodes)})
	}
	return nil
}

// sendNodesSelected coalesces with any pending selection of this
// adapter whether or not it is debounced, so an immediate selection
// also cancels a delayed one.
func (a *Adapter) sendNodesSelected(nodes []*tree.Node, debounce bool) {
	var delay time.Duration
	if debounce {
		delay = a.selectionDelay
	}
	a.queue.Enqueue(schema.Command{
		Kind:    schema.CommandNodesSelected,
		Target:  a.ID(),
		NodeIDs: nodeIDs(nodes),
	}, delay, SameTargetAndKind)
}

func (a *Adapter) sendNodeClicked(node *tree.Node) {
	a.queue.Enqueue(schema.Command{
		Kind:   schema.CommandNodeClicked,
		Target: a.ID(),
		NodeID: node.ID(),
	}, 0, nil)
}

// send is the default path: immediate, never coalesced.
func (a *Adapter) send(command schema.Command) {
	command.Target = a.ID()
	a.queue.Enqueue(command, 0, nil)
}

func (a *Adapter) requestChildren(node *tree.Node) error {
	a.send(schema.Command{Kind: schema.CommandLoadChildren, NodeID: node.ID()})
	return nil
}

func nodeIDs(nodes []*tree.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID())
	}
	return ids
}
