// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/treesync/lib/schema"
)

func remoteTree(t *testing.T, requests *[]string) *Tree {
	t.Helper()
	tree, _ := newTestTree(t, Options{})
	tree.SetVariant(schema.NodeKindRemote, RemoteVariant{Request: func(node *Node) error {
		*requests = append(*requests, node.ID())
		return nil
	}})
	if _, err := tree.InsertNodes([]schema.NodeData{{ID: "folder", Kind: schema.NodeKindRemote}}, nil); err != nil {
		t.Fatalf("InsertNodes: %v", err)
	}
	return tree
}

func TestEnsureLoadChildrenIsIdempotent(t *testing.T) {
	var requests []string
	tree := remoteTree(t, &requests)
	node := mustNode(t, tree, "folder")

	if !node.HasChildNodes() {
		t.Fatal("unloaded remote node reports no children")
	}

	first := node.EnsureLoadChildren()
	second := node.EnsureLoadChildren()
	if first != second {
		t.Fatal("concurrent callers got different load handles")
	}
	if len(requests) != 1 {
		t.Fatalf("requests = %v, want exactly one", requests)
	}
	if node.PendingLoad() != first {
		t.Fatal("in-flight load not recorded on the node")
	}

	if _, err := tree.InsertNodes([]schema.NodeData{data("x"), data("y")}, node); err != nil {
		t.Fatalf("InsertNodes: %v", err)
	}
	if err := tree.CompleteLoad(node, nil); err != nil {
		t.Fatalf("CompleteLoad: %v", err)
	}

	if first.State() != LoadSucceeded {
		t.Fatalf("load state = %v, want succeeded", first.State())
	}
	if !node.ChildrenLoaded() || node.PendingLoad() != nil {
		t.Fatalf("ChildrenLoaded=%v PendingLoad=%v", node.ChildrenLoaded(), node.PendingLoad())
	}
	if got := ids(node.Children()); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("children = %v", got)
	}

	third := node.EnsureLoadChildren()
	if third.State() != LoadSucceeded {
		t.Fatalf("load after completion = %v, want succeeded", third.State())
	}
	if len(requests) != 1 {
		t.Fatalf("loaded node issued another request: %v", requests)
	}
}

func TestFailedLoadAllowsRetry(t *testing.T) {
	var requests []string
	tree := remoteTree(t, &requests)
	node := mustNode(t, tree, "folder")

	load := node.EnsureLoadChildren()
	var holderErr error
	load.OnComplete(func(err error) { holderErr = err })

	if err := tree.CompleteLoad(node, errors.New("authority refused")); err != nil {
		t.Fatalf("CompleteLoad: %v", err)
	}
	var loadError *LoadError
	if !errors.As(holderErr, &loadError) || loadError.NodeID != "folder" {
		t.Fatalf("holder error = %v, want *LoadError for folder", holderErr)
	}
	if node.ChildrenLoaded() || node.PendingLoad() != nil {
		t.Fatal("failed load left the node loaded or in flight")
	}

	retry := node.EnsureLoadChildren()
	if retry == load || retry.State() != LoadPending {
		t.Fatal("retry did not start a fresh load")
	}
	if len(requests) != 2 {
		t.Fatalf("requests = %v, want two", requests)
	}
}

func TestSynchronousLoadClearsMarker(t *testing.T) {
	tree, _ := newTestTree(t, Options{})
	if _, err := tree.InsertNodes([]schema.NodeData{{ID: "static"}}, nil); err != nil {
		t.Fatalf("InsertNodes: %v", err)
	}
	node := mustNode(t, tree, "static")
	if node.HasChildNodes() {
		t.Fatal("static node without children reports children")
	}

	load := node.EnsureLoadChildren()
	if load.State() != LoadSucceeded {
		t.Fatalf("state = %v, want succeeded", load.State())
	}
	if node.PendingLoad() != nil {
		t.Fatal("synchronous completion left an in-flight marker")
	}
	if !node.ChildrenLoaded() {
		t.Fatal("synchronous success did not mark children loaded")
	}
}

type scriptedFetcher struct {
	rows     map[string][]schema.NodeData
	requests []string
	deferred []func()
}

func (f *scriptedFetcher) FetchChildren(parentKey string, deliver func([]schema.NodeData, error)) {
	f.requests = append(f.requests, parentKey)
	rows := f.rows[parentKey]
	f.deferred = append(f.deferred, func() { deliver(rows, nil) })
}

func (f *scriptedFetcher) flush() {
	deferred := f.deferred
	f.deferred = nil
	for _, fn := range deferred {
		fn()
	}
}

func TestLookupVariantIncrementalLoad(t *testing.T) {
	fetcher := &scriptedFetcher{rows: map[string][]schema.NodeData{
		"K1": {
			{ID: "child-a", Lookup: &schema.LookupRow{Key: "KA", ParentKey: "K1", Text: "Alpha", Active: true}},
			{ID: "child-b", Lookup: &schema.LookupRow{Key: "KB", ParentKey: "K1", Text: "Beta", Active: false}},
		},
	}}
	tree, _ := newTestTree(t, Options{Variants: map[schema.NodeKind]Variant{
		schema.NodeKindLookup: LookupVariant{Fetcher: fetcher, Incremental: true},
	}})
	if _, err := tree.InsertNodes([]schema.NodeData{{
		ID:     "root",
		Kind:   schema.NodeKindLookup,
		Lookup: &schema.LookupRow{Key: "K1", Text: "Root", Active: true},
	}}, nil); err != nil {
		t.Fatalf("InsertNodes: %v", err)
	}
	root := mustNode(t, tree, "root")

	load := root.EnsureLoadChildren()
	if root.EnsureLoadChildren() != load {
		t.Fatal("second request did not join the in-flight load")
	}
	if !reflect.DeepEqual(fetcher.requests, []string{"K1"}) {
		t.Fatalf("fetch requests = %v", fetcher.requests)
	}

	fetcher.flush()
	if load.State() != LoadSucceeded {
		t.Fatalf("state = %v (err %v)", load.State(), load.Err())
	}
	if got := ids(root.Children()); !reflect.DeepEqual(got, []string{"child-a", "child-b"}) {
		t.Fatalf("children = %v", got)
	}

	inactive := mustNode(t, tree, "child-b")
	if inactive.Kind() != schema.NodeKindLookup {
		t.Fatalf("fetched child kind = %q, want lookup", inactive.Kind())
	}
	decoration := inactive.Decoration()
	if decoration.Text != "Beta (inactive)" || !decoration.HasClass("inactive") {
		t.Fatalf("decoration = %+v", decoration)
	}
	if mustNode(t, tree, "child-a").Decoration().HasClass("inactive") {
		t.Fatal("active row decorated as inactive")
	}
}

func TestLoadOnDestroyedNodeFails(t *testing.T) {
	var requests []string
	tree := remoteTree(t, &requests)
	node := mustNode(t, tree, "folder")
	if err := tree.DeleteNodes([]*Node{node}, nil); err != nil {
		t.Fatalf("DeleteNodes: %v", err)
	}
	load := node.EnsureLoadChildren()
	if !errors.Is(load.Err(), ErrNodeDestroyed) {
		t.Fatalf("load error = %v, want ErrNodeDestroyed", load.Err())
	}
	if len(requests) != 0 {
		t.Fatalf("destroyed node issued requests: %v", requests)
	}
}

func TestDeletingNodeFailsInFlightLoad(t *testing.T) {
	var requests []string
	tree := remoteTree(t, &requests)
	node := mustNode(t, tree, "folder")

	load := node.EnsureLoadChildren()
	var completed []error
	load.OnComplete(func(err error) { completed = append(completed, err) })

	if err := tree.DeleteNodes([]*Node{node}, nil); err != nil {
		t.Fatalf("DeleteNodes: %v", err)
	}
	if load.State() != LoadFailed {
		t.Fatalf("load state = %v, want failed", load.State())
	}
	var loadError *LoadError
	if !errors.As(load.Err(), &loadError) || loadError.NodeID != "folder" || !errors.Is(load.Err(), ErrNodeDestroyed) {
		t.Fatalf("load error = %v, want LoadError for folder wrapping ErrNodeDestroyed", load.Err())
	}
	if len(completed) != 1 {
		t.Fatalf("completion callbacks ran %d times, want 1", len(completed))
	}
	if node.PendingLoad() != nil {
		t.Fatal("in-flight marker kept on a deleted node")
	}
	if err := load.Wait(context.Background()); !errors.Is(err, ErrNodeDestroyed) {
		t.Fatalf("Wait = %v, want ErrNodeDestroyed", err)
	}
}

func TestChildrenLoadedListenerErrorIsLogged(t *testing.T) {
	var logs bytes.Buffer
	tree := New(Options{ID: "tree-1", Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	tree.SetVariant(schema.NodeKindRemote, RemoteVariant{Request: func(*Node) error { return nil }})
	if _, err := tree.InsertNodes([]schema.NodeData{{ID: "folder", Kind: schema.NodeKindRemote}}, nil); err != nil {
		t.Fatalf("InsertNodes: %v", err)
	}
	node := mustNode(t, tree, "folder")
	load := node.EnsureLoadChildren()

	tree.Subscribe(func(event Event) error {
		if event.Type == EventChildrenLoaded {
			return errors.New("view gone")
		}
		return nil
	})
	if err := tree.CompleteLoad(node, nil); err != nil {
		t.Fatalf("CompleteLoad: %v", err)
	}
	if load.State() != LoadSucceeded || !node.ChildrenLoaded() {
		t.Fatalf("load = %v, ChildrenLoaded = %v, want succeeded and loaded", load.State(), node.ChildrenLoaded())
	}
	if output := logs.String(); !strings.Contains(output, "listener failed after children load") || !strings.Contains(output, "view gone") {
		t.Fatalf("log output = %q, want the listener error", output)
	}
}
