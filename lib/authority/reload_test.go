// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/bureau-foundation/treesync/lib/schema"
	"github.com/bureau-foundation/treesync/lib/tree"
)

const reloadedFixture = `{
	"trees": [
		{
			"id": "navigation",
			"selected": ["sent"],
			"nodes": [
				{"id": "inbox", "cell": {"text": "Inbox (2)"}, "leaf": true},
				{"id": "sent", "cell": {"text": "Sent"}, "leaf": true},
			],
		},
		{"id": "tags", "nodes": [{"id": "urgent", "cell": {"text": "Urgent"}, "leaf": true}]},
	],
}`

func TestReloadPublishesSnapshot(t *testing.T) {
	authority := newTestAuthority(t, Options{})
	fixture, err := ParseFixture([]byte(reloadedFixture))
	if err != nil {
		t.Fatalf("ParseFixture: %v", err)
	}

	cursor, err := authority.Reload(fixture)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if cursor != 3 {
		t.Fatalf("cursor = %d, want 3 (one snapshot)", cursor)
	}

	deltas, _, err := authority.Poll(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	kinds := make([]schema.DeltaKind, 0, len(deltas))
	for _, delta := range deltas {
		kinds = append(kinds, delta.Kind)
	}
	want := []schema.DeltaKind{schema.DeltaAllChildNodesDeleted, schema.DeltaNodesInserted, schema.DeltaNodesSelected}
	if !slices.Equal(kinds, want) {
		t.Fatalf("published %v, want %v", kinds, want)
	}
	if got := deltas[1].Nodes[0].Cell.Text; got != "Inbox (2)" {
		t.Fatalf("reloaded inbox text = %q, want %q", got, "Inbox (2)")
	}
	if !slices.Equal(deltas[2].NodeIDs, []string{"sent"}) {
		t.Fatalf("reloaded selection = %v, want [sent]", deltas[2].NodeIDs)
	}

	if got := authority.Targets(); !slices.Equal(got, []string{"navigation", "tags"}) {
		t.Fatalf("Targets = %v, want [navigation tags]", got)
	}
	var ids []string
	if err := authority.Walk("navigation", func(node *tree.Node) { ids = append(ids, node.ID()) }); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if !slices.Equal(ids, []string{"inbox", "sent"}) {
		t.Fatalf("authority state = %v, want [inbox sent]", ids)
	}
}

func TestReloadRejectsInconsistentFixture(t *testing.T) {
	authority := newTestAuthority(t, Options{})
	fixture, err := ParseFixture([]byte(`{"trees": [{"id": "navigation", "selected": ["ghost"], "nodes": []}]}`))
	if err != nil {
		t.Fatalf("ParseFixture: %v", err)
	}
	if _, err := authority.Reload(fixture); err == nil {
		t.Fatal("Reload with an unknown selection succeeded")
	}
	deltas, cursor, err := authority.Poll(context.Background(), 0, 0)
	if err != nil || cursor != 0 || len(deltas) != 0 {
		t.Fatalf("Poll after rejected reload = %d deltas, cursor %d, %v; want nothing published", len(deltas), cursor, err)
	}
}

func TestWatchFixtureReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trees.jsonc")
	if err := os.WriteFile(path, []byte(testFixture), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	fixture, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	authority, err := New(fixture, Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stop, err := authority.WatchFixture(path)
	if err != nil {
		t.Fatalf("WatchFixture: %v", err)
	}
	defer stop()

	// Replace the file the way editors do: write a sibling, rename.
	temporary := path + ".tmp"
	if err := os.WriteFile(temporary, []byte(reloadedFixture), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Rename(temporary, path); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	deltas, _, err := authority.Poll(ctx, 0, waitTimeout)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(deltas) == 0 {
		t.Fatal("fixture change was not published")
	}
	if got := deltas[1].Nodes[0].Cell.Text; got != "Inbox (2)" {
		t.Fatalf("published inbox text = %q, want %q", got, "Inbox (2)")
	}
}

func TestInotifyNames(t *testing.T) {
	event := func(name string, padded int) []byte {
		buffer := make([]byte, 16+padded)
		buffer[12] = byte(padded)
		copy(buffer[16:], name)
		return buffer
	}
	buffer := append(event("other.jsonc", 16), event("trees.jsonc", 16)...)
	if !inotifyNames(buffer, "trees.jsonc") {
		t.Fatal("second event not matched")
	}
	if inotifyNames(buffer, "trees") {
		t.Fatal("prefix matched")
	}
	if inotifyNames(buffer[:20], "other.jsonc") {
		t.Fatal("truncated event matched")
	}
}
