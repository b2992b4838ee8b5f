// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/treesync/cmd/internal/cli"
	"github.com/bureau-foundation/treesync/lib/journal"
	"github.com/bureau-foundation/treesync/lib/render"
	"github.com/bureau-foundation/treesync/lib/treeadapter"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

const script = `[
	// Two trees, built up and then edited.
	{"kind": "nodesInserted", "target": "files", "nodes": [
		{"id": "docs", "cell": {"text": "Docs"}, "expanded": true, "child_nodes": [
			{"id": "readme", "cell": {"text": "README"}, "leaf": true},
		]},
	]},
	{"kind": "nodesInserted", "target": "tags", "nodes": [
		{"id": "urgent", "cell": {"text": "urgent"}, "leaf": true},
	]},
	{"kind": "nodeChanged", "target": "files", "node_id": "readme", "cell": {"text": "README.md"}},
	{"kind": "nodesSelected", "target": "files", "node_ids": ["readme"]},
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func plainRenderer() *render.Renderer {
	return render.New(render.Options{Output: io.Discard, Profile: termenv.Ascii})
}

func TestReplayScript(t *testing.T) {
	deltas, err := readDeltas(writeFile(t, "script.jsonc", script))
	if err != nil {
		t.Fatalf("readDeltas: %v", err)
	}

	replayer := newReplayer(replayOptions{Logger: testLogger()})
	defer replayer.close()
	if err := replayer.apply(deltas); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var output bytes.Buffer
	replayer.render(&output, plainRenderer())
	want := strings.Join([]string{
		"# files",
		"▾ Docs",
		"  • README.md",
		"",
		"# tags",
		"• urgent",
		"",
	}, "\n")
	if output.String() != want {
		t.Fatalf("render output =\n%s\nwant\n%s", output.String(), want)
	}
}

func TestReplayTracesFrames(t *testing.T) {
	deltas, err := readDeltas(writeFile(t, "script.jsonc", script))
	if err != nil {
		t.Fatalf("readDeltas: %v", err)
	}
	var trace bytes.Buffer
	replayer := newReplayer(replayOptions{
		Trace:  &trace,
		Render: render.Options{Output: io.Discard, Profile: termenv.Ascii},
		Logger: testLogger(),
	})
	defer replayer.close()
	if err := replayer.apply(deltas); err != nil {
		t.Fatalf("apply: %v", err)
	}

	output := trace.String()
	if !strings.Contains(output, "-- files #1\n▾ Docs\n  • README\n") {
		t.Fatalf("trace =\n%s\nwant first files frame", output)
	}
	if !strings.Contains(output, "  • README.md") {
		t.Fatalf("trace =\n%s\nwant frame after nodeChanged", output)
	}
	if !strings.Contains(output, "-- tags #1\n• urgent\n") {
		t.Fatalf("trace =\n%s\nwant tags frame", output)
	}
}

func TestReplayStopsAtInconsistentDelta(t *testing.T) {
	deltas, err := readDeltas(writeFile(t, "script.jsonc", `[
		{"kind": "nodesInserted", "target": "files", "nodes": [{"id": "a", "leaf": true}]},
		{"kind": "nodesInserted", "target": "files", "parent_id": "ghost", "nodes": [{"id": "b"}]},
		{"kind": "nodesInserted", "target": "files", "nodes": [{"id": "c", "leaf": true}]},
	]`))
	if err != nil {
		t.Fatalf("readDeltas: %v", err)
	}

	replayer := newReplayer(replayOptions{Logger: testLogger()})
	defer replayer.close()
	err = replayer.apply(deltas)

	var toolError *cli.ToolError
	if !errors.As(err, &toolError) || toolError.ExitCode() != 3 {
		t.Fatalf("apply error = %v, want inconsistent exit status 3", err)
	}
	if !strings.Contains(err.Error(), "delta 2") {
		t.Fatalf("apply error = %q, want the failing delta named", err)
	}
	if replayer.applied != 1 {
		t.Fatalf("applied = %d, want 1", replayer.applied)
	}
}

func TestReplayRequiresTarget(t *testing.T) {
	replayer := newReplayer(replayOptions{Logger: testLogger()})
	defer replayer.close()
	deltas, err := readDeltas(writeFile(t, "script.jsonc", `[{"kind": "nodesInserted", "nodes": []}]`))
	if err != nil {
		t.Fatalf("readDeltas: %v", err)
	}
	err = replayer.apply(deltas)
	var toolError *cli.ToolError
	if !errors.As(err, &toolError) || toolError.Category != cli.CategoryValidation {
		t.Fatalf("apply error = %v, want validation error", err)
	}
}

func TestRecordedJournalReplaysIdentically(t *testing.T) {
	deltas, err := readDeltas(writeFile(t, "script.jsonc", script))
	if err != nil {
		t.Fatalf("readDeltas: %v", err)
	}

	journalPath := filepath.Join(t.TempDir(), "replay.tsj")
	writer, err := journal.Create(journalPath, journal.CompressionLZ4)
	if err != nil {
		t.Fatalf("journal.Create: %v", err)
	}
	first := newReplayer(replayOptions{Record: writer, Logger: testLogger()})
	if err := first.apply(deltas); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing journal: %v", err)
	}
	var want bytes.Buffer
	first.render(&want, plainRenderer())
	first.close()

	recorded, err := readDeltas(journalPath)
	if err != nil {
		t.Fatalf("readDeltas(journal): %v", err)
	}
	second := newReplayer(replayOptions{Logger: testLogger()})
	defer second.close()
	if err := second.apply(recorded); err != nil {
		t.Fatalf("apply(journal): %v", err)
	}
	var got bytes.Buffer
	second.render(&got, plainRenderer())
	if got.String() != want.String() {
		t.Fatalf("journal replay =\n%s\nwant\n%s", got.String(), want.String())
	}
}

func TestWriteMetrics(t *testing.T) {
	deltas, err := readDeltas(writeFile(t, "script.jsonc", script))
	if err != nil {
		t.Fatalf("readDeltas: %v", err)
	}
	registry := prometheus.NewRegistry()
	replayer := newReplayer(replayOptions{Metrics: treeadapter.NewMetrics(registry), Logger: testLogger()})
	defer replayer.close()
	if err := replayer.apply(deltas); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var output bytes.Buffer
	if err := writeMetrics(&output, registry); err != nil {
		t.Fatalf("writeMetrics: %v", err)
	}
	line := "treesync_adapter_deltas_applied_total{kind=nodesInserted,outcome=applied} 2"
	if !strings.Contains(output.String(), line) {
		t.Fatalf("metrics =\n%s\nmissing %q", output.String(), line)
	}
}
