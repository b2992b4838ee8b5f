// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// treesync-replay applies a delta script or a recorded journal to
// empty trees and prints the result. It reproduces divergence failures
// offline: a delta the client tree cannot apply ends the replay with
// exit status 3 and names the delta.
//
// With --push the deltas are sent to a running authority instead,
// which publishes them to every connected client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/treesync/cmd/internal/cli"
	"github.com/bureau-foundation/treesync/lib/journal"
	"github.com/bureau-foundation/treesync/lib/remote"
	"github.com/bureau-foundation/treesync/lib/render"
	"github.com/bureau-foundation/treesync/lib/schema"
	"github.com/bureau-foundation/treesync/lib/treeadapter"
	"github.com/bureau-foundation/treesync/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

func run() error {
	var common cli.CommonFlags
	var options replayOptions
	var recordPath string
	var push bool
	var socketPath string
	var showMetrics bool
	var trace bool
	var width int
	var color string

	flagSet := pflag.NewFlagSet("treesync-replay", pflag.ContinueOnError)
	common.AddFlags(flagSet)
	flagSet.BoolVar(&options.Outline, "outline", false, "attach outlines and print the detail content of the selection")
	flagSet.BoolVar(&options.Checkable, "checkable", false, "replay into checkable, multi-check trees")
	flagSet.BoolVar(&options.MultiSelect, "multi-select", false, "replay into multi-select trees")
	flagSet.StringVar(&recordPath, "record", "", "journal the replayed deltas to this file")
	flagSet.BoolVar(&push, "push", false, "push the deltas to the authority instead of replaying them")
	flagSet.StringVar(&socketPath, "socket", "", "authority socket for --push (default: paths.socket from config)")
	flagSet.BoolVar(&showMetrics, "metrics", false, "print adapter counters after the tree")
	flagSet.BoolVar(&trace, "trace", false, "print every intermediate frame to stderr")
	flagSet.IntVar(&width, "width", 0, "truncate lines to this width (default: render.width from config)")
	flagSet.StringVar(&color, "color", "", "color mode: auto, ascii, ansi, ansi256, truecolor (default: render.color from config)")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return cli.Validation("%w", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if common.Version {
		version.Print("treesync-replay")
		return nil
	}
	args := flagSet.Args()
	if len(args) != 1 {
		return cli.Validation("expected exactly one script or journal file, got %d arguments", len(args))
	}

	cfg, err := common.Config()
	if err != nil {
		return err
	}
	level, err := common.Level()
	if err != nil {
		return err
	}
	logger := cli.NewCommandLogger(level).With("command", "replay")

	deltas, err := readDeltas(args[0])
	if err != nil {
		return cli.Validation("%w", err)
	}

	if push {
		if socketPath == "" {
			socketPath = cfg.Paths.Socket
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cursor, err := remote.NewClient(socketPath).Push(ctx, deltas)
		if err != nil {
			if remote.IsServiceError(err) {
				return cli.Inconsistent("%w", err)
			}
			return cli.Transient("%w", err)
		}
		fmt.Printf("pushed %d deltas, authority cursor %d\n", len(deltas), cursor)
		return nil
	}

	if recordPath != "" {
		writer, err := journal.Create(recordPath, cfg.JournalCompression())
		if err != nil {
			return cli.Internal("%w", err)
		}
		defer writer.Close()
		options.Record = writer
	}

	registry := prometheus.NewRegistry()
	options.Metrics = treeadapter.NewMetrics(registry)
	options.Logger = logger

	if width == 0 {
		width = cfg.Render.Width
	}
	if color == "" {
		color = cfg.Render.Color
	}
	profile, err := render.Profile(color, os.Stdout)
	if err != nil {
		return cli.Validation("%w", err)
	}
	renderOptions := render.Options{Output: os.Stdout, Profile: profile, Width: width}
	renderer := render.New(renderOptions)
	if trace {
		options.Trace = os.Stderr
		options.Render = renderOptions
	}

	replayer := newReplayer(options)
	defer replayer.close()
	applyErr := replayer.apply(deltas)
	logger.Debug("replay finished", "applied", replayer.applied, "total", len(deltas))

	replayer.render(os.Stdout, renderer)
	if showMetrics {
		fmt.Println()
		if err := writeMetrics(os.Stdout, registry); err != nil {
			return cli.Internal("%w", err)
		}
	}
	return applyErr
}

// readDeltas reads a journal, recognized by its header, or else a
// JSONC script.
func readDeltas(path string) ([]schema.Delta, error) {
	isJournal, err := journal.IsJournalFile(path)
	if err != nil {
		return nil, err
	}
	if !isJournal {
		return journal.ReadScript(path)
	}
	reader, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return reader.ReadAll()
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `treesync-replay applies deltas to empty trees and prints the result.

The input is either a journal recorded by treesync-view (--journal) or
a JSONC array of deltas:

  [
    {"kind": "nodesInserted", "target": "files", "nodes": [
      {"id": "docs", "cell": {"text": "Docs"}, "expanded": true},
    ]},
    {"kind": "nodesSelected", "target": "files", "node_ids": ["docs"]},
  ]

Exit status is 3 when a delta is inconsistent with the tree built so
far; the trees are still printed as they stood before that delta.

Usage:
  treesync-replay [flags] FILE

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
