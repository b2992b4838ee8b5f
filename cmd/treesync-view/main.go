// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// treesync-view follows one tree of a running authority in the
// terminal. Moving the cursor selects nodes; expanding, checking, and
// activating nodes are reported to the authority, whose deltas update
// the view.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/treesync/cmd/internal/cli"
	"github.com/bureau-foundation/treesync/lib/journal"
	"github.com/bureau-foundation/treesync/lib/mirror"
	"github.com/bureau-foundation/treesync/lib/poller"
	"github.com/bureau-foundation/treesync/lib/remote"
	"github.com/bureau-foundation/treesync/lib/render"
	"github.com/bureau-foundation/treesync/lib/tree"
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
	var socketPath string
	var target string
	var logOutput string
	var journalPath string
	var color string
	var options mirror.ConnectOptions

	flagSet := pflag.NewFlagSet("treesync-view", pflag.ContinueOnError)
	common.AddFlags(flagSet)
	flagSet.StringVar(&socketPath, "socket", "", "authority socket (default: paths.socket from config)")
	flagSet.StringVar(&target, "target", "", "id of the tree to follow (required)")
	flagSet.BoolVar(&options.Outline, "outline", false, "treat the tree as an outline and show the detail content of the selection")
	flagSet.BoolVar(&options.Checkable, "checkable", false, "show check boxes")
	flagSet.BoolVar(&options.MultiCheck, "multi-check", true, "allow more than one checked node (with --checkable)")
	flagSet.BoolVar(&options.MultiSelect, "multi-select", false, "allow more than one selected node")
	flagSet.StringVar(&journalPath, "journal", "", "record every received delta (default: journal.path from config)")
	flagSet.StringVar(&logOutput, "log-output", "", "write logs to this file (default: discard)")
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
		version.Print("treesync-view")
		return nil
	}
	if target == "" {
		return cli.Validation("--target is required")
	}

	cfg, err := common.Config()
	if err != nil {
		return err
	}
	level, err := common.Level()
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return cli.Internal("%w", err)
	}

	// The terminal belongs to the program; logs go to a file or nowhere.
	logger, closeLog, err := cli.NewFileLogger(logOutput, level)
	if err != nil {
		return cli.Internal("%w", err)
	}
	defer closeLog()
	logger = logger.With("command", "view", "target", target)

	if socketPath == "" {
		socketPath = cfg.Paths.Socket
	}
	if journalPath == "" {
		journalPath = cfg.Journal.Path
	}
	if journalPath != "" {
		writer, err := journal.Create(journalPath, cfg.JournalCompression())
		if err != nil {
			return cli.Internal("%w", err)
		}
		defer writer.Close()
		options.Journal = writer
	}

	if color == "" {
		color = cfg.Render.Color
	}
	profile, err := render.Profile(color, os.Stdout)
	if err != nil {
		return cli.Validation("%w", err)
	}

	ev := newEvents()
	renderer := render.New(render.Options{
		Output:  os.Stdout,
		Profile: profile,
		Width:   cli.StdoutWidth(cfg.Render.Width),
		OnBatch: func(tree.Batch) { ev.frame() },
	})

	options.Target = target
	options.Renderer = renderer
	options.ContentSink = ev
	options.SelectionDelay = time.Duration(cfg.Adapter.SelectionDelay)
	options.ContentDelay = time.Duration(cfg.Adapter.ContentDelay)
	options.LongPollWait = time.Duration(cfg.Poller.LongPollWait)
	options.ShortInterval = time.Duration(cfg.Poller.ShortInterval)
	options.OnError = func(err error) {
		logger.Warn("mirror failure", "error", err)
		ev.fail(err)
	}
	options.OnStatus = func(status poller.Status) {
		logger.Debug("poller status", "status", status)
		ev.status(status)
	}
	options.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := mirror.Connect(ctx, remote.NewClient(socketPath), options)
	if err != nil {
		if remote.IsServiceError(err) {
			return cli.Validation("%w", err)
		}
		return cli.Transient("connecting to %s: %w", socketPath, err)
	}
	defer m.Close()

	program := tea.NewProgram(newModel(m, renderer, ev, target),
		tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return cli.Internal("%w", err)
	}
	if failure := ev.lastFailure(); tree.IsConsistencyError(failure) {
		return cli.Inconsistent("%s diverged from the authority: %w", target, failure)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `treesync-view follows a tree served by treesync-authority.

Usage:
  treesync-view --target ID [flags]

Keys:
  j/k or arrows   move the selection
  h/l             collapse or select parent / expand
  *               expand the whole subtree
  space           toggle the check box (--checkable)
  c               click the node
  enter           run the node action
  /               filter by fuzzy match, esc clears
  q               quit

Exit status is 3 when the tree diverged from the authority.

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
