// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// treesync-authority serves the trees of a JSONC fixture over a Unix
// socket. Clients snapshot a tree, send their interaction commands,
// and long-poll for the deltas the authority publishes. Deltas pushed
// by operators (see --help) are validated against the authority's own
// copy of the tree before any client sees them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/treesync/cmd/internal/cli"
	"github.com/bureau-foundation/treesync/lib/authority"
	"github.com/bureau-foundation/treesync/lib/remote"
	"github.com/bureau-foundation/treesync/lib/schema"
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
	var fixturePath string
	var socketPath string
	var watch bool

	flagSet := pflag.NewFlagSet("treesync-authority", pflag.ContinueOnError)
	common.AddFlags(flagSet)
	flagSet.StringVar(&fixturePath, "fixture", "", "JSONC tree fixture to serve (default: authority.fixture from config)")
	flagSet.StringVar(&socketPath, "socket", "", "Unix socket to listen on (default: paths.socket from config)")
	flagSet.BoolVar(&watch, "watch", false, "reload the fixture and republish its trees whenever the file changes")
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
		version.Print("treesync-authority")
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return cli.Validation("unexpected argument: %s", args[0])
	}

	cfg, err := common.Config()
	if err != nil {
		return err
	}
	level, err := common.Level()
	if err != nil {
		return err
	}
	if fixturePath == "" {
		fixturePath = cfg.Authority.Fixture
	}
	if fixturePath == "" {
		return cli.Validation("no fixture: pass --fixture or set authority.fixture")
	}
	if socketPath == "" {
		socketPath = cfg.Paths.Socket
	}

	logger := cli.NewCommandLogger(level).With("command", "authority")

	fixture, err := authority.LoadFixture(fixturePath)
	if err != nil {
		return cli.Validation("%w", err)
	}
	auth, err := authority.New(fixture, authority.Options{
		OutboxLimit: cfg.Authority.OutboxLimit,
		Actions: func(target string, command schema.Command) []schema.Delta {
			logger.Info("node action", "target", target, "kind", command.Kind, "node", command.NodeID)
			return nil
		},
		Logger: logger,
	})
	if err != nil {
		return cli.Validation("%w", err)
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return cli.Internal("creating socket directory: %w", err)
	}

	if watch {
		stopWatch, err := auth.WatchFixture(fixturePath)
		if err != nil {
			return cli.Internal("watching %s: %w", fixturePath, err)
		}
		defer stopWatch()
	}

	server := remote.NewServer(socketPath, logger)
	auth.Register(server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		select {
		case <-server.Ready():
			logger.Info("serving", "socket", socketPath, "fixture", fixturePath, "trees", auth.Targets())
		case <-ctx.Done():
		}
	}()

	if err := server.Serve(ctx); err != nil {
		return cli.Internal("serving %s: %w", socketPath, err)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `treesync-authority serves authoritative trees from a JSONC fixture.

Clients (treesync-view) connect to the socket, take a snapshot of one
tree, and follow it. Lazily loaded folders (kind "remote") are served
without their children; clients fetch them on expand.

Usage:
  treesync-authority --fixture trees.jsonc [flags]

Fixture format:
  {
    "trees": [
      {"id": "files", "selected": ["readme"], "nodes": [
        {"id": "readme", "cell": {"text": "README"}, "leaf": true},
      ]},
    ],
  }

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
