// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/treesync/lib/clock"
	"github.com/bureau-foundation/treesync/lib/journal"
	"github.com/bureau-foundation/treesync/lib/outline"
	"github.com/bureau-foundation/treesync/lib/poller"
	"github.com/bureau-foundation/treesync/lib/remote"
	"github.com/bureau-foundation/treesync/lib/schema"
	"github.com/bureau-foundation/treesync/lib/session"
	"github.com/bureau-foundation/treesync/lib/tree"
	"github.com/bureau-foundation/treesync/lib/treeadapter"
)

// Options configures a mirror.
type Options struct {
	// Target is the tree id, which is also the delta target.
	Target string

	MultiSelect bool
	Checkable   bool
	MultiCheck  bool

	// Outline attaches an outline to the tree.
	Outline     bool
	ContentSink outline.ContentSink

	SelectionDelay time.Duration
	ContentDelay   time.Duration

	// Journal, if set, records every delta before it is applied.
	Journal *journal.Writer

	// Renderer is attached to the tree. Optional.
	Renderer tree.Renderer

	Metrics *treeadapter.Metrics
	Clock   clock.Clock
	Logger  *slog.Logger
}

// Mirror is the client-side copy of one tree.
type Mirror struct {
	session *session.Session
	tree    *tree.Tree
	adapter *treeadapter.Adapter
	queue   *treeadapter.Queue
	outline *outline.Outline
	deliver remote.Deliver
	logger  *slog.Logger

	sender       *remote.Sender
	subscription *remote.Subscription
	poller       *poller.Poller
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewLocal creates a mirror with no authority. Commands caused by
// local interaction are passed to sender, or logged and dropped when
// sender is nil.
func NewLocal(options Options, sender treeadapter.Sender) *Mirror {
	m := build(options)
	if sender == nil {
		sender = treeadapter.SenderFunc(func(command schema.Command) error {
			m.logger.Debug("no authority, dropping command", "kind", command.Kind, "target", command.Target)
			return nil
		})
	}
	m.attach(options, sender)
	return m
}

func build(options Options) *Mirror {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	m := &Mirror{logger: options.Logger.With("target", options.Target)}
	m.session = session.New(session.Options{Clock: options.Clock, Logger: options.Logger})
	m.deliver = m.session.Deliver
	if options.Journal != nil {
		m.deliver = options.Journal.Record(m.session.Deliver)
	}
	return m
}

func (m *Mirror) attach(options Options, sender treeadapter.Sender) {
	m.tree = tree.New(tree.Options{
		ID:          options.Target,
		MultiSelect: options.MultiSelect,
		Checkable:   options.Checkable,
		MultiCheck:  options.MultiCheck,
		Renderer:    options.Renderer,
		Focuser:     m.session.Focus().For(options.Target, nil),
		Logger:      m.logger,
	})
	m.queue = treeadapter.NewQueue(sender, treeadapter.QueueOptions{
		Clock:   m.session.Clock(),
		Run:     m.session.Do,
		Logger:  m.logger,
		Metrics: options.Metrics,
	})
	m.adapter = treeadapter.New(m.tree, m.queue, treeadapter.Options{
		SelectionDelay: options.SelectionDelay,
		Logger:         m.logger,
		Metrics:        options.Metrics,
	})
	if options.Outline {
		m.outline = outline.New(m.tree, outline.Options{
			Sink:         options.ContentSink,
			Clock:        m.session.Clock(),
			Run:          m.session.Do,
			ContentDelay: options.ContentDelay,
			Logger:       m.logger,
		})
		m.outline.Register(m.adapter)
	}
	m.session.Register(m.adapter)
	m.session.OnClose(func() {
		m.queue.Stop()
		if m.outline != nil {
			m.outline.Close()
		}
		m.tree.Destroy()
	})
}

// ConnectOptions configures [Connect].
type ConnectOptions struct {
	Options

	// LongPollWait and ShortInterval tune the delta subscription.
	LongPollWait  time.Duration
	ShortInterval time.Duration

	// Broadcaster shares poller status with other mirrors of the
	// process. Optional.
	Broadcaster *poller.Broadcaster

	// OnError receives command, delivery, and poll failures. A
	// consistency failure means the mirror has diverged and should be
	// closed.
	OnError  func(error)
	OnStatus func(poller.Status)
}

// Connect snapshots options.Target from the authority behind client,
// applies the snapshot, and starts forwarding commands and polling
// for deltas until Close.
func Connect(ctx context.Context, client *remote.Client, options ConnectOptions) (*Mirror, error) {
	m := build(options.Options)
	onError := options.OnError
	if onError == nil {
		onError = func(err error) { m.logger.Error("mirror failure", "error", err) }
	}
	m.sender = remote.NewSender(client, remote.SenderOptions{
		Deliver: m.deliver,
		OnError: onError,
		Logger:  m.logger,
	})
	m.attach(options.Options, m.sender)

	snapshot, err := client.Snapshot(ctx, options.Target)
	if err != nil {
		m.session.Close()
		return nil, fmt.Errorf("snapshot of %s: %w", options.Target, err)
	}
	if err := m.deliver(snapshot.Deltas); err != nil {
		m.session.Close()
		return nil, fmt.Errorf("applying snapshot of %s: %w", options.Target, err)
	}

	m.subscription = remote.NewSubscription(client, snapshot.Cursor, options.LongPollWait, m.deliver)
	m.poller = poller.New(poller.Options{
		Poll:          m.subscription.Poll,
		Broadcaster:   options.Broadcaster,
		Clock:         m.session.Clock(),
		ShortInterval: options.ShortInterval,
		OnStatus:      options.OnStatus,
		Logger:        m.logger,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.sender.Run(runCtx)
	}()
	m.poller.Start(runCtx)
	go func() {
		defer m.wg.Done()
		<-m.poller.Done()
		if err := m.poller.Err(); err != nil && runCtx.Err() == nil {
			onError(fmt.Errorf("polling %s: %w", options.Target, err))
		}
	}()
	m.logger.Info("mirror connected", "cursor", snapshot.Cursor, "nodes", m.treeLen())
	return m, nil
}

func (m *Mirror) treeLen() int {
	var n int
	m.session.Do(func() { n = m.tree.Len() })
	return n
}

// Do runs fn under the session lock. All access to Tree, Adapter, and
// Outline goes through it.
func (m *Mirror) Do(fn func()) { m.session.Do(fn) }

// Deliver applies deltas as if the authority had sent them, recording
// them to the journal first.
func (m *Mirror) Deliver(deltas []schema.Delta) error { return m.deliver(deltas) }

func (m *Mirror) Session() *session.Session     { return m.session }
func (m *Mirror) Tree() *tree.Tree              { return m.tree }
func (m *Mirror) Adapter() *treeadapter.Adapter { return m.adapter }

// Outline is nil unless Options.Outline was set.
func (m *Mirror) Outline() *outline.Outline { return m.outline }

// Poller is nil for local mirrors.
func (m *Mirror) Poller() *poller.Poller { return m.poller }

// Cursor returns the subscription position, or zero for local mirrors.
func (m *Mirror) Cursor() uint64 {
	if m.subscription == nil {
		return 0
	}
	return m.subscription.Cursor()
}

// Close stops polling and forwarding and closes the session. Commands
// still queued are dropped.
func (m *Mirror) Close() {
	if m.poller != nil {
		m.poller.Close()
	}
	if m.sender != nil {
		m.sender.Close()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.session.Close()
}
