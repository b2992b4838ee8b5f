// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/treesync/lib/clock"
	"github.com/bureau-foundation/treesync/lib/testutil"
)

const waitTimeout = 5 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// scriptedPoll hands each poll request to the test and waits for its
// answer, so the test controls the loop step by step.
type scriptedPoll struct {
	requests chan bool
	answers  chan error
}

func newScriptedPoll() *scriptedPoll {
	return &scriptedPoll{requests: make(chan bool), answers: make(chan error)}
}

func (s *scriptedPoll) poll(ctx context.Context, long bool) error {
	select {
	case s.requests <- long:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-s.answers:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func idlePoll(ctx context.Context, long bool) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStartStop(t *testing.T) {
	script := newScriptedPoll()
	var statuses []Status
	poller := New(Options{
		Poll:     script.poll,
		Clock:    clock.Fake(time.Unix(0, 0)),
		OnStatus: func(status Status) { statuses = append(statuses, status) },
		Logger:   testLogger(),
	})
	if poller.Status() != StatusStopped {
		t.Fatalf("initial Status() = %v, want stopped", poller.Status())
	}

	poller.Start(context.Background())
	poller.Start(context.Background())
	if long := testutil.RequireReceive(t, script.requests, waitTimeout, "waiting for first poll"); !long {
		t.Fatal("first poll is not a long poll")
	}
	script.answers <- nil
	testutil.RequireReceive(t, script.requests, waitTimeout, "waiting for the immediate re-poll")

	poller.Stop()
	poller.Stop()
	testutil.RequireClosed(t, poller.Done(), waitTimeout, "waiting for loop exit")
	if len(statuses) != 2 || statuses[0] != StatusRunning || statuses[1] != StatusStopped {
		t.Fatalf("statuses = %v, want [running stopped]", statuses)
	}
}

func TestFailureStopsLoop(t *testing.T) {
	script := newScriptedPoll()
	poller := New(Options{Poll: script.poll, Logger: testLogger()})
	poller.Start(context.Background())
	testutil.RequireReceive(t, script.requests, waitTimeout, "waiting for poll")

	failure := errors.New("connection refused")
	script.answers <- failure
	testutil.RequireClosed(t, poller.Done(), waitTimeout, "waiting for loop exit after failure")
	if poller.Status() != StatusFailure {
		t.Fatalf("Status() = %v, want failure", poller.Status())
	}
	if !errors.Is(poller.Err(), failure) {
		t.Fatalf("Err() = %v, want wrapped failure", poller.Err())
	}

	// A failed poller can be restarted.
	poller.Start(context.Background())
	testutil.RequireReceive(t, script.requests, waitTimeout, "waiting for poll after restart")
	poller.Stop()
}

func TestOthersCount(t *testing.T) {
	broadcaster := NewBroadcaster()
	first := New(Options{Poll: idlePoll, Broadcaster: broadcaster, Logger: testLogger()})
	second := New(Options{Poll: idlePoll, Broadcaster: broadcaster, Logger: testLogger()})

	first.Start(context.Background())
	if second.Others() != 1 || first.Others() != 0 {
		t.Fatalf("others = %d/%d after first start, want 0/1", first.Others(), second.Others())
	}
	second.Start(context.Background())
	if first.Others() != 1 {
		t.Fatalf("first.Others() = %d, want 1", first.Others())
	}

	late := New(Options{Poll: idlePoll, Broadcaster: broadcaster, Logger: testLogger()})
	if late.Others() != 2 {
		t.Fatalf("late joiner Others() = %d, want 2", late.Others())
	}

	first.Stop()
	if second.Others() != 0 || late.Others() != 1 {
		t.Fatalf("others after stop = %d/%d, want 0/1", second.Others(), late.Others())
	}
	second.Close()
	if late.Others() != 0 {
		t.Fatalf("late.Others() = %d after close, want 0", late.Others())
	}
	late.Close()
	first.Close()
}

func TestHiddenPollerShortPollsWhileAnotherRuns(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	broadcaster := NewBroadcaster()
	script := newScriptedPoll()
	background := New(Options{
		Poll:          script.poll,
		Broadcaster:   broadcaster,
		Clock:         fake,
		ShortInterval: 10 * time.Second,
		Logger:        testLogger(),
	})
	foreground := New(Options{Poll: idlePoll, Broadcaster: broadcaster, Logger: testLogger()})

	background.SetHidden(true)
	if !background.LongPolling() {
		t.Fatal("hidden poller without peers stopped long polling")
	}
	foreground.Start(context.Background())
	if background.LongPolling() {
		t.Fatal("hidden poller kept long polling while another poller runs")
	}

	background.Start(context.Background())
	if long := testutil.RequireReceive(t, script.requests, waitTimeout, "waiting for short poll"); long {
		t.Fatal("hidden poller sent a long poll")
	}
	script.answers <- nil

	// The next request waits for the short interval.
	fake.WaitForTimers(1)
	select {
	case <-script.requests:
		t.Fatal("short poll repeated before the interval")
	default:
	}
	fake.Advance(10 * time.Second)
	testutil.RequireReceive(t, script.requests, waitTimeout, "waiting for poll after interval")
	script.answers <- nil

	// Visible again: the loop goes back to long polling after the
	// pending interval.
	background.SetHidden(false)
	fake.WaitForTimers(1)
	fake.Advance(10 * time.Second)
	if long := testutil.RequireReceive(t, script.requests, waitTimeout, "waiting for long poll"); !long {
		t.Fatal("visible poller sent a short poll")
	}

	background.Close()
	foreground.Close()
}

func TestStatusString(t *testing.T) {
	for status, want := range map[Status]string{
		StatusStopped: "stopped",
		StatusRunning: "running",
		StatusFailure: "failure",
	} {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
