// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the passage of time so debounce and polling
// logic can be tested deterministically.
//
// Components take a [Clock] in their options. Production wiring passes
// [Real]; tests pass a [FakeClock] from [Fake] and call Advance to move
// time, which fires due AfterFunc callbacks synchronously:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	queue := treeadapter.NewQueue(sender, treeadapter.QueueOptions{Clock: fake})
//	queue.Enqueue(command, 250*time.Millisecond, coalesce)
//	fake.Advance(250 * time.Millisecond) // command is sent here
package clock
