// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session scopes the state that belongs to one client
// connection: the trees and adapters it hosts, its focus manager,
// clock, and logger.
//
// A [Session] serializes every mutation of that state through
// [Session.Do]. Trees, adapters, and outlines are not safe for
// concurrent use on their own; timer callbacks, network goroutines,
// and UI event loops all enter them through the session lock.
// [Session.Deliver] routes inbound deltas to the adapter registered
// for their target, in arrival order.
package session
