// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mirror assembles a client-side copy of one authority tree:
// a session owning a tree, its adapter, and optionally an outline,
// connected either to nothing ([NewLocal], for replaying recorded
// deltas) or to an authority socket ([Connect]).
//
// A connected mirror sends commands through a [remote.Sender] and
// follows the authority's deltas with a [remote.Subscription] driven
// by a [poller.Poller]. Every delta the mirror applies, from either
// direction, can be recorded to a journal.
package mirror
