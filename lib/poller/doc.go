// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package poller keeps a client supplied with server-originated
// deltas by polling the authority in a loop.
//
// A [Poller] publishes its [Status] (running, stopped, failure) on a
// [Broadcaster] shared by every poller of the process. Each poller
// counts how many other pollers are running. While its view is hidden
// and another poller is running, it switches from long polling (the
// authority holds the request until there is something to deliver)
// to short polling on a fixed interval, so only visible views keep a
// request parked on the authority.
package poller
