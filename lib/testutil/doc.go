// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by treesync tests.
//
// [RequireReceive] and [RequireClosed] bound channel waits with a
// wall-clock timeout so a broken test fails instead of hanging; they
// are the only place tests read real time. [SocketDir] makes a short
// directory for Unix sockets, whose paths are limited to 108 bytes.
// [UniqueID] produces distinct identifiers without consulting the
// clock.
package testutil
