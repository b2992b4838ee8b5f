// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records the inbound deltas of a session so a
// divergence between a client and its authority can be replayed
// offline.
//
// A journal file starts with a five-byte header: the magic "TSJ1" and
// a [Compression] tag. The rest of the file is one compressed stream
// (none, LZ4 frame, or zstd) of CBOR frames. Each frame carries a
// sequence number, the CBOR encoding of one delta, and a BLAKE3 keyed
// digest chained over every earlier frame, so a dropped, reordered, or
// altered frame is detected as a [*CorruptError] at the first frame
// it affects.
//
// Delta scripts are the hand-written counterpart: a JSONC array of
// deltas (comments and trailing commas allowed) read by [ParseScript].
package journal
