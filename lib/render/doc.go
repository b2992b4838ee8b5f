// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package render draws trees and outline content as styled terminal
// text. A [Renderer] attaches to a tree as its [tree.Renderer] and
// produces one frame per mutation batch; the same Renderer can also be
// asked for a frame directly, which is how the replay tool prints its
// final state.
//
// Styling uses lipgloss with an explicit color profile. Pass
// termenv.Ascii for plain text (logs, tests, pipes) and termenv.ANSI256
// or termenv.TrueColor for terminals. Node colors from cells are
// honored on color profiles; the theme supplies everything else.
package render
