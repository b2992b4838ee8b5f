// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyFilter accepts nodes whose decorated text fuzzily matches a
// pattern, plus every ancestor of such a node so matches stay
// reachable. Matching is case-insensitive.
type FuzzyFilter struct {
	pattern []rune
	slab    *util.Slab
}

// NewFuzzyFilter returns a filter for pattern. An empty pattern
// accepts everything.
func NewFuzzyFilter(pattern string) *FuzzyFilter {
	return &FuzzyFilter{
		pattern: []rune(strings.ToLower(pattern)),
		slab:    util.MakeSlab(100*1024, 2048),
	}
}

func (f *FuzzyFilter) Accept(node *Node) bool {
	if len(f.pattern) == 0 {
		return true
	}
	if f.Matches(node.Decoration().Text) {
		return true
	}
	for _, child := range node.children {
		if f.Accept(child) {
			return true
		}
	}
	return false
}

// Matches reports whether text contains the pattern characters in
// order.
func (f *FuzzyFilter) Matches(text string) bool {
	if len(f.pattern) == 0 {
		return true
	}
	chars := util.ToChars([]byte(text))
	result, _ := algo.FuzzyMatchV2(false, true, true, &chars, f.pattern, false, f.slab)
	return result.Start >= 0
}
