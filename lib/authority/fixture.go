// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authority

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/treesync/lib/schema"
)

// Fixture is the initial state of an authority.
type Fixture struct {
	Trees []FixtureTree `json:"trees"`
}

// FixtureTree is one served tree. ID is the target clients address.
type FixtureTree struct {
	ID       string            `json:"id"`
	Nodes    []schema.NodeData `json:"nodes"`
	Selected []string          `json:"selected,omitempty"`
}

// ParseFixture decodes a JSONC fixture. Comments and trailing commas
// are allowed.
func ParseFixture(data []byte) (*Fixture, error) {
	var fixture Fixture
	if err := json.Unmarshal(jsonc.ToJSON(data), &fixture); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	seen := make(map[string]bool, len(fixture.Trees))
	for i, tree := range fixture.Trees {
		if tree.ID == "" {
			return nil, fmt.Errorf("fixture tree %d has no id", i)
		}
		if seen[tree.ID] {
			return nil, fmt.Errorf("fixture tree %q defined twice", tree.ID)
		}
		seen[tree.ID] = true
	}
	return &fixture, nil
}

// LoadFixture reads and parses the fixture at path.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	fixture, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fixture, nil
}
