// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/treesync/lib/schema"
)

// ParseScript decodes a JSONC array of deltas.
func ParseScript(data []byte) ([]schema.Delta, error) {
	var deltas []schema.Delta
	if err := json.Unmarshal(jsonc.ToJSON(data), &deltas); err != nil {
		return nil, fmt.Errorf("parsing delta script: %w", err)
	}
	for i, delta := range deltas {
		if delta.Kind == "" {
			return nil, fmt.Errorf("delta script entry %d has no kind", i)
		}
	}
	return deltas, nil
}

// ReadScript reads and parses the delta script at path.
func ReadScript(path string) ([]schema.Delta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading delta script: %w", err)
	}
	deltas, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return deltas, nil
}
