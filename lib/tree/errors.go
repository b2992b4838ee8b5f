// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"errors"
	"fmt"
)

// ConsistencyError reports that a request referenced tree state that
// does not exist, or carried a payload that cannot be applied. It
// means the client and the authority disagree about the tree; callers
// treat it as fatal for the session rather than retrying.
type ConsistencyError struct {
	// Op is the operation that failed ("insert", "delete", "link", ...).
	Op string

	// Kind names what was wrong: "parent", "node", "row", or "payload".
	Kind string

	// ID is the offending identifier, when there is one.
	ID string

	Detail string
}

func (e *ConsistencyError) Error() string {
	message := fmt.Sprintf("tree %s: inconsistent %s", e.Op, e.Kind)
	if e.ID != "" {
		message += fmt.Sprintf(" %q", e.ID)
	}
	if e.Detail != "" {
		message += ": " + e.Detail
	}
	return message
}

// IsConsistencyError reports whether err wraps a *ConsistencyError.
func IsConsistencyError(err error) bool {
	var consistencyError *ConsistencyError
	return errors.As(err, &consistencyError)
}

// LoadError is the failure of a lazy child load.
type LoadError struct {
	NodeID string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading children of %q: %v", e.NodeID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ErrNodeDestroyed is the cause of a load requested on a node that has
// already been removed from its tree.
var ErrNodeDestroyed = errors.New("node destroyed")

func unknownParent(op, id string) *ConsistencyError {
	return &ConsistencyError{Op: op, Kind: "parent", ID: id, Detail: "not registered"}
}

func unknownNode(op, id string) *ConsistencyError {
	return &ConsistencyError{Op: op, Kind: "node", ID: id, Detail: "not registered"}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
