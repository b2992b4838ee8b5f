// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ErrorCategory classifies command failures and picks the exit code.
type ErrorCategory string

const (
	// CategoryValidation means the invocation was wrong: bad flags,
	// missing arguments, unreadable config.
	CategoryValidation ErrorCategory = "validation"

	// CategoryInconsistent means the client tree and the authority
	// disagreed. Replay uses it to fail on a divergent script.
	CategoryInconsistent ErrorCategory = "inconsistent"

	// CategoryTransient means the authority could not be reached.
	CategoryTransient ErrorCategory = "transient"

	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized error. main passes its exit code to
// os.Exit.
type ToolError struct {
	Category ErrorCategory
	Err      error
}

func (e *ToolError) Error() string { return e.Err.Error() }
func (e *ToolError) Unwrap() error { return e.Err }

// ExitCode maps the category to the process exit status.
func (e *ToolError) ExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryInconsistent:
		return 3
	case CategoryTransient:
		return 4
	default:
		return 1
	}
}

// Validation creates a validation error: the caller provided bad input.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// Inconsistent creates an error for a tree consistency failure.
func Inconsistent(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInconsistent, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error: a temporary failure that may succeed on retry.
func Transient(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error: an unexpected failure, bug, or I/O error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}
