// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package outline specializes a lib/tree Tree for page navigation.
//
// Every node of an outline is a page that may own a [DetailTable],
// whose rows describe the node's children, and a [DetailForm]. Both
// are created and destroyed by the authority and resolved by id
// through a [Registry].
//
// Rows and nodes arrive independently. A row names its node by id;
// when the node is not there yet the row waits in a pending map and is
// linked the moment the node is inserted under the table's owner. When
// a node is removed, its own detail table is destroyed. The
// [DetailTableFilter] hides nodes whose row the detail table filters
// out.
//
// For the selected node the outline chooses what to show: the detail
// form if it is visible and the user has not hidden it, else the
// detail table if visible, else nothing (the default detail form when
// nothing is selected). Selection changes and form destruction
// schedule the evaluation after a short delay so a burst of triggers
// evaluates once.
package outline
