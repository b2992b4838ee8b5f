// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the viewer's key bindings.
type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Collapse  key.Binding // Collapse, or move to the parent when collapsed.
	Expand    key.Binding
	ExpandAll key.Binding
	Check     key.Binding
	Click     key.Binding
	Action    key.Binding

	FilterActivate key.Binding
	FilterClear    key.Binding

	Quit key.Binding
}

var defaultKeyMap = keyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Collapse: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h/←", "collapse"),
	),
	Expand: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("l/→", "expand"),
	),
	ExpandAll: key.NewBinding(
		key.WithKeys("*"),
		key.WithHelp("*", "expand all"),
	),
	Check: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "check"),
	),
	Click: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "click"),
	),
	Action: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "action"),
	),
	FilterActivate: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	FilterClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear filter"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (keys keyMap) help() []key.Binding {
	return []key.Binding{keys.Up, keys.Down, keys.Expand, keys.Collapse, keys.Check, keys.Action, keys.FilterActivate, keys.Quit}
}
