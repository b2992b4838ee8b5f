// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import "github.com/charmbracelet/lipgloss"

// Theme is the color palette for rendered trees. Colors are lipgloss
// ANSI 256-color codes unless a node cell overrides them.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Marks: expansion arrows, check boxes, loading ellipsis.
	MarkForeground    lipgloss.Color
	CheckedForeground lipgloss.Color
	LoadingForeground lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
}

// DefaultTheme is the palette used when none is given.
var DefaultTheme = Theme{
	NormalText:         lipgloss.Color("252"),
	FaintText:          lipgloss.Color("243"),
	SelectedBackground: lipgloss.Color("237"),
	SelectedForeground: lipgloss.Color("255"),
	MarkForeground:     lipgloss.Color("245"),
	CheckedForeground:  lipgloss.Color("114"),
	LoadingForeground:  lipgloss.Color("179"),
	HeaderForeground:   lipgloss.Color("75"),
	BorderColor:        lipgloss.Color("240"),
}
