// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/treesync/lib/outline"
	"github.com/bureau-foundation/treesync/lib/tree"
)

const (
	markExpanded  = "▾"
	markCollapsed = "▸"
	markLeaf      = "•"
	markLoading   = "…"
	indentWidth   = 2
	ellipsis      = "…"
)

// Options configures a [Renderer].
type Options struct {
	// Output is where color detection looks. Defaults to os.Stdout.
	// The renderer never writes to it.
	Output io.Writer

	// Profile forces the color profile. The zero value is
	// termenv.TrueColor; use termenv.Ascii for plain text.
	Profile termenv.Profile

	// Width truncates every line to this many cells. Zero disables
	// truncation.
	Width int

	Theme *Theme

	// OnBatch is told about every mutation batch of the attached
	// tree, before OnFrame. It runs under the tree's session lock.
	OnBatch func(batch tree.Batch)

	// OnFrame receives the rendered tree after every mutation batch
	// of the attached tree. It runs under the tree's session lock.
	OnFrame func(frame string)
}

// Renderer turns trees into terminal text.
type Renderer struct {
	lip     *lipgloss.Renderer
	theme   Theme
	width   int
	onBatch func(tree.Batch)
	onFrame func(string)

	tree   *tree.Tree
	frames int
	last   tree.Batch
}

// New creates a renderer.
func New(options Options) *Renderer {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	theme := DefaultTheme
	if options.Theme != nil {
		theme = *options.Theme
	}
	// SetColorProfile is needed on top of WithProfile: without it the
	// lipgloss renderer re-detects the profile from the environment.
	lip := lipgloss.NewRenderer(options.Output, termenv.WithProfile(options.Profile))
	lip.SetColorProfile(options.Profile)
	return &Renderer{
		lip:     lip,
		theme:   theme,
		width:   options.Width,
		onBatch: options.OnBatch,
		onFrame: options.OnFrame,
	}
}

// Attach makes r the renderer of t.
func (r *Renderer) Attach(t *tree.Tree) {
	r.tree = t
	t.SetRenderer(r)
}

// Render implements [tree.Renderer].
func (r *Renderer) Render(batch tree.Batch) {
	r.frames++
	r.last = batch
	if r.onBatch != nil {
		r.onBatch(batch)
	}
	if r.onFrame != nil && r.tree != nil {
		r.onFrame(r.Tree(r.tree))
	}
}

// Frames returns how many batches the attached tree has reported.
func (r *Renderer) Frames() int { return r.frames }

// SetWidth changes the truncation width. Zero disables truncation.
func (r *Renderer) SetWidth(width int) { r.width = width }

// Header styles a title line.
func (r *Renderer) Header(text string) string {
	return r.truncate(r.lip.NewStyle().Foreground(r.theme.HeaderForeground).Bold(true).Render(text))
}

// Faint styles secondary text such as help and status lines.
func (r *Renderer) Faint(text string) string {
	return r.truncate(r.lip.NewStyle().Foreground(r.theme.FaintText).Render(text))
}

// LastBatch returns the most recent batch reported by the attached tree.
func (r *Renderer) LastBatch() tree.Batch { return r.last }

// Tree renders the visible nodes of t, one per line, indented by level.
func (r *Renderer) Tree(t *tree.Tree) string {
	visible := t.VisibleNodes()
	if len(visible) == 0 {
		return r.lip.NewStyle().Foreground(r.theme.FaintText).Render("(empty)")
	}
	lines := make([]string, 0, len(visible))
	for _, node := range visible {
		lines = append(lines, r.Node(node))
	}
	return strings.Join(lines, "\n")
}

// Node renders one line for node: indentation, expansion mark, check
// box when the tree is checkable, and the decorated text.
func (r *Renderer) Node(node *tree.Node) string {
	decoration := node.Decoration()

	var builder strings.Builder
	builder.WriteString(strings.Repeat(" ", node.Level()*indentWidth))

	markStyle := r.lip.NewStyle().Foreground(r.theme.MarkForeground)
	builder.WriteString(markStyle.Render(expansionMark(node, decoration)))
	builder.WriteByte(' ')

	if node.Tree() != nil && node.Tree().Checkable() {
		builder.WriteString(r.checkBox(decoration))
		builder.WriteByte(' ')
	}

	builder.WriteString(r.textStyle(node, decoration).Render(decoration.Text))

	if decoration.HasClass("loading") {
		builder.WriteByte(' ')
		builder.WriteString(r.lip.NewStyle().Foreground(r.theme.LoadingForeground).Render(markLoading))
	}
	return r.truncate(builder.String())
}

func expansionMark(node *tree.Node, decoration tree.Decoration) string {
	switch {
	case decoration.HasClass("leaf"):
		return markLeaf
	case node.Expanded():
		return markExpanded
	case node.HasChildNodes():
		return markCollapsed
	default:
		return markLeaf
	}
}

func (r *Renderer) checkBox(decoration tree.Decoration) string {
	switch {
	case decoration.HasClass("checked"):
		return r.lip.NewStyle().Foreground(r.theme.CheckedForeground).Render("[x]")
	case decoration.HasClass("children-checked"):
		return r.lip.NewStyle().Foreground(r.theme.CheckedForeground).Render("[-]")
	default:
		return r.lip.NewStyle().Foreground(r.theme.MarkForeground).Render("[ ]")
	}
}

func (r *Renderer) textStyle(node *tree.Node, decoration tree.Decoration) lipgloss.Style {
	style := r.lip.NewStyle().Foreground(r.theme.NormalText)
	nodeStyle := node.Style()
	if color, ok := cellColor(nodeStyle.ForegroundColor); ok {
		style = style.Foreground(color)
	}
	if color, ok := cellColor(nodeStyle.BackgroundColor); ok {
		style = style.Background(color)
	}
	applyFont(&style, nodeStyle.Font)

	if decoration.HasClass("disabled") || decoration.HasClass("inactive") {
		style = style.Foreground(r.theme.FaintText).Faint(true)
	}
	if decoration.HasClass("inactive") {
		style = style.Italic(true)
	}
	if node.Selected() {
		style = style.Foreground(r.theme.SelectedForeground).
			Background(r.theme.SelectedBackground).
			Bold(true)
	}
	return style
}

// cellColor converts a cell color to a lipgloss color. Cells carry
// bare hex ("ff8800"), prefixed hex, or ANSI codes.
func cellColor(value string) (lipgloss.Color, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if len(value) == 6 && isHex(value) {
		return lipgloss.Color("#" + value), true
	}
	return lipgloss.Color(value), true
}

func isHex(value string) bool {
	for _, character := range value {
		switch {
		case character >= '0' && character <= '9':
		case character >= 'a' && character <= 'f':
		case character >= 'A' && character <= 'F':
		default:
			return false
		}
	}
	return true
}

// applyFont honors the style words of a font spec such as "bold italic".
// Family and size have no terminal equivalent.
func applyFont(style *lipgloss.Style, font string) {
	for _, word := range strings.Fields(strings.ToLower(font)) {
		switch word {
		case "bold":
			*style = style.Bold(true)
		case "italic":
			*style = style.Italic(true)
		case "underline":
			*style = style.Underline(true)
		}
	}
}

func (r *Renderer) truncate(line string) string {
	if r.width <= 0 || ansi.StringWidth(line) <= r.width {
		return line
	}
	return ansi.Truncate(line, r.width, ellipsis)
}

// Content renders outline detail content: a header naming the form or
// table, and for a table its filter-accepted rows with the selected
// ones marked.
func (r *Renderer) Content(content outline.Content) string {
	header := r.lip.NewStyle().Foreground(r.theme.HeaderForeground).Bold(true)
	switch content.Kind {
	case outline.ContentForm:
		return r.truncate(header.Render(fmt.Sprintf("form %s", content.Form.ID())))
	case outline.ContentTable:
		return r.table(content.Table, header)
	default:
		return r.lip.NewStyle().Foreground(r.theme.FaintText).Render("(no content)")
	}
}

func (r *Renderer) table(table *outline.DetailTable, header lipgloss.Style) string {
	selected := make(map[*outline.Row]bool)
	for _, row := range table.SelectedRows() {
		selected[row] = true
	}
	rows := table.Rows()
	lines := []string{r.truncate(header.Render(fmt.Sprintf("table %s (%d rows)", table.ID(), len(rows))))}
	separator := r.lip.NewStyle().Foreground(r.theme.BorderColor).Render(" │ ")
	for _, row := range rows {
		if !row.FilterAccepted() {
			continue
		}
		style := r.lip.NewStyle().Foreground(r.theme.NormalText)
		prefix := "  "
		if selected[row] {
			style = style.Foreground(r.theme.SelectedForeground).Background(r.theme.SelectedBackground)
			prefix = "> "
		}
		cells := make([]string, 0, len(row.Cells()))
		for _, cell := range row.Cells() {
			cells = append(cells, style.Render(cell))
		}
		lines = append(lines, r.truncate(prefix+strings.Join(cells, separator)))
	}
	return strings.Join(lines, "\n")
}
