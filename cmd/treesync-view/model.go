// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/treesync/lib/mirror"
	"github.com/bureau-foundation/treesync/lib/outline"
	"github.com/bureau-foundation/treesync/lib/poller"
	"github.com/bureau-foundation/treesync/lib/render"
	"github.com/bureau-foundation/treesync/lib/tree"
)

// Messages from the mirror's goroutines into the bubbletea loop.
type (
	frameMsg   struct{}
	statusMsg  struct{ status poller.Status }
	failureMsg struct{ err error }
)

// events carries mirror callbacks to the model. Sends never block:
// the callbacks run under the session lock or on the poll goroutine.
// A dropped frame is harmless since the next View reads the tree, and
// the latest failure is kept aside so it cannot be lost.
type events struct {
	ch chan tea.Msg

	mu      sync.Mutex
	failure error
}

func newEvents() *events { return &events{ch: make(chan tea.Msg, 64)} }

func (e *events) send(msg tea.Msg) {
	select {
	case e.ch <- msg:
	default:
	}
}

func (e *events) frame()                                  { e.send(frameMsg{}) }
func (e *events) status(status poller.Status)             { e.send(statusMsg{status: status}) }
func (e *events) SetOutlineContent(outline.Content, bool) { e.send(frameMsg{}) }

func (e *events) fail(err error) {
	e.mu.Lock()
	e.failure = err
	e.mu.Unlock()
	e.send(failureMsg{err: err})
}

func (e *events) lastFailure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failure
}

func (e *events) listen() tea.Cmd {
	return func() tea.Msg { return <-e.ch }
}

// model is the viewer: a tree pane, the outline content when the tree
// is an outline, and a status line. Cursor movement is selection, so
// what the user moves over is what the authority is told about.
type model struct {
	mirror   *mirror.Mirror
	renderer *render.Renderer
	events   *events
	keys     keyMap
	target   string

	width  int
	height int

	filtering    bool
	filter       string
	removeFilter func()

	status poller.Status
	err    error
}

func newModel(m *mirror.Mirror, renderer *render.Renderer, ev *events, target string) model {
	return model{
		mirror:   m,
		renderer: renderer,
		events:   ev,
		keys:     defaultKeyMap,
		target:   target,
		status:   poller.StatusRunning,
	}
}

func (model model) Init() tea.Cmd { return model.events.listen() }

func (model model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.renderer.SetWidth(message.Width)
		return model, nil

	case tea.FocusMsg:
		model.setHidden(false)
		return model, nil

	case tea.BlurMsg:
		model.setHidden(true)
		return model, nil

	case frameMsg:
		return model, model.events.listen()

	case statusMsg:
		model.status = message.status
		return model, model.events.listen()

	case failureMsg:
		model.err = message.err
		if tree.IsConsistencyError(message.err) {
			return model, tea.Quit
		}
		return model, model.events.listen()

	case tea.KeyMsg:
		if model.filtering {
			return model.handleFilterKeys(message)
		}
		return model.handleKeys(message)
	}
	return model, nil
}

func (model *model) setHidden(hidden bool) {
	if poll := model.mirror.Poller(); poll != nil {
		poll.SetHidden(hidden)
	}
}

func (model model) handleKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(message, model.keys.Up):
		model.move(-1)
	case key.Matches(message, model.keys.Down):
		model.move(1)
	case key.Matches(message, model.keys.Collapse):
		model.collapse()
	case key.Matches(message, model.keys.Expand):
		model.onSelected(func(t *tree.Tree, node *tree.Node) error {
			if node.Expanded() || !node.HasChildNodes() {
				return nil
			}
			return t.ExpandNode(node, true)
		})
	case key.Matches(message, model.keys.ExpandAll):
		model.onSelected(func(t *tree.Tree, node *tree.Node) error {
			return t.SetNodesExpandedRecursive([]*tree.Node{node}, true, tree.ExpandOptions{Notify: true})
		})
	case key.Matches(message, model.keys.Check):
		model.onSelected(func(t *tree.Tree, node *tree.Node) error {
			return t.CheckNodes([]*tree.Node{node}, !node.Checked(), tree.CheckOptions{Notify: true})
		})
	case key.Matches(message, model.keys.Click):
		model.onSelected(func(t *tree.Tree, node *tree.Node) error { return t.ClickNode(node) })
	case key.Matches(message, model.keys.Action):
		model.onSelected(func(t *tree.Tree, node *tree.Node) error { return t.NodeAction(node) })
	case key.Matches(message, model.keys.FilterActivate):
		model.filtering = true
	case key.Matches(message, model.keys.FilterClear):
		model.filter = ""
		model.applyFilter()
	}
	return model, nil
}

func (model model) handleFilterKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch message.Type {
	case tea.KeyEsc:
		model.filtering = false
		model.filter = ""
	case tea.KeyEnter:
		model.filtering = false
		return model, nil
	case tea.KeyBackspace:
		if runes := []rune(model.filter); len(runes) > 0 {
			model.filter = string(runes[:len(runes)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		model.filter += string(message.Runes)
	case tea.KeyCtrlC:
		return model, tea.Quit
	default:
		return model, nil
	}
	model.applyFilter()
	return model, nil
}

// applyFilter replaces the fuzzy filter with one for the current text.
// removeFilter lives in the session, not the model copy, so it is read
// and written under the lock.
func (model *model) applyFilter() {
	pattern := model.filter
	model.mirror.Do(func() {
		if model.removeFilter != nil {
			model.removeFilter()
			model.removeFilter = nil
		}
		if pattern != "" {
			model.removeFilter = model.mirror.Tree().AddFilter(tree.NewFuzzyFilter(pattern))
		}
	})
}

// move selects the visible node delta rows away from the selection.
// Selection reports are debounced, so holding a key sends one.
func (model *model) move(delta int) {
	var err error
	model.mirror.Do(func() {
		t := model.mirror.Tree()
		visible := t.VisibleNodes()
		if len(visible) == 0 {
			return
		}
		next := 0
		if index := indexOf(visible, t.SelectedNode()); index >= 0 {
			next = min(max(index+delta, 0), len(visible)-1)
		}
		err = t.SelectNodes([]*tree.Node{visible[next]}, tree.SelectOptions{Notify: true, Debounce: true})
	})
	model.record(err)
}

func (model *model) collapse() {
	model.onSelected(func(t *tree.Tree, node *tree.Node) error {
		if node.Expanded() {
			return t.ExpandNode(node, false)
		}
		if parent := node.Parent(); parent != nil {
			return t.SelectNodes([]*tree.Node{parent}, tree.SelectOptions{Notify: true, Debounce: true})
		}
		return nil
	})
}

func (model *model) onSelected(fn func(t *tree.Tree, node *tree.Node) error) {
	var err error
	model.mirror.Do(func() {
		t := model.mirror.Tree()
		if node := t.SelectedNode(); node != nil {
			err = fn(t, node)
		}
	})
	model.record(err)
}

func (model *model) record(err error) {
	if err != nil {
		model.err = err
	}
}

func indexOf(nodes []*tree.Node, node *tree.Node) int {
	for i, candidate := range nodes {
		if candidate == node {
			return i
		}
	}
	return -1
}

func (model model) View() string {
	var body, content []string
	model.mirror.Do(func() {
		t := model.mirror.Tree()
		visible := t.VisibleNodes()
		if o := model.mirror.Outline(); o != nil {
			content = strings.Split(model.renderer.Content(o.Content()), "\n")
		}
		rows := len(visible)
		if model.height > 0 {
			rows = max(model.height-2-len(content), 1)
		}
		offset := scrollOffset(indexOf(visible, t.SelectedNode()), len(visible), rows)
		for _, node := range visible[offset:min(offset+rows, len(visible))] {
			body = append(body, model.renderer.Node(node))
		}
		if len(visible) == 0 {
			body = append(body, model.renderer.Faint("(empty)"))
		}
	})

	lines := []string{model.renderer.Header(model.header())}
	lines = append(lines, body...)
	lines = append(lines, content...)
	lines = append(lines, model.footer())
	return strings.Join(lines, "\n")
}

// scrollOffset keeps the selected row in the middle of the window
// where it can.
func scrollOffset(selected, total, rows int) int {
	if selected < 0 || total <= rows {
		return 0
	}
	return min(max(selected-rows/2, 0), total-rows)
}

func (model model) header() string {
	polling := model.status.String()
	if poll := model.mirror.Poller(); poll != nil && model.status == poller.StatusRunning {
		if poll.LongPolling() {
			polling += ", long"
		} else {
			polling += ", short"
		}
	}
	return fmt.Sprintf("%s  [%s]", model.target, polling)
}

func (model model) footer() string {
	if model.filtering {
		return "/" + model.filter
	}
	if model.err != nil {
		return model.renderer.Faint("error: " + model.err.Error())
	}
	var parts []string
	if model.filter != "" {
		parts = append(parts, fmt.Sprintf("filter %q", model.filter))
	}
	for _, binding := range model.keys.help() {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return model.renderer.Faint(strings.Join(parts, " · "))
}
