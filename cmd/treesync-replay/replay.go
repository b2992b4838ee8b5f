// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/treesync/cmd/internal/cli"
	"github.com/bureau-foundation/treesync/lib/journal"
	"github.com/bureau-foundation/treesync/lib/mirror"
	"github.com/bureau-foundation/treesync/lib/render"
	"github.com/bureau-foundation/treesync/lib/schema"
	"github.com/bureau-foundation/treesync/lib/tree"
	"github.com/bureau-foundation/treesync/lib/treeadapter"
)

type replayOptions struct {
	Outline     bool
	Checkable   bool
	MultiSelect bool

	// Record, if set, journals every delta applied.
	Record *journal.Writer

	// Trace, if set, receives every intermediate frame, rendered with
	// Render.
	Trace  io.Writer
	Render render.Options

	Metrics *treeadapter.Metrics
	Logger  *slog.Logger
}

// replayer applies a delta sequence to local mirrors, one per target,
// created on first use.
type replayer struct {
	options replayOptions
	mirrors map[string]*mirror.Mirror
	order   []string
	applied int
}

func newReplayer(options replayOptions) *replayer {
	return &replayer{options: options, mirrors: make(map[string]*mirror.Mirror)}
}

func (r *replayer) mirror(target string) *mirror.Mirror {
	if m, ok := r.mirrors[target]; ok {
		return m
	}
	m := mirror.NewLocal(mirror.Options{
		Target:      target,
		MultiSelect: r.options.MultiSelect,
		Checkable:   r.options.Checkable,
		MultiCheck:  r.options.Checkable,
		Outline:     r.options.Outline,
		Journal:     r.options.Record,
		Metrics:     r.options.Metrics,
		Logger:      r.options.Logger,
	}, nil)
	r.mirrors[target] = m
	r.order = append(r.order, target)
	if r.options.Trace != nil {
		r.trace(m, target)
	}
	return m
}

func (r *replayer) trace(m *mirror.Mirror, target string) {
	var renderer *render.Renderer
	options := r.options.Render
	options.OnFrame = func(frame string) {
		fmt.Fprintf(r.options.Trace, "-- %s #%d\n%s\n", target, renderer.Frames(), frame)
	}
	renderer = render.New(options)
	m.Do(func() { renderer.Attach(m.Tree()) })
}

// apply delivers deltas in order and stops at the first failure. A
// consistency failure is reported as such so the exit status tells a
// diverged script apart from a malformed one.
func (r *replayer) apply(deltas []schema.Delta) error {
	for i, delta := range deltas {
		if delta.Target == "" {
			return cli.Validation("delta %d (%s) has no target", i+1, delta)
		}
		if err := r.mirror(delta.Target).Deliver([]schema.Delta{delta}); err != nil {
			if tree.IsConsistencyError(err) {
				return cli.Inconsistent("delta %d (%s): %w", i+1, delta, err)
			}
			return cli.Validation("delta %d (%s): %w", i+1, delta, err)
		}
		r.applied++
	}
	return nil
}

// render writes every target's tree, and its outline content when
// outlines are on, in order of first appearance.
func (r *replayer) render(w io.Writer, renderer *render.Renderer) {
	for i, target := range r.order {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %s\n", target)
		m := r.mirrors[target]
		m.Do(func() {
			fmt.Fprintln(w, renderer.Tree(m.Tree()))
			if o := m.Outline(); o != nil {
				content := o.EvaluateContent(m.Tree().SelectedNode())
				fmt.Fprintln(w, renderer.Content(content))
			}
		})
	}
}

func (r *replayer) close() {
	for _, target := range r.order {
		r.mirrors[target].Close()
	}
}

// writeMetrics prints the non-zero adapter counters of gatherer.
func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	var lines []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			value := metric.GetCounter().GetValue()
			if value == 0 {
				continue
			}
			var labels []string
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName()+"="+label.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", family.GetName(), strings.Join(labels, ","), value))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return nil
}
