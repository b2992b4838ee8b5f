// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tree

import (
	"errors"
	"strings"

	"github.com/bureau-foundation/treesync/lib/schema"
)

// Variant is the behavior that differs between node kinds. A tree
// holds one Variant per [schema.NodeKind]; kinds without a registered
// variant behave like [StaticVariant].
type Variant interface {
	// LoadChildren starts loading the children of node and returns
	// the load handle. It is only called when no load is in flight
	// and the children are not loaded yet.
	LoadChildren(node *Node) *Load

	// Decorate computes the displayed text and style classes.
	Decorate(node *Node) Decoration

	// StyleSource chooses the colors and font for the node.
	StyleSource(node *Node) Style

	// IncrementalLoad reports whether node fetches its children on
	// demand, which makes an unloaded node count as having children.
	IncrementalLoad(node *Node) bool
}

// Decoration is the rendered form of a node.
type Decoration struct {
	Text    string
	Classes []string
	IconID  string
	Tooltip string
}

// HasClass reports whether class is among the decoration classes.
func (d Decoration) HasClass(class string) bool {
	for _, candidate := range d.Classes {
		if candidate == class {
			return true
		}
	}
	return false
}

// Style holds the colors and font of a node.
type Style struct {
	ForegroundColor string
	BackgroundColor string
	Font            string
	CSSClass        string
}

// StaticVariant is the default variant: all children come from the
// authority, so loading is a no-op.
type StaticVariant struct{}

func (StaticVariant) LoadChildren(*Node) *Load { return SucceededLoad() }

func (StaticVariant) Decorate(node *Node) Decoration {
	return decorateCell(node, node.cell.Text)
}

func (StaticVariant) StyleSource(node *Node) Style { return cellStyle(node.cell) }

func (StaticVariant) IncrementalLoad(*Node) bool { return false }

func decorateCell(node *Node, text string) Decoration {
	decoration := Decoration{
		Text:    text,
		IconID:  node.cell.IconID,
		Tooltip: node.cell.TooltipText,
	}
	decoration.Classes = append(decoration.Classes, strings.Fields(node.cell.CSSClass)...)
	if node.leaf {
		decoration.Classes = append(decoration.Classes, "leaf")
	}
	if node.expanded {
		decoration.Classes = append(decoration.Classes, "expanded")
		if node.expandedLazy {
			decoration.Classes = append(decoration.Classes, "lazy")
		}
	}
	if node.checked {
		decoration.Classes = append(decoration.Classes, "checked")
	} else if node.childrenChecked {
		decoration.Classes = append(decoration.Classes, "children-checked")
	}
	if !node.enabled {
		decoration.Classes = append(decoration.Classes, "disabled")
	}
	if node.load != nil {
		decoration.Classes = append(decoration.Classes, "loading")
	}
	return decoration
}

func cellStyle(cell schema.Cell) Style {
	return Style{
		ForegroundColor: cell.ForegroundColor,
		BackgroundColor: cell.BackgroundColor,
		Font:            cell.Font,
		CSSClass:        cell.CSSClass,
	}
}

// LookupFetcher fetches lookup rows. FetchChildren must call deliver
// exactly once, under the lock of the session that owns the tree,
// either before returning or later.
type LookupFetcher interface {
	FetchChildren(parentKey string, deliver func([]schema.NodeData, error))
}

// LookupVariant backs nodes with lookup rows. With Incremental set the
// children of a node are fetched by parent key when first needed and
// inserted through [Tree.InsertNodes]; otherwise the whole hierarchy
// arrives up front.
//
// Rows whose lookup record is inactive are shown with an "inactive"
// class and an "(inactive)" suffix.
type LookupVariant struct {
	Fetcher     LookupFetcher
	Incremental bool
}

// ErrNoFetcher fails incremental loads of a LookupVariant without a
// fetcher.
var ErrNoFetcher = errors.New("lookup variant has no fetcher")

func (v LookupVariant) LoadChildren(node *Node) *Load {
	if !v.Incremental {
		return SucceededLoad()
	}
	if v.Fetcher == nil {
		return FailedLoad(&LoadError{NodeID: node.id, Err: ErrNoFetcher})
	}

	parentKey := node.id
	if node.lookup != nil && node.lookup.Key != "" {
		parentKey = node.lookup.Key
	}

	load := NewLoad()
	v.Fetcher.FetchChildren(parentKey, func(rows []schema.NodeData, err error) {
		if err != nil {
			load.Reject(&LoadError{NodeID: node.id, Err: err})
			return
		}
		if node.destroyed {
			load.Reject(&LoadError{NodeID: node.id, Err: ErrNodeDestroyed})
			return
		}
		fresh := make([]schema.NodeData, 0, len(rows))
		for _, row := range rows {
			if _, exists := node.tree.nodes[row.ID]; exists {
				continue
			}
			if row.Kind == schema.NodeKindStatic {
				row.Kind = schema.NodeKindLookup
			}
			fresh = append(fresh, row)
		}
		if _, err := node.tree.InsertNodes(fresh, node); err != nil {
			load.Reject(&LoadError{NodeID: node.id, Err: err})
			return
		}
		load.Resolve()
	})
	return load
}

func (v LookupVariant) Decorate(node *Node) Decoration {
	text := node.cell.Text
	if node.lookup != nil && node.lookup.Text != "" {
		text = node.lookup.Text
	}
	decoration := decorateCell(node, text)
	if node.lookup != nil && !node.lookup.Active {
		decoration.Text += " (inactive)"
		decoration.Classes = append(decoration.Classes, "inactive")
	}
	return decoration
}

func (v LookupVariant) StyleSource(node *Node) Style {
	if node.lookup == nil {
		return cellStyle(node.cell)
	}
	return Style{
		ForegroundColor: node.lookup.ForegroundColor,
		BackgroundColor: node.lookup.BackgroundColor,
		Font:            node.lookup.Font,
		CSSClass:        node.lookup.CSSClass,
	}
}

func (v LookupVariant) IncrementalLoad(*Node) bool { return v.Incremental }

// RemoteVariant asks the authority for children. Request sends the
// loadChildren command; the load stays pending until
// [Tree.CompleteLoad] is called for the node, normally when the
// childrenLoaded delta arrives.
type RemoteVariant struct {
	Request func(node *Node) error
}

func (v RemoteVariant) LoadChildren(node *Node) *Load {
	if v.Request == nil {
		return FailedLoad(&LoadError{NodeID: node.id, Err: errors.New("no loadChildren sender")})
	}
	if err := v.Request(node); err != nil {
		return FailedLoad(&LoadError{NodeID: node.id, Err: err})
	}
	return NewLoad()
}

func (RemoteVariant) Decorate(node *Node) Decoration { return decorateCell(node, node.cell.Text) }

func (RemoteVariant) StyleSource(node *Node) Style { return cellStyle(node.cell) }

func (RemoteVariant) IncrementalLoad(*Node) bool { return true }
