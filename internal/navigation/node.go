// Package navigation computes the visible navigation tree for a granted
// permission set and evaluates requested routes against it.
package navigation

import (
	"fmt"

	"github.com/atrium-platform/atrium-admin/internal/authz"
)

// Kind distinguishes the three node shapes the visibility rules reason about.
type Kind int

const (
	// KindLeaf has no children; visible iff its permission is granted, or
	// always when it carries no permission.
	KindLeaf Kind = iota
	// KindGated has children and its own permission; visibility depends on
	// that permission alone.
	KindGated
	// KindGroup has children and no permission; visibility is derived from
	// the children and never assigned directly.
	KindGroup
)

// Node is one entry in a navigation tree: a page, tab or sub-tab.
// Path is the navigable target for leaves and gated containers; groups carry
// no target of their own.
type Node struct {
	Key        string
	Label      string
	Path       string
	Permission authz.Permission
	Children   []Node
}

// Kind derives the node shape from the presence of children and permission.
func (n Node) Kind() Kind {
	if len(n.Children) == 0 {
		return KindLeaf
	}
	if n.Permission != "" {
		return KindGated
	}
	return KindGroup
}

// Validate checks structural rules over the node and its subtree.
func (n Node) Validate() error {
	if n.Key == "" {
		return fmt.Errorf("navigation: node without key (label %q)", n.Label)
	}
	if n.Permission != "" && !n.Permission.Valid() {
		return fmt.Errorf("navigation: node %q has malformed permission %q", n.Key, n.Permission)
	}
	if n.Kind() == KindLeaf && n.Permission != "" && n.Path == "" {
		return fmt.Errorf("navigation: gated leaf %q has no path", n.Key)
	}
	seen := make(map[string]struct{}, len(n.Children))
	for _, child := range n.Children {
		if _, dup := seen[child.Key]; dup {
			return fmt.Errorf("navigation: node %q has duplicate child key %q", n.Key, child.Key)
		}
		seen[child.Key] = struct{}{}
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (n Node) child(key string) (Node, bool) {
	for _, c := range n.Children {
		if c.Key == key {
			return c, true
		}
	}
	return Node{}, false
}
