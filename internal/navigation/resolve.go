package navigation

import (
	"net/url"
	"strings"

	"github.com/atrium-platform/atrium-admin/internal/authz"
)

// ResolveVisibleTree prunes the tree to the nodes the granted set may see.
// The input is never mutated; the result is a fresh copy.
//
// Visibility follows the parent-visibility rules:
//   - a leaf with a permission is visible iff the permission is granted;
//     a permissionless leaf is public and always visible;
//   - a gated container is visible iff its own permission is granted,
//     independent of its children; its subtree is still pruned;
//   - a group (children, no permission) is visible iff at least one child
//     resolves visible, regardless of which position that child occupies.
//
// Children keep their declared relative order. A group that becomes visible
// through its children exposes no path of its own.
func ResolveVisibleTree(tree []Node, granted authz.Set) []Node {
	out := make([]Node, 0, len(tree))
	for _, n := range tree {
		if resolved, visible := resolveNode(n, granted); visible {
			out = append(out, resolved)
		}
	}
	return out
}

func resolveNode(n Node, granted authz.Set) (Node, bool) {
	switch n.Kind() {
	case KindLeaf:
		if n.Permission == "" {
			return copyNode(n, nil), true
		}
		if authz.Matches(n.Permission, granted) {
			return copyNode(n, nil), true
		}
		return Node{}, false

	case KindGated:
		if !authz.Matches(n.Permission, granted) {
			return Node{}, false
		}
		return copyNode(n, ResolveVisibleTree(n.Children, granted)), true

	default: // KindGroup: derived visibility, bottom-up
		children := ResolveVisibleTree(n.Children, granted)
		if len(children) == 0 {
			return Node{}, false
		}
		resolved := copyNode(n, children)
		resolved.Path = "" // expand-only grouping, not a navigable target
		return resolved, true
	}
}

func copyNode(n Node, children []Node) Node {
	return Node{
		Key:        n.Key,
		Label:      n.Label,
		Path:       n.Path,
		Permission: n.Permission,
		Children:   children,
	}
}

// FirstAllowedTarget resolves the tree and returns the path of the first
// visible leaf in declared registry order, depth-first. The second return is
// false when nothing in the tree is reachable.
func FirstAllowedTarget(tree []Node, granted authz.Set) (string, bool) {
	return firstLeafPath(ResolveVisibleTree(tree, granted))
}

func firstLeafPath(resolved []Node) (string, bool) {
	for _, n := range resolved {
		if n.Kind() == KindLeaf {
			if n.Path != "" {
				return n.Path, true
			}
			continue
		}
		if path, ok := firstLeafPath(n.Children); ok {
			return path, ok
		}
	}
	return "", false
}

// RouteDecision is the outcome of evaluating a requested route.
type RouteDecision string

const (
	DecisionAllow    RouteDecision = "ALLOW"
	DecisionRedirect RouteDecision = "REDIRECT"
)

// RouteResult carries the decision and, for redirects, the canonical target.
// An empty target on a redirect is terminal: nothing in the tree is
// reachable and the caller maps this to its denied state.
type RouteResult struct {
	Decision RouteDecision
	Target   string
}

// EvaluateRoute checks whether the fully qualified request (path + tab +
// subTab) lands on a visible leaf. If it does the decision is ALLOW;
// otherwise the decision redirects to the first allowed target under the
// nearest visible ancestor, falling back to the whole tree. Applying the
// function to its own redirect target yields ALLOW or the same terminal
// redirect, never an oscillation.
func EvaluateRoute(tree []Node, granted authz.Set, path, tab, subTab string) RouteResult {
	resolved := ResolveVisibleTree(tree, granted)

	page, pageOK := findPage(resolved, path)
	if pageOK {
		if target, ok := matchRequested(page, tab, subTab); ok {
			return RouteResult{Decision: DecisionAllow, Target: target}
		}
		// Requested tab/sub-tab not visible; the page subtree is the
		// nearest resolvable ancestor.
		if target, ok := firstLeafPath([]Node{page}); ok {
			if sameTarget(target, path, tab, subTab) {
				return RouteResult{Decision: DecisionAllow, Target: target}
			}
			return RouteResult{Decision: DecisionRedirect, Target: target}
		}
	}

	if target, ok := firstLeafPath(resolved); ok {
		if sameTarget(target, path, tab, subTab) {
			return RouteResult{Decision: DecisionAllow, Target: target}
		}
		return RouteResult{Decision: DecisionRedirect, Target: target}
	}
	return RouteResult{Decision: DecisionRedirect, Target: ""}
}

// EvaluateTarget evaluates a canonical target string as produced by a
// previous redirect.
func EvaluateTarget(tree []Node, granted authz.Set, target string) RouteResult {
	path, tab, subTab := SplitTarget(target)
	return EvaluateRoute(tree, granted, path, tab, subTab)
}

// SplitTarget decomposes a canonical target ("/settings?tab=x&subTab=y")
// into its path, tab and sub-tab components.
func SplitTarget(target string) (path, tab, subTab string) {
	u, err := url.Parse(target)
	if err != nil {
		return target, "", ""
	}
	q := u.Query()
	return u.Path, q.Get("tab"), q.Get("subTab")
}

func findPage(resolved []Node, path string) (Node, bool) {
	if path == "" {
		return Node{}, false
	}
	for _, n := range resolved {
		if n.Path != "" && pagePathOf(n.Path) == pagePathOf(path) {
			return n, true
		}
		if n.Path == "" && n.Kind() != KindLeaf {
			// Groups lose their path on resolution; match on children.
			if _, ok := firstChildWithPagePath(n, path); ok {
				return n, true
			}
		}
	}
	return Node{}, false
}

func firstChildWithPagePath(n Node, path string) (Node, bool) {
	for _, c := range n.Children {
		if c.Path != "" && pagePathOf(c.Path) == pagePathOf(path) {
			return c, true
		}
		if sub, ok := firstChildWithPagePath(c, path); ok {
			return sub, true
		}
	}
	return Node{}, false
}

func pagePathOf(target string) string {
	if idx := strings.IndexByte(target, '?'); idx >= 0 {
		return target[:idx]
	}
	return target
}

func matchRequested(page Node, tab, subTab string) (string, bool) {
	if tab == "" {
		if page.Kind() == KindLeaf {
			return page.Path, true
		}
		return "", false
	}
	tabNode, ok := page.child(tab)
	if !ok {
		return "", false
	}
	if subTab == "" {
		if tabNode.Kind() == KindLeaf {
			return tabNode.Path, true
		}
		return "", false
	}
	subNode, ok := tabNode.child(subTab)
	if !ok || subNode.Kind() != KindLeaf {
		return "", false
	}
	return subNode.Path, true
}

func sameTarget(target, path, tab, subTab string) bool {
	tp, tt, ts := SplitTarget(target)
	return tp == path && tt == tab && ts == subTab
}
