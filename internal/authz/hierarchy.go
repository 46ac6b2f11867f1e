package authz

import "context"

// EdgeLookup returns the child role ids a composite role includes.
type EdgeLookup func(ctx context.Context, roleID int64) ([]int64, error)

// ResolveRoles expands the directly assigned role ids into the full set of
// roles reachable through composite-role edges. The result always contains
// the input ids. Traversal is an iterative worklist with a visited set, so
// cyclic edge data terminates and already-visited roles are never re-queued.
func ResolveRoles(ctx context.Context, roleIDs []int64, edges EdgeLookup) (map[int64]struct{}, error) {
	resolved := make(map[int64]struct{}, len(roleIDs))
	stack := make([]int64, 0, len(roleIDs))
	stack = append(stack, roleIDs...)

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := resolved[id]; seen {
			continue
		}
		resolved[id] = struct{}{}
		if edges == nil {
			continue
		}
		children, err := edges(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if _, seen := resolved[child]; !seen {
				stack = append(stack, child)
			}
		}
	}
	return resolved, nil
}
