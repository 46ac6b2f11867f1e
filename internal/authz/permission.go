// Package authz implements the authorization decision engine: permission
// matching, role hierarchy resolution and effective permission calculation.
package authz

import (
	"sort"
	"strings"
)

// Permission is a dot-segmented capability slug, e.g. "system.settings.security.read".
// Segments run general to specific; the final segment is conventionally an action.
type Permission string

// Recognized action segments.
const (
	ActionRead    = "read"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionApprove = "approve"
	ActionExport  = "export"
	ActionManage  = "manage"
	ActionExecute = "execute"
)

var actionSegments = map[string]struct{}{
	ActionRead:    {},
	ActionCreate:  {},
	ActionUpdate:  {},
	ActionDelete:  {},
	ActionApprove: {},
	ActionExport:  {},
	ActionManage:  {},
	ActionExecute: {},
}

// Write actions that imply read access on the same base path.
var writeActions = map[string]struct{}{
	ActionCreate:  {},
	ActionUpdate:  {},
	ActionDelete:  {},
	ActionApprove: {},
}

// Valid reports whether p is a well-formed slug: lowercase dot-separated
// segments with no empty segment.
func (p Permission) Valid() bool {
	if p == "" {
		return false
	}
	for _, seg := range strings.Split(string(p), ".") {
		if seg == "" {
			return false
		}
		for _, r := range seg {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
				return false
			}
		}
	}
	return true
}

// Base returns the slug with a trailing action segment removed. Slugs without
// a recognized action segment are returned unchanged.
func (p Permission) Base() string {
	s := string(p)
	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		return s
	}
	if _, ok := actionSegments[s[idx+1:]]; ok {
		return s[:idx]
	}
	return s
}

// Action returns the trailing action segment, or "" when the slug does not
// end in a recognized action.
func (p Permission) Action() string {
	s := string(p)
	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		return ""
	}
	if _, ok := actionSegments[s[idx+1:]]; ok {
		return s[idx+1:]
	}
	return ""
}

// Set is an unordered collection of permissions keyed by slug identity.
type Set map[Permission]struct{}

// NewSet builds a Set from the given permissions.
func NewSet(perms ...Permission) Set {
	set := make(Set, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports literal membership.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the set as a sorted slice.
func (s Set) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Matches reports whether the granted set satisfies the required permission.
// A grant satisfies a requirement when the slugs are equal, when their
// action-stripped bases are equal, or when the granted base is a strict
// dot-separated prefix of the required base (a broader permission implies its
// narrower descendants). No other fuzzy matching applies.
func Matches(required Permission, granted Set) bool {
	if granted.Has(required) {
		return true
	}
	requiredBase := required.Base()
	for g := range granted {
		grantedBase := g.Base()
		if grantedBase == requiredBase {
			return true
		}
		if strings.HasPrefix(requiredBase, grantedBase+".") {
			return true
		}
	}
	return false
}

// HasAny reports whether any of the required permissions is satisfied by the
// granted set. An empty required list never grants access (fail closed).
func HasAny(required []Permission, granted Set) bool {
	if len(required) == 0 {
		return false
	}
	for _, r := range required {
		if Matches(r, granted) {
			return true
		}
	}
	return false
}

// Normalize returns a copy of the granted set where every write-action grant
// (create, update, delete, approve) also carries the corresponding read grant.
// Idempotent; never removes entries.
func Normalize(granted Set) Set {
	out := make(Set, len(granted))
	for p := range granted {
		out[p] = struct{}{}
	}
	for p := range granted {
		action := p.Action()
		if _, ok := writeActions[action]; !ok {
			continue
		}
		read := Permission(p.Base() + "." + ActionRead)
		out[read] = struct{}{}
	}
	return out
}
