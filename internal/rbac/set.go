package rbac

import (
	"encoding/json"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// PermissionSet is an immutable set of held action strings. The zero value
// is an empty set that allows nothing but an empty requirement.
type PermissionSet struct {
	set mapset.Set[string]
}

// NewPermissionSet builds a set, trimming entries and dropping blanks.
func NewPermissionSet(perms ...string) PermissionSet {
	set := mapset.NewThreadUnsafeSetWithSize[string](len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set.Add(p)
	}
	return PermissionSet{set: set}
}

// Allows reports whether any required action is matched by any held
// permission. An empty requirement is always allowed.
func (p PermissionSet) Allows(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if p.set == nil {
		return false
	}
	for _, req := range required {
		if p.set.Contains(req) {
			return true
		}
	}
	for _, req := range required {
		if p.covers(req) {
			return true
		}
	}
	return false
}

// AllowsAll reports whether every required action is matched.
func (p PermissionSet) AllowsAll(required ...string) bool {
	for _, req := range required {
		if !p.Allows(req) {
			return false
		}
	}
	return true
}

func (p PermissionSet) covers(requested string) bool {
	found := false
	p.set.Each(func(held string) bool {
		if Matches(held, requested) {
			found = true
			return true
		}
		return false
	})
	return found
}

// Len returns the number of distinct held permissions.
func (p PermissionSet) Len() int {
	if p.set == nil {
		return 0
	}
	return p.set.Cardinality()
}

// Slice returns the held permissions sorted.
func (p PermissionSet) Slice() []string {
	if p.set == nil {
		return []string{}
	}
	out := p.set.ToSlice()
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (p PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Slice())
}
