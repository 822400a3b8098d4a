package rbac

import "strings"

// Wildcard marks a trailing prefix match in an action string.
const Wildcard = "*"

// Matches reports whether a held permission satisfies a requested action.
//
// Equal strings match. A held permission ending in Wildcard grants every
// action sharing its prefix; a requested action ending in Wildcard is
// satisfied by any held permission sharing its prefix. Only one trailing
// marker is interpreted and the held side is checked first; a Wildcard
// anywhere else is literal.
func Matches(held, requested string) bool {
	if held == requested {
		return true
	}
	if strings.HasSuffix(held, Wildcard) {
		return strings.HasPrefix(requested, strings.TrimSuffix(held, Wildcard))
	}
	if strings.HasSuffix(requested, Wildcard) {
		return strings.HasPrefix(held, strings.TrimSuffix(requested, Wildcard))
	}
	return false
}
