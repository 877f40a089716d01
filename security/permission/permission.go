// Package permission resolves a principal's roles into an effective
// permission set.
//
// The wildcard grant "*" is modeled as a distinct unrestricted variant
// rather than a string compared at check time: once any role carries the
// wildcard, the set answers every Has query without consulting members.
package permission

// Wildcard is the storage-level spelling of the all-permissions grant.
const Wildcard = "*"

// Role is the minimal role shape the resolver needs.
type Role struct {
	Name        string
	Permissions []string
}

// Set is an effective permission set: either unrestricted or a specific
// set of permission strings.
type Set struct {
	unrestricted bool
	members      map[string]struct{}
}

// NewSet builds a specific permission set.
func NewSet(permissions ...string) Set {
	s := Set{members: make(map[string]struct{}, len(permissions))}
	for _, p := range permissions {
		if p == Wildcard {
			return Unrestricted()
		}
		s.members[p] = struct{}{}
	}
	return s
}

// Unrestricted returns the set that grants everything.
func Unrestricted() Set {
	return Set{unrestricted: true}
}

// IsUnrestricted reports whether the set grants everything.
func (s Set) IsUnrestricted() bool {
	return s.unrestricted
}

// Has reports whether the set grants the permission.
func (s Set) Has(permission string) bool {
	if s.unrestricted {
		return true
	}
	_, ok := s.members[permission]
	return ok
}

// HasAny reports whether the set grants at least one of the permissions.
func (s Set) HasAny(permissions ...string) bool {
	if s.unrestricted {
		return true
	}
	for _, p := range permissions {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether the set grants every one of the permissions.
func (s Set) HasAll(permissions ...string) bool {
	if s.unrestricted {
		return true
	}
	for _, p := range permissions {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// Members returns the specific permissions, sorted order not guaranteed.
// Unrestricted sets report only the wildcard.
func (s Set) Members() []string {
	if s.unrestricted {
		return []string{Wildcard}
	}
	out := make([]string, 0, len(s.members))
	for p := range s.members {
		out = append(out, p)
	}
	return out
}

// Effective unions every role's permissions. Any role carrying the
// wildcard collapses the result to Unrestricted.
func Effective(roles []Role) Set {
	s := Set{members: make(map[string]struct{})}
	for _, role := range roles {
		for _, p := range role.Permissions {
			if p == Wildcard {
				return Unrestricted()
			}
			s.members[p] = struct{}{}
		}
	}
	return s
}

// HasRole reports whether any of the roles carries the given name.
func HasRole(roles []Role, name string) bool {
	for _, role := range roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

// RoleNames lists the role names in input order.
func RoleNames(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}
