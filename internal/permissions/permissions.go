// Package permissions decides who may request summaries.
package permissions

// Gate is a role-membership predicate over a configured allow-list.
type Gate struct {
	allowed map[string]struct{}
}

// NewGate builds a Gate from allowed role IDs. An empty list permits
// everyone.
func NewGate(allowedRoles []string) *Gate {
	g := &Gate{allowed: make(map[string]struct{}, len(allowedRoles))}
	for _, id := range allowedRoles {
		if id != "" {
			g.allowed[id] = struct{}{}
		}
	}
	return g
}

// Open reports whether the gate admits everyone.
func (g *Gate) Open() bool { return len(g.allowed) == 0 }

// IsAllowed reports whether a member with the given roles may use the
// bot. Administrators always pass.
func (g *Gate) IsAllowed(isAdmin bool, memberRoles []string) bool {
	if g.Open() || isAdmin {
		return true
	}
	for _, id := range memberRoles {
		if _, ok := g.allowed[id]; ok {
			return true
		}
	}
	return false
}
