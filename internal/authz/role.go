// Package authz defines the static capability model: a closed set of roles
// in a total order, a closed set of permissions, an exhaustive role-to-
// permission table built once at startup, and composable request gates.
package authz

import (
	"fmt"

	"github.com/QTMarketing/cps-sub000/internal/common"
)

// Role is one of the ordered set USER < MANAGER < ADMIN. The int backing
// gives the total order used by minimum-role checks.
type Role int

const (
	RoleUser Role = iota + 1
	RoleManager
	RoleAdmin
)

// roleNames doubles as the closed list of valid roles.
var roleNames = map[Role]string{
	RoleUser:    "USER",
	RoleManager: "MANAGER",
	RoleAdmin:   "ADMIN",
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Rank is the role's position in the total order; higher outranks lower.
func (r Role) Rank() int { return int(r) }

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole maps a stored role name back to a Role.
func ParseRole(name string) (Role, error) {
	for r, n := range roleNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown role %q", common.ErrInvalidInput, name)
}

// Principal is the authenticated identity attached to a request, derived
// from a verified bearer token. Immutable for the request's lifetime.
type Principal struct {
	ID      string
	Role    Role
	StoreID string
}
