package authz

// Permission is an atomic capability. The set is closed; new capabilities are
// added here and granted in rolePermissions, never computed ad hoc.
type Permission string

const (
	PermCreateCheck     Permission = "CREATE_CHECK"
	PermVoidCheck       Permission = "VOID_CHECK"
	PermViewChecks      Permission = "VIEW_CHECKS"
	PermCreateBank      Permission = "CREATE_BANK"
	PermUpdateBank      Permission = "UPDATE_BANK"
	PermViewBankDetails Permission = "VIEW_BANK_DETAILS"
	PermManageUsers     Permission = "MANAGE_USERS"
	PermViewAudit       Permission = "VIEW_AUDIT"
	PermExportAudit     Permission = "EXPORT_AUDIT"
	PermRunMigration    Permission = "RUN_MIGRATION"
)

// rolePermissions returns the capabilities granted to a role. Each tier
// extends the one below it, so ADMIN ⊇ MANAGER ⊇ USER holds by construction.
// The switch is exhaustive over the closed role set; an unknown role gets
// nothing.
func rolePermissions(r Role) []Permission {
	switch r {
	case RoleUser:
		return []Permission{
			PermCreateCheck,
			PermViewChecks,
		}
	case RoleManager:
		return append(rolePermissions(RoleUser),
			PermVoidCheck,
			PermCreateBank,
			PermUpdateBank,
			PermViewBankDetails,
			PermViewAudit,
		)
	case RoleAdmin:
		return append(rolePermissions(RoleManager),
			PermManageUsers,
			PermExportAudit,
			PermRunMigration,
		)
	default:
		return nil
	}
}

// capabilityTable is built once at package init and never mutated afterwards.
var capabilityTable map[Role]map[Permission]struct{}

func init() {
	capabilityTable = make(map[Role]map[Permission]struct{}, len(roleNames))
	for r := range roleNames {
		set := make(map[Permission]struct{})
		for _, p := range rolePermissions(r) {
			set[p] = struct{}{}
		}
		capabilityTable[r] = set
	}
}

// HasPermission reports whether the principal's role grants the permission.
func HasPermission(p *Principal, perm Permission) bool {
	if p == nil {
		return false
	}
	_, ok := capabilityTable[p.Role][perm]
	return ok
}

// HasAnyPermission reports whether the principal holds at least one of perms.
func HasAnyPermission(p *Principal, perms ...Permission) bool {
	for _, perm := range perms {
		if HasPermission(p, perm) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the principal holds every one of perms.
func HasAllPermissions(p *Principal, perms ...Permission) bool {
	for _, perm := range perms {
		if !HasPermission(p, perm) {
			return false
		}
	}
	return true
}

// HasRole reports an exact role match.
func HasRole(p *Principal, r Role) bool {
	return p != nil && p.Role == r
}

// HasRoleAtLeast reports whether the principal's rank in the total order is
// at least min's rank.
func HasRoleAtLeast(p *Principal, min Role) bool {
	return p != nil && p.Role.Valid() && p.Role.Rank() >= min.Rank()
}
