package rbac

import "fmt"

// Registry maps each role to its granted permissions. It is immutable once
// built and safe for concurrent use.
type Registry struct {
	roles  []Role
	grants map[Role]map[Permission]struct{}
}

// DefaultRolePermissions returns the built-in role to permission table.
func DefaultRolePermissions() map[Role][]Permission {
	return map[Role][]Permission{
		RoleAdmin: AllPermissions(),
		RoleManager: {
			PermViewDashboard,
			PermViewDepartment,
			PermViewUser,
			PermViewAllUsers,
			PermUpdateUser,
			PermCreateLeaveRequest,
			PermUpdateLeaveRequest,
			PermDeleteLeaveRequest,
			PermViewLeaveRequest,
			PermViewAllLeaveRequests,
			PermApproveLeaveRequest,
			PermRejectLeaveRequest,
			PermViewReports,
		},
		RoleEmployee: {
			PermViewDashboard,
			PermViewDepartment,
			PermViewUser,
			PermCreateLeaveRequest,
			PermUpdateLeaveRequest,
			PermDeleteLeaveRequest,
			PermViewLeaveRequest,
		},
	}
}

// NewRegistry copies table into a Registry. Every declared role must have a
// non-empty entry and every permission must be one of AllPermissions.
func NewRegistry(table map[Role][]Permission) (*Registry, error) {
	reg := &Registry{grants: make(map[Role]map[Permission]struct{}, len(table))}
	for _, role := range rolePrecedence {
		perms := table[role]
		if len(perms) == 0 {
			return nil, fmt.Errorf("rbac: role %s has no permissions", role)
		}
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			if !p.Valid() {
				return nil, fmt.Errorf("rbac: role %s grants unknown permission %q", role, p)
			}
			set[p] = struct{}{}
		}
		reg.grants[role] = set
		reg.roles = append(reg.roles, role)
	}
	for role := range table {
		if !role.Valid() {
			return nil, fmt.Errorf("rbac: unknown role %q in permission table", role)
		}
	}
	return reg, nil
}

// DefaultRegistry builds the registry from DefaultRolePermissions.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(DefaultRolePermissions())
	if err != nil {
		panic(err)
	}
	return reg
}

// Roles returns the registered roles in precedence order.
func (r *Registry) Roles() []Role {
	return append([]Role(nil), r.roles...)
}

// PermissionsOf returns the permissions granted to role in declaration order.
// Unknown roles get an empty slice.
func (r *Registry) PermissionsOf(role Role) []Permission {
	granted := r.grants[role]
	out := make([]Permission, 0, len(granted))
	for _, p := range AllPermissions() {
		if _, ok := granted[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// PermissionsOfSet returns the union of permissions for every role in set.
func (r *Registry) PermissionsOfSet(set RoleSet) []Permission {
	union := make(map[Permission]struct{})
	for _, role := range set {
		for p := range r.grants[role] {
			union[p] = struct{}{}
		}
	}
	out := make([]Permission, 0, len(union))
	for _, p := range AllPermissions() {
		if _, ok := union[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Has reports whether role grants perm.
func (r *Registry) Has(role Role, perm Permission) bool {
	_, ok := r.grants[role][perm]
	return ok
}

// HasAny reports whether any role in set grants perm.
func (r *Registry) HasAny(set RoleSet, perm Permission) bool {
	for _, role := range set {
		if r.Has(role, perm) {
			return true
		}
	}
	return false
}
