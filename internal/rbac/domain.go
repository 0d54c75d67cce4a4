package rbac

import (
	"strings"

	"github.com/hrdesk/hrdesk/internal/platform/httpx"
)

// Role is a coarse identity classification carried in auth tokens.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

// rolePrecedence orders roles from most to least privileged.
var rolePrecedence = []Role{RoleAdmin, RoleManager, RoleEmployee}

// ParseRole accepts any casing and surrounding whitespace.
func ParseRole(raw string) (Role, error) {
	candidate := Role(strings.ToUpper(strings.TrimSpace(raw)))
	for _, r := range rolePrecedence {
		if r == candidate {
			return r, nil
		}
	}
	return "", httpx.Errorf(httpx.ErrValidation, "unknown role %q", raw)
}

// Valid reports whether r is a declared role.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) rank() int {
	for i, candidate := range rolePrecedence {
		if candidate == r {
			return i
		}
	}
	return len(rolePrecedence)
}

// RoleSet is the canonical role representation of a principal: non-empty,
// de-duplicated and ordered by precedence.
type RoleSet []Role

// NewRoleSet normalises raw role names. Unknown names are rejected and an
// empty input is an error.
func NewRoleSet(raw ...string) (RoleSet, error) {
	seen := make(map[Role]struct{}, len(raw))
	for _, value := range raw {
		if strings.TrimSpace(value) == "" {
			continue
		}
		role, err := ParseRole(value)
		if err != nil {
			return nil, err
		}
		seen[role] = struct{}{}
	}
	if len(seen) == 0 {
		return nil, httpx.Errorf(httpx.ErrValidation, "at least one role is required")
	}
	set := make(RoleSet, 0, len(seen))
	for _, role := range rolePrecedence {
		if _, ok := seen[role]; ok {
			set = append(set, role)
		}
	}
	return set, nil
}

// Primary returns the most privileged role in the set.
func (s RoleSet) Primary() Role {
	if len(s) == 0 {
		return ""
	}
	best := s[0]
	for _, role := range s[1:] {
		if role.rank() < best.rank() {
			best = role
		}
	}
	return best
}

// Contains reports whether role is in the set.
func (s RoleSet) Contains(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// Strings returns the set as plain strings for token claims and storage.
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

// Permission is a fine-grained capability label.
type Permission string

const (
	PermViewDashboard        Permission = "VIEW_DASHBOARD"
	PermCreateDepartment     Permission = "CREATE_DEPARTMENT"
	PermUpdateDepartment     Permission = "UPDATE_DEPARTMENT"
	PermDeleteDepartment     Permission = "DELETE_DEPARTMENT"
	PermViewDepartment       Permission = "VIEW_DEPARTMENT"
	PermCreateUser           Permission = "CREATE_USER"
	PermUpdateUser           Permission = "UPDATE_USER"
	PermDeleteUser           Permission = "DELETE_USER"
	PermViewUser             Permission = "VIEW_USER"
	PermViewAllUsers         Permission = "VIEW_ALL_USERS"
	PermCreateLeaveRequest   Permission = "CREATE_LEAVE_REQUEST"
	PermUpdateLeaveRequest   Permission = "UPDATE_LEAVE_REQUEST"
	PermDeleteLeaveRequest   Permission = "DELETE_LEAVE_REQUEST"
	PermViewLeaveRequest     Permission = "VIEW_LEAVE_REQUEST"
	PermViewAllLeaveRequests Permission = "VIEW_ALL_LEAVE_REQUESTS"
	PermApproveLeaveRequest  Permission = "APPROVE_LEAVE_REQUEST"
	PermRejectLeaveRequest   Permission = "REJECT_LEAVE_REQUEST"
	PermViewReports          Permission = "VIEW_REPORTS"
	PermGenerateReports      Permission = "GENERATE_REPORTS"
	PermManageRoles          Permission = "MANAGE_ROLES"
	PermManageSettings       Permission = "MANAGE_SETTINGS"
)

// AllPermissions lists every permission in declaration order.
func AllPermissions() []Permission {
	return []Permission{
		PermViewDashboard,
		PermCreateDepartment,
		PermUpdateDepartment,
		PermDeleteDepartment,
		PermViewDepartment,
		PermCreateUser,
		PermUpdateUser,
		PermDeleteUser,
		PermViewUser,
		PermViewAllUsers,
		PermCreateLeaveRequest,
		PermUpdateLeaveRequest,
		PermDeleteLeaveRequest,
		PermViewLeaveRequest,
		PermViewAllLeaveRequests,
		PermApproveLeaveRequest,
		PermRejectLeaveRequest,
		PermViewReports,
		PermGenerateReports,
		PermManageRoles,
		PermManageSettings,
	}
}

// Valid reports whether p is one of AllPermissions.
func (p Permission) Valid() bool {
	for _, known := range AllPermissions() {
		if p == known {
			return true
		}
	}
	return false
}

// Principal describes the authenticated actor.
type Principal struct {
	ID    string
	Email string
	Name  string
	Roles RoleSet
}

// Role returns the primary role.
func (p Principal) Role() Role {
	return p.Roles.Primary()
}

// IsAdmin reports whether the principal holds ADMIN.
func (p Principal) IsAdmin() bool {
	return p.Roles.Contains(RoleAdmin)
}
