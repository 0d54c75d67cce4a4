package users

import (
	"time"

	"github.com/hrdesk/hrdesk/internal/rbac"
)

// User represents an account. PasswordHash never leaves the service layer.
type User struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Role         rbac.Role    `json:"role"`
	Roles        rbac.RoleSet `json:"roles"`
	Department   string       `json:"department,omitempty"`
	ManagerID    string       `json:"managerId,omitempty"`
	IsActive     bool         `json:"isActive"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Principal converts the account into the authorization view carried in tokens.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{ID: u.ID, Email: u.Email, Name: u.Name, Roles: u.Roles}
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Role       rbac.Role
	Department string
	Active     *bool
	Query      string
}

// CreateInput carries a new account.
type CreateInput struct {
	Name       string
	Email      string
	Password   string
	Roles      rbac.RoleSet
	Department string
	ManagerID  string
}

// UpdateInput is a partial update. Nil fields are left untouched; an empty
// ManagerID clears the manager.
type UpdateInput struct {
	Name       *string   `json:"name" validate:"omitempty,min=1,max=120"`
	Email      *string   `json:"email" validate:"omitempty,email"`
	Department *string   `json:"department" validate:"omitempty,max=120"`
	ManagerID  *string   `json:"managerId"`
	IsActive   *bool     `json:"isActive"`
	Role       *string   `json:"role"`
	Roles      *[]string `json:"roles"`
}

// Patch is the storage-level update derived from UpdateInput.
type Patch struct {
	Name       *string
	Email      *string
	Department *string
	ManagerID  *string
	IsActive   *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Department == nil && p.ManagerID == nil && p.IsActive == nil
}
