package models

import (
	"time"
)

// Roles
const (
	RoleUser    = "user"
	RoleViewer  = "viewer"
	RoleAuditor = "auditor"
	RoleAdmin   = "admin"
)

// ValidRoles defines allowed user roles
var ValidRoles = map[string]bool{
	RoleUser:    true,
	RoleViewer:  true,
	RoleAuditor: true,
	RoleAdmin:   true,
}

// User represents a dashboard user. Users are provisioned by the auth layer;
// this service only reads them and lets admins change role and activation.
type User struct {
	ID        string     `json:"user_id" db:"user_id"`
	Email     string     `json:"email" db:"email"`
	FullName  string     `json:"full_name" db:"full_name"`
	Role      string     `json:"role" db:"role"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`
}

// Identity is the verified caller of a request
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IsAdmin reports whether the caller has the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAudit reports whether the caller may read audit data
func (i Identity) CanAudit() bool {
	return i.Role == RoleAdmin || i.Role == RoleAuditor
}

// UpdateUserRequest is the body of PATCH /v1/admin/users/:id
type UpdateUserRequest struct {
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}
