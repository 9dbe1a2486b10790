package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSecurity  UserRole = "security"
	RoleOSA       UserRole = "osa"
	RoleSuperuser UserRole = "superuser"
)

// ValidRole reports whether the role is a known campus role.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleSecurity, RoleOSA, RoleSuperuser:
		return true
	default:
		return false
	}
}

// User represents an application account stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	Verified     bool       `db:"verified" json:"verified"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing accounts.
type UserFilter struct {
	Role     *UserRole
	Active   *bool
	Search   string
	Page     int
	PageSize int
}
