package model

import (
	"time"
)

// User status constants
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// SystemHospitalID is the hospital id of system-tier principals.
const SystemHospitalID int64 = 0

// User is an authenticated principal. RoleID and HospitalID are fixed at
// creation; re-authentication never rewrites them.
type User struct {
	Base
	Email        string     `json:"email" db:"email"`
	Name         string     `json:"name" db:"name"`
	PasswordHash *string    `json:"-" db:"password_hash"`
	RoleID       int64      `json:"role_id" db:"role_id"`
	RoleType     RoleType   `json:"role" db:"role_type"`
	HospitalID   int64      `json:"hospital_id" db:"hospital_id"`
	Status       string     `json:"status" db:"status"`
	OktaID       *string    `json:"okta_id,omitempty" db:"okta_id"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// IsActive reports whether the principal may sign in.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}

// BelongsTo reports whether the principal may act inside the given hospital.
// System-tier principals belong to no hospital.
func (u *User) BelongsTo(tenant *Tenant) bool {
	if u == nil || tenant == nil {
		return false
	}
	return !u.RoleType.IsSystem() && u.HospitalID == tenant.ID
}

// UserFilters represents user search parameters
type UserFilters struct {
	HospitalID int64    `json:"hospital_id"`
	RoleType   RoleType `json:"role"`
	Status     string   `json:"status"`
}
