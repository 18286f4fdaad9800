package entity

import "time"

// Role is a caller's authorization level
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

// IsValid returns true for the three known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsReviewer returns true for roles allowed to approve or reject
func (r Role) IsReviewer() bool {
	return r == RoleManager || r == RoleAdmin
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// Actor identifies the authenticated caller of an operation
type Actor struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// User is an employee account
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	DepartmentID int64     `json:"department_id"`
	ManagerID    *int64    `json:"manager_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor returns the user as an operation caller
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
