package user

import (
	"time"
)

// Role is the kind of account. It decides enrollment rules and shift timing.
type Role string

const (
	RoleStudent  Role = "student"
	RoleIntern   Role = "intern"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Roles lists every role in display order.
var Roles = []Role{RoleStudent, RoleIntern, RoleEmployee, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleIntern, RoleEmployee, RoleAdmin:
		return true
	}
	return false
}

// NeedsEnrollmentWindow reports whether the role is gated by start/end dates.
func (r Role) NeedsEnrollmentWindow() bool {
	return r == RoleStudent || r == RoleIntern
}

// HasShift reports whether the role participates in shift timing.
func (r Role) HasShift() bool {
	return r == RoleStudent || r == RoleIntern || r == RoleEmployee
}

// Display returns the human label used in reports.
func (r Role) Display() string {
	switch r {
	case RoleStudent:
		return "Student"
	case RoleIntern:
		return "Intern"
	case RoleEmployee:
		return "Employee"
	case RoleAdmin:
		return "Admin"
	}
	return string(r)
}

// Account is a registered user. StartDate and EndDate are civil dates at UTC midnight.
type Account struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	ActivePeriod bool       `json:"is_active_period"`
	CreatedAt    time.Time  `json:"date_joined"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FullName joins first and last name, falling back to the username.
func (a Account) FullName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	case a.LastName != "":
		return a.LastName
	}
	return a.Username
}
