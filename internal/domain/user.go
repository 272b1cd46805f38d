package domain

import "time"

// Role is the coarse authorization role relevant to notification routing.
type Role string

const (
	RoleSales   Role = "SALES"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSales, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// IsEscalationTarget reports whether the role receives overdue and urgent
// escalations in addition to the assigned user.
func (r Role) IsEscalationTarget() bool {
	return r == RoleManager || r == RoleAdmin
}

// User is the directory view of a recipient: enough to route and localize
// notifications, nothing more. Account and auth data live elsewhere.
type User struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Role      Role
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Location resolves the user's IANA time zone, falling back to UTC.
func (u *User) Location() *time.Location {
	if u == nil || u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
