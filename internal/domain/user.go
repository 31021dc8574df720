package domain

import "time"

// Role enumerates access levels for accounts.
type Role string

const (
	RoleEndUser      Role = "end_user"
	RoleSupportStaff Role = "support_staff"
	RoleManager      Role = "manager"
	RoleAdmin        Role = "admin"
)

// IsStaff reports whether the role grants staff-level access.
func (r Role) IsStaff() bool {
	return r == RoleSupportStaff || r == RoleManager || r == RoleAdmin
}

// CanAssign reports whether the role may assign tickets.
func (r Role) CanAssign() bool {
	return r == RoleManager || r == RoleAdmin
}

// User is an account known to the service. Requesters without accounts
// appear only as identity snapshots on tickets, never as User rows.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is a point-in-time copy of who someone was. Tickets, comments
// and history entries carry these instead of live references so the audit
// trail stays accurate if the account is later renamed or removed.
type Identity struct {
	ID    string
	Name  string
	Email string
}

// SnapshotOf captures an identity from a user record.
func SnapshotOf(u *User) Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email}
}
