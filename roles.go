package accounts

// Role is the account's role, carried in the session token so the
// surrounding platform can make authorization decisions. This package only
// transports the value; it never evaluates permissions.
type Role = string

const (
	// RoleUser is the default role for new accounts
	RoleUser Role = "User"
	// RoleStudent is an enrolled learner
	RoleStudent Role = "Student"
	// RoleSupervisor oversees student cohorts
	RoleSupervisor Role = "Supervisor"
	// RoleAdmin administers the platform
	RoleAdmin Role = "Admin"
)

// ParseRole maps a string to a known role, reporting whether it matched.
func ParseRole(s string) (Role, bool) {
	switch s {
	case RoleUser, RoleStudent, RoleSupervisor, RoleAdmin:
		return s, true
	}
	return "", false
}

// RoleOrDefault returns the role when known, RoleUser otherwise.
func RoleOrDefault(s string) Role {
	if role, ok := ParseRole(s); ok {
		return role
	}
	return RoleUser
}
