package domain

import "fmt"

// Role is the authorization level of a member. Roles form a total order
// and authorization checks compare levels, not names.
type Role string

const (
	RoleGuest Role = "GUEST"
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
	RoleSuper Role = "SUPER"
)

// Level returns the numeric rank of the role within the total order.
func (r Role) Level() int {
	switch r {
	case RoleGuest:
		return 0
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleSuper:
		return 3
	default:
		return -1
	}
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	return r.Level() >= 0
}

// AtLeast reports whether r ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return r.Level() >= min.Level()
}

// IsElevated reports whether the role is an administrative one.
// Lockouts of elevated accounts trigger a security alert.
func (r Role) IsElevated() bool {
	return r.AtLeast(RoleAdmin)
}

// ParseRole converts a stored role string back into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
