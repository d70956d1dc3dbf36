package domain

import dErrors "carp/pkg/domain-errors"

// Role is the caller's role as asserted by the access guard.
type Role string

const (
	RoleGuest     Role = "guest"
	RoleSenior    Role = "senior"
	RoleCaregiver Role = "caregiver"
	RoleStaff     Role = "staff"
)

// ParseRole accepts only the three authenticated roles. Guests never carry a token.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSenior, RoleCaregiver, RoleStaff:
		return r, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
}

func (r Role) String() string {
	return string(r)
}
