// Package access describes the caller as established by the access guard.
// The guard authenticates; services in this module only authorize.
package access

import (
	"context"

	id "carp/pkg/domain"
	"carp/pkg/requestcontext"
)

// Principal is an authenticated caller, or a guest.
// Invariant: a guest has a nil AccountID; every other role has a non-nil one.
type Principal struct {
	Role      id.Role
	AccountID id.AccountID
}

// Guest is the unauthenticated caller.
func Guest() Principal {
	return Principal{Role: id.RoleGuest}
}

// NewPrincipal builds an authenticated principal.
func NewPrincipal(accountID id.AccountID, role id.Role) Principal {
	return Principal{Role: role, AccountID: accountID}
}

// FromContext reads the caller placed in ctx by the auth middleware.
func FromContext(ctx context.Context) Principal {
	role := requestcontext.Role(ctx)
	accountID := requestcontext.AccountID(ctx)
	if role == id.RoleGuest || accountID.IsNil() {
		return Guest()
	}
	return NewPrincipal(accountID, role)
}

func (p Principal) Authenticated() bool {
	return p.Role != id.RoleGuest && !p.AccountID.IsNil()
}

func (p Principal) IsStaff() bool     { return p.Authenticated() && p.Role == id.RoleStaff }
func (p Principal) IsCaregiver() bool { return p.Authenticated() && p.Role == id.RoleCaregiver }
func (p Principal) IsSenior() bool    { return p.Authenticated() && p.Role == id.RoleSenior }
