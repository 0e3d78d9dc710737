package ledger

import "pool-escrow/internal/domain"

// Authorizer is the identity collaborator: an opaque "caller is admin"
// predicate consulted by admin-only operations. How a caller proved its
// identity is outside the ledger's scope.
type Authorizer interface {
	IsAdministrator(caller domain.AccountID) bool
}

// StaticAuthorizer grants the administrator capability to a fixed set of
// accounts.
type StaticAuthorizer struct {
	admins map[domain.AccountID]struct{}
}

// NewStaticAuthorizer creates an authorizer over the given admin accounts.
func NewStaticAuthorizer(admins ...domain.AccountID) *StaticAuthorizer {
	set := make(map[domain.AccountID]struct{}, len(admins))
	for _, a := range admins {
		set[a] = struct{}{}
	}
	return &StaticAuthorizer{admins: set}
}

// IsAdministrator reports whether caller is in the admin set.
func (a *StaticAuthorizer) IsAdministrator(caller domain.AccountID) bool {
	_, ok := a.admins[caller]
	return ok
}

// Compile-time interface check.
var _ Authorizer = (*StaticAuthorizer)(nil)
