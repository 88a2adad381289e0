package crm

import "leadline.org/internal/auth"

// Scope is the per-request data-access restriction derived from the verified
// caller: unrestricted for admins, narrowed to the caller's own records for
// agents. List and count queries apply it at query time; single-record
// mutations go through Authorize after lookup instead.
type Scope struct {
	OwnerID string
}

// ScopeFor derives the ownership filter from a verified identity.
func ScopeFor(identity auth.Identity) Scope {
	if identity.Role.IsAdmin() {
		return Scope{}
	}
	return Scope{OwnerID: identity.ID}
}

// Restricted reports whether the scope narrows visibility at all.
func (s Scope) Restricted() bool { return s.OwnerID != "" }

// Authorize is the single ownership gate for single-record mutations: admins
// pass, owners pass, everyone else gets ErrForbidden. Callers must look the
// record up first so a missing record still surfaces as ErrNotFound.
func Authorize(identity auth.Identity, owner string) error {
	if identity.Role.IsAdmin() || owner == identity.ID {
		return nil
	}
	return ErrForbidden
}
