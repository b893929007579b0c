package rbac

// Principal is a user with resolved permissions, loaded once per request.
type Principal struct {
	User        User
	Permissions map[string]struct{}
}

// NewPrincipal constructs a principal with a preloaded permission set.
func NewPrincipal(user User, codes []string) Principal {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return Principal{User: user, Permissions: set}
}

// HasPermission reports whether the principal carries the permission code.
// Locked and inactive principals carry none.
func (p Principal) HasPermission(code string) bool {
	if !p.User.Active || p.User.Locked {
		return false
	}
	_, ok := p.Permissions[code]
	return ok
}
