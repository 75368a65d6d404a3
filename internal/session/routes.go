package session

import "github.com/spec-kit/support-desk/internal/domain"

// LoginRoute is where unauthenticated sessions land.
const LoginRoute = "/login"

// HomeRoute returns the landing view for a role. The switch is
// exhaustive over the role enumeration; an unknown role falls through to
// the login view.
func HomeRoute(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return "/admin"
	case domain.RoleTech:
		return "/tech"
	case domain.RoleUser:
		return "/dashboard"
	default:
		return LoginRoute
	}
}

// ResolveRoute gates a protected view declaring an allowed-role set. It
// returns an empty string when the session may stay, otherwise the
// redirect target: the session's own home view when the role is merely
// outside the set, or the login view when unauthenticated. There is no
// access-denied state.
func (s *Session) ResolveRoute(allowed ...domain.Role) string {
	role, ok := s.Role()
	if !ok || !s.IsAuthenticated() {
		return LoginRoute
	}
	for _, candidate := range allowed {
		if candidate == role {
			return ""
		}
	}
	return HomeRoute(role)
}
