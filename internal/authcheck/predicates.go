package authcheck

import (
	"strings"

	"github.com/devpi/devpi-lockdown/internal/authz"
)

// DefaultAlwaysOK returns the stage-one predicates for the devpi route
// space: API discovery, the login and logout views, and the static assets
// those views need. Static routes are matched on both the route name and the
// URL so a theme route that merely resembles a static one does not slip
// through.
func DefaultAlwaysOK() []Predicate {
	return []Predicate{
		func(r *Request) bool { return strings.HasSuffix(r.Route(), "/+api") },
		func(r *Request) bool { return r.Route() == "/+login" || r.Route() == "login" },
		func(r *Request) bool { return r.Route() == "logout" },
		func(r *Request) bool {
			return strings.Contains(r.Route(), "+static") &&
				strings.Contains(r.HTTP.URL.String(), "/+static")
		},
		func(r *Request) bool {
			return strings.Contains(r.Route(), "+theme-static") &&
				strings.Contains(r.HTTP.URL.String(), "/+theme-static")
		},
	}
}

// RequirePermission builds a stage-three predicate that fires when the
// authenticated identity lacks the given permission on the request's
// resource. An authorizer error counts as lacking the permission: the gate
// fails closed.
func RequirePermission(authorizer authz.Authorizer, permission string) Predicate {
	return func(r *Request) bool {
		resp := authorizer.Authorize(&authz.Request{
			Identity:   r.Identity,
			Permission: permission,
			Resource:   r.Resource,
			Context:    r.HTTP.Context(),
		})
		return resp.Decision != authz.Allow
	}
}

// RequirePkgRead builds the standard forbidden predicate: authenticated
// users still need pkg_read on the index a package route addresses. Root and
// per-user routes carry no index resource and are left to stage two.
func RequirePkgRead(authorizer authz.Authorizer) Predicate {
	check := RequirePermission(authorizer, authz.PermissionPkgRead)
	return func(r *Request) bool {
		if r.Resource.IsRoot() {
			return false
		}
		return check(r)
	}
}
