// Package routes models the URL space of the devpi server the gate sits in
// front of. The authcheck endpoint replays the original request against this
// table to learn which route it would have hit and which resource that route
// addresses.
package routes

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devpi/devpi-lockdown/internal/authz"
)

// ErrNoRoute is returned when no route matches the reconstructed URL. The
// caller must fail closed on it.
var ErrNoRoute = errors.New("no route matches")

// ContextFactory builds the authorization context for a matched route
type ContextFactory func(match *Match) authz.Resource

// Route describes one entry of the route table
type Route struct {
	// Name is the route name, mirrored from the devpi server's own naming
	Name string

	// Pattern is the URL pattern in gorilla/mux syntax
	Pattern string

	// Factory builds the authorization context; nil falls back to the table's
	// root factory
	Factory ContextFactory
}

// Match is the result of replaying a request against the table
type Match struct {
	// Route is the matched route
	Route *Route

	// Vars holds the extracted path variables
	Vars map[string]string
}

// Table is the route table plus its compiled matcher
type Table struct {
	routes  []Route
	matcher *mux.Router

	// RootFactory builds the authorization context for routes without their
	// own factory
	RootFactory ContextFactory
}

// indexFactory resolves user/index(/project) vars into a resource
func indexFactory(match *Match) authz.Resource {
	return authz.Resource{
		User:    match.Vars["user"],
		Index:   match.Vars["index"],
		Project: match.Vars["project"],
	}
}

// rootFactory is the default context factory: everything not addressed at an
// index is a root resource.
func rootFactory(match *Match) authz.Resource {
	return authz.Resource{}
}

// New builds the devpi route table. Registration order matters: literal
// segments must come before the generic user/index captures, and mux resolves
// routes in registration order.
func New() *Table {
	t := &Table{RootFactory: rootFactory}
	t.add(Route{Name: "/+authcheck", Pattern: "/+authcheck"})
	t.add(Route{Name: "login", Pattern: "/+login"})
	t.add(Route{Name: "logout", Pattern: "/+logout"})
	t.add(Route{Name: "/+api", Pattern: "/+api"})
	t.add(Route{Name: "+static", Pattern: "/+static/{relpath:.*}"})
	t.add(Route{Name: "+theme-static", Pattern: "/+theme-static/{relpath:.*}"})
	t.add(Route{Name: "/+status", Pattern: "/+status"})
	t.add(Route{Name: "/", Pattern: "/"})
	t.add(Route{Name: "/{user}/{index}/+api", Pattern: "/{user}/{index}/+api", Factory: indexFactory})
	t.add(Route{Name: "/{user}/{index}/+simple", Pattern: "/{user}/{index}/+simple/", Factory: indexFactory})
	t.add(Route{Name: "/{user}/{index}/+simple/{project}", Pattern: "/{user}/{index}/+simple/{project}/", Factory: indexFactory})
	t.add(Route{Name: "/{user}/{index}/+f/{relpath}", Pattern: "/{user}/{index}/+f/{relpath:.*}", Factory: indexFactory})
	t.add(Route{Name: "/{user}/{index}/{project}/{version}", Pattern: "/{user}/{index}/{project}/{version}", Factory: indexFactory})
	t.add(Route{Name: "/{user}/{index}/{project}", Pattern: "/{user}/{index}/{project}", Factory: indexFactory})
	t.add(Route{Name: "/{user}/{index}", Pattern: "/{user}/{index}", Factory: indexFactory})
	t.add(Route{Name: "/{user}", Pattern: "/{user}"})
	return t
}

func (t *Table) add(route Route) {
	t.routes = append(t.routes, route)
	if t.matcher == nil {
		t.matcher = mux.NewRouter()
		// devpi treats /foo and /foo/ as the same resource
		t.matcher.StrictSlash(true)
	}
	t.matcher.Path(route.Pattern).Name(route.Name)
}

// Routes returns the table entries in registration order
func (t *Table) Routes() []Route {
	return t.routes
}

// Match replays the request against the table. It returns ErrNoRoute when
// nothing matches.
func (t *Table) Match(r *http.Request) (*Match, error) {
	var rm mux.RouteMatch
	if !t.matcher.Match(r, &rm) || rm.Route == nil {
		return nil, ErrNoRoute
	}
	name := rm.Route.GetName()
	for i := range t.routes {
		if t.routes[i].Name == name {
			return &Match{Route: &t.routes[i], Vars: rm.Vars}, nil
		}
	}
	return nil, ErrNoRoute
}

// Context resolves the authorization context for a match, using the route's
// own factory when it has one and the root factory otherwise.
func (t *Table) Context(match *Match) authz.Resource {
	factory := match.Route.Factory
	if factory == nil {
		factory = t.RootFactory
	}
	return factory(match)
}
