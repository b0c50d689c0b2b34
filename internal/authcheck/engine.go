// Package authcheck implements the decision core of the lockdown gate: it
// reconstructs the externally received request from an nginx auth_request
// subrequest and re-evaluates it against the route table and permission
// model, producing exactly one of ok, unauthorized, or forbidden.
package authcheck

import (
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
)

// Predicate is one pluggable check over a reconstructed request
type Predicate func(r *Request) bool

// Engine is the three-stage decision pipeline. Predicates are evaluated in
// registration order and the first true result wins its stage; the verdict
// is an OR, but ordering decides which log line fires. A predicate that
// panics takes the subrequest down with it and the proxy fails closed; the
// engine deliberately does not recover.
type Engine struct {
	// AlwaysOK holds the stage-one predicates: routes that must stay
	// reachable to anonymous clients, or the login flow would lock itself out
	AlwaysOK []Predicate

	// Forbidden holds the stage-three predicates: permission checks that can
	// downgrade an authenticated request to forbidden
	Forbidden []Predicate

	// Logger logs the verdict; may be nil
	Logger *logging.Logger
}

// Evaluate produces the verdict for a reconstructed request. The result is
// never cached: permissions can change between requests, and a stale allow is
// a security defect.
func (e *Engine) Evaluate(r *Request) Verdict {
	for _, ok := range e.AlwaysOK {
		if ok(r) {
			e.debug("authcheck always ok", r)
			return OK
		}
	}

	if r.Identity == nil {
		e.debug("authcheck unauthorized", r)
		return Unauthorized
	}

	for _, forbidden := range e.Forbidden {
		if forbidden(r) {
			e.debug("authcheck forbidden", r)
			return Forbidden
		}
	}

	e.debug("authcheck ok", r)
	return OK
}

func (e *Engine) debug(msg string, r *Request) {
	if e.Logger == nil {
		return
	}
	e.Logger.Debug(msg, "url", r.HTTP.URL.String(), "route", r.Route())
}
