// Package acl implements the built-in authorizer: ordered, config-driven
// access rules over the index namespace. It mirrors devpi's ACL model closely
// enough for a lockdown deployment that does not run a dedicated
// authorization backend.
package acl

import (
	"golang.org/x/exp/slices"

	"github.com/devpi/devpi-lockdown/internal/authz"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
)

// PrincipalAuthenticated is the wildcard principal matching any
// authenticated user
const PrincipalAuthenticated = ":authenticated"

// Rule grants a permission on a slice of the index namespace to a set of
// principals
type Rule struct {
	// Name identifies the rule in logs
	Name string `json:"name" yaml:"name"`

	// Permission is the permission this rule governs, e.g. "pkg_read"
	Permission string `json:"permission" yaml:"permission"`

	// User restricts the rule to indexes of this owner; empty matches all
	User string `json:"user" yaml:"user"`

	// Index restricts the rule to this index name; empty matches all
	Index string `json:"index" yaml:"index"`

	// Principals are the usernames granted the permission;
	// ":authenticated" grants it to every authenticated user
	Principals []string `json:"principals" yaml:"principals"`
}

// matches reports whether the rule governs the given check
func (r Rule) matches(permission string, resource authz.Resource) bool {
	if r.Permission != permission {
		return false
	}
	if r.User != "" && r.User != resource.User {
		return false
	}
	if r.Index != "" && r.Index != resource.Index {
		return false
	}
	return true
}

// Authorizer evaluates rules in order; the first rule governing a check
// decides it. A check no rule governs is allowed: devpi indexes are readable
// by authenticated users unless an ACL restricts them, and the lockdown gate
// keeps that default.
type Authorizer struct {
	rules  []Rule
	logger *logging.Logger
}

// New creates a new ACL authorizer
func New(rules []Rule, logger *logging.Logger) *Authorizer {
	return &Authorizer{
		rules:  rules,
		logger: logger.WithModule("authz.acl"),
	}
}

// Authorize checks if the identity has the specified permission on the resource
func (a *Authorizer) Authorize(req *authz.Request) *authz.Response {
	if req.Identity == nil {
		return &authz.Response{Decision: authz.Unauthorized, Reason: "no identity provided"}
	}

	for _, rule := range a.rules {
		if !rule.matches(req.Permission, req.Resource) {
			continue
		}
		if slices.Contains(rule.Principals, req.Identity.Username) ||
			slices.Contains(rule.Principals, PrincipalAuthenticated) {
			return &authz.Response{Decision: authz.Allow, Reason: rule.Name}
		}
		a.logger.Debug("permission denied by rule",
			"rule", rule.Name,
			"user", req.Identity.Username,
			"permission", req.Permission,
		)
		return &authz.Response{Decision: authz.Deny, Reason: rule.Name}
	}

	return &authz.Response{Decision: authz.Allow, Reason: "no rule governs this check"}
}

var _ authz.Authorizer = (*Authorizer)(nil)
