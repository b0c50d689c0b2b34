package authz

import (
	"context"

	"github.com/devpi/devpi-lockdown/internal/identity"
)

// Decision represents an authorization decision
type Decision int

const (
	// Allow indicates the identity holds the permission
	Allow Decision = iota
	// Deny indicates the identity lacks the permission
	Deny
	// Unauthorized indicates no identity was provided
	Unauthorized
	// Error indicates an error occurred during authorization
	Error
)

// Resource is the authorization context a matched route resolves to: the
// slice of the index namespace the request addresses. Zero value is the
// server root.
type Resource struct {
	// User is the index owner, e.g. "root" in /root/pypi
	User string

	// Index is the index name, e.g. "pypi" in /root/pypi
	Index string

	// Project is the project name within the index, if the route addresses one
	Project string
}

// IsRoot reports whether the resource is the server root
func (r Resource) IsRoot() bool {
	return r.User == "" && r.Index == ""
}

// Request represents an authorization check
type Request struct {
	// Identity is the identity to authorize
	Identity *identity.Identity

	// Permission is the permission being checked, e.g. "pkg_read"
	Permission string

	// Resource is the resource being accessed
	Resource Resource

	// Context is the request context, for cancellation of backend calls
	Context context.Context
}

// Response represents an authorization response
type Response struct {
	// Decision is the authorization decision
	Decision Decision

	// Reason provides additional information about the decision
	Reason string

	// Error is set if an error occurred during authorization
	Error error
}

// Authorizer defines the interface for permission checks
type Authorizer interface {
	// Authorize checks if the identity has the specified permission on the resource
	Authorize(req *Request) *Response
}

// Permissions checked by the lockdown gate
const (
	// PermissionPkgRead guards read access to packages on an index
	PermissionPkgRead = "pkg_read"

	// PermissionUserLogin guards the ability to establish a login session
	PermissionUserLogin = "user_login"
)

// AllowAll is an Authorizer that grants every permission; used when no
// fine-grained backend is configured, leaving stage-two authentication as
// the only gate.
type AllowAll struct{}

// Authorize checks if the identity has the specified permission on the resource
func (AllowAll) Authorize(req *Request) *Response {
	if req.Identity == nil {
		return &Response{Decision: Unauthorized, Reason: "no identity provided"}
	}
	return &Response{Decision: Allow, Reason: "no authorization backend configured"}
}

var _ Authorizer = AllowAll{}
