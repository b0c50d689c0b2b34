package identity

import (
	"context"
	"errors"
	"net/http"
)

// ErrInvalidCredentials is returned by an Issuer when the supplied
// username/password pair is rejected by the identity subsystem.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity represents an authenticated user
type Identity struct {
	// Username is the unique identifier for this identity
	Username string

	// Provider is the resolver that produced this identity (e.g. "session", "bearer", "mtls")
	Provider string
}

// Credentials is the username/secret pair carried in the session cookie.
// The secret is the signed proxy password issued at login, never the
// original password.
type Credentials struct {
	Username string
	Secret   string
}

// Token is a signed, time-limited proxy credential issued in exchange for a
// real password.
type Token struct {
	// Secret is the signed proxy password
	Secret string

	// ExpirationSeconds is the token lifetime in seconds
	ExpirationSeconds int
}

// Resolver turns an inbound request into an authenticated identity, or nil
// when the request carries no usable credentials. Malformed or missing
// credentials are "no identity", not an error; errors are reserved for
// resolver-internal failures (which callers must treat as unauthenticated).
type Resolver interface {
	// Name returns the name of this resolver
	Name() string

	// Resolve returns the authenticated identity for the request, or nil
	Resolve(ctx context.Context, r *http.Request) (*Identity, error)
}

// Issuer exchanges raw credentials for a signed proxy token
type Issuer interface {
	// NewProxyAuth returns a token for the given credentials, or
	// ErrInvalidCredentials when they are rejected
	NewProxyAuth(ctx context.Context, username, password string) (*Token, error)
}

// Validator checks whether previously issued session credentials are still
// accepted by the identity subsystem
type Validator interface {
	Validate(ctx context.Context, creds Credentials) (bool, error)
}

// Chain is an ordered list of resolvers; the first identity wins
type Chain []Resolver

// Name returns the name of this resolver
func (c Chain) Name() string { return "chain" }

// Resolve runs each resolver in order and returns the first identity found.
// A resolver error stops the chain: a client that presented credentials for
// one scheme must not fall through to another.
func (c Chain) Resolve(ctx context.Context, r *http.Request) (*Identity, error) {
	for _, resolver := range c {
		id, err := resolver.Resolve(ctx, r)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}
	return nil, nil
}
