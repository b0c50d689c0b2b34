package session

import (
	"context"
	"net/http"

	"github.com/devpi/devpi-lockdown/internal/identity"
)

// Resolver derives an identity from the auth_tkt cookie. Extraction is pure;
// the extracted credentials are then validated against the identity
// subsystem, so revoked sessions die on the next authcheck.
type Resolver struct {
	Validator identity.Validator
}

// Name returns the name of this resolver
func (s *Resolver) Name() string { return "session" }

// Resolve returns the identity carried by a valid session cookie, or nil. A
// missing or malformed cookie is not an error; a validation failure is, and
// the caller treats it as unauthenticated.
func (s *Resolver) Resolve(ctx context.Context, r *http.Request) (*identity.Identity, error) {
	creds, ok := ExtractCredentials(r)
	if !ok {
		return nil, nil
	}
	valid, err := s.Validator.Validate(ctx, creds)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, nil
	}
	return &identity.Identity{Username: creds.Username, Provider: s.Name()}, nil
}

var _ identity.Resolver = (*Resolver)(nil)
