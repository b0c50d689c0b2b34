// Package bearer resolves identities from OIDC access tokens, for CI tooling
// that reaches the index through the gate without a browser session.
package bearer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/exp/slices"

	"github.com/devpi/devpi-lockdown/internal/identity"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
)

// Resolver implements Bearer token identity resolution
type Resolver struct {
	logger   *logging.Logger
	verifier *oidc.IDTokenVerifier
	clientID string
	appCtx   context.Context
}

// Config holds Bearer resolver configuration
type Config struct {
	// Issuer is the token issuer URL
	Issuer string

	// ClientID is the client ID for token validation
	ClientID string
}

// audiences unmarshals the audience claim, which can be a string or an array
type audiences []string

func (a *audiences) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = []string{single}
		return nil
	}

	var multiple []string
	if err := json.Unmarshal(data, &multiple); err == nil {
		*a = multiple
		return nil
	}

	return fmt.Errorf("invalid audience claim format")
}

// New creates a new Bearer resolver
func New(cfg Config, logger *logging.Logger) (*Resolver, error) {
	logger = logger.WithModule("identity.bearer")

	if cfg.Issuer == "" {
		return nil, fmt.Errorf("bearer resolution enabled but no issuer provided")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("bearer resolution enabled but no client ID provided")
	}

	ctx := context.Background()
	logger.Debug("initializing OIDC provider for bearer resolution", "issuer", cfg.Issuer)
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
	}

	return &Resolver{
		logger: logger,
		verifier: provider.Verifier(&oidc.Config{
			ClientID:          cfg.ClientID,
			SkipClientIDCheck: true, // audience is matched against both azp and aud below
		}),
		clientID: cfg.ClientID,
		appCtx:   ctx,
	}, nil
}

// Name returns the name of this resolver
func (b *Resolver) Name() string { return "bearer" }

// Resolve verifies an Authorization: Bearer token and returns its subject as
// the identity. A request without a bearer token yields nil; a request with
// an invalid one yields an error, so it cannot fall through to weaker
// resolution.
func (b *Resolver) Resolve(ctx context.Context, r *http.Request) (*identity.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, nil
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenStr == "" {
		return nil, nil
	}

	idToken, err := b.verifier.Verify(b.appCtx, tokenStr)
	if err != nil {
		return nil, fmt.Errorf("bearer token verification failed: %w", err)
	}

	var claims struct {
		Subject string    `json:"sub"`
		Azp     string    `json:"azp,omitempty"`
		Aud     audiences `json:"aud,omitempty"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse bearer token claims: %w", err)
	}

	if claims.Azp != b.clientID && !slices.Contains(claims.Aud, b.clientID) {
		b.logger.Debug("bearer token audience mismatch",
			"expected", b.clientID, "aud", claims.Aud, "azp", claims.Azp)
		return nil, fmt.Errorf("bearer token audience mismatch")
	}

	b.logger.Debug("bearer token valid", "subject", claims.Subject)
	return &identity.Identity{Username: claims.Subject, Provider: b.Name()}, nil
}

var _ identity.Resolver = (*Resolver)(nil)
