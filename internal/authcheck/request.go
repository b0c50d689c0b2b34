package authcheck

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/devpi/devpi-lockdown/internal/authz"
	"github.com/devpi/devpi-lockdown/internal/identity"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
	"github.com/devpi/devpi-lockdown/internal/routes"
)

// OriginalURIHeader carries the externally received URI on the subrequest.
// It is the only header the gate trusts for addressing; identity always comes
// from the credential pipeline.
const OriginalURIHeader = "X-Original-URI"

// Request is a reconstructed view of the original client request: routable,
// carrying the original headers, resolved to a route, an authorization
// context, and (possibly) an authenticated identity. Built once per authcheck
// call and never persisted.
type Request struct {
	// HTTP is the synthetic request addressed at the original URL but
	// carrying the original client headers
	HTTP *http.Request

	// Match is the matched route
	Match *routes.Match

	// Resource is the authorization context resolved via the route's factory
	Resource authz.Resource

	// Identity is the authenticated identity, or nil
	Identity *identity.Identity
}

// Route returns the matched route name
func (r *Request) Route() string {
	return r.Match.Route.Name
}

// Extension augments the synthetic request before routing and identity
// resolution run, so permission checks can depend on attributes it attaches.
type Extension func(r *http.Request) *http.Request

// Reconstructor rebuilds the original request from an authcheck subrequest
type Reconstructor struct {
	// Table is the route table the original request is replayed against
	Table *routes.Table

	// Resolver derives the authenticated identity from the original
	// request's credentials
	Resolver identity.Resolver

	// Extensions are applied in order before routing
	Extensions []Extension
}

// Reconstruct builds a Request for the original URI carried by the
// subrequest. The URL comes from the X-Original-URI header when present and
// from the subrequest's own URL otherwise, so the endpoint stays testable
// without a proxy in front of it. A URL that matches no route yields
// routes.ErrNoRoute; the caller maps it to a deny.
func (rc *Reconstructor) Reconstruct(ctx context.Context, subreq *http.Request) (*Request, error) {
	rawurl := subreq.Header.Get(OriginalURIHeader)
	if rawurl == "" {
		rawurl = subreq.URL.String()
	}

	u, err := url.ParseRequestURI(rawurl)
	if err != nil {
		return nil, fmt.Errorf("unparseable original URI %q: %w", rawurl, err)
	}

	orig := subreq.Clone(ctx)
	orig.Method = http.MethodGet
	orig.URL = u
	orig.RequestURI = rawurl
	orig.Host = subreq.Host

	for _, ext := range rc.Extensions {
		orig = ext(orig)
	}

	match, err := rc.Table.Match(orig)
	if err != nil {
		return nil, err
	}

	req := &Request{
		HTTP:     orig,
		Match:    match,
		Resource: rc.Table.Context(match),
	}

	if rc.Resolver != nil {
		id, err := rc.Resolver.Resolve(ctx, orig)
		if err != nil {
			// Fail closed: a resolver failure leaves the request
			// unauthenticated rather than aborting the subrequest.
			if logger := logging.LoggerFromContext(ctx); logger != nil {
				logger.Error("identity resolution failed", logging.Err(err), "url", rawurl)
			}
			return req, nil
		}
		req.Identity = id
	}
	return req, nil
}
