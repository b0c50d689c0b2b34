// Package web is the HTTP surface of the lockdown gate: the /+authcheck
// subrequest endpoint, the login and logout views, and the verdict-to-status
// mapping the reverse proxy acts on.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/devpi/devpi-lockdown/internal/authcheck"
	"github.com/devpi/devpi-lockdown/internal/authz"
	"github.com/devpi/devpi-lockdown/internal/identity"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
	"github.com/devpi/devpi-lockdown/internal/observability/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds handler configuration
type Config struct {
	// OutsideURL is the application URL as seen by clients; empty derives it
	// per request from the Host header
	OutsideURL *url.URL

	// Secure marks issued cookies Secure; set iff the outside transport is TLS
	Secure bool

	// ClientUASignature marks known CLI clients, which expect 403 instead of
	// 401 for unauthenticated denials
	ClientUASignature string

	// LoginPermissionCheck enables the post-login user_login permission check
	LoginPermissionCheck bool
}

// Handler serves the lockdown views
type Handler struct {
	*mux.Router

	cfg           Config
	reconstructor *authcheck.Reconstructor
	engine        *authcheck.Engine
	issuer        identity.Issuer
	resolver      identity.Resolver
	authorizer    authz.Authorizer
	logger        *logging.Logger
	metrics       *metrics.Collector
	templates     *template.Template
}

// New creates the handler and registers its routes. The fallback handler
// receives everything outside the lockdown views; pass the guarded proxy
// there, or nil to refuse unknown paths.
func New(
	cfg Config,
	reconstructor *authcheck.Reconstructor,
	engine *authcheck.Engine,
	issuer identity.Issuer,
	resolver identity.Resolver,
	authorizer authz.Authorizer,
	fallback http.Handler,
	logger *logging.Logger,
	collector *metrics.Collector,
) *Handler {
	h := &Handler{
		Router:        mux.NewRouter(),
		cfg:           cfg,
		reconstructor: reconstructor,
		engine:        engine,
		issuer:        issuer,
		resolver:      resolver,
		authorizer:    authorizer,
		logger:        logger.WithModule("web"),
		metrics:       collector,
		templates:     template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}

	h.Path("/+authcheck").HandlerFunc(h.Authcheck)
	h.Path("/+login").Methods(http.MethodGet).HandlerFunc(h.LoginForm)
	h.Path("/+login").Methods(http.MethodPost).HandlerFunc(h.Login)
	h.Path("/+logout").Methods(http.MethodGet).HandlerFunc(h.LogoutForm)
	h.Path("/+logout").Methods(http.MethodPost).HandlerFunc(h.Logout)

	if fallback != nil {
		h.NotFoundHandler = fallback
	}
	return h
}

// Authcheck answers the nginx auth_request subrequest. The body is always
// empty; only the status carries information.
func (h *Handler) Authcheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.LoggerFromContext(ctx)
	if logger == nil {
		logger = h.logger
	}

	req, err := h.reconstructor.Reconstruct(ctx, r)
	if err != nil {
		// Unroutable or unparseable original URI: fail closed. The
		// subrequest must never take the endpoint down.
		logger.Debug("authcheck failed closed", logging.Err(err),
			"original_uri", r.Header.Get(authcheck.OriginalURIHeader))
		h.metrics.RecordAuthcheck(authcheck.Unauthorized.String(), "")
		w.WriteHeader(h.deniedStatus(r, authcheck.Unauthorized))
		return
	}

	verdict := h.engine.Evaluate(req)
	h.metrics.RecordAuthcheck(verdict.String(), req.Route())

	if verdict == authcheck.OK {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(h.deniedStatus(req.HTTP, verdict))
}

// deniedStatus maps a deny verdict to its transport status. devpi-client
// treats 401 as an auth challenge it cannot answer through the gate, so
// unauthenticated CLI requests get 403 and surface a plain failure instead.
func (h *Handler) deniedStatus(r *http.Request, verdict authcheck.Verdict) int {
	if verdict == authcheck.Forbidden {
		return http.StatusForbidden
	}
	if h.cfg.ClientUASignature != "" &&
		strings.Contains(r.UserAgent(), h.cfg.ClientUASignature) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

// applicationURL returns the application URL for this request: the
// configured outside URL when set, otherwise derived from the request.
func (h *Handler) applicationURL(r *http.Request) *url.URL {
	if h.cfg.OutsideURL != nil {
		u := *h.cfg.OutsideURL
		return &u
	}
	scheme := "http"
	if r.TLS != nil || h.cfg.Secure {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: r.Host}
}

// siteRoot returns the application root URL for this request
func (h *Handler) siteRoot(r *http.Request) string {
	u := h.applicationURL(r)
	u.Path = "/"
	u.RawQuery = ""
	return u.String()
}
