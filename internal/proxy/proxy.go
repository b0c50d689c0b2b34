// Package proxy is the guarded pass-through to the devpi upstream. It
// performs, in process, the exact mapping nginx applies around the authcheck
// subrequest: evaluate, then forward, redirect to login, or refuse. With it
// the gate is fully functional without a reverse proxy in front.
package proxy

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/devpi/devpi-lockdown/internal/authcheck"
	"github.com/devpi/devpi-lockdown/internal/contextutil"
	"github.com/devpi/devpi-lockdown/internal/httputils"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
	"github.com/devpi/devpi-lockdown/internal/observability/metrics"
)

// Config holds proxy configuration
type Config struct {
	// UpstreamURL is the URL of the devpi upstream
	UpstreamURL *url.URL

	// UpstreamTimeout bounds the wait for upstream response headers
	UpstreamTimeout time.Duration

	// ClientUASignature marks known CLI clients, kept consistent with the
	// authcheck endpoint's status mapping
	ClientUASignature string
}

// Guard is the verdict-gated reverse proxy
type Guard struct {
	target        *httputil.ReverseProxy
	reconstructor *authcheck.Reconstructor
	engine        *authcheck.Engine
	cfg           Config
	logger        *logging.Logger
	metrics       *metrics.Collector
}

// New creates a new guarded proxy
func New(
	cfg Config,
	reconstructor *authcheck.Reconstructor,
	engine *authcheck.Engine,
	logger *logging.Logger,
	collector *metrics.Collector,
) *Guard {
	target := httputil.NewSingleHostReverseProxy(cfg.UpstreamURL)
	target.Transport = &http.Transport{
		ResponseHeaderTimeout: cfg.UpstreamTimeout,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Guard{
		target:        target,
		reconstructor: reconstructor,
		engine:        engine,
		cfg:           cfg,
		logger:        logger.WithModule("proxy"),
		metrics:       collector,
	}
}

// ServeHTTP evaluates the request and forwards it on an ok verdict. Denials
// follow the nginx mapping: 401 becomes a login redirect, 403 stays a 403.
func (g *Guard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.LoggerFromContext(ctx)
	if logger == nil {
		logger = g.logger
	}

	req, err := g.reconstructor.Reconstruct(ctx, r)
	if err != nil {
		logger.Debug("proxy guard failed closed", logging.Err(err), "path", r.URL.Path)
		g.deny(w, r, authcheck.Unauthorized)
		return
	}

	if req.Identity != nil {
		r = r.WithContext(contextutil.WithIdentity(r.Context(), req.Identity))
	}

	verdict := g.engine.Evaluate(req)
	g.metrics.RecordAuthcheck(verdict.String(), req.Route())
	if verdict != authcheck.OK {
		g.deny(w, r, verdict)
		return
	}

	startTime := time.Now()
	wrapper := httputils.NewResponseWriter(w)
	g.target.ServeHTTP(wrapper, r)
	g.metrics.RecordUpstreamRequest(r.Method, wrapper.StatusCode, time.Since(startTime))
}

// deny refuses the request. Browser clients denied for lack of a session get
// the login redirect nginx's error_page 401 would produce; CLI clients and
// permission denials get the bare status.
func (g *Guard) deny(w http.ResponseWriter, r *http.Request, verdict authcheck.Verdict) {
	status := http.StatusForbidden
	if verdict == authcheck.Unauthorized &&
		(g.cfg.ClientUASignature == "" || !strings.Contains(r.UserAgent(), g.cfg.ClientUASignature)) {
		status = http.StatusUnauthorized
	}

	if id := contextutil.GetIdentity(r.Context()); id != nil {
		g.logger.Info("request refused",
			"user", id.Username, "path", r.URL.Path, "status", status)
	}

	if status == http.StatusUnauthorized {
		target := url.URL{Path: "/+login", RawQuery: url.Values{"goto_url": {r.URL.RequestURI()}}.Encode()}
		http.Redirect(w, r, target.String(), http.StatusFound)
		return
	}
	http.Error(w, http.StatusText(status), status)
}
