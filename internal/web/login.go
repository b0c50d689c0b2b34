package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/devpi/devpi-lockdown/internal/authz"
	"github.com/devpi/devpi-lockdown/internal/identity"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
	"github.com/devpi/devpi-lockdown/internal/session"
)

// loginPage is the data handed to the login template
type loginPage struct {
	Error string
}

// LoginForm renders the login form
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, http.StatusOK, loginPage{})
}

// Login handles a credential submission. On success it issues the session
// cookie and redirects to the validated goto_url; every failure answers 401
// with an inline error and no cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.LoggerFromContext(ctx)
	if logger == nil {
		logger = h.logger
	}

	if err := r.ParseForm(); err != nil {
		h.metrics.RecordLogin(false)
		h.renderLogin(w, http.StatusUnauthorized, loginPage{Error: "Invalid credentials"})
		return
	}
	if _, ok := r.PostForm["submit"]; !ok {
		h.renderLogin(w, http.StatusOK, loginPage{})
		return
	}

	user := r.PostFormValue("username")
	password := r.PostFormValue("password")

	token, err := h.issuer.NewProxyAuth(ctx, user, password)
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			logger.Error("token issuance failed", logging.Err(err), "user", user)
		}
		h.metrics.RecordLogin(false)
		h.renderLogin(w, http.StatusUnauthorized, loginPage{Error: "Invalid credentials"})
		return
	}

	profile := session.CookieProfile{
		MaxAge: token.ExpirationSeconds,
		Secure: h.cfg.Secure,
	}
	cookieValue := session.Encode(user, token.Secret)

	// Coherence check: the cookie we are about to issue must resolve back to
	// the same user, or the credentials are not committed to a live session.
	shadow := r.Clone(ctx)
	shadow.Header.Del("Cookie")
	shadow.AddCookie(profile.Cookie(cookieValue))
	id, err := h.resolver.Resolve(ctx, shadow)
	if err != nil || id == nil || id.Username != user {
		if err != nil {
			logger.Error("post-login coherence check errored", logging.Err(err), "user", user)
		}
		h.metrics.RecordLogin(false)
		h.renderLogin(w, http.StatusUnauthorized,
			loginPage{Error: fmt.Sprintf("user %q could not be authenticated", user)})
		return
	}

	// A plugin-managed ACL may remove the permission to login even for valid
	// credentials.
	if h.cfg.LoginPermissionCheck {
		resp := h.authorizer.Authorize(&authz.Request{
			Identity:   id,
			Permission: authz.PermissionUserLogin,
			Resource:   authz.Resource{},
			Context:    ctx,
		})
		if resp.Decision != authz.Allow {
			h.metrics.RecordLogin(false)
			h.renderLogin(w, http.StatusUnauthorized,
				loginPage{Error: fmt.Sprintf(
					"user %q has no permission to login with the provided credentials", user)})
			return
		}
	}

	location := h.resolveGotoURL(r, r.URL.Query().Get("goto_url"))
	logger.Info("login succeeded", "user", user)
	h.metrics.RecordLogin(true)

	http.SetCookie(w, profile.Cookie(cookieValue))
	http.Redirect(w, r, location, http.StatusFound)
}

// resolveGotoURL joins goto_url against the application URL and validates
// the result. Cross-origin and cross-scheme targets are silently downgraded
// to the site root; no error is surfaced to the client.
func (h *Handler) resolveGotoURL(r *http.Request, gotoURL string) string {
	appURL := h.applicationURL(r)

	ref, err := url.Parse(gotoURL)
	if err != nil {
		return h.siteRoot(r)
	}
	target := appURL.ResolveReference(ref)

	// A + in the original path arrives form-decoded as a space; undo it.
	target.Path = strings.ReplaceAll(target.Path, "/ ", "/+")

	if target.Host != appURL.Host || target.Scheme != appURL.Scheme {
		return h.siteRoot(r)
	}
	return target.String()
}

func (h *Handler) renderLogin(w http.ResponseWriter, status int, page loginPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "login.html", page); err != nil {
		h.logger.Error("failed to render login template", logging.Err(err))
	}
}
