package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpi/devpi-lockdown/internal/authcheck"
	"github.com/devpi/devpi-lockdown/internal/authz"
	"github.com/devpi/devpi-lockdown/internal/authz/acl"
	"github.com/devpi/devpi-lockdown/internal/identity"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
	"github.com/devpi/devpi-lockdown/internal/observability/metrics"
	"github.com/devpi/devpi-lockdown/internal/routes"
	"github.com/devpi/devpi-lockdown/internal/session"
)

// fakeUpstream stands in for the devpi server: it issues proxy tokens for
// known passwords and validates session credentials against them.
type fakeUpstream struct {
	passwords map[string]string
}

func (f *fakeUpstream) NewProxyAuth(ctx context.Context, username, password string) (*identity.Token, error) {
	if pw, ok := f.passwords[username]; !ok || pw != password {
		return nil, identity.ErrInvalidCredentials
	}
	return &identity.Token{Secret: "tok-" + username, ExpirationSeconds: 36000}, nil
}

func (f *fakeUpstream) Validate(ctx context.Context, creds identity.Credentials) (bool, error) {
	if _, ok := f.passwords[creds.Username]; !ok {
		return false, nil
	}
	return creds.Secret == "tok-"+creds.Username, nil
}

func newTestHandler(t *testing.T, cfg Config, rules []acl.Rule) *Handler {
	t.Helper()
	logger, err := logging.NewLogger("error")
	require.NoError(t, err)

	upstream := &fakeUpstream{passwords: map[string]string{
		"user1": "hunter2",
		"user2": "swordfish",
	}}
	resolver := &session.Resolver{Validator: upstream}
	authorizer := acl.New(rules, logger)

	reconstructor := &authcheck.Reconstructor{
		Table:    routes.New(),
		Resolver: resolver,
	}
	engine := &authcheck.Engine{
		AlwaysOK:  authcheck.DefaultAlwaysOK(),
		Forbidden: []authcheck.Predicate{authcheck.RequirePkgRead(authorizer)},
	}

	return New(cfg, reconstructor, engine, upstream, resolver, authorizer, nil,
		logger, metrics.NewCollector())
}

func authcheckRequest(originalURI, userAgent, cookie string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/+authcheck", nil)
	r.Header.Set(authcheck.OriginalURIHeader, originalURI)
	if userAgent != "" {
		r.Header.Set("User-Agent", userAgent)
	}
	if cookie != "" {
		r.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie})
	}
	return r
}

func loginRequest(target, username, password string) *http.Request {
	form := url.Values{
		"username": {username},
		"password": {password},
		"submit":   {""},
	}
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestAuthcheckAnonymous(t *testing.T) {
	h := newTestHandler(t, Config{ClientUASignature: "devpi-client"}, nil)

	// a browser gets 401 so nginx can redirect it to the login form
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authcheckRequest("/root/pypi/+simple/", "Mozilla/5.0", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Body.String())

	// devpi-client gets 403; it cannot answer a 401 challenge through the gate
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authcheckRequest("/root/pypi/+simple/", "devpi-client/6.0", ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthcheckAlwaysOKRoutes(t *testing.T) {
	h := newTestHandler(t, Config{ClientUASignature: "devpi-client"}, nil)

	for _, uri := range []string{"/+api", "/root/pypi/+api", "/+login", "/+logout", "/+static/style.css"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authcheckRequest(uri, "devpi-client/6.0", ""))
		assert.Equal(t, http.StatusOK, rec.Code, "uri %s", uri)
	}
}

func TestAuthcheckWithSession(t *testing.T) {
	h := newTestHandler(t, Config{ClientUASignature: "devpi-client"}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authcheckRequest("/root/pypi/+simple/", "", session.Encode("user1", "tok-user1")))
	assert.Equal(t, http.StatusOK, rec.Code)

	// a stale or forged cookie does not authenticate
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authcheckRequest("/root/pypi/+simple/", "", session.Encode("user1", "stale")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthcheckForbiddenByACL(t *testing.T) {
	h := newTestHandler(t, Config{ClientUASignature: "devpi-client"}, []acl.Rule{
		{Name: "internal-only", Permission: authz.PermissionPkgRead,
			User: "corp", Index: "internal", Principals: []string{"user2"}},
	})

	// forbidden is 403 for everyone, CLI or not
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authcheckRequest("/corp/internal/+simple/", "Mozilla/5.0", session.Encode("user1", "tok-user1")))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, authcheckRequest("/corp/internal/+simple/", "", session.Encode("user2", "tok-user2")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthcheckUnroutableURI(t *testing.T) {
	h := newTestHandler(t, Config{ClientUASignature: "devpi-client"}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authcheckRequest("/a/b/c/d/e", "", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginSuccess(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, loginRequest("/+login?goto_url=/root/pypi", "user1", "hunter2"))
	res := rec.Result()

	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "http://example.com/root/pypi", res.Header.Get("Location"))

	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.Equal(t, session.Encode("user1", "tok-user1"), cookies[0].Value)
	assert.Equal(t, 36000, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.False(t, cookies[0].Secure)
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, loginRequest("/+login", "user1", "wrong"))
	res := rec.Result()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")
	assert.Empty(t, res.Cookies(), "a failed login must not issue a cookie")
}

func TestLoginPermissionCheck(t *testing.T) {
	h := newTestHandler(t, Config{LoginPermissionCheck: true}, []acl.Rule{
		{Name: "admins-only", Permission: authz.PermissionUserLogin, Principals: []string{"user2"}},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, loginRequest("/+login", "user1", "hunter2"))
	res := rec.Result()

	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Contains(t, rec.Body.String(), "has no permission to login")
	assert.Empty(t, res.Cookies())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, loginRequest("/+login", "user2", "swordfish"))
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestLoginGotoURLValidation(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)

	cases := map[string]string{
		// relative targets resolve against the application URL
		"/root/pypi/+simple/": "http://example.com/root/pypi/+simple/",
		// a + decoded to a space by form parsing is repaired
		"/root/pypi/ simple/": "http://example.com/root/pypi/+simple/",
		// cross-origin and cross-scheme targets fall back to the site root
		"https://evil.example/phish": "http://example.com/",
		"https://example.com/x":      "http://example.com/",
		// an unparseable target falls back too
		"http://[::1": "http://example.com/",
	}
	for gotoURL, want := range cases {
		rec := httptest.NewRecorder()
		target := "/+login?goto_url=" + url.QueryEscape(gotoURL)
		h.ServeHTTP(rec, loginRequest(target, "user1", "hunter2"))
		require.Equal(t, http.StatusFound, rec.Code, "goto_url %q", gotoURL)
		assert.Equal(t, want, rec.Result().Header.Get("Location"), "goto_url %q", gotoURL)
	}
}

func TestLoginFormRenders(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/+login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="username"`)
	assert.Contains(t, rec.Body.String(), `name="password"`)
}

func TestLogout(t *testing.T) {
	h := newTestHandler(t, Config{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/+logout", nil))
	res := rec.Result()

	assert.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "http://example.com/", res.Header.Get("Location"))

	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestOutsideURLOverridesHost(t *testing.T) {
	outside, err := url.Parse("https://pypi.corp.example")
	require.NoError(t, err)
	h := newTestHandler(t, Config{OutsideURL: outside, Secure: true}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, loginRequest("/+login?goto_url=/root/pypi", "user1", "hunter2"))
	res := rec.Result()

	require.Equal(t, http.StatusFound, res.StatusCode)
	assert.Equal(t, "https://pypi.corp.example/root/pypi", res.Header.Get("Location"))

	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}
