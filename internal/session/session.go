// Package session owns the auth_tkt cookie: how credentials are encoded into
// it at login and read back out of it on every authcheck subrequest. The
// encoder and the extractor must stay in lock-step; one writes exactly what
// the other parses.
package session

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/devpi/devpi-lockdown/internal/identity"
)

// CookieName is the name of the session cookie
const CookieName = "auth_tkt"

// Encode builds the cookie value for the given credentials: the
// percent-encoded string "username:secret".
func Encode(username, secret string) string {
	return url.QueryEscape(username + ":" + secret)
}

// Decode reverses Encode. It returns ok=false when the value does not decode
// to exactly two colon-separated parts; a malformed token is indistinguishable
// from an absent one.
func Decode(value string) (identity.Credentials, bool) {
	token, err := url.QueryUnescape(value)
	if err != nil {
		return identity.Credentials{}, false
	}
	username, secret, found := strings.Cut(token, ":")
	if !found {
		return identity.Credentials{}, false
	}
	return identity.Credentials{Username: username, Secret: secret}, true
}

// ExtractCredentials pulls the candidate credentials out of the request's
// cookies. Absent or malformed cookies yield ok=false, never an error.
func ExtractCredentials(r *http.Request) (identity.Credentials, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return identity.Credentials{}, false
	}
	return Decode(cookie.Value)
}

// CookieProfile holds the attributes of the session cookie. The value is
// opaque to it; signing belongs to the identity subsystem.
type CookieProfile struct {
	// MaxAge is the cookie lifetime in seconds; 0 produces a browser-session
	// cookie whose effective expiry is the issued token's own expiration
	MaxAge int

	// Secure marks the cookie Secure; set iff the transport is TLS
	Secure bool
}

// Cookie builds the session cookie carrying the given encoded value
func (p CookieProfile) Cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   p.MaxAge,
		HttpOnly: true,
		Secure:   p.Secure,
	}
}

// ClearCookie builds the deletion cookie used at logout
func (p CookieProfile) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.Secure,
	}
}
