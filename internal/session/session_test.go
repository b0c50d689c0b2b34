package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpi/devpi-lockdown/internal/identity"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		username string
		secret   string
	}{
		{"user1", "secret"},
		{"user", "sec:ret:with:colons"},
		{"user with spaces", "s3cr3t+%&="},
		{"", ""},
	}
	for _, tc := range cases {
		creds, ok := Decode(Encode(tc.username, tc.secret))
		require.True(t, ok, "round trip failed for %q/%q", tc.username, tc.secret)
		assert.Equal(t, tc.username, creds.Username)
		assert.Equal(t, tc.secret, creds.Secret)
	}
}

func TestDecodeMalformed(t *testing.T) {
	for _, value := range []string{"", "no-colon-at-all", "%zz", "user1%ZZx"} {
		_, ok := Decode(value)
		assert.False(t, ok, "value %q must be rejected", value)
	}

	// an empty secret is still two parts
	creds, ok := Decode("user1%3A")
	require.True(t, ok)
	assert.Equal(t, "user1", creds.Username)
	assert.Equal(t, "", creds.Secret)
}

func TestDecodeSplitsOnFirstColonOnly(t *testing.T) {
	creds, ok := Decode(Encode("user1", "a:b:c"))
	require.True(t, ok)
	assert.Equal(t, "user1", creds.Username)
	assert.Equal(t, "a:b:c", creds.Secret)
}

func TestExtractCredentials(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ExtractCredentials(r)
	assert.False(t, ok, "no cookie must yield no credentials")

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: Encode("user1", "tok")})
	creds, ok := ExtractCredentials(r)
	require.True(t, ok)
	assert.Equal(t, identity.Credentials{Username: "user1", Secret: "tok"}, creds)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	_, ok = ExtractCredentials(r)
	assert.False(t, ok, "malformed cookie must be treated as absent")
}

func TestCookieProfile(t *testing.T) {
	profile := CookieProfile{MaxAge: 36000, Secure: true}
	cookie := profile.Cookie("value")
	assert.Equal(t, CookieName, cookie.Name)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 36000, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)

	clear := profile.ClearCookie()
	assert.Equal(t, "", clear.Value)
	assert.Negative(t, clear.MaxAge)
}

type staticValidator bool

func (v staticValidator) Validate(ctx context.Context, creds identity.Credentials) (bool, error) {
	return bool(v), nil
}

func TestResolver(t *testing.T) {
	resolver := &Resolver{Validator: staticValidator(true)}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	id, err := resolver.Resolve(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, id, "no cookie must resolve to no identity")

	r.AddCookie(&http.Cookie{Name: CookieName, Value: Encode("user1", "tok")})
	id, err = resolver.Resolve(context.Background(), r)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "user1", id.Username)
	assert.Equal(t, "session", id.Provider)

	rejected := &Resolver{Validator: staticValidator(false)}
	id, err = rejected.Resolve(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, id, "rejected credentials must resolve to no identity")
}
