package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpi/devpi-lockdown/internal/authz"
)

func match(t *testing.T, table *Table, url string) *Match {
	t.Helper()
	m, err := table.Match(httptest.NewRequest(http.MethodGet, url, nil))
	require.NoError(t, err, "expected %s to match", url)
	return m
}

func TestMatchRouteNames(t *testing.T) {
	table := New()
	cases := map[string]string{
		"/+authcheck":                 "/+authcheck",
		"/+login":                     "login",
		"/+logout":                    "logout",
		"/+api":                       "/+api",
		"/+static/style.css":          "+static",
		"/+theme-static/logo.png":     "+theme-static",
		"/":                           "/",
		"/root/pypi/+api":             "/{user}/{index}/+api",
		"/root/pypi/+simple/":         "/{user}/{index}/+simple",
		"/root/pypi/+simple/pkg/":     "/{user}/{index}/+simple/{project}",
		"/root/pypi/+f/28/d2/pkg.whl": "/{user}/{index}/+f/{relpath}",
		"/root/pypi/pkg/1.0":          "/{user}/{index}/{project}/{version}",
		"/root/pypi/pkg":              "/{user}/{index}/{project}",
		"/root/pypi":                  "/{user}/{index}",
		"/root":                       "/{user}",
	}
	for url, name := range cases {
		m := match(t, table, url)
		assert.Equal(t, name, m.Route.Name, "url %s", url)
	}
}

func TestMatchVars(t *testing.T) {
	table := New()
	m := match(t, table, "/root/pypi/pkg")
	assert.Equal(t, "root", m.Vars["user"])
	assert.Equal(t, "pypi", m.Vars["index"])
	assert.Equal(t, "pkg", m.Vars["project"])
}

func TestNoMatch(t *testing.T) {
	table := New()
	_, err := table.Match(httptest.NewRequest(http.MethodGet, "/a/b/c/d/e", nil))
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestContextFactories(t *testing.T) {
	table := New()

	m := match(t, table, "/root/pypi/pkg")
	assert.Equal(t, authz.Resource{User: "root", Index: "pypi", Project: "pkg"}, table.Context(m))

	m = match(t, table, "/root/pypi")
	assert.Equal(t, authz.Resource{User: "root", Index: "pypi"}, table.Context(m))

	// routes without their own factory fall back to the root factory
	m = match(t, table, "/+login")
	assert.True(t, table.Context(m).IsRoot())

	m = match(t, table, "/root")
	assert.True(t, table.Context(m).IsRoot())
}
