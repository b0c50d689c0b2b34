package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEVPI_LOCKDOWN_UPSTREAM_URL", "http://localhost:3141")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3142", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
	assert.Equal(t, "http://localhost:3141", cfg.Upstream.URL.String())
	assert.Equal(t, "devpi-client", cfg.Lockdown.ClientUASignature)
	assert.True(t, cfg.Lockdown.LoginPermissionCheck)
	assert.Equal(t, "acl", cfg.Authz.Type)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.False(t, cfg.TLS.Enabled)
	assert.Nil(t, cfg.Lockdown.OutsideURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DEVPI_LOCKDOWN_UPSTREAM_URL", "http://devpi.internal:3141")
	t.Setenv("DEVPI_LOCKDOWN_SERVER_ADDR", ":8080")
	t.Setenv("DEVPI_LOCKDOWN_OUTSIDE_URL", "https://pypi.example.com")
	t.Setenv("DEVPI_LOCKDOWN_CLIENT_UA_SIGNATURE", "custom-client")
	t.Setenv("DEVPI_LOCKDOWN_AUTHZ_TYPE", "none")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "http://devpi.internal:3141", cfg.Upstream.URL.String())
	require.NotNil(t, cfg.Lockdown.OutsideURL)
	assert.Equal(t, "https://pypi.example.com", cfg.Lockdown.OutsideURL.String())
	assert.Equal(t, "custom-client", cfg.Lockdown.ClientUASignature)
	assert.Equal(t, "none", cfg.Authz.Type)
}

func TestLoadRequiresUpstream(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream URL is required")
}

func TestLoadRejectsUnknownAuthorizer(t *testing.T) {
	t.Setenv("DEVPI_LOCKDOWN_UPSTREAM_URL", "http://localhost:3141")
	t.Setenv("DEVPI_LOCKDOWN_AUTHZ_TYPE", "bogus")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown authorizer type")
}

func TestLoadSpiceDBRequiresToken(t *testing.T) {
	t.Setenv("DEVPI_LOCKDOWN_UPSTREAM_URL", "http://localhost:3141")
	t.Setenv("DEVPI_LOCKDOWN_AUTHZ_TYPE", "spicedb")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SpiceDB token is required")
}

func TestLoadACLRulesFromFile(t *testing.T) {
	t.Setenv("DEVPI_LOCKDOWN_UPSTREAM_URL", "http://localhost:3141")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
acl_rules:
  - name: internal-only
    permission: pkg_read
    user: corp
    index: internal
    principals:
      - user2
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.ACLRules, 1)
	assert.Equal(t, "internal-only", cfg.ACLRules[0].Name)
	assert.Equal(t, "pkg_read", cfg.ACLRules[0].Permission)
	assert.Equal(t, []string{"user2"}, cfg.ACLRules[0].Principals)
}

func TestLoadTLSValidation(t *testing.T) {
	t.Setenv("DEVPI_LOCKDOWN_UPSTREAM_URL", "http://localhost:3141")
	t.Setenv("DEVPI_LOCKDOWN_TLS_ENABLED", "true")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLS certificate path is required")
}
