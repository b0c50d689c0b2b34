package config

import (
	"net/url"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	// Server holds HTTP server configuration
	Server struct {
		// Address is the address to listen on
		Address string
		// ShutdownTimeout is the maximum time to wait for a graceful shutdown
		ShutdownTimeout time.Duration
	}

	// Metrics holds metrics server configuration
	Metrics struct {
		// Address is the address to listen on for the metrics server
		Address string
	}

	// TLS holds TLS configuration for the gate's own listener
	TLS struct {
		// Enabled indicates whether TLS is enabled
		Enabled bool
		// CertPath is the path to the TLS certificate
		CertPath string
		// KeyPath is the path to the TLS key
		KeyPath string
		// ClientCAPaths are CA certificates for client cert verification
		ClientCAPaths []string
	}

	// Upstream holds configuration for the devpi server
	Upstream struct {
		// URL is the URL of the devpi server
		URL *url.URL
		// Timeout is the maximum time to wait for upstream responses
		Timeout time.Duration
	}

	// Lockdown holds gate behavior configuration
	Lockdown struct {
		// OutsideURL is the application URL as seen by clients; nil derives
		// it per request
		OutsideURL *url.URL
		// ClientUASignature is the User-Agent substring marking the devpi
		// CLI client
		ClientUASignature string
		// LoginPermissionCheck requires the user_login permission after
		// credential validation
		LoginPermissionCheck bool
	}

	// Auth holds identity resolution configuration
	Auth struct {
		// Bearer holds OIDC bearer token configuration
		Bearer struct {
			// Enabled indicates whether bearer resolution is enabled
			Enabled bool
			// Issuer is the token issuer URL
			Issuer string
			// ClientID is the client ID for token validation
			ClientID string
		}

		// MTLS holds client certificate configuration
		MTLS struct {
			// Enabled indicates whether client cert resolution is enabled
			Enabled bool
		}
	}

	// Authz holds authorization configuration
	Authz struct {
		// Type is the type of authorizer to use (acl, spicedb, none)
		Type string

		// SpiceDB holds SpiceDB configuration
		SpiceDB struct {
			// Endpoint is the SpiceDB endpoint
			Endpoint string
			// Insecure indicates whether to use an insecure connection
			Insecure bool
			// Token is the SpiceDB authentication token
			Token string
			// ResourceType is the SpiceDB object type for indexes
			ResourceType string
			// SubjectType is the SpiceDB object type for users
			SubjectType string
		}
	}

	// Nginx holds config generation parameters
	Nginx struct {
		// ServerName is the generated server_name value
		ServerName string
		// Port is the generated listen port
		Port int
		// ServerDir is the devpi-server state directory
		ServerDir string
	}

	// Observability holds observability configuration
	Observability struct {
		// LogLevel is the minimum log level to emit
		LogLevel string
	}

	// ACLRules holds the built-in authorizer's rules
	ACLRules []Rule
}

// Rule is one ACL entry as it appears in the configuration file
type Rule struct {
	// Name identifies the rule in logs
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Permission is the permission this rule governs, e.g. "pkg_read"
	Permission string `json:"permission" yaml:"permission" mapstructure:"permission"`

	// User restricts the rule to indexes of this owner; empty matches all
	User string `json:"user" yaml:"user" mapstructure:"user"`

	// Index restricts the rule to this index name; empty matches all
	Index string `json:"index" yaml:"index" mapstructure:"index"`

	// Principals are the usernames granted the permission
	Principals []string `json:"principals" yaml:"principals" mapstructure:"principals"`
}
