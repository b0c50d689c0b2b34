package config

import "github.com/spf13/viper"

// SettingType represents the type of a setting
type SettingType string

const (
	// String type for string settings
	String SettingType = "string"
	// Bool type for boolean settings
	Bool SettingType = "bool"
	// Int type for integer settings
	Int SettingType = "int"
	// StringSlice type for string slice settings
	StringSlice SettingType = "stringSlice"
)

// Setting defines a configuration setting
type Setting struct {
	// Name is the name of the setting
	Name string
	// Short is a short description of the setting
	Short string
	// Type is the type of the setting
	Type SettingType
	// Default is the default value of the setting
	Default interface{}
	// Required indicates whether the setting is required
	Required bool
}

// SettingList is a list of settings
type SettingList []Setting

// PopulateViperDefaults sets default values for all settings in Viper
func (sl SettingList) PopulateViperDefaults(v *viper.Viper) {
	for _, s := range sl {
		v.SetDefault(s.Name, s.Default)
	}
}

// Settings defines all application settings
var Settings = SettingList{
	// Server settings
	{
		Name:    "SERVER_ADDR",
		Short:   "Address on which the gate listens",
		Type:    String,
		Default: ":3142",
	},
	{
		Name:    "METRICS_ADDR",
		Short:   "Address on which the metrics server listens",
		Type:    String,
		Default: ":9090",
	},
	{
		Name:    "SHUTDOWN_TIMEOUT",
		Short:   "Maximum time to wait for graceful shutdown",
		Type:    String,
		Default: "30s",
	},

	// TLS settings
	{
		Name:    "TLS_ENABLED",
		Short:   "Enable TLS for the gate's own listener",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "TLS_CERT_PATH",
		Short:   "Path to TLS certificate file",
		Type:    String,
		Default: "",
	},
	{
		Name:    "TLS_KEY_PATH",
		Short:   "Path to TLS key file",
		Type:    String,
		Default: "",
	},
	{
		Name:    "TLS_CLIENT_CA_PATHS",
		Short:   "Paths to CA certificates for client certificate verification",
		Type:    StringSlice,
		Default: []string{},
	},

	// Upstream settings
	{
		Name:     "UPSTREAM_URL",
		Short:    "URL of the devpi server",
		Type:     String,
		Default:  "",
		Required: true,
	},
	{
		Name:    "UPSTREAM_TIMEOUT",
		Short:   "Timeout for upstream requests",
		Type:    String,
		Default: "30s",
	},
	{
		Name:    "OUTSIDE_URL",
		Short:   "Application URL as seen by clients; empty derives it per request",
		Type:    String,
		Default: "",
	},

	// Lockdown behavior
	{
		Name:    "CLIENT_UA_SIGNATURE",
		Short:   "User-Agent substring marking the devpi CLI client",
		Type:    String,
		Default: "devpi-client",
	},
	{
		Name:    "LOGIN_PERMISSION_CHECK",
		Short:   "Require the user_login permission after credential validation",
		Type:    Bool,
		Default: true,
	},

	// Identity: bearer tokens
	{
		Name:    "AUTH_BEARER_ENABLED",
		Short:   "Enable OIDC bearer token identity resolution",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "AUTH_BEARER_ISSUER",
		Short:   "Bearer token issuer URL",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_BEARER_CLIENT_ID",
		Short:   "Bearer token client ID",
		Type:    String,
		Default: "",
	},

	// Identity: client certificates
	{
		Name:    "AUTH_MTLS_ENABLED",
		Short:   "Enable client certificate identity resolution",
		Type:    Bool,
		Default: false,
	},

	// Authorization
	{
		Name:    "AUTHZ_TYPE",
		Short:   "Type of authorizer to use (acl, spicedb, none)",
		Type:    String,
		Default: "acl",
	},
	{
		Name:    "AUTHZ_SPICEDB_ENDPOINT",
		Short:   "SpiceDB endpoint",
		Type:    String,
		Default: "localhost:50051",
	},
	{
		Name:    "AUTHZ_SPICEDB_INSECURE",
		Short:   "Use insecure connection to SpiceDB",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "AUTHZ_SPICEDB_TOKEN",
		Short:   "SpiceDB authentication token",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTHZ_SPICEDB_RESOURCE_TYPE",
		Short:   "SpiceDB object type for indexes",
		Type:    String,
		Default: "index",
	},
	{
		Name:    "AUTHZ_SPICEDB_SUBJECT_TYPE",
		Short:   "SpiceDB object type for users",
		Type:    String,
		Default: "user",
	},

	// nginx config generation
	{
		Name:    "NGINX_SERVER_NAME",
		Short:   "server_name for the generated nginx config",
		Type:    String,
		Default: "localhost",
	},
	{
		Name:    "NGINX_PORT",
		Short:   "Listen port for the generated nginx config",
		Type:    Int,
		Default: 80,
	},
	{
		Name:    "NGINX_SERVER_DIR",
		Short:   "devpi-server state directory for the generated nginx config",
		Type:    String,
		Default: "/var/lib/devpi",
	},

	// Observability
	{
		Name:    "LOG_LEVEL",
		Short:   "Logging level",
		Type:    String,
		Default: "info",
	},
}
