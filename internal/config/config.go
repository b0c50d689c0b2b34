package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads the configuration from all sources and returns the merged result
func Load(configPath string) (*Config, error) {
	v := viper.New()

	Settings.PopulateViperDefaults(v)

	v.SetEnvPrefix("DEVPI_LOCKDOWN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// A missing config file is fine; other errors are not
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	config := &Config{}

	config.Server.Address = v.GetString("SERVER_ADDR")
	shutdownTimeout, err := time.ParseDuration(v.GetString("SHUTDOWN_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	config.Server.ShutdownTimeout = shutdownTimeout

	config.Metrics.Address = v.GetString("METRICS_ADDR")

	config.TLS.Enabled = v.GetBool("TLS_ENABLED")
	config.TLS.CertPath = v.GetString("TLS_CERT_PATH")
	config.TLS.KeyPath = v.GetString("TLS_KEY_PATH")
	config.TLS.ClientCAPaths = v.GetStringSlice("TLS_CLIENT_CA_PATHS")

	upstreamURL, err := url.Parse(v.GetString("UPSTREAM_URL"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	config.Upstream.URL = upstreamURL

	upstreamTimeout, err := time.ParseDuration(v.GetString("UPSTREAM_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream timeout: %w", err)
	}
	config.Upstream.Timeout = upstreamTimeout

	if outsideURL := v.GetString("OUTSIDE_URL"); outsideURL != "" {
		u, err := url.Parse(outsideURL)
		if err != nil {
			return nil, fmt.Errorf("invalid outside URL: %w", err)
		}
		config.Lockdown.OutsideURL = u
	}
	config.Lockdown.ClientUASignature = v.GetString("CLIENT_UA_SIGNATURE")
	config.Lockdown.LoginPermissionCheck = v.GetBool("LOGIN_PERMISSION_CHECK")

	config.Auth.Bearer.Enabled = v.GetBool("AUTH_BEARER_ENABLED")
	config.Auth.Bearer.Issuer = v.GetString("AUTH_BEARER_ISSUER")
	config.Auth.Bearer.ClientID = v.GetString("AUTH_BEARER_CLIENT_ID")

	config.Auth.MTLS.Enabled = v.GetBool("AUTH_MTLS_ENABLED")

	config.Authz.Type = v.GetString("AUTHZ_TYPE")
	config.Authz.SpiceDB.Endpoint = v.GetString("AUTHZ_SPICEDB_ENDPOINT")
	config.Authz.SpiceDB.Insecure = v.GetBool("AUTHZ_SPICEDB_INSECURE")
	config.Authz.SpiceDB.Token = v.GetString("AUTHZ_SPICEDB_TOKEN")
	config.Authz.SpiceDB.ResourceType = v.GetString("AUTHZ_SPICEDB_RESOURCE_TYPE")
	config.Authz.SpiceDB.SubjectType = v.GetString("AUTHZ_SPICEDB_SUBJECT_TYPE")

	config.Nginx.ServerName = v.GetString("NGINX_SERVER_NAME")
	config.Nginx.Port = v.GetInt("NGINX_PORT")
	config.Nginx.ServerDir = v.GetString("NGINX_SERVER_DIR")

	config.Observability.LogLevel = v.GetString("LOG_LEVEL")

	if err := v.UnmarshalKey("acl_rules", &config.ACLRules); err != nil {
		return nil, fmt.Errorf("invalid acl_rules: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig performs validation on the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.Upstream.URL == nil || cfg.Upstream.URL.String() == "" {
		return fmt.Errorf("upstream URL is required")
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return fmt.Errorf("TLS certificate path is required when TLS is enabled")
		}
		if cfg.TLS.KeyPath == "" {
			return fmt.Errorf("TLS key path is required when TLS is enabled")
		}
		if _, err := os.Stat(cfg.TLS.CertPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", cfg.TLS.CertPath)
		}
		if _, err := os.Stat(cfg.TLS.KeyPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", cfg.TLS.KeyPath)
		}
	}

	if cfg.Auth.Bearer.Enabled {
		if cfg.Auth.Bearer.Issuer == "" {
			return fmt.Errorf("bearer issuer is required when bearer resolution is enabled")
		}
		if cfg.Auth.Bearer.ClientID == "" {
			return fmt.Errorf("bearer client ID is required when bearer resolution is enabled")
		}
	}

	if cfg.Auth.MTLS.Enabled {
		if !cfg.TLS.Enabled {
			return fmt.Errorf("mTLS resolution requires TLS to be enabled")
		}
		if len(cfg.TLS.ClientCAPaths) == 0 {
			return fmt.Errorf("at least one client CA path is required when mTLS resolution is enabled")
		}
		for _, caPath := range cfg.TLS.ClientCAPaths {
			if _, err := os.Stat(caPath); os.IsNotExist(err) {
				return fmt.Errorf("client CA file not found: %s", caPath)
			}
		}
	}

	switch cfg.Authz.Type {
	case "acl", "none":
	case "spicedb":
		if cfg.Authz.SpiceDB.Token == "" {
			return fmt.Errorf("SpiceDB token is required when using SpiceDB authorization")
		}
	default:
		return fmt.Errorf("unknown authorizer type: %s", cfg.Authz.Type)
	}

	return nil
}
