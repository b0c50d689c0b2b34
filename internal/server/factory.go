package server

import (
	"crypto/tls"
	"fmt"

	"github.com/authzed/authzed-go/v1"
	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/credentials/oauth"

	"github.com/devpi/devpi-lockdown/internal/authcheck"
	"github.com/devpi/devpi-lockdown/internal/authz"
	"github.com/devpi/devpi-lockdown/internal/authz/acl"
	"github.com/devpi/devpi-lockdown/internal/authz/spicedb"
	"github.com/devpi/devpi-lockdown/internal/config"
	"github.com/devpi/devpi-lockdown/internal/identity"
	"github.com/devpi/devpi-lockdown/internal/identity/bearer"
	"github.com/devpi/devpi-lockdown/internal/identity/devpi"
	"github.com/devpi/devpi-lockdown/internal/identity/mtls"
	"github.com/devpi/devpi-lockdown/internal/observability"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
	"github.com/devpi/devpi-lockdown/internal/proxy"
	"github.com/devpi/devpi-lockdown/internal/routes"
	"github.com/devpi/devpi-lockdown/internal/session"
	tlsconfig "github.com/devpi/devpi-lockdown/internal/tls"
	"github.com/devpi/devpi-lockdown/internal/web"
)

// NewFromConfig creates a new server from configuration
func NewFromConfig(cfg *config.Config) (*Server, error) {
	obs, err := observability.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	var tlsSetup *tlsconfig.Config
	var tlsCfg *tls.Config
	if cfg.TLS.Enabled {
		tlsSetup = &tlsconfig.Config{
			Logger:        logger,
			CertPath:      cfg.TLS.CertPath,
			KeyPath:       cfg.TLS.KeyPath,
			ClientCAFiles: cfg.TLS.ClientCAPaths,
		}
		tlsCfg, err = tlsSetup.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
		}
	}

	// The upstream devpi server is both the token issuer and the session
	// validator; the gate holds no credential state of its own.
	upstream := devpi.New(devpi.Config{
		URL:     cfg.Upstream.URL,
		Timeout: cfg.Upstream.Timeout,
	}, logger, obs.Metrics)
	logger.Info("upstream devpi server configured", "url", logging.RedactURL(cfg.Upstream.URL))

	// Resolver order matters: a client certificate outranks a bearer token,
	// which outranks the session cookie.
	var resolvers identity.Chain
	if cfg.Auth.MTLS.Enabled {
		resolvers = append(resolvers, mtls.New(tlsSetup.ClientCAs, logger))
		logger.Info("mTLS identity resolution enabled")
	}
	if cfg.Auth.Bearer.Enabled {
		bearerResolver, err := bearer.New(bearer.Config{
			Issuer:   cfg.Auth.Bearer.Issuer,
			ClientID: cfg.Auth.Bearer.ClientID,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bearer resolver: %w", err)
		}
		resolvers = append(resolvers, bearerResolver)
		logger.Info("bearer identity resolution enabled",
			"issuer", logging.RedactStringURL(cfg.Auth.Bearer.Issuer))
	}
	resolvers = append(resolvers, &session.Resolver{Validator: upstream})

	authorizer, err := newAuthorizer(cfg, logger)
	if err != nil {
		return nil, err
	}

	table := routes.New()
	reconstructor := &authcheck.Reconstructor{
		Table:    table,
		Resolver: resolvers,
	}
	engine := &authcheck.Engine{
		AlwaysOK:  authcheck.DefaultAlwaysOK(),
		Forbidden: []authcheck.Predicate{authcheck.RequirePkgRead(authorizer)},
		Logger:    logger.WithModule("authcheck"),
	}

	guard := proxy.New(proxy.Config{
		UpstreamURL:       cfg.Upstream.URL,
		UpstreamTimeout:   cfg.Upstream.Timeout,
		ClientUASignature: cfg.Lockdown.ClientUASignature,
	}, reconstructor, engine, logger, obs.Metrics)

	secure := cfg.TLS.Enabled ||
		(cfg.Lockdown.OutsideURL != nil && cfg.Lockdown.OutsideURL.Scheme == "https")
	handler := web.New(web.Config{
		OutsideURL:           cfg.Lockdown.OutsideURL,
		Secure:               secure,
		ClientUASignature:    cfg.Lockdown.ClientUASignature,
		LoginPermissionCheck: cfg.Lockdown.LoginPermissionCheck,
	}, reconstructor, engine, upstream, resolvers, authorizer, guard, logger, obs.Metrics)

	serverConfig := Config{
		Address:         cfg.Server.Address,
		MetricsAddress:  cfg.Metrics.Address,
		TLSConfig:       tlsCfg,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}

	return New(serverConfig, obs.Middleware(handler), obs.MetricsHandler(), logger), nil
}

// newAuthorizer builds the configured authorization backend
func newAuthorizer(cfg *config.Config, logger *logging.Logger) (authz.Authorizer, error) {
	switch cfg.Authz.Type {
	case "acl":
		return acl.New(convertRules(cfg.ACLRules), logger), nil
	case "spicedb":
		client, err := createSpiceDBClient(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SpiceDB client: %w", err)
		}
		return spicedb.New(spicedb.Config{
			ResourceType: cfg.Authz.SpiceDB.ResourceType,
			SubjectType:  cfg.Authz.SpiceDB.SubjectType,
		}, client, logger), nil
	case "none":
		return authz.AllowAll{}, nil
	default:
		return nil, fmt.Errorf("unknown authorizer type: %s", cfg.Authz.Type)
	}
}

// convertRules converts config.Rule to acl.Rule
func convertRules(configRules []config.Rule) []acl.Rule {
	rules := make([]acl.Rule, len(configRules))
	for i, rule := range configRules {
		rules[i] = acl.Rule{
			Name:       rule.Name,
			Permission: rule.Permission,
			User:       rule.User,
			Index:      rule.Index,
			Principals: rule.Principals,
		}
	}
	return rules
}

// createSpiceDBClient creates a SpiceDB client
func createSpiceDBClient(cfg *config.Config, logger *logging.Logger) (*authzed.Client, error) {
	logger.Info("connecting to SpiceDB",
		"endpoint", cfg.Authz.SpiceDB.Endpoint,
		"insecure", cfg.Authz.SpiceDB.Insecure)

	var opts []grpc.DialOption
	if cfg.Authz.SpiceDB.Insecure {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		opts = append(opts,
			grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})),
			grpc.WithPerRPCCredentials(oauth.TokenSource{
				TokenSource: oauth2.StaticTokenSource(
					&oauth2.Token{AccessToken: cfg.Authz.SpiceDB.Token}),
			}),
		)
	}

	return authzed.NewClient(cfg.Authz.SpiceDB.Endpoint, opts...)
}
