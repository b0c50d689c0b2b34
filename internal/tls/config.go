package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/devpi/devpi-lockdown/internal/observability/logging"
)

// Config holds the TLS configuration for the gate's own listener
type Config struct {
	// Logger is the logger to use
	Logger *logging.Logger

	// CertPath is the path to the server certificate
	CertPath string

	// KeyPath is the path to the server key
	KeyPath string

	// ClientCAFiles is a list of CA certificate paths for optional client
	// certificate verification
	ClientCAFiles []string

	// ClientCAs is the certificate pool built from ClientCAFiles
	ClientCAs *x509.CertPool
}

// Build creates the server TLS configuration. Client certificates are
// accepted but not required; the mtls resolver decides what a presented
// certificate is worth.
func (c *Config) Build() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.CertPath, c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load server key pair: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.VerifyClientCertIfGiven,
		MinVersion:   tls.VersionTLS12,
	}

	if len(c.ClientCAFiles) > 0 {
		pool := x509.NewCertPool()
		for _, caFile := range c.ClientCAFiles {
			pem, err := os.ReadFile(caFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read client CA file: %w", err)
			}
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("failed to parse client CA file: %s", caFile)
			}
			c.Logger.Debug("client CA loaded", "file", caFile)
		}
		c.ClientCAs = pool
		tlsConfig.ClientCAs = pool
	}

	c.Logger.Info("TLS configuration loaded", "cert", c.CertPath)
	return tlsConfig, nil
}
