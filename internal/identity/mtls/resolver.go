// Package mtls resolves identities from verified client certificates. Only
// useful when the gate terminates TLS itself; behind nginx the client
// connection ends at the proxy.
package mtls

import (
	"context"
	"crypto/x509"
	"net/http"

	"github.com/devpi/devpi-lockdown/internal/identity"
	"github.com/devpi/devpi-lockdown/internal/observability/logging"
	tlsutil "github.com/devpi/devpi-lockdown/internal/tls"
)

// Resolver implements client certificate identity resolution
type Resolver struct {
	logger *logging.Logger
	caPool *x509.CertPool
}

// New creates a new mTLS resolver. The CA pool must be the same one the
// server's TLS config verifies client chains against.
func New(caPool *x509.CertPool, logger *logging.Logger) *Resolver {
	return &Resolver{
		logger: logger.WithModule("identity.mtls"),
		caPool: caPool,
	}
}

// Name returns the name of this resolver
func (m *Resolver) Name() string { return "mtls" }

// Resolve returns the identity named by a verified client certificate, or
// nil when the connection carries none.
func (m *Resolver) Resolve(ctx context.Context, r *http.Request) (*identity.Identity, error) {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return nil, nil
	}

	cert := r.TLS.PeerCertificates[0]
	if err := tlsutil.VerifyClientCertificate(cert, m.caPool); err != nil {
		return nil, err
	}

	subject, err := tlsutil.ExtractSubject(cert)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("client certificate verified", "subject", subject)
	return &identity.Identity{Username: subject, Provider: m.Name()}, nil
}

var _ identity.Resolver = (*Resolver)(nil)
