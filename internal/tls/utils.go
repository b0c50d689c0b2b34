package tls

import (
	"crypto/x509"
	"fmt"
	"time"
)

// VerifyClientCertificate verifies a client certificate against a CA pool
func VerifyClientCertificate(cert *x509.Certificate, caPool *x509.CertPool) error {
	opts := x509.VerifyOptions{
		Roots:         caPool,
		CurrentTime:   time.Now(),
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("client certificate verification failed: %w", err)
	}
	return nil
}

// ExtractSubject extracts the identity subject from a certificate
func ExtractSubject(cert *x509.Certificate) (string, error) {
	if cert.Subject.CommonName == "" {
		return "", fmt.Errorf("certificate has no Common Name")
	}
	return cert.Subject.CommonName, nil
}
