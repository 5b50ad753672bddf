// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
)

// CaClient issues the four HTTP requests the bootstrap pipeline needs
// against the certificate authority. verifyPeer selects whether the
// transport validates the server's certificate against the currently
// held CA chain; the state machine is the sole authority on this flag
// per request. Implementations do not interpret status codes —
// they return them for the calling state to classify.
type CaClient interface {
	// GetCACertificates fetches the CA certificate chain as a PEM body.
	GetCACertificates(ctx context.Context, verifyPeer bool) (status int, body []byte, err error)

	// GetCRLs fetches the CRL chain as a PEM body.
	GetCRLs(ctx context.Context, verifyPeer bool) (status int, body []byte, err error)

	// PutCSR uploads a DER-encoded certificate signing request for certname.
	PutCSR(ctx context.Context, certname string, der []byte, verifyPeer bool) (status int, body []byte, err error)

	// GetClientCertificate fetches the signed client certificate for certname.
	GetClientCertificate(ctx context.Context, certname string, verifyPeer bool) (status int, body []byte, err error)
}

// CertProvider owns all on-disk trust material. load_* methods return
// (nil, nil) when nothing is persisted; a parse failure on an existing
// file propagates as a non-nil error, which the calling state treats as
// fatal. Writes are expected to be atomic (write-temp-then-rename)
// so a reader never observes a half-written file.
type CertProvider interface {
	LoadCACerts() ([]*x509.Certificate, error)
	SaveCACerts(certs []*x509.Certificate) error

	LoadCRLs() ([]*x509.RevocationList, error)
	SaveCRLs(crls []*x509.RevocationList) error

	LoadPrivateKey() (*rsa.PrivateKey, error)
	SavePrivateKey(key *rsa.PrivateKey) error

	LoadClientCert() (*x509.Certificate, error)
	SaveClientCert(cert *x509.Certificate) error

	// SaveRequest persists the DER-encoded CSR before it is uploaded.
	SaveRequest(certname string, csr []byte) error
}
