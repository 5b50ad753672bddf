// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"crypto/rsa"
	"crypto/x509"
)

// Context is the accumulating trust material gathered by the bootstrap
// pipeline: CA certificates, CRLs, the agent's private key, and (once
// signed) the client certificate. A Context is immutable once
// constructed; each state produces a new Context via the with*
// constructors below rather than mutating its predecessor. The only
// state that drops established trust material is Wait, which restarts
// from an empty Context via reset.
type Context struct {
	cacerts    []*x509.Certificate
	crls       []*x509.RevocationList
	privateKey *rsa.PrivateKey
	clientCert *x509.Certificate
	verifyPeer bool
}

// CACerts returns the CA certificate chain accumulated so far, or nil
// if none has been established yet.
func (c Context) CACerts() []*x509.Certificate {
	return c.cacerts
}

// CRLs returns the CRL chain accumulated so far. It is empty both when
// revocation checking is disabled and when it has not yet run.
func (c Context) CRLs() []*x509.RevocationList {
	return c.crls
}

// PrivateKey returns the agent's private key, or nil if it has not been
// established yet.
func (c Context) PrivateKey() *rsa.PrivateKey {
	return c.privateKey
}

// ClientCert returns the signed client certificate, or nil until the
// pipeline reaches Done.
func (c Context) ClientCert() *x509.Certificate {
	return c.clientCert
}

// VerifyPeer reports whether subsequent requests should verify the
// server's certificate against CACerts. It is true whenever CACerts is
// non-empty and matches the loaded material, except for the CA-download
// request itself.
func (c Context) VerifyPeer() bool {
	return c.verifyPeer
}

// withCACerts returns a new Context with the CA chain populated and
// verify_peer set, leaving c untouched.
func (c Context) withCACerts(certs []*x509.Certificate) Context {
	next := c
	next.cacerts = certs
	next.verifyPeer = len(certs) > 0
	return next
}

// withCRLs returns a new Context with the CRL chain populated.
func (c Context) withCRLs(crls []*x509.RevocationList) Context {
	next := c
	next.crls = crls
	return next
}

// withPrivateKey returns a new Context carrying the given private key.
func (c Context) withPrivateKey(key *rsa.PrivateKey) Context {
	next := c
	next.privateKey = key
	return next
}

// withClientCert returns a new, terminal Context carrying the signed
// client certificate.
func (c Context) withClientCert(cert *x509.Certificate) Context {
	next := c
	next.clientCert = cert
	return next
}

// reset returns an empty Context, used when Wait re-enters NeedCACerts
// (the one backward edge in the state machine) so that stale local
// material is re-verified from scratch rather than assumed valid.
func (c Context) reset() Context {
	return Context{}
}
