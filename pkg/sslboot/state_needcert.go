// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"context"
	"crypto/x509"
)

// stateNeedCert retrieves and verifies the signed client certificate.
// Every failure here is "server/content not ready" and is
// therefore recoverable via Wait, never fatal; only CertProvider
// I/O failures are fatal.
type stateNeedCert struct{}

func (stateNeedCert) Next(ctx context.Context, m *Machine, sctx Context) (State, Context, error) {
	log := m.logger().With("state", "NeedCert")

	status, body, err := m.ca.GetClientCertificate(ctx, m.cfg.Certname, true)
	if err != nil {
		log.Info("client certificate not yet available", "error", err)
		return stateWait{}, sctx, nil
	}
	if status != 200 {
		log.Info("client certificate not yet signed", "status", status)
		return stateWait{}, sctx, nil
	}

	certs, err := parsePEMCertificates(body)
	if err != nil || len(certs) == 0 {
		log.Warn("failed to parse client certificate response", "error", err)
		return stateWait{}, sctx, nil
	}
	cert := certs[0]

	if sctx.PrivateKey() == nil || !sctx.PrivateKey().PublicKey.Equal(cert.PublicKey) {
		log.Warn("client certificate does not match private key", "subject", cert.Subject.String())
		return stateWait{}, sctx, nil
	}

	if certRevoked(cert, sctx.CRLs()) {
		log.Warn("client certificate is revoked", "subject", cert.Subject.String())
		return stateWait{}, sctx, nil
	}

	if err := m.store.SaveClientCert(cert); err != nil {
		return nil, sctx, Fatal(err)
	}

	log.Info("client certificate fetched and verified", "subject", cert.Subject.String())
	return stateDone{}, sctx.withClientCert(cert), nil
}

// certRevoked reports whether cert's serial number appears on any of
// the given CRLs.
func certRevoked(cert *x509.Certificate, crls []*x509.RevocationList) bool {
	for _, crl := range crls {
		for _, revoked := range crl.RevokedCertificateEntries {
			if revoked.SerialNumber != nil && cert.SerialNumber != nil &&
				revoked.SerialNumber.Cmp(cert.SerialNumber) == 0 {
				return true
			}
		}
	}
	return false
}
