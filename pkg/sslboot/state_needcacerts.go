// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
)

// stateNeedCACerts produces a Context containing the CA chain.
type stateNeedCACerts struct{}

// Next loads persisted CA certs if present, otherwise fetches them with
// a bare InsecureSkipVerify GET, parses and persists them, and advances
// to NeedCRLs.
func (stateNeedCACerts) Next(ctx context.Context, m *Machine, sctx Context) (State, Context, error) {
	log := m.logger().With("state", "NeedCACerts")

	certs, err := m.store.LoadCACerts()
	if err != nil {
		return nil, sctx, Fatal(fmt.Errorf("%w: load CA certs: %w", ErrIO, err))
	}

	if len(certs) > 0 {
		log.Debug("using persisted CA certificates", "count", len(certs))
		installTrustedCAs(m.ca, certs)
		return stateNeedCRLs{}, sctx.withCACerts(certs), nil
	}

	body, err := m.fetchCABundle(ctx)
	if err != nil {
		return nil, sctx, err
	}

	parsed, err := parsePEMCertificates(body)
	if err != nil {
		// Nothing is persisted unless it parsed and validated.
		return nil, sctx, Fatal(fmt.Errorf("%w: %w", ErrParse, err))
	}
	if len(parsed) == 0 {
		return nil, sctx, Fatal(fmt.Errorf("%w: no certificates in CA response", ErrParse))
	}

	if err := m.store.SaveCACerts(parsed); err != nil {
		return nil, sctx, Fatal(fmt.Errorf("%w: save CA certs: %w", ErrIO, err))
	}

	log.Info("fetched and persisted CA certificates", "count", len(parsed))
	installTrustedCAs(m.ca, parsed)
	return stateNeedCRLs{}, sctx.withCACerts(parsed), nil
}

// caTrustInstaller is an optional capability a CaClient implementation
// can provide to learn the CA chain once it is established, so that
// subsequent verify_peer=true requests validate the server certificate
// against it. caclient.Client implements this; the check follows the
// same optional-interface idiom as http.Flusher.
type caTrustInstaller interface {
	SetTrustedCAs(certs []*x509.Certificate)
}

func installTrustedCAs(ca CaClient, certs []*x509.Certificate) {
	if installer, ok := ca.(caTrustInstaller); ok {
		installer.SetTrustedCAs(certs)
	}
}

// fetchCABundle retrieves the initial, unverified CA bundle. Peer
// verification is disabled here — this is the one request per run
// that runs with verify_peer=false.
func (m *Machine) fetchCABundle(ctx context.Context) ([]byte, error) {
	status, body, err := m.ca.GetCACertificates(ctx, false)
	if err != nil {
		return nil, Fatal(fmt.Errorf("%w: %w", ErrNetwork, err))
	}

	switch {
	case status == http.StatusNotFound:
		return nil, Fatal(fmt.Errorf("%w: CA certificate is missing from the server", ErrNetwork))
	case status < 200 || status >= 300:
		return nil, Fatal(fmt.Errorf("%w: Could not download CA certificate: %s", ErrNetwork, http.StatusText(status)))
	}

	return body, nil
}

// parsePEMCertificates parses every CERTIFICATE PEM block in data.
func parsePEMCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	return certs, nil
}
