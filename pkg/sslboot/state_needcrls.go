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

// stateNeedCRLs extends the Context with CRLs, or skips entirely when
// revocation checking is disabled.
type stateNeedCRLs struct{}

func (stateNeedCRLs) Next(ctx context.Context, m *Machine, sctx Context) (State, Context, error) {
	if !m.cfg.CertificateRevocation {
		// The skip must not even consult the CertProvider.
		return stateNeedKey{}, sctx, nil
	}

	log := m.logger().With("state", "NeedCRLs")

	crls, err := m.store.LoadCRLs()
	if err != nil {
		return nil, sctx, Fatal(fmt.Errorf("%w: load CRLs: %w", ErrIO, err))
	}

	if len(crls) > 0 {
		log.Debug("using persisted CRLs", "count", len(crls))
		return stateNeedKey{}, sctx.withCRLs(crls), nil
	}

	status, body, err := m.ca.GetCRLs(ctx, true)
	if err != nil {
		return nil, sctx, Fatal(fmt.Errorf("%w: %w", ErrNetwork, err))
	}

	switch {
	case status == http.StatusNotFound:
		return nil, sctx, Fatal(fmt.Errorf("%w: CRL is missing from the server", ErrNetwork))
	case status < 200 || status >= 300:
		return nil, sctx, Fatal(fmt.Errorf("%w: Could not download CRLs: %s", ErrNetwork, http.StatusText(status)))
	}

	parsed, err := parsePEMCRLs(body)
	if err != nil {
		return nil, sctx, Fatal(fmt.Errorf("%w: %w", ErrParse, err))
	}
	if len(parsed) == 0 {
		return nil, sctx, Fatal(fmt.Errorf("%w: no CRLs in response", ErrParse))
	}

	if err := m.store.SaveCRLs(parsed); err != nil {
		return nil, sctx, Fatal(fmt.Errorf("%w: save CRLs: %w", ErrIO, err))
	}

	log.Info("fetched and persisted CRLs", "count", len(parsed))
	return stateNeedKey{}, sctx.withCRLs(parsed), nil
}

// parsePEMCRLs parses every X509 CRL PEM block in data.
func parsePEMCRLs(data []byte) ([]*x509.RevocationList, error) {
	var crls []*x509.RevocationList
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "X509 CRL" {
			continue
		}
		crl, err := x509.ParseRevocationList(block.Bytes)
		if err != nil {
			return nil, err
		}
		crls = append(crls, crl)
	}
	return crls, nil
}
