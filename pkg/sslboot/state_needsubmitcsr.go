// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"context"
	"fmt"
	"net/http"
)

// stateNeedSubmitCSR builds and uploads a certificate signing request.
type stateNeedSubmitCSR struct{}

func (stateNeedSubmitCSR) Next(ctx context.Context, m *Machine, sctx Context) (State, Context, error) {
	log := m.logger().With("state", "NeedSubmitCSR")

	der, err := buildCSR(sctx.PrivateKey(), m.cfg.Certname, m.cfg.DNSAltNames, csrDocument(m.cfg.CSRAttributes))
	if err != nil {
		return nil, sctx, Fatal(err)
	}

	if err := m.store.SaveRequest(m.cfg.Certname, der); err != nil {
		return nil, sctx, Fatal(fmt.Errorf("%w: save CSR: %w", ErrIO, err))
	}

	status, body, err := m.ca.PutCSR(ctx, m.cfg.Certname, der, true)
	if err != nil {
		return nil, sctx, Fatal(fmt.Errorf("%w: %w", ErrNetwork, err))
	}

	switch {
	case status >= 200 && status < 300:
		log.Info("CSR submitted")
		return stateNeedCert{}, sctx, nil
	case status == http.StatusBadRequest && alreadyCertifiedPattern.Match(body):
		log.Info("CA already has a request or certificate on file")
		return stateNeedCert{}, sctx, nil
	default:
		return nil, sctx, Fatal(fmt.Errorf(
			"%w: Failed to submit the CSR, HTTP response was %d", ErrNetwork, status,
		))
	}
}
