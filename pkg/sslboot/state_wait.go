// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"context"
	"fmt"
)

// stateWait delays and restarts the pipeline from NeedCACerts, or
// requests process exit when waitforcert is 0.
type stateWait struct{}

func (stateWait) Next(ctx context.Context, m *Machine, sctx Context) (State, Context, error) {
	log := m.logger().With("state", "Wait")

	if m.cfg.WaitForCert <= 0 {
		return nil, sctx, &ErrExitRequested{Certname: m.cfg.Certname}
	}

	log.Info(fmt.Sprintf(
		"Couldn't fetch certificate from CA server; you might still need to sign this agent's certificate (%s). Will try again in %d seconds.",
		m.cfg.Certname, int(m.cfg.WaitForCert.Seconds()),
	))

	if err := m.sleeper(ctx, m.cfg.WaitForCert); err != nil {
		// Cancellation during the sleep is an immediate exit, not a
		// transition.
		return nil, sctx, err
	}

	// The one backward edge: local material is re-verified from scratch,
	// since the CA chain or CRLs could have changed while we waited.
	return stateNeedCACerts{}, sctx.reset(), nil
}
