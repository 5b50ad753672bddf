// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
)

// stateNeedKey establishes the agent's private key.
type stateNeedKey struct{}

func (stateNeedKey) Next(ctx context.Context, m *Machine, sctx Context) (State, Context, error) {
	log := m.logger().With("state", "NeedKey")

	key, err := m.store.LoadPrivateKey()
	if err != nil {
		return nil, sctx, Fatal(fmt.Errorf("%w: load private key: %w", ErrCrypto, err))
	}

	if key == nil {
		log.Info("generating private key", "bits", m.cfg.keySize())
		key, err = rsa.GenerateKey(rand.Reader, m.cfg.keySize())
		if err != nil {
			return nil, sctx, Fatal(fmt.Errorf("%w: generate private key: %w", ErrCrypto, err))
		}
		if err := m.store.SavePrivateKey(key); err != nil {
			return nil, sctx, Fatal(fmt.Errorf("%w: save private key: %w", ErrIO, err))
		}
	}

	nextCtx := sctx.withPrivateKey(key)

	cert, err := m.store.LoadClientCert()
	if err != nil {
		return nil, sctx, Fatal(fmt.Errorf("%w: load client cert: %w", ErrIO, err))
	}
	if cert == nil {
		return stateNeedSubmitCSR{}, nextCtx, nil
	}

	if !key.PublicKey.Equal(cert.PublicKey) {
		return nil, sctx, Fatal(fmt.Errorf(
			"%w: The certificate for '%s' does not match its private key",
			ErrVerification, cert.Subject.String(),
		))
	}

	log.Info("local key and certificate already valid")
	return stateDone{}, nextCtx.withClientCert(cert), nil
}
