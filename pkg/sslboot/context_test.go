// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_WithCACertsSetsVerifyPeer(t *testing.T) {
	var c Context
	assert.False(t, c.VerifyPeer())
	assert.Nil(t, c.CACerts())

	ca := newTestCA(t)
	c2 := c.withCACerts([]*x509.Certificate{ca.cert})
	assert.True(t, c2.VerifyPeer())
	assert.Len(t, c2.CACerts(), 1)

	// c is unchanged: with* never mutates its receiver.
	assert.False(t, c.VerifyPeer())
	assert.Nil(t, c.CACerts())

	c3 := c2.withCACerts(nil)
	assert.False(t, c3.VerifyPeer())
}

func TestContext_WithPrivateKeyAndClientCert(t *testing.T) {
	var c Context
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	c2 := c.withPrivateKey(key)
	assert.Same(t, key, c2.PrivateKey())
	assert.Nil(t, c.PrivateKey())

	ca := newTestCA(t)
	leaf := ca.issue(t, 1, &key.PublicKey, false)
	c3 := c2.withClientCert(leaf)
	assert.Equal(t, leaf, c3.ClientCert())
	assert.Same(t, key, c3.PrivateKey(), "withClientCert must not disturb the private key")
}

func TestContext_Reset(t *testing.T) {
	ca := newTestCA(t)
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	c := Context{}.withCACerts([]*x509.Certificate{ca.cert}).withPrivateKey(key)
	require.True(t, c.VerifyPeer())

	reset := c.reset()
	assert.False(t, reset.VerifyPeer())
	assert.Nil(t, reset.CACerts())
	assert.Nil(t, reset.PrivateKey())
}
