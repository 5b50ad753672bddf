// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"log/slog"
	"time"

	"github.com/latticeagent/go-sslboot/pkg/sslboot/csrattrs"
)

// DefaultKeySize is the RSA modulus size used when no private key is
// present and one must be generated.
const DefaultKeySize = 4096

// Config carries the read-only configuration inputs the state machine
// needs. It is passed into the Machine constructor rather than
// read from package-level globals, so tests can run several machines
// with different settings in the same process without hidden coupling.
type Config struct {
	// Certname is the agent's canonical identifier: the CSR subject CN
	// and the path component of the per-agent CA URLs.
	Certname string

	// DNSAltNames is the raw, comma-separated dns_alt_names
	// configuration value. Each entry is TYPE:VALUE with TYPE in
	// {DNS, IP}; bare entries default to DNS.
	DNSAltNames string

	// CSRAttributes is the parsed CSR-attributes document. A zero
	// value means neither custom attributes nor extension requests are
	// emitted.
	CSRAttributes csrattrs.Document

	// CertificateRevocation disables all CRL loading, fetching, and
	// persistence when false.
	CertificateRevocation bool

	// WaitForCert is how long Wait sleeps before retrying.
	// Zero means exit instead of polling.
	WaitForCert time.Duration

	// KeySize is the RSA modulus size used when generating a new
	// private key. Zero means DefaultKeySize.
	KeySize int

	// Logger for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// keySize returns the configured key size or DefaultKeySize.
func (c *Config) keySize() int {
	if c.KeySize == 0 {
		return DefaultKeySize
	}
	return c.KeySize
}

// logger returns the configured logger or slog.Default().
func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
