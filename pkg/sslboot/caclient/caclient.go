// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package caclient implements sslboot.CaClient over plain HTTP(S),
// matching the CA's four certificate endpoints: a config struct with
// defaults applied in the constructor, a *slog.Logger scoped with
// With("component", ...), and two http.Clients, one verifying the
// server certificate and one not, chosen per request by the verifyPeer
// argument — the state machine is the sole authority on that flag.
package caclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize bounds how much of a CA response body is read.
	maxResponseSize = 4 << 20 // 4 MB
)

// Config configures the HTTP CaClient.
type Config struct {
	// BaseURL is the CA service's base URL, e.g.
	// "https://ca.example.com:8140".
	BaseURL string

	// Timeout is the per-request HTTP timeout. Default: DefaultTimeout.
	Timeout time.Duration

	// Logger for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client implements sslboot.CaClient over net/http. Two transports are
// held: one that verifies the server certificate against the current
// CA pool (updated via SetTrustedCAs as the pipeline progresses) and
// one that does not, for the bootstrap-of-trust exception.
type Client struct {
	baseURL   string
	timeout   time.Duration
	logger    *slog.Logger
	verified  *http.Client
	unverified *http.Client
	pool      *x509.CertPool
}

// New creates an HTTP CaClient. No trust anchors are configured until
// SetTrustedCAs is called; until then, "verified" requests fail closed
// (empty pool rejects everything), matching the expectation that
// NeedCACerts always runs before any verified request is made.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("caclient: base URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool := x509.NewCertPool()

	c := &Client{
		baseURL: cfg.BaseURL,
		timeout: timeout,
		logger:  logger.With("component", "caclient"),
		pool:    pool,
		unverified: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec // bootstrap-of-trust exception,
				},
			},
		},
	}
	c.rebuildVerifiedClient()
	return c, nil
}

// SetTrustedCAs installs the CA chain that verified requests validate
// server certificates against. Called after NeedCACerts persists a
// chain, before any verified request is issued.
func (c *Client) SetTrustedCAs(certs []*x509.Certificate) {
	pool := x509.NewCertPool()
	for _, cert := range certs {
		pool.AddCert(cert)
	}
	c.pool = pool
	c.rebuildVerifiedClient()
}

func (c *Client) rebuildVerifiedClient() {
	c.verified = &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: c.pool,
			},
		},
	}
}

func (c *Client) client(verifyPeer bool) *http.Client {
	if verifyPeer {
		return c.verified
	}
	return c.unverified
}

// GetCACertificates issues GET /puppet-ca/v1/certificate/ca.
func (c *Client) GetCACertificates(ctx context.Context, verifyPeer bool) (int, []byte, error) {
	return c.get(ctx, "/puppet-ca/v1/certificate/ca", verifyPeer)
}

// GetCRLs issues GET /puppet-ca/v1/certificate_revocation_list/ca.
func (c *Client) GetCRLs(ctx context.Context, verifyPeer bool) (int, []byte, error) {
	return c.get(ctx, "/puppet-ca/v1/certificate_revocation_list/ca", verifyPeer)
}

// PutCSR issues PUT /puppet-ca/v1/certificate_request/<certname> with a
// DER-encoded body.
func (c *Client) PutCSR(ctx context.Context, certname string, der []byte, verifyPeer bool) (int, []byte, error) {
	url := c.baseURL + "/puppet-ca/v1/certificate_request/" + certname

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(der))
	if err != nil {
		return 0, nil, fmt.Errorf("caclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	c.logger.Debug("submitting CSR", "url", url)
	return c.do(c.client(verifyPeer), req)
}

// GetClientCertificate issues GET /puppet-ca/v1/certificate/<certname>.
func (c *Client) GetClientCertificate(ctx context.Context, certname string, verifyPeer bool) (int, []byte, error) {
	return c.get(ctx, "/puppet-ca/v1/certificate/"+certname, verifyPeer)
}

func (c *Client) get(ctx context.Context, path string, verifyPeer bool) (int, []byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("caclient: build request: %w", err)
	}

	c.logger.Debug("requesting", "url", url, "verify_peer", verifyPeer)
	return c.do(c.client(verifyPeer), req)
}

func (c *Client) do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req) // #nosec G704 -- URL is built from operator-provided config, not user input
	if err != nil {
		return 0, nil, fmt.Errorf("caclient: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("caclient: read body: %w", err)
	}

	return resp.StatusCode, body, nil
}
