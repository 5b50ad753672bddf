// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/latticeagent/go-sslboot/pkg/sslboot"
	"github.com/latticeagent/go-sslboot/pkg/sslboot/caclient"
	"github.com/latticeagent/go-sslboot/pkg/sslboot/certstore"
	"github.com/latticeagent/go-sslboot/pkg/sslboot/csrattrs"
)

var ensureCACmd = &cobra.Command{
	Use:   "ensure-ca",
	Short: "Fetch and persist CA certificates and CRLs",
	Long: `Runs the bootstrap pipeline through NeedCACerts and, unless
--no-revocation is set, NeedCRLs. It does not touch the private key or
client certificate.`,
	RunE: runEnsureCA,
}

var ensureCertCmd = &cobra.Command{
	Use:   "ensure-cert",
	Short: "Run the full bootstrap pipeline to a signed client certificate",
	Long: `Runs the full bootstrap pipeline: CA certificates, CRLs, private
key, certificate signing request, and polling for a signed client
certificate. If --waitforcert is 0 and no signed certificate is
available yet, the process exits with status 1.`,
	RunE: runEnsureCert,
}

func init() {
	addEnsureFlags(ensureCACmd)
	addEnsureFlags(ensureCertCmd)
}

// addEnsureFlags registers the flags shared by ensure-ca and ensure-cert.
func addEnsureFlags(cmd *cobra.Command) {
	cmd.Flags().String("certname", "", "agent certificate name (required)")
	cmd.Flags().String("ca-url", "", "certificate authority base URL (required)")
	cmd.Flags().String("ssl-dir", "", "directory holding persisted trust material (required)")
	cmd.Flags().String("dns-alt-names", "", "comma-separated TYPE:VALUE subject alt names")
	cmd.Flags().String("csr-attributes", "", "path to a CSR attributes YAML document")
	cmd.Flags().Bool("no-revocation", false, "disable CRL fetching and checking")
	cmd.Flags().Int("key-size", sslboot.DefaultKeySize, "RSA key size in bits for newly-generated keys")
	cmd.Flags().Duration("waitforcert", 2*time.Minute, "how long to wait between certificate polls; 0 exits immediately if unsigned")
	cmd.Flags().Duration("timeout", 30*time.Second, "per-request HTTP timeout")
}

func runEnsureCA(cmd *cobra.Command, args []string) error {
	m, err := buildMachine(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sctx, err := m.EnsureCACertificates(ctx)
	if err != nil {
		return fmt.Errorf("ensure-ca: %w", err)
	}

	slog.Info("CA trust material established", "ca_certs", len(sctx.CACerts()), "crls", len(sctx.CRLs()))
	return nil
}

func runEnsureCert(cmd *cobra.Command, args []string) error {
	m, err := buildMachine(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sctx, err := m.EnsureClientCertificate(ctx)
	if err != nil {
		return fmt.Errorf("ensure-cert: %w", err)
	}

	slog.Info("client certificate established", "subject", sctx.ClientCert().Subject.String())
	return nil
}

// buildMachine assembles a sslboot.Machine from CLI flags, wiring the
// filesystem CertProvider and HTTP CaClient the same way ensure-ca and
// ensure-cert both need.
func buildMachine(cmd *cobra.Command) (*sslboot.Machine, error) {
	certname, _ := cmd.Flags().GetString("certname")
	caURL, _ := cmd.Flags().GetString("ca-url")
	sslDir, _ := cmd.Flags().GetString("ssl-dir")
	dnsAltNames, _ := cmd.Flags().GetString("dns-alt-names")
	csrAttrPath, _ := cmd.Flags().GetString("csr-attributes")
	noRevocation, _ := cmd.Flags().GetBool("no-revocation")
	keySize, _ := cmd.Flags().GetInt("key-size")
	waitForCert, _ := cmd.Flags().GetDuration("waitforcert")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if certname == "" {
		return nil, fmt.Errorf("%w: --certname is required", ErrInvalidInput)
	}
	if caURL == "" {
		return nil, fmt.Errorf("%w: --ca-url is required", ErrInvalidInput)
	}
	if sslDir == "" {
		return nil, fmt.Errorf("%w: --ssl-dir is required", ErrInvalidInput)
	}

	doc, err := csrattrs.Load(csrAttrPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoad, err)
	}

	ca, err := caclient.New(&caclient.Config{
		BaseURL: caURL,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	store := certstore.New(certstore.Paths{
		CACerts:    sslDir + "/ca.pem",
		CRLs:       sslDir + "/crl.pem",
		PrivateKey: sslDir + "/private_keys/" + certname + ".pem",
		ClientCert: sslDir + "/certs/" + certname + ".pem",
		RequestDir: sslDir + "/certificate_requests",
	})

	cfg := &sslboot.Config{
		Certname:              certname,
		DNSAltNames:           dnsAltNames,
		CSRAttributes:         doc,
		CertificateRevocation: !noRevocation,
		WaitForCert:           waitForCert,
		KeySize:               keySize,
	}

	m := sslboot.NewMachine(cfg, ca, store)
	return m, nil
}
