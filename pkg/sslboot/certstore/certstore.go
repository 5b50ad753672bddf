// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package certstore implements sslboot.CertProvider on the local
// filesystem. Writes are atomic (write-temp-then-rename) so a
// concurrent reader never observes a half-written file.
package certstore

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	filePerm = 0o600
	dirPerm  = 0o700
)

// Paths locates every artifact the bootstrap pipeline persists.
// RequestDir holds one CSR per certname.
type Paths struct {
	CACerts    string
	CRLs       string
	PrivateKey string
	ClientCert string
	RequestDir string
}

// FileProvider is a filesystem-backed sslboot.CertProvider.
type FileProvider struct {
	paths  Paths
	logger *slog.Logger
}

// Option configures a FileProvider.
type Option func(*FileProvider)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *FileProvider) { p.logger = logger }
}

// New creates a FileProvider rooted at the given paths.
func New(paths Paths, opts ...Option) *FileProvider {
	p := &FileProvider{
		paths:  paths,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "certstore")
	return p
}

// LoadCACerts returns the persisted CA chain, or (nil, nil) if absent.
func (p *FileProvider) LoadCACerts() ([]*x509.Certificate, error) {
	data, ok, err := readFile(p.paths.CACerts)
	if err != nil || !ok {
		return nil, err
	}
	return parseCertificates(data)
}

// SaveCACerts persists the CA chain atomically.
func (p *FileProvider) SaveCACerts(certs []*x509.Certificate) error {
	return writeAtomic(p.paths.CACerts, encodeCertificates(certs), filePerm)
}

// LoadCRLs returns the persisted CRL chain, or (nil, nil) if absent.
// A present file holding no X509 CRL block is an error.
func (p *FileProvider) LoadCRLs() ([]*x509.RevocationList, error) {
	data, ok, err := readFile(p.paths.CRLs)
	if err != nil || !ok {
		return nil, err
	}
	crls, err := parseCRLs(data)
	if err != nil {
		return nil, err
	}
	if len(crls) == 0 {
		return nil, fmt.Errorf("certstore: no CRL in %s", p.paths.CRLs)
	}
	return crls, nil
}

// SaveCRLs persists the CRL chain atomically.
func (p *FileProvider) SaveCRLs(crls []*x509.RevocationList) error {
	var out []byte
	for _, crl := range crls {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: crl.Raw})...)
	}
	return writeAtomic(p.paths.CRLs, out, filePerm)
}

// LoadPrivateKey returns the persisted RSA private key, or (nil, nil)
// if absent.
func (p *FileProvider) LoadPrivateKey() (*rsa.PrivateKey, error) {
	data, ok, err := readFile(p.paths.PrivateKey)
	if err != nil || !ok {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("certstore: no PEM block in %s", p.paths.PrivateKey)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		key2, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("certstore: decode private key: %w", err)
		}
		rsaKey, ok := key2.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("certstore: private key is not RSA")
		}
		return rsaKey, nil
	}
	return key, nil
}

// SavePrivateKey persists key atomically as PKCS#1 PEM, mode 0600.
func (p *FileProvider) SavePrivateKey(key *rsa.PrivateKey) error {
	der := x509.MarshalPKCS1PrivateKey(key)
	block := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}
	return writeAtomic(p.paths.PrivateKey, pem.EncodeToMemory(block), filePerm)
}

// LoadClientCert returns the persisted client certificate, or
// (nil, nil) if absent.
func (p *FileProvider) LoadClientCert() (*x509.Certificate, error) {
	data, ok, err := readFile(p.paths.ClientCert)
	if err != nil || !ok {
		return nil, err
	}
	certs, err := parseCertificates(data)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("certstore: no certificate in %s", p.paths.ClientCert)
	}
	return certs[0], nil
}

// SaveClientCert persists cert atomically.
func (p *FileProvider) SaveClientCert(cert *x509.Certificate) error {
	return writeAtomic(p.paths.ClientCert, encodeCertificates([]*x509.Certificate{cert}), filePerm)
}

// SaveRequest persists the DER-encoded CSR for certname atomically.
func (p *FileProvider) SaveRequest(certname string, csr []byte) error {
	if p.paths.RequestDir == "" {
		return fmt.Errorf("certstore: no request directory configured")
	}
	if err := os.MkdirAll(p.paths.RequestDir, dirPerm); err != nil {
		return fmt.Errorf("certstore: create request dir: %w", err)
	}
	path := filepath.Join(p.paths.RequestDir, certname+".pem")
	block := &pem.Block{Type: "CERTIFICATE REQUEST", Bytes: csr}
	return writeAtomic(path, pem.EncodeToMemory(block), filePerm)
}

func readFile(path string) (data []byte, ok bool, err error) {
	if path == "" {
		return nil, false, nil
	}
	data, err = os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("certstore: read %s: %w", path, err)
	}
	return data, true, nil
}

// writeAtomic writes data to path by creating a temp file in the same
// directory and renaming it into place, so a concurrent reader never
// observes a half-written file.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("certstore: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("certstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("certstore: write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("certstore: chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("certstore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("certstore: rename into place %s: %w", path, err)
	}
	return nil
}

func parseCertificates(data []byte) ([]*x509.Certificate, error) {
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
			return nil, fmt.Errorf("certstore: parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

func parseCRLs(data []byte) ([]*x509.RevocationList, error) {
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
			return nil, fmt.Errorf("certstore: parse CRL: %w", err)
		}
		crls = append(crls, crl)
	}
	return crls, nil
}

func encodeCertificates(certs []*x509.Certificate) []byte {
	var out []byte
	for _, cert := range certs {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
	}
	return out
}

