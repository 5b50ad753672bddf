// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"time"
)

// fakeCaClient is an in-memory CaClient double. Each endpoint has its
// own scripted (status, body, err) response and a call counter so
// tests can assert how many times, and with what verifyPeer value,
// each endpoint was hit.
type fakeCaClient struct {
	caStatus        scriptedResponse
	crlStatus       scriptedResponse
	putCSR          scriptedResponse
	getCert         scriptedResponse
	getCertSequence []scriptedResponse // consumed in order, then repeats the last entry

	caCalls, crlCalls, putCalls, certCalls int
	lastVerifyPeer                         map[string]bool
}

type scriptedResponse struct {
	status int
	body   []byte
	err    error
}

func newFakeCaClient() *fakeCaClient {
	return &fakeCaClient{lastVerifyPeer: map[string]bool{}}
}

func (f *fakeCaClient) GetCACertificates(ctx context.Context, verifyPeer bool) (int, []byte, error) {
	f.caCalls++
	f.lastVerifyPeer["ca"] = verifyPeer
	return f.caStatus.status, f.caStatus.body, f.caStatus.err
}

func (f *fakeCaClient) GetCRLs(ctx context.Context, verifyPeer bool) (int, []byte, error) {
	f.crlCalls++
	f.lastVerifyPeer["crl"] = verifyPeer
	return f.crlStatus.status, f.crlStatus.body, f.crlStatus.err
}

func (f *fakeCaClient) PutCSR(ctx context.Context, certname string, der []byte, verifyPeer bool) (int, []byte, error) {
	f.putCalls++
	f.lastVerifyPeer["csr"] = verifyPeer
	return f.putCSR.status, f.putCSR.body, f.putCSR.err
}

func (f *fakeCaClient) GetClientCertificate(ctx context.Context, certname string, verifyPeer bool) (int, []byte, error) {
	f.certCalls++
	f.lastVerifyPeer["cert"] = verifyPeer
	if len(f.getCertSequence) > 0 {
		idx := f.certCalls - 1
		if idx >= len(f.getCertSequence) {
			idx = len(f.getCertSequence) - 1
		}
		r := f.getCertSequence[idx]
		return r.status, r.body, r.err
	}
	return f.getCert.status, f.getCert.body, f.getCert.err
}

// fakeCertProvider is an in-memory CertProvider double.
type fakeCertProvider struct {
	caCerts    []*x509.Certificate
	crls       []*x509.RevocationList
	privateKey *rsa.PrivateKey
	clientCert *x509.Certificate
	requests   map[string][]byte

	loadCAErr, saveCAErr             error
	loadCRLErr, saveCRLErr           error
	loadKeyErr, saveKeyErr           error
	loadCertErr, saveCertErr         error
	saveRequestErr                   error
	saveCAWasCalled, saveCRLWasCalled bool
}

func newFakeCertProvider() *fakeCertProvider {
	return &fakeCertProvider{requests: map[string][]byte{}}
}

func (f *fakeCertProvider) LoadCACerts() ([]*x509.Certificate, error) { return f.caCerts, f.loadCAErr }
func (f *fakeCertProvider) SaveCACerts(certs []*x509.Certificate) error {
	f.saveCAWasCalled = true
	if f.saveCAErr != nil {
		return f.saveCAErr
	}
	f.caCerts = certs
	return nil
}

func (f *fakeCertProvider) LoadCRLs() ([]*x509.RevocationList, error) { return f.crls, f.loadCRLErr }
func (f *fakeCertProvider) SaveCRLs(crls []*x509.RevocationList) error {
	f.saveCRLWasCalled = true
	if f.saveCRLErr != nil {
		return f.saveCRLErr
	}
	f.crls = crls
	return nil
}

func (f *fakeCertProvider) LoadPrivateKey() (*rsa.PrivateKey, error) {
	return f.privateKey, f.loadKeyErr
}
func (f *fakeCertProvider) SavePrivateKey(key *rsa.PrivateKey) error {
	if f.saveKeyErr != nil {
		return f.saveKeyErr
	}
	f.privateKey = key
	return nil
}

func (f *fakeCertProvider) LoadClientCert() (*x509.Certificate, error) {
	return f.clientCert, f.loadCertErr
}
func (f *fakeCertProvider) SaveClientCert(cert *x509.Certificate) error {
	if f.saveCertErr != nil {
		return f.saveCertErr
	}
	f.clientCert = cert
	return nil
}

func (f *fakeCertProvider) SaveRequest(certname string, csr []byte) error {
	if f.saveRequestErr != nil {
		return f.saveRequestErr
	}
	f.requests[certname] = csr
	return nil
}

// testCA is a self-signed CA used to mint leaf certificates in tests.
type testCA struct {
	cert *x509.Certificate
	key  *rsa.PrivateKey
	der  []byte
}

func newTestCA(t interface{ Fatalf(string, ...any) }) *testCA {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate CA key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create CA cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse CA cert: %v", err)
	}
	return &testCA{cert: cert, key: key, der: der}
}

func (ca *testCA) issue(t interface{ Fatalf(string, ...any) }, serial int64, pub *rsa.PublicKey, revoked bool) *x509.Certificate {
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "agent.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, pub, ca.key)
	if err != nil {
		t.Fatalf("create leaf cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse leaf cert: %v", err)
	}
	return cert
}

func (ca *testCA) crl(t interface{ Fatalf(string, ...any) }, revokedSerials ...int64) *x509.RevocationList {
	var entries []x509.RevocationListEntry
	for _, s := range revokedSerials {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   big.NewInt(s),
			RevocationTime: time.Now(),
		})
	}
	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(1),
		ThisUpdate:                time.Now(),
		NextUpdate:                time.Now().Add(time.Hour),
		RevokedCertificateEntries: entries,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, ca.cert, ca.key)
	if err != nil {
		t.Fatalf("create CRL: %v", err)
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		t.Fatalf("parse CRL: %v", err)
	}
	return crl
}

func mustPEMCert(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func mustPEMCRL(crl *x509.RevocationList) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: crl.Raw})
}
