// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package caclient

import (
	"context"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestClient_GetCACertificates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/puppet-ca/v1/certificate/ca", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ca-bundle"))
	}))
	defer server.Close()

	c, err := New(&Config{BaseURL: server.URL})
	require.NoError(t, err)

	status, body, err := c.GetCACertificates(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ca-bundle", string(body))
}

func TestClient_PutCSR(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := New(&Config{BaseURL: server.URL})
	require.NoError(t, err)

	status, _, err := c.PutCSR(context.Background(), "agent.example.com", []byte("der-bytes"), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/puppet-ca/v1/certificate_request/agent.example.com", gotPath)
	assert.Equal(t, "application/octet-stream", gotContentType)
	assert.Equal(t, []byte("der-bytes"), gotBody)
}

func TestClient_GetClientCertificate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/puppet-ca/v1/certificate/agent.example.com", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, err := New(&Config{BaseURL: server.URL})
	require.NoError(t, err)

	status, _, err := c.GetClientCertificate(context.Background(), "agent.example.com", true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestClient_VerifiedRequestFailsWithoutTrustedCAs(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := New(&Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, _, err = c.GetCRLs(context.Background(), true)
	assert.Error(t, err, "an empty trust pool must fail closed")
}

func TestClient_SetTrustedCAsAllowsVerifiedRequest(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := New(&Config{BaseURL: server.URL})
	require.NoError(t, err)

	leaf := server.Certificate()
	if leaf == nil {
		return
	}
	c.SetTrustedCAs([]*x509.Certificate{leaf})

	status, _, err := c.GetCRLs(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}
