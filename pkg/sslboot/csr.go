// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"
)

var (
	// oidExtensionRequest is the PKCS#9 extensionRequest attribute OID
	// (1.2.840.113549.1.9.14) that carries a SEQUENCE OF Extension.
	oidExtensionRequest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 14}

	// oidSubjectAltName is the standard X.509 subjectAltName extension OID.
	oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

	// oidSHA256WithRSA identifies the CSR signature algorithm: signed
	// with the private key using SHA-256.
	oidSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
)

// alreadyCertifiedPattern matches the CA's 400-response body text that
// signals the certname already has a request or certificate on file.
// The substring set is fixed: "requested", "signed", or "revoked".
var alreadyCertifiedPattern = regexp.MustCompile(`already has a (requested|signed|revoked) certificate`)

// sanKind distinguishes the two subject alternative name types the CSR
// builder supports.
type sanKind int

const (
	sanDNS sanKind = iota
	sanIP
)

type sanEntry struct {
	kind  sanKind
	value string
}

// attribute is the PKCS#10 CertificationRequestInfo attribute:
// Attribute ::= SEQUENCE { type OBJECT IDENTIFIER, values SET OF ANY }.
type attribute struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

// certificationRequestInfo is the signed portion of a PKCS#10 request.
type certificationRequestInfo struct {
	Version    int
	Subject    asn1.RawValue
	PublicKey  asn1.RawValue
	Attributes []attribute `asn1:"tag:0"`
}

// certificationRequest is the complete, signed PKCS#10 request.
type certificationRequest struct {
	TBSCSR             asn1.RawValue
	SignatureAlgorithm pkix.AlgorithmIdentifier
	SignatureValue     asn1.BitString
}

// buildCSR constructs and signs a DER-encoded PKCS#10 certificate
// signing request per the rules in:
//
//   - Subject is CN=<certname>.
//   - Subject alt names come from dnsAltNames (comma-separated
//     TYPE:VALUE entries, bare entries default to DNS), with certname
//     always appended as a deduplicated DNS entry, emitted inside the
//     extensionRequest attribute's subjectAltName extension.
//   - Custom attributes are emitted verbatim as their own PKCS#10
//     attributes, one per OID.
//   - Extension requests are emitted inside the same extensionRequest
//     attribute as additional extensions.
//   - The request is signed with SHA-256.
//
// crypto/x509.CreateCertificateRequest does not support arbitrary
// PKCS#10 attributes (its Attributes field is documented as unused on
// creation), so the request is assembled directly from
// crypto/x509/pkix and encoding/asn1 primitives.
func buildCSR(key *rsa.PrivateKey, certname, dnsAltNames string, doc csrDocument) ([]byte, error) {
	sans, err := parseAltNames(dnsAltNames, certname)
	if err != nil {
		return nil, err
	}

	attrs, err := buildAttributes(sans, doc)
	if err != nil {
		return nil, err
	}

	subjectRDN := pkix.Name{CommonName: certname}.ToRDNSequence()
	subjectDER, err := asnMarshal(subjectRDN)
	if err != nil {
		return nil, fmt.Errorf("%w: encode subject: %w", ErrConfig, err)
	}

	pubKeyDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encode public key: %w", ErrCrypto, err)
	}

	tbs := certificationRequestInfo{
		Version:    0,
		Subject:    asn1.RawValue{FullBytes: subjectDER},
		PublicKey:  asn1.RawValue{FullBytes: pubKeyDER},
		Attributes: attrs,
	}

	tbsDER, err := asnMarshal(tbs)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request info: %w", ErrCrypto, err)
	}

	digest := sha256.Sum256(tbsDER)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: sign request: %w", ErrCrypto, err)
	}

	csr := certificationRequest{
		TBSCSR:             asn1.RawValue{FullBytes: tbsDER},
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oidSHA256WithRSA},
		SignatureValue:     asn1.BitString{Bytes: sig, BitLength: len(sig) * 8},
	}

	der, err := asnMarshal(csr)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %w", ErrCrypto, err)
	}
	return der, nil
}

// asnMarshal is a thin wrapper around asn1.Marshal kept for readability
// at call sites above.
func asnMarshal(v any) ([]byte, error) {
	return asn1.Marshal(v)
}

// csrDocument is the subset of csrattrs.Document the builder needs,
// declared locally so this file has no import cycle with the csrattrs
// package (which imports nothing from sslboot).
type csrDocument struct {
	CustomAttributes  map[string]string
	ExtensionRequests map[string]string
}

// parseAltNames parses the dns_alt_names configuration value into an
// ordered, deduplicated list of SAN entries, always appending certname
// as a DNS entry if not already present.
func parseAltNames(raw, certname string) ([]sanEntry, error) {
	var entries []sanEntry
	seen := make(map[sanEntry]bool)

	add := func(e sanEntry) error {
		if e.kind == sanIP {
			if net.ParseIP(e.value) == nil {
				return fmt.Errorf("%w: invalid IP alt name %q", ErrConfig, e.value)
			}
		}
		if seen[e] {
			return nil
		}
		seen[e] = true
		entries = append(entries, e)
		return nil
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kind := sanDNS
		value := part
		if idx := strings.Index(part, ":"); idx >= 0 {
			typ := strings.ToUpper(strings.TrimSpace(part[:idx]))
			value = strings.TrimSpace(part[idx+1:])
			switch typ {
			case "DNS":
				kind = sanDNS
			case "IP":
				kind = sanIP
			default:
				return nil, fmt.Errorf("%w: unsupported alt name type %q", ErrConfig, typ)
			}
		}

		if err := add(sanEntry{kind: kind, value: value}); err != nil {
			return nil, err
		}
	}

	if err := add(sanEntry{kind: sanDNS, value: certname}); err != nil {
		return nil, err
	}

	return entries, nil
}

// buildAttributes assembles the PKCS#10 attribute set: one attribute
// per custom_attributes entry, plus a single extensionRequest attribute
// carrying the subjectAltName extension and every extension_requests
// entry. Custom attributes are ordered lexically by OID string and the
// extensionRequest attribute always comes last, so the encoding is
// deterministic.
func buildAttributes(sans []sanEntry, doc csrDocument) ([]attribute, error) {
	var attrs []attribute

	for _, oid := range sortedKeys(doc.CustomAttributes) {
		value := doc.CustomAttributes[oid]
		attr, err := stringAttribute(oid, value)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}

	extensions, err := buildExtensions(sans, doc.ExtensionRequests)
	if err != nil {
		return nil, err
	}

	extSeq, err := asnMarshal(extensions)
	if err != nil {
		return nil, fmt.Errorf("%w: encode extension requests: %w", ErrConfig, err)
	}

	attrs = append(attrs, attribute{
		Type:   oidExtensionRequest,
		Values: []asn1.RawValue{{FullBytes: extSeq}},
	})

	return attrs, nil
}

// stringAttribute builds a single-valued PKCS#10 attribute carrying a
// UTF8String, for a custom_attributes OID/value pair.
func stringAttribute(oidStr, value string) (attribute, error) {
	oid, err := parseOID(oidStr)
	if err != nil {
		return attribute{}, err
	}

	valDER, err := asn1.MarshalWithParams(value, "utf8")
	if err != nil {
		return attribute{}, fmt.Errorf("%w: encode attribute %s: %w", ErrConfig, oidStr, err)
	}

	return attribute{
		Type:   oid,
		Values: []asn1.RawValue{{FullBytes: valDER}},
	}, nil
}

// buildExtensions builds the subjectAltName extension from sans plus one
// extension per extension_requests OID/value pair.
func buildExtensions(sans []sanEntry, extensionRequests map[string]string) ([]pkix.Extension, error) {
	var extensions []pkix.Extension

	if len(sans) > 0 {
		sanDER, err := marshalSANs(sans)
		if err != nil {
			return nil, err
		}
		extensions = append(extensions, pkix.Extension{
			Id:    oidSubjectAltName,
			Value: sanDER,
		})
	}

	for _, oidStr := range sortedKeys(extensionRequests) {
		oid, err := parseOID(oidStr)
		if err != nil {
			return nil, err
		}
		valDER, err := asn1.MarshalWithParams(extensionRequests[oidStr], "utf8")
		if err != nil {
			return nil, fmt.Errorf("%w: encode extension request %s: %w", ErrConfig, oidStr, err)
		}
		extensions = append(extensions, pkix.Extension{
			Id:    oid,
			Value: valDER,
		})
	}

	return extensions, nil
}

// marshalSANs encodes sans as a GeneralNames SEQUENCE
// (RFC 5280.1.6): dNSName is context tag 2 (IA5String content),
// iPAddress is context tag 7 (raw octets).
func marshalSANs(sans []sanEntry) ([]byte, error) {
	rawValues := make([]asn1.RawValue, 0, len(sans))
	for _, s := range sans {
		switch s.kind {
		case sanDNS:
			rawValues = append(rawValues, asn1.RawValue{
				Class: asn1.ClassContextSpecific,
				Tag:   2,
				Bytes: []byte(s.value),
			})
		case sanIP:
			ip := net.ParseIP(s.value)
			if ip == nil {
				return nil, fmt.Errorf("%w: invalid IP alt name %q", ErrConfig, s.value)
			}
			if v4 := ip.To4(); v4 != nil {
				ip = v4
			}
			rawValues = append(rawValues, asn1.RawValue{
				Class: asn1.ClassContextSpecific,
				Tag:   7,
				Bytes: ip,
			})
		}
	}
	return asn1.Marshal(rawValues)
}

// parseOID parses a dotted-decimal OID string from the CSR-attributes
// document into an asn1.ObjectIdentifier.
func parseOID(s string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(s, ".")
	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		n := 0
		if _, err := fmt.Sscanf(p, "%d", &n); err != nil || p == "" {
			return nil, fmt.Errorf("%w: invalid OID %q", ErrConfig, s)
		}
		oid[i] = n
	}
	return oid, nil
}

// sortedKeys returns the keys of m in lexical order for deterministic
// attribute encoding.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
