// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package csrattrs loads the CSR-attributes document that supplies the
// custom attributes and extension requests emitted onto a certificate
// signing request. The document is a small YAML file with two optional
// top-level keys:
//
//	custom_attributes:
//	  1.2.840.113549.1.9.7: "challenge-password"
//	extension_requests:
//	  1.3.6.1.4.1.34380.1.1.1: "unique-id-value"
//
// Both keys map an OID (dotted decimal, as a string) to a UTF8 string
// value.
package csrattrs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the parsed CSR-attributes document. The zero value has no
// custom attributes and no extension requests, which is a valid,
// empty configuration.
type Document struct {
	CustomAttributes  map[string]string `yaml:"custom_attributes"`
	ExtensionRequests map[string]string `yaml:"extension_requests"`
}

// Load reads and parses the CSR-attributes document at path. A missing
// file is not an error: it returns the zero Document, since the
// document itself is optional. A present-but-malformed document is a
// config error.
func Load(path string) (Document, error) {
	if path == "" {
		return Document{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("csrattrs: read %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("csrattrs: parse %s: %w", path, err)
	}

	return doc, nil
}
