// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import "errors"

// Exit codes for the CLI.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitBootstrapFailed indicates the bootstrap pipeline returned a
	// fatal error.
	ExitBootstrapFailed = 1

	// ExitConfigError indicates a configuration or input validation error.
	ExitConfigError = 2
)

// Sentinel errors for CLI operations.
var (
	// ErrInvalidInput is returned when required flags are missing or invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfigLoad is returned when the CSR-attributes document cannot be read.
	ErrConfigLoad = errors.New("configuration load failed")
)
