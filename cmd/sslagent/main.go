// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"log/slog"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		exitFunc(exitCodeFor(err))
	}
}

// exitCodeFor maps a command error to a process exit code: configuration
// and input-validation failures exit ExitConfigError, everything else
// (a fatal error from the bootstrap pipeline itself) exits
// ExitBootstrapFailed.
func exitCodeFor(err error) int {
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrConfigLoad) {
		return ExitConfigError
	}
	return ExitBootstrapFailed
}
