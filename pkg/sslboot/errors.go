// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import (
	"errors"
	"fmt"
)

// Sentinel errors for the bootstrap state machine, grouped by the error
// kinds named in the design: config, network, parse, verification,
// crypto, and I/O failures.
var (
	// ErrConfig indicates malformed configuration: an invalid CSR
	// attributes document or malformed dns_alt_names.
	ErrConfig = errors.New("sslboot: invalid configuration")

	// ErrNetwork indicates a non-2xx HTTP response from the CA that this
	// state classifies as unrecoverable.
	ErrNetwork = errors.New("sslboot: network error")

	// ErrParse indicates malformed PEM content in a CA cert or CRL
	// response. A client certificate response that does not parse is
	// not an error; NeedCert transitions to Wait.
	ErrParse = errors.New("sslboot: parse error")

	// ErrVerification indicates a persisted client certificate that
	// does not match the persisted private key. A downloaded
	// certificate that is mismatched or revoked is not an error;
	// NeedCert transitions to Wait.
	ErrVerification = errors.New("sslboot: verification error")

	// ErrCrypto indicates an RSA key decode or generation failure.
	ErrCrypto = errors.New("sslboot: crypto error")

	// ErrIO indicates a CertProvider load or save failure.
	ErrIO = errors.New("sslboot: I/O error")

	// ErrTerminalState indicates Next was invoked on the Done state. This
	// is a programming error, not a bootstrap failure.
	ErrTerminalState = errors.New("sslboot: next_state called on terminal state")
)

// ErrExitRequested is returned by the Wait state when waitforcert is 0
// and the certificate has not yet been signed. It carries the exact
// operator-facing message specified for this condition. Callers that
// want the historical exit(1) behavior should check for this with
// errors.Is and translate it themselves; the state machine never calls
// os.Exit.
type ErrExitRequested struct {
	// Certname is the agent identifier that was waiting on a signature.
	Certname string
}

// Error returns the stable, tested message shown to the operator when
// waitforcert is 0 and no signed certificate is available.
func (e *ErrExitRequested) Error() string {
	return fmt.Sprintf(
		"Couldn't fetch certificate from CA server; you might still need to sign this agent's certificate (%s). Exiting now because the waitforcert setting is set to 0.",
		e.Certname,
	)
}

// Is reports whether target is also an *ErrExitRequested, so that
// errors.Is(err, &ErrExitRequested{}) matches regardless of Certname.
func (e *ErrExitRequested) Is(target error) bool {
	_, ok := target.(*ErrExitRequested)
	return ok
}

// FatalError wraps an error that must abort the whole bootstrap run.
// Recoverable conditions never produce an error (the state transitions
// to Wait instead), so Machine.run returns every error it receives;
// IsFatal tells a FatalError apart from cancellation or
// ErrExitRequested by type, not by inspecting message text.
type FatalError struct {
	Err error
}

// Fatal wraps err as a FatalError. Wrapping a nil error returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// Error returns the underlying error's message.
func (e *FatalError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a FatalError, following wrapping.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
