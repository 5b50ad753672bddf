// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

// Package sslboot implements the SSL bootstrap state machine a
// configuration-management agent runs before it can speak
// mutually-authenticated TLS to its control plane. It sequences
// independent, differently-verified acquisitions — CA certificates,
// CRLs, a private key, and a signed client certificate — behind two
// entry points:
//
//   - EnsureCACertificates runs until the CA chain (and, if enabled,
//     CRLs) are established.
//   - EnsureClientCertificate runs the full pipeline through to a
//     signed client certificate, polling the CA until an operator signs
//     the request.
//
// The state machine depends only on the CaClient and CertProvider
// interfaces; production implementations of both live in the
// caclient and certstore subpackages. The core package never touches
// the network or the filesystem directly.
package sslboot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// State is one node of the bootstrap pipeline. Next inspects the
// current Context and the Machine's collaborators, performs the state's
// work, and returns the next State and Context to carry forward. Any
// non-nil error aborts the run: pipeline failures are FatalErrors, and
// the only other errors are *ErrExitRequested and a cancelled sleep's
// context error from Wait, and ErrTerminalState from Done. Recoverable
// conditions are expressed by transitioning to Wait, never by
// returning an error.
type State interface {
	Next(ctx context.Context, m *Machine, sctx Context) (State, Context, error)
}

// Machine drives the state machine to one of its two terminal depths.
// It holds the injected configuration and collaborators; it holds no
// other mutable state between calls, so a single Machine can run
// multiple bootstrap attempts (e.g. in tests) safely, one at a time.
type Machine struct {
	cfg   *Config
	ca    CaClient
	store CertProvider

	stdout  io.Writer
	sleeper func(ctx context.Context, d time.Duration) error
}

// Option configures optional Machine collaborators.
type Option func(*Machine)

// WithStdout overrides where Wait writes its waitforcert=0
// operator-facing message. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(m *Machine) { m.stdout = w }
}

// withSleeper overrides Wait's sleep function for testing.
func withSleeper(f func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Machine) { m.sleeper = f }
}

// NewMachine constructs a Machine from its required configuration and
// collaborators.
func NewMachine(cfg *Config, ca CaClient, store CertProvider, opts ...Option) *Machine {
	m := &Machine{
		cfg:    cfg,
		ca:     ca,
		store:  store,
		stdout: os.Stdout,
		sleeper: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureCACertificates runs the pipeline until the CA chain (and CRLs,
// unless disabled) is established, then returns the accumulated
// Context without establishing a private key or client certificate.
func (m *Machine) EnsureCACertificates(ctx context.Context) (Context, error) {
	return m.run(ctx, isCAOnlyTerminal)
}

// EnsureClientCertificate runs the full pipeline through to a signed
// client certificate, polling per WaitForCert until one is available.
func (m *Machine) EnsureClientCertificate(ctx context.Context) (Context, error) {
	return m.run(ctx, isDoneTerminal)
}

// run repeatedly invokes Next starting from NeedCACerts, checking for
// cancellation and the terminal predicate between every transition.
func (m *Machine) run(ctx context.Context, terminal func(State) bool) (Context, error) {
	var state State = stateNeedCACerts{}
	sctx := Context{}

	for {
		if err := ctx.Err(); err != nil {
			return sctx, err
		}
		if terminal(state) {
			return sctx, nil
		}

		next, nextCtx, err := state.Next(ctx, m, sctx)
		if err != nil {
			var exitReq *ErrExitRequested
			if errors.As(err, &exitReq) {
				fmt.Fprintln(m.stdout, exitReq.Error())
			}
			return sctx, err
		}

		state, sctx = next, nextCtx
	}
}

func isCAOnlyTerminal(s State) bool {
	switch s.(type) {
	case stateNeedKey, stateNeedSubmitCSR, stateNeedCert, stateWait, stateDone:
		return true
	default:
		return false
	}
}

func isDoneTerminal(s State) bool {
	_, ok := s.(stateDone)
	return ok
}

func (m *Machine) logger() *slog.Logger {
	return m.cfg.logger()
}
