// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package sslboot

import "context"

// stateDone is the terminal state. Machine.run never invokes
// Next on it; Next exists only so stateDone satisfies State and so
// misuse from outside the package surfaces as an error rather than a
// panic.
type stateDone struct{}

func (stateDone) Next(ctx context.Context, m *Machine, sctx Context) (State, Context, error) {
	return nil, sctx, ErrTerminalState
}
