// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"errors"

	"github.com/informalsystems/sov-rollup-starter/auth"
)

var (
	// ErrSequencerVanished means an authorized sequencer was not registered
	// when its batch was executed. It is only ever raised as a panic.
	ErrSequencerVanished  = errors.New("authorized sequencer is no longer registered")
	ErrAlreadySettled     = errors.New("batch outcome was already applied")
	ErrNotInitialized     = errors.New("chain has not been initialized")
	ErrAlreadyInitialized = errors.New("chain was already initialized")
)

// IsFatal reports whether [err] is one a sequencer is held accountable for, or
// an assertion about the chain state. Every other error only affects the
// transaction it was returned for.
func IsFatal(err error) bool {
	var fatalErr *auth.FatalError
	return errors.As(err, &fatalErr) || errors.Is(err, ErrSequencerVanished)
}
