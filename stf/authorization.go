// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/modules/sequencer"
	"github.com/informalsystems/sov-rollup-starter/state"
)

// AuthorizeSequencer admits a batch published from [daAddr] and returns the
// meter its pre-execution work is charged to.
func (r *Runtime) AuthorizeSequencer(daAddr ids.ShortID, cp *state.Checkpoint) (*sequencer.StakeMeter, error) {
	return r.registry.AuthorizeSequencer(daAddr, r.config.BaseFee, cp)
}

// CheckUniqueness fails unless [tx] was never executed before.
func (r *Runtime) CheckUniqueness(tx *auth.AuthenticatedTx, cp *state.Checkpoint) error {
	return r.accounts.CheckUniqueness(tx, cp)
}

// MarkTxAttempted records that [tx] was executed, whatever its result.
func (r *Runtime) MarkTxAttempted(tx *auth.AuthenticatedTx, cp *state.Checkpoint) error {
	return r.accounts.MarkTxAttempted(tx, cp)
}

// ResolveContext builds the context [tx] executes in. The sequencer must still
// be registered: it was authorized when its batch was admitted.
func (r *Runtime) ResolveContext(
	tx *auth.AuthenticatedTx,
	daAddr ids.ShortID,
	height uint64,
	cp *state.Checkpoint,
) (*Context, error) {
	seqAddr, err := r.registry.ResolveDaAddress(daAddr, cp)
	if errors.Is(err, sequencer.ErrUnknownSequencer) {
		r.log.Crit("sequencer vanished while executing its batch",
			"da", daAddr,
			"tx", tx.Hash,
			"height", height,
		)
		panic(fmt.Errorf("%w: %s", ErrSequencerVanished, daAddr))
	}
	if err != nil {
		return nil, err
	}

	sender, err := r.accounts.ResolveSenderAddress(tx.Credential, cp)
	if err != nil {
		return nil, err
	}
	return &Context{
		Sender:      sender,
		Sequencer:   seqAddr,
		SequencerDa: daAddr,
		Height:      height,
	}, nil
}
