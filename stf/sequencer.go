// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"github.com/ava-labs/avalanchego/ids"

	"github.com/informalsystems/sov-rollup-starter/modules/sequencer"
	"github.com/informalsystems/sov-rollup-starter/state"
)

// BatchExecution is an admitted batch whose outcome has yet to be applied.
type BatchExecution struct {
	ID          ids.ID
	SequencerDa ids.ShortID
	Meter       *sequencer.StakeMeter
	// Fees are the sequencer shares of the gas consumed by the batch. They
	// were paid to the registry account as the transactions executed.
	Fees uint64

	settled bool
}

func newBatchExecution(id ids.ID, daAddr ids.ShortID, meter *sequencer.StakeMeter) *BatchExecution {
	return &BatchExecution{
		ID:          id,
		SequencerDa: daAddr,
		Meter:       meter,
	}
}

// Settled reports whether the outcome of the batch was applied.
func (b *BatchExecution) Settled() bool { return b.settled }

// EndBatch applies [outcome] to the stake of the batch's sequencer in [slot]
// and returns by how much the stake changed. The stake of a sequencer changes
// at most once per batch.
func (r *Runtime) EndBatch(exec *BatchExecution, outcome Outcome, slot *state.Checkpoint) (uint64, error) {
	if exec.settled {
		return 0, ErrAlreadySettled
	}
	exec.settled = true

	var (
		amount uint64
		err    error
	)
	switch outcome.Kind {
	case Rewarded:
		amount = outcome.Amount
		err = r.registry.Reward(exec.SequencerDa, amount, slot)
	case Penalized:
		amount, err = r.registry.Penalize(exec.SequencerDa, outcome.Amount, exec.Fees, slot)
	case Slashed:
		amount, err = r.registry.Slash(exec.SequencerDa, slot)
	case Ignored:
	}
	if err != nil {
		return 0, err
	}

	r.log.Info("settled batch",
		"batch", exec.ID,
		"da", exec.SequencerDa,
		"outcome", outcome,
		"stakeChange", amount,
	)
	return amount, nil
}
