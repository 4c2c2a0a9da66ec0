// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/modules/bank"
	"github.com/informalsystems/sov-rollup-starter/modules/sequencer"
	"github.com/informalsystems/sov-rollup-starter/state"
)

// TryReserveGas escrows the most [tx] may spend at [gasPrice] and opens the
// overlay it executes in. On error [cp] is left untouched and the
// transaction must not be executed.
func (r *Runtime) TryReserveGas(
	tx *auth.AuthenticatedTx,
	ctx *Context,
	gasPrice uint64,
	cp *state.Checkpoint,
) (*state.WorkingSet, error) {
	meter, err := r.bank.ReserveGas(tx, gasPrice, ctx.Sender, cp)
	if err != nil {
		return nil, err
	}
	return cp.ToRevertable(meter)
}

// ConsumeGasAndAllocateRewards pays the gas [tx] used to the prover pool and
// the sequencer registry.
func (r *Runtime) ConsumeGasAndAllocateRewards(
	tx *auth.AuthenticatedTx,
	meter *state.GasMeter,
	cp *state.Checkpoint,
) (bank.Consumption, error) {
	c, err := r.bank.ConsumeGas(meter, r.config.ProverFeeBips, r.proverPool, sequencer.RegistryAddress, cp)
	if err != nil {
		return bank.Consumption{}, err
	}
	r.log.Debug("consumed gas",
		"tx", tx.Hash,
		"used", meter.Used(),
		"consumed", c.Consumed,
		"prover", c.ProverReward,
		"sequencer", c.SequencerReward,
	)
	return c, nil
}

// RefundRemainingGas returns what [tx] did not consume to its sender.
func (r *Runtime) RefundRemainingGas(
	tx *auth.AuthenticatedTx,
	ctx *Context,
	c bank.Consumption,
	cp *state.Checkpoint,
) (uint64, error) {
	refund, err := r.bank.RefundRemainingGas(c, ctx.Sender, cp)
	if err != nil {
		return 0, err
	}
	r.log.Debug("refunded gas", "tx", tx.Hash, "sender", ctx.Sender, "amount", refund)
	return refund, nil
}
