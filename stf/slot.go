// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/modules/accounts"
	"github.com/informalsystems/sov-rollup-starter/modules/bank"
	"github.com/informalsystems/sov-rollup-starter/modules/sequencer"
	"github.com/informalsystems/sov-rollup-starter/state"
)

// skippable reports whether [err] only rules out the transaction it was
// returned for.
func skippable(err error) bool {
	for _, target := range []error{
		accounts.ErrBadNonce,
		accounts.ErrAddressTaken,
		bank.ErrInsufficientBalance,
		bank.ErrFeeCapExceeded,
		bank.ErrNoGasLimit,
		bank.ErrZeroGasPrice,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// BeginSlot records where the slot at [height] starts from.
func (r *Runtime) BeginSlot(height uint64, preStateDigest ids.ID, slot *state.Checkpoint) error {
	initialized, err := r.chainState.IsInitialized(slot)
	if err != nil {
		return err
	}
	if !initialized {
		return ErrNotInitialized
	}
	return r.chainState.SetSlot(slot, height, preStateDigest)
}

// EndSlot runs once every batch of the slot was settled.
func (r *Runtime) EndSlot(receipt *SlotReceipt, slot *state.Checkpoint) error {
	r.log.Info("applied slot",
		"height", receipt.Height,
		"batches", len(receipt.Batches),
	)
	return nil
}

// ApplySlot executes every batch of [slot] and commits the result. Receipts
// are written to the accessory state through [receipts]. If an error is
// returned nothing was committed.
func (r *Runtime) ApplySlot(s *state.Storage, receipts ReceiptState, slot *Slot) (*SlotReceipt, error) {
	preStateDigest, err := s.StateDigest()
	if err != nil {
		return nil, err
	}
	slotCP, err := s.BeginSlot()
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			s.Abort()
		}
	}()

	if err := r.BeginSlot(slot.Height, preStateDigest, slotCP); err != nil {
		return nil, err
	}
	receipt := &SlotReceipt{
		Height:         slot.Height,
		PreStateDigest: preStateDigest,
		Batches:        make([]BatchReceipt, 0, len(slot.Batches)),
	}
	for i := range slot.Batches {
		batchReceipt, err := r.ApplyBatch(slot.Height, uint32(i), &slot.Batches[i], slotCP)
		if err != nil {
			return nil, fmt.Errorf("couldn't apply batch %d of slot %d: %w", i, slot.Height, err)
		}
		receipt.Batches = append(receipt.Batches, *batchReceipt)
	}
	if err := r.EndSlot(receipt, slotCP); err != nil {
		return nil, err
	}

	err = s.Finalize(slotCP, func(digest ids.ID, rw state.ReadWriter) error {
		receipt.PostStateDigest = digest
		return receipts.PutSlot(rw, receipt)
	})
	if err != nil {
		return nil, err
	}
	committed = true
	r.metrics.observe(receipt)
	return receipt, nil
}

// ApplyBatch admits, executes and settles one batch in [slot].
func (r *Runtime) ApplyBatch(height uint64, index uint32, batch *Batch, slot *state.Checkpoint) (*BatchReceipt, error) {
	batchID, err := batch.ID()
	if err != nil {
		return nil, err
	}
	receipt := &BatchReceipt{
		BatchID:     batchID,
		Height:      height,
		Index:       index,
		SequencerDa: batch.Sequencer,
	}

	meter, err := r.AuthorizeSequencer(batch.Sequencer, slot)
	if errors.Is(err, sequencer.ErrUnauthorizedSequencer) {
		r.log.Warn("ignoring batch",
			"batch", batchID,
			"da", batch.Sequencer,
			"reason", err,
		)
		receipt.Outcome = IgnoredOutcome()
		return receipt, nil
	}
	if err != nil {
		return nil, err
	}
	receipt.Admitted = true
	exec := newBatchExecution(batchID, batch.Sequencer, meter)

	var summary BatchSummary
	err = r.registry.RecordBatch(batchID, slot)
	switch {
	case errors.Is(err, sequencer.ErrDuplicateBatch):
		r.log.Info("sequencer republished a batch", "batch", batchID, "da", batch.Sequencer)
		summary.Violation = DuplicateBatch
	case err != nil:
		return nil, err
	default:
		summary, receipt.Txs, err = r.executeBatch(height, batch, exec, slot)
		if err != nil {
			return nil, err
		}
		exec.Fees = summary.SequencerFees
	}

	receipt.Outcome = Settle(summary)
	if receipt.Outcome.Kind == Slashed {
		receipt.Txs = nil
	}
	receipt.StakeChange, err = r.EndBatch(exec, receipt.Outcome, slot)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// executeBatch runs the transactions of [batch] in a batch scope, which is
// committed unless the sequencer is to be slashed. On error the scope is left
// open for the caller to abort.
func (r *Runtime) executeBatch(
	height uint64,
	batch *Batch,
	exec *BatchExecution,
	slot *state.Checkpoint,
) (BatchSummary, []TxReceipt, error) {
	batchCP, err := slot.BeginBatch()
	if err != nil {
		return BatchSummary{}, nil, err
	}

	summary := BatchSummary{}
	receipts := make([]TxReceipt, 0, len(batch.Txs))
	for i, raw := range batch.Txs {
		units, err := r.preExecGas(raw)
		var cost uint64
		if err == nil {
			cost, err = exec.Meter.Charge(units)
		}
		if err != nil {
			r.log.Info("sequencer ran out of stake", "batch", exec.ID, "tx", i, "err", err)
			summary.StakeExhausted = true
			break
		}

		tx, call, err := r.authenticator.Authenticate(raw)
		if err != nil {
			r.log.Info("sequencer published an invalid transaction", "batch", exec.ID, "tx", i, "err", err)
			summary.Violation = InvalidTransactionEncoding
			break
		}

		receipt, admitted, err := r.applyTx(tx, call, exec.SequencerDa, height, batchCP)
		if err != nil {
			return BatchSummary{}, nil, err
		}
		receipts = append(receipts, receipt.TxReceipt)
		if !admitted {
			continue
		}

		exec.Meter.Refund(cost)
		summary.Admitted++
		summary.SequencerFees, err = safemath.Add64(summary.SequencerFees, receipt.sequencerFee)
		if err != nil {
			return BatchSummary{}, nil, err
		}
	}
	summary.StakeConsumed = exec.Meter.Consumed()

	if Settle(summary).Kind == Slashed {
		err = batchCP.Discard()
	} else {
		err = batchCP.Commit()
	}
	return summary, receipts, err
}

func (r *Runtime) preExecGas(raw auth.RawTx) (uint64, error) {
	perBytes, err := safemath.Mul64(r.config.PreExecGasPerByte, uint64(len(raw.Data)))
	if err != nil {
		return 0, err
	}
	return safemath.Add64(r.config.PreExecGasPerTx, perBytes)
}

// applyTx runs the admission checks on [tx] and executes it if it passes them.
// The returned error is only set if the batch can't go on.
func (r *Runtime) applyTx(
	tx *auth.AuthenticatedTx,
	call auth.Call,
	daAddr ids.ShortID,
	height uint64,
	batchCP *state.Checkpoint,
) (txResult, bool, error) {
	result := txResult{TxReceipt: TxReceipt{Hash: tx.Hash}}
	skip := func(err error) (txResult, bool, error) {
		if !skippable(err) {
			return txResult{}, false, err
		}
		r.log.Debug("skipping transaction", "tx", tx.Hash, "err", err)
		result.Status = TxSkipped
		result.Error = err.Error()
		return result, false, nil
	}

	if err := r.CheckUniqueness(tx, batchCP); err != nil {
		return skip(err)
	}
	ctx, err := r.ResolveContext(tx, daAddr, height, batchCP)
	if err != nil {
		return skip(err)
	}
	ws, err := r.TryReserveGas(tx, ctx, r.config.GasPrice, batchCP)
	if err != nil {
		return skip(err)
	}

	meter := ws.GasMeter()
	if err := r.dispatcher.Dispatch(call, ctx, ws); err != nil {
		r.log.Debug("transaction reverted", "tx", tx.Hash, "err", err)
		ws.Revert()
		result.Status = TxReverted
		result.Error = err.Error()
	} else {
		if _, err := ws.Checkpoint(); err != nil {
			return txResult{}, false, err
		}
		result.Status = TxSuccessful
	}

	c, err := r.ConsumeGasAndAllocateRewards(tx, meter, batchCP)
	if err != nil {
		return txResult{}, false, err
	}
	refund, err := r.RefundRemainingGas(tx, ctx, c, batchCP)
	if err != nil {
		return txResult{}, false, err
	}
	if err := r.MarkTxAttempted(tx, batchCP); err != nil {
		return txResult{}, false, err
	}

	result.GasUsed = meter.Used()
	result.Consumed = c.Consumed
	result.Refunded = refund
	result.sequencerFee = c.SequencerReward
	return result, true, nil
}

// txResult is a receipt plus what the sequencer earned from the transaction.
type txResult struct {
	TxReceipt
	sequencerFee uint64
}
