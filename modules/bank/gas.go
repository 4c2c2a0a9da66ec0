// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/state"
)

var (
	ErrZeroGasPrice   = errors.New("gas price is zero")
	ErrFeeCapExceeded = errors.New("gas limit exceeds max fee")
	ErrNoGasLimit     = errors.New("max fee buys no gas")
	ErrGasAccounting  = errors.New("gas accounting mismatch")
)

// Bips is a fraction expressed in basis points.
type Bips uint64

const OneInBips Bips = 10000

// Of returns floor(amount * b / 10000) without overflowing for any amount when
// b is at most OneInBips.
func (b Bips) Of(amount uint64) uint64 {
	q, r := amount/uint64(OneInBips), amount%uint64(OneInBips)
	return q*uint64(b) + r*uint64(b)/uint64(OneInBips)
}

// Consumption is how the gas reserved for a transaction was spent.
type Consumption struct {
	Reserved        uint64
	Consumed        uint64
	ProverReward    uint64
	SequencerReward uint64
}

// Refundable is what is left in escrow for the sender.
func (c Consumption) Refundable() uint64 { return c.Reserved - c.Consumed }

// ReserveGas moves the most [tx] can spend from [sender] into escrow and
// returns the meter the transaction runs against. Nothing is written on
// failure.
func (m *Module) ReserveGas(
	tx *auth.AuthenticatedTx,
	price uint64,
	sender ids.ShortID,
	rw state.ReadWriter,
) (*state.GasMeter, error) {
	if price == 0 {
		return nil, ErrZeroGasPrice
	}

	limit := tx.GasLimit()
	if limit == 0 {
		limit = tx.MaxFee() / price
		if limit == 0 {
			return nil, fmt.Errorf("%w: max fee %d at price %d", ErrNoGasLimit, tx.MaxFee(), price)
		}
	}
	reserve, err := safemath.Mul64(limit, price)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeeCapExceeded, err)
	}
	if reserve > tx.MaxFee() {
		return nil, fmt.Errorf("%w: %d gas at %d costs %d > %d", ErrFeeCapExceeded, limit, price, reserve, tx.MaxFee())
	}

	if err := m.Transfer(sender, EscrowAddress, reserve, rw); err != nil {
		return nil, err
	}
	m.log.Debug("reserved gas", "tx", tx.Hash, "sender", sender, "limit", limit, "reserved", reserve)
	return state.NewGasMeter(limit, price, reserve), nil
}

// ConsumeGas pays the gas used by a finished transaction out of escrow, never
// more than was reserved. The prover pool receives [proverShare] of it and the
// sequencer pool the rest.
func (m *Module) ConsumeGas(
	meter *state.GasMeter,
	proverShare Bips,
	proverPool ids.ShortID,
	sequencerPool ids.ShortID,
	rw state.ReadWriter,
) (Consumption, error) {
	consumed, err := safemath.Mul64(meter.Used(), meter.Price())
	if err != nil || consumed > meter.Reserved() {
		consumed = meter.Reserved()
	}
	c := Consumption{
		Reserved:     meter.Reserved(),
		Consumed:     consumed,
		ProverReward: proverShare.Of(consumed),
	}
	c.SequencerReward = consumed - c.ProverReward

	if err := m.Transfer(EscrowAddress, proverPool, c.ProverReward, rw); err != nil {
		return Consumption{}, err
	}
	if err := m.Transfer(EscrowAddress, sequencerPool, c.SequencerReward, rw); err != nil {
		return Consumption{}, err
	}
	return c, nil
}

// RefundRemainingGas returns what [c] left in escrow to [sender].
func (m *Module) RefundRemainingGas(c Consumption, sender ids.ShortID, rw state.ReadWriter) (uint64, error) {
	if c.Consumed > c.Reserved || c.ProverReward+c.SequencerReward != c.Consumed {
		return 0, fmt.Errorf("%w: %+v", ErrGasAccounting, c)
	}
	refund := c.Refundable()
	if err := m.Transfer(EscrowAddress, sender, refund, rw); err != nil {
		return 0, err
	}
	return refund, nil
}
