// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sequencer

import (
	"errors"
	"fmt"

	safemath "github.com/ava-labs/avalanchego/utils/math"
)

var ErrStakeExhausted = errors.New("sequencer stake exhausted")

// StakeMeter bounds the pre-execution work a batch may cost its sequencer to
// the sequencer's stake. It only meters; the stake is debited when the batch
// is settled.
type StakeMeter struct {
	budget   uint64
	price    uint64
	consumed uint64
}

func NewStakeMeter(budget, price uint64) *StakeMeter {
	return &StakeMeter{
		budget: budget,
		price:  price,
	}
}

// Charge records [units] of work at the meter's price and returns the cost. If
// the budget would be crossed the meter is drained to the budget, so that the
// attempt is paid for, and ErrStakeExhausted is returned.
func (m *StakeMeter) Charge(units uint64) (uint64, error) {
	cost, err := safemath.Mul64(units, m.price)
	if err != nil {
		m.consumed = m.budget
		return 0, fmt.Errorf("%w: %v", ErrStakeExhausted, err)
	}
	total, err := safemath.Add64(m.consumed, cost)
	if err != nil || total > m.budget {
		err = fmt.Errorf("%w: %d charged with %d of %d consumed", ErrStakeExhausted, cost, m.consumed, m.budget)
		m.consumed = m.budget
		return 0, err
	}
	m.consumed = total
	return cost, nil
}

// Refund gives back [cost] once the sender has been charged for the work.
func (m *StakeMeter) Refund(cost uint64) {
	m.consumed -= safemath.Min64(cost, m.consumed)
}

func (m *StakeMeter) Budget() uint64   { return m.budget }
func (m *StakeMeter) Price() uint64    { return m.price }
func (m *StakeMeter) Consumed() uint64 { return m.consumed }
