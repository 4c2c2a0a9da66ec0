// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"fmt"
)

var ErrOutOfGas = errors.New("out of gas")

// GasMeter tracks the gas a single transaction reserved and has used so far.
type GasMeter struct {
	limit    uint64
	price    uint64
	reserved uint64
	used     uint64
}

// NewGasMeter returns a meter for a transaction that may use up to [limit] gas at
// [price], having paid [reserved] up front.
func NewGasMeter(limit, price, reserved uint64) *GasMeter {
	return &GasMeter{
		limit:    limit,
		price:    price,
		reserved: reserved,
	}
}

// Charge records [units] of gas. If the limit would be crossed the meter is
// drained to the limit and ErrOutOfGas is returned.
func (m *GasMeter) Charge(units uint64) error {
	if remaining := m.limit - m.used; units > remaining {
		m.used = m.limit
		return fmt.Errorf("%w: %d requested with %d remaining", ErrOutOfGas, units, remaining)
	}
	m.used += units
	return nil
}

func (m *GasMeter) Limit() uint64     { return m.limit }
func (m *GasMeter) Price() uint64     { return m.price }
func (m *GasMeter) Reserved() uint64  { return m.reserved }
func (m *GasMeter) Used() uint64      { return m.used }
func (m *GasMeter) Remaining() uint64 { return m.limit - m.used }
