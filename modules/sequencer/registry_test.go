// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sequencer

import (
	"testing"

	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/informalsystems/sov-rollup-starter/modules/bank"
	"github.com/informalsystems/sov-rollup-starter/state"
)

var (
	seqAddr = ids.ShortID{1}
	daAddr  = ids.ShortID{2}
	otherDa = ids.ShortID{3}
)

func quiet() log.Logger {
	l := log.New()
	l.SetHandler(log.DiscardHandler())
	return l
}

// newTestRegistry registers one sequencer with [stake] out of a balance of
// 5000.
func newTestRegistry(t *testing.T, minimumBond, stake uint64) (*Registry, *bank.Module, *state.Checkpoint) {
	t.Helper()
	require := require.New(t)

	b := bank.New()
	b.SetLogger(quiet())
	r := New(b)
	r.SetLogger(quiet())

	s := state.NewStorage(memdb.New())
	slot, err := s.BeginSlot()
	require.NoError(err)

	require.NoError(b.InitGenesis(bank.Config{Balances: []bank.Balance{
		{Address: seqAddr.String(), Amount: 5000},
	}}, slot))
	require.NoError(r.InitGenesis(Config{
		MinimumBond: minimumBond,
		Sequencers: []Entry{{
			Address:   seqAddr.String(),
			DaAddress: daAddr.String(),
			Stake:     stake,
		}},
	}, slot))
	return r, b, slot
}

func balance(t *testing.T, b *bank.Module, db state.Reader, addr ids.ShortID) uint64 {
	t.Helper()
	amount, err := b.Balance(addr, db)
	require.NoError(t, err)
	return amount
}

func TestGenesisBondsStake(t *testing.T) {
	require := require.New(t)
	r, b, slot := newTestRegistry(t, 100, 1000)

	s, err := r.Get(daAddr, slot)
	require.NoError(err)
	require.Equal(Sequencer{Address: seqAddr, DaAddress: daAddr, Stake: 1000}, s)
	require.Equal(uint64(4000), balance(t, b, slot, seqAddr))
	require.Equal(uint64(1000), balance(t, b, slot, RegistryAddress))

	addr, err := r.ResolveDaAddress(daAddr, slot)
	require.NoError(err)
	require.Equal(seqAddr, addr)

	_, err = r.ResolveDaAddress(otherDa, slot)
	require.ErrorIs(err, ErrUnknownSequencer)

	require.ErrorIs(r.Register(seqAddr, daAddr, 1, slot), ErrAlreadyRegistered)
}

func TestRegisterNeedsFunds(t *testing.T) {
	r, _, slot := newTestRegistry(t, 100, 1000)
	err := r.Register(seqAddr, otherDa, 4001, slot)
	assert.ErrorIs(t, err, bank.ErrInsufficientBalance)
}

func TestAuthorizeSequencer(t *testing.T) {
	require := require.New(t)
	r, _, slot := newTestRegistry(t, 1000, 1000)

	meter, err := r.AuthorizeSequencer(daAddr, 3, slot)
	require.NoError(err)
	require.Equal(uint64(1000), meter.Budget())
	require.Equal(uint64(3), meter.Price())

	_, err = r.AuthorizeSequencer(otherDa, 3, slot)
	require.ErrorIs(err, ErrUnauthorizedSequencer)

	_, err = r.Penalize(daAddr, 1, 0, slot)
	require.NoError(err)
	_, err = r.AuthorizeSequencer(daAddr, 3, slot)
	require.ErrorIs(err, ErrUnauthorizedSequencer)
}

func TestStakeMeter(t *testing.T) {
	require := require.New(t)
	m := NewStakeMeter(100, 10)

	cost, err := m.Charge(4)
	require.NoError(err)
	require.Equal(uint64(40), cost)
	cost, err = m.Charge(6)
	require.NoError(err)
	require.Equal(uint64(60), cost)
	require.Equal(uint64(100), m.Consumed())

	_, err = m.Charge(1)
	require.ErrorIs(err, ErrStakeExhausted)
	require.Equal(uint64(100), m.Consumed())

	m.Refund(60)
	require.Equal(uint64(40), m.Consumed())
	m.Refund(1000)
	require.Zero(m.Consumed())

	_, err = m.Charge(1 << 63)
	require.ErrorIs(err, ErrStakeExhausted)
	require.Equal(uint64(100), m.Consumed())
}

func TestStakeMeterOverrunDrainsBudget(t *testing.T) {
	require := require.New(t)
	m := NewStakeMeter(50, 1)

	cost, err := m.Charge(300)
	require.ErrorIs(err, ErrStakeExhausted)
	require.Zero(cost)
	require.Equal(uint64(50), m.Consumed())
}

func TestPenalizeCreditsEarnedFees(t *testing.T) {
	require := require.New(t)
	r, b, slot := newTestRegistry(t, 100, 1000)

	require.NoError(b.Transfer(seqAddr, RegistryAddress, 40, slot))
	taken, err := r.Penalize(daAddr, 100, 40, slot)
	require.NoError(err)
	require.Equal(uint64(100), taken)

	s, err := r.Get(daAddr, slot)
	require.NoError(err)
	require.Equal(uint64(940), s.Stake)
	require.Equal(s.Stake, balance(t, b, slot, RegistryAddress))

	// the bond bounds the penalty, earned fees included
	taken, err = r.Penalize(daAddr, 5000, 0, slot)
	require.NoError(err)
	require.Equal(uint64(940), taken)
	require.Zero(balance(t, b, slot, RegistryAddress))
}

func TestRewardPenalizeSlash(t *testing.T) {
	require := require.New(t)
	r, b, slot := newTestRegistry(t, 100, 1000)

	// fees are paid to the registry before the stake is credited
	require.NoError(b.Transfer(seqAddr, RegistryAddress, 50, slot))
	require.NoError(r.Reward(daAddr, 50, slot))
	s, err := r.Get(daAddr, slot)
	require.NoError(err)
	require.Equal(uint64(1050), s.Stake)

	taken, err := r.Penalize(daAddr, 300, 0, slot)
	require.NoError(err)
	require.Equal(uint64(300), taken)
	require.Equal(uint64(750), balance(t, b, slot, RegistryAddress))

	taken, err = r.Penalize(daAddr, 10000, 0, slot)
	require.NoError(err)
	require.Equal(uint64(750), taken)
	require.Zero(balance(t, b, slot, RegistryAddress))

	slashed, err := r.Slash(daAddr, slot)
	require.NoError(err)
	require.Zero(slashed)
	_, err = r.Get(daAddr, slot)
	require.ErrorIs(err, ErrUnknownSequencer)
}

func TestSlashBurnsBond(t *testing.T) {
	require := require.New(t)
	r, b, slot := newTestRegistry(t, 100, 1000)

	slashed, err := r.Slash(daAddr, slot)
	require.NoError(err)
	require.Equal(uint64(1000), slashed)
	require.Zero(balance(t, b, slot, RegistryAddress))
	_, err = r.AuthorizeSequencer(daAddr, 1, slot)
	require.ErrorIs(err, ErrUnauthorizedSequencer)
}

func TestRecordBatch(t *testing.T) {
	require := require.New(t)
	r, _, slot := newTestRegistry(t, 100, 1000)

	require.NoError(r.RecordBatch(ids.ID{1}, slot))
	require.NoError(r.RecordBatch(ids.ID{2}, slot))
	require.ErrorIs(r.RecordBatch(ids.ID{1}, slot), ErrDuplicateBatch)
}
