// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accounts

import (
	"testing"

	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/crypto"

	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/state"
)

func newTestModule() *Module {
	m := New()
	l := log.New()
	l.SetHandler(log.DiscardHandler())
	m.SetLogger(l)
	return m
}

func newBatch(t *testing.T) *state.Checkpoint {
	t.Helper()
	s := state.NewStorage(memdb.New())
	slot, err := s.BeginSlot()
	require.NoError(t, err)
	batch, err := slot.BeginBatch()
	require.NoError(t, err)
	return batch
}

func newCredential(t *testing.T) auth.Credential {
	t.Helper()
	f := crypto.FactorySECP256K1R{}
	key, err := f.NewPrivateKey()
	require.NoError(t, err)
	return auth.Credential{PubKey: key.PublicKey().Bytes()}
}

func txWithNonce(cred auth.Credential, nonce uint64) *auth.AuthenticatedTx {
	return &auth.AuthenticatedTx{
		Credential: cred,
		Unsigned:   auth.UnsignedTx{Nonce: nonce},
	}
}

func TestNonceLifecycle(t *testing.T) {
	require := require.New(t)
	m := newTestModule()
	batch := newBatch(t)
	cred := newCredential(t)

	require.NoError(m.CheckUniqueness(txWithNonce(cred, 0), batch))
	require.ErrorIs(m.CheckUniqueness(txWithNonce(cred, 1), batch), ErrBadNonce)

	// the nonce can only be consumed once the credential is resolved
	require.ErrorIs(m.MarkTxAttempted(txWithNonce(cred, 0), batch), ErrUnknownAccount)

	addr, err := m.ResolveSenderAddress(cred, batch)
	require.NoError(err)
	defaultAddr, err := cred.DefaultAddress()
	require.NoError(err)
	require.Equal(defaultAddr, addr)

	require.NoError(m.MarkTxAttempted(txWithNonce(cred, 0), batch))
	require.ErrorIs(m.CheckUniqueness(txWithNonce(cred, 0), batch), ErrBadNonce)
	require.NoError(m.CheckUniqueness(txWithNonce(cred, 1), batch))

	acc, err := m.Get(cred.ID(), batch)
	require.NoError(err)
	require.Equal(Account{Address: addr, Nonce: 1}, acc)
}

func TestResolveIsStable(t *testing.T) {
	require := require.New(t)
	m := newTestModule()
	batch := newBatch(t)
	cred := newCredential(t)

	first, err := m.ResolveSenderAddress(cred, batch)
	require.NoError(err)
	second, err := m.ResolveSenderAddress(cred, batch)
	require.NoError(err)
	require.Equal(first, second)
}

func TestGenesisBinding(t *testing.T) {
	require := require.New(t)
	m := newTestModule()
	batch := newBatch(t)
	cred := newCredential(t)
	custom := ids.ShortID{9, 9, 9}

	require.NoError(m.InitGenesis(Config{Accounts: []Entry{
		{CredentialID: cred.ID().String(), Address: custom.String()},
	}}, batch))

	addr, err := m.ResolveSenderAddress(cred, batch)
	require.NoError(err)
	require.Equal(custom, addr)
}

func TestAddressTaken(t *testing.T) {
	require := require.New(t)
	m := newTestModule()
	batch := newBatch(t)
	squatter := ids.ID{1}
	cred := newCredential(t)
	defaultAddr, err := cred.DefaultAddress()
	require.NoError(err)

	require.NoError(m.InitGenesis(Config{Accounts: []Entry{
		{CredentialID: squatter.String(), Address: defaultAddr.String()},
	}}, batch))

	_, err = m.ResolveSenderAddress(cred, batch)
	require.ErrorIs(err, ErrAddressTaken)
	_, err = m.Get(cred.ID(), batch)
	require.ErrorIs(err, ErrUnknownAccount)
}

func TestGenesisRejectsBadIDs(t *testing.T) {
	m := newTestModule()
	batch := newBatch(t)
	require.Error(t, m.InitGenesis(Config{Accounts: []Entry{{CredentialID: "nope", Address: ids.ShortEmpty.String()}}}, batch))
	require.Error(t, m.InitGenesis(Config{Accounts: []Entry{{CredentialID: ids.Empty.String(), Address: "nope"}}}, batch))
}
