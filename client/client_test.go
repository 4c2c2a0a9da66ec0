// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"
	"net/http/httptest"
	"testing"

	log "github.com/inconshreveable/log15"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/crypto"

	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/genesis"
	"github.com/informalsystems/sov-rollup-starter/modules/bank"
	"github.com/informalsystems/sov-rollup-starter/modules/sequencer"
	"github.com/informalsystems/sov-rollup-starter/stf"
)

const chainID = 7

var (
	seqAddr    = ids.ShortID{1}
	seqDa      = ids.ShortID{2}
	proverPool = ids.ShortID{3}
	recipient  = ids.ShortID{4}
)

func newTestServer(t *testing.T, sender ids.ShortID) Client {
	t.Helper()
	require := require.New(t)

	g := &genesis.Genesis{
		Bank: bank.Config{Balances: []bank.Balance{
			{Address: sender.String(), Amount: 10000},
			{Address: seqAddr.String(), Amount: 1000},
		}},
		SequencerRegistry: sequencer.Config{
			MinimumBond: 100,
			Sequencers: []sequencer.Entry{{
				Address:   seqAddr.String(),
				DaAddress: seqDa.String(),
				Stake:     500,
			}},
		},
		ProverIncentives: genesis.ProverIncentives{PoolAddress: proverPool.String()},
		ChainState: genesis.ChainConfig{
			ChainID:           chainID,
			GasPrice:          1,
			BaseFee:           1,
			ProverFeeBips:     1000,
			PreExecGasPerTx:   10,
			PreExecGasPerByte: 1,
		},
	}
	rt, err := stf.NewRuntime(stf.Config{Chain: g.ChainState, ProverPool: proverPool})
	require.NoError(err)
	chain := stf.NewChain(memdb.New(), rt)
	l := log.New()
	l.SetHandler(log.DiscardHandler())
	chain.SetLogger(l)
	require.NoError(chain.Initialize(g))

	handler, err := stf.NewHandler(chain)
	require.NoError(err)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL)
}

func TestRoundTrip(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	f := crypto.FactorySECP256K1R{}
	key, err := f.NewPrivateKey()
	require.NoError(err)
	cli := newTestServer(t, key.PublicKey().Address())

	_, err = cli.GetSlot(ctx, nil)
	require.Error(err)

	seq, err := cli.GetSequencer(ctx, seqDa)
	require.NoError(err)
	require.Equal(seqAddr.String(), seq.Address)
	require.Equal(uint64(500), uint64(seq.Stake))

	call, err := bank.EncodeCall(&bank.Transfer{To: recipient, Amount: 250})
	require.NoError(err)
	tx, err := auth.NewSignedRawTx(key, auth.UnsignedTx{
		RuntimeMsg: call,
		ChainID:    chainID,
		GasLimit:   1000,
		MaxFee:     1000,
	})
	require.NoError(err)

	reply, err := cli.SubmitSlot(ctx, &stf.Slot{
		Height:  1,
		Batches: []stf.Batch{{Sequencer: seqDa, Txs: []auth.RawTx{tx}}},
	})
	require.NoError(err)
	require.Len(reply.Outcomes, 1)
	require.Equal(stf.Rewarded, reply.Outcomes[0].Kind)

	acc, err := cli.GetAccount(ctx, auth.Credential{PubKey: key.PublicKey().Bytes()}.ID())
	require.NoError(err)
	require.True(acc.Exists)
	require.Equal(key.PublicKey().Address().String(), acc.Address)
	require.Equal(uint64(1), uint64(acc.Nonce))

	unknown, err := cli.GetAccount(ctx, ids.ID{1})
	require.NoError(err)
	require.False(unknown.Exists)

	balance, err := cli.GetBalance(ctx, recipient)
	require.NoError(err)
	require.Equal(uint64(250), balance)

	slot, err := cli.GetSlot(ctx, nil)
	require.NoError(err)
	require.Equal(uint64(1), uint64(slot.Height))
	require.Equal(reply.PostStateDigest, slot.PostStateDigest)
	require.Len(slot.BatchIDs, 1)

	height := uint64(1)
	same, err := cli.GetSlot(ctx, &height)
	require.NoError(err)
	require.Equal(slot, same)

	batch, err := cli.GetBatchReceipt(ctx, slot.BatchIDs[0])
	require.NoError(err)
	require.True(batch.Admitted)
	require.Equal(seqDa, batch.SequencerDa)
	require.Equal(reply.Outcomes[0], batch.Outcome)
	require.Len(batch.Txs, 1)

	receipt, err := cli.GetTxReceipt(ctx, batch.Txs[0].Hash)
	require.NoError(err)
	require.Equal(stf.TxSuccessful, receipt.Status)
	require.Equal(batch.Txs[0], *receipt)

	_, err = cli.GetTxReceipt(ctx, ids.ID{9})
	require.Error(err)
}

func TestEncodeSlot(t *testing.T) {
	require := require.New(t)

	slot := &stf.Slot{
		Height: 3,
		Batches: []stf.Batch{
			{Sequencer: seqDa, Txs: []auth.RawTx{{Data: []byte{1, 2, 3}}, {Data: []byte{4}}}},
			{Sequencer: seqAddr},
		},
	}
	args, err := EncodeSlot(slot)
	require.NoError(err)
	decoded, err := args.Slot()
	require.NoError(err)
	require.Equal(slot, decoded)

	args.Batches[0].Sequencer = "not an address"
	_, err = args.Slot()
	require.Error(err)
}
