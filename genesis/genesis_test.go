// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/informalsystems/sov-rollup-starter/modules/sequencer"
)

var (
	pool   = ids.ShortID{7}
	seq    = ids.ShortID{8}
	seqDa  = ids.ShortID{9}
	sender = ids.ShortID{10}
)

func writeGenesis(t *testing.T, chainState string) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"accounts.json": `{"accounts": []}`,
		"bank.json": `{"balances": [
			{"address": "` + sender.String() + `", "amount": 900},
			{"address": "` + seq.String() + `", "amount": 5000}
		]}`,
		"sequencer_registry.json": `{
			"minimum_bond": 100,
			"sequencers": [{"address": "` + seq.String() + `", "da_address": "` + seqDa.String() + `", "stake": 1000}]
		}`,
		"prover_incentives.json": `{"pool_address": "` + pool.String() + `"}`,
		"chain_state.json":       chainState,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

const validChainState = `{
	"chain_id": 4321,
	"gas_price": 1,
	"base_fee": 2,
	"prover_fee_bips": 2500,
	"pre_exec_gas_per_tx": 10,
	"pre_exec_gas_per_byte": 1
}`

func TestFromDir(t *testing.T) {
	paths := FromDir("/tmp/genesis")
	require.Equal(t, Paths{
		Accounts:          "/tmp/genesis/accounts.json",
		Bank:              "/tmp/genesis/bank.json",
		SequencerRegistry: "/tmp/genesis/sequencer_registry.json",
		ProverIncentives:  "/tmp/genesis/prover_incentives.json",
		ChainState:        "/tmp/genesis/chain_state.json",
	}, paths)
}

func TestLoadDir(t *testing.T) {
	require := require.New(t)
	g, err := LoadDir(writeGenesis(t, validChainState))
	require.NoError(err)

	require.Equal(ChainConfig{
		ChainID:           4321,
		GasPrice:          1,
		BaseFee:           2,
		ProverFeeBips:     2500,
		PreExecGasPerTx:   10,
		PreExecGasPerByte: 1,
	}, g.ChainState)
	require.Len(g.Bank.Balances, 2)
	require.Equal(uint64(900), g.Bank.Balances[0].Amount)
	require.Equal(sequencer.Config{
		MinimumBond: 100,
		Sequencers: []sequencer.Entry{{
			Address:   seq.String(),
			DaAddress: seqDa.String(),
			Stake:     1000,
		}},
	}, g.SequencerRegistry)
	require.Empty(g.Accounts.Accounts)

	p, err := g.ProverIncentives.Pool()
	require.NoError(err)
	require.Equal(pool, p)
}

func TestLoadRejectsBadChainState(t *testing.T) {
	tests := []struct {
		name       string
		chainState string
		err        error
	}{
		{
			name:       "zero gas price",
			chainState: `{"chain_id": 1, "gas_price": 0, "base_fee": 1, "pre_exec_gas_per_tx": 1}`,
			err:        errZeroGasPrice,
		},
		{
			name:       "zero base fee",
			chainState: `{"chain_id": 1, "gas_price": 1, "base_fee": 0, "pre_exec_gas_per_tx": 1}`,
			err:        errZeroBaseFee,
		},
		{
			name:       "prover fee too large",
			chainState: `{"chain_id": 1, "gas_price": 1, "base_fee": 1, "pre_exec_gas_per_tx": 1, "prover_fee_bips": 10001}`,
			err:        errProverFeeBips,
		},
		{
			name:       "free pre-execution",
			chainState: `{"chain_id": 1, "gas_price": 1, "base_fee": 1}`,
			err:        errNoPreExecCosts,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadDir(writeGenesis(t, test.chainState))
			require.ErrorIs(t, err, test.err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := writeGenesis(t, validChainState)
	require.NoError(t, os.Remove(filepath.Join(dir, "bank.json")))
	_, err := LoadDir(dir)
	require.Error(t, err)
}
