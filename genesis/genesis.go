// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/informalsystems/sov-rollup-starter/modules/accounts"
	"github.com/informalsystems/sov-rollup-starter/modules/bank"
	"github.com/informalsystems/sov-rollup-starter/modules/sequencer"
)

var (
	errZeroGasPrice   = errors.New("gas price must be positive")
	errZeroBaseFee    = errors.New("base fee must be positive")
	errProverFeeBips  = errors.New("prover fee exceeds 10000 bips")
	errMissingPool    = errors.New("prover pool address is missing")
	errNoPreExecCosts = errors.New("pre-execution gas per tx must be positive")
)

// Paths locates the genesis file of every module.
type Paths struct {
	Accounts          string
	Bank              string
	SequencerRegistry string
	ProverIncentives  string
	ChainState        string
}

// FromDir returns the paths of the genesis files stored in [dir].
func FromDir(dir string) Paths {
	return Paths{
		Accounts:          filepath.Join(dir, "accounts.json"),
		Bank:              filepath.Join(dir, "bank.json"),
		SequencerRegistry: filepath.Join(dir, "sequencer_registry.json"),
		ProverIncentives:  filepath.Join(dir, "prover_incentives.json"),
		ChainState:        filepath.Join(dir, "chain_state.json"),
	}
}

// ChainConfig holds the chain parameters fixed at genesis.
type ChainConfig struct {
	ChainID  uint64 `mapstructure:"chain_id"`
	GasPrice uint64 `mapstructure:"gas_price"`
	// BaseFee prices the pre-execution work charged to sequencers.
	BaseFee           uint64    `mapstructure:"base_fee"`
	ProverFeeBips     bank.Bips `mapstructure:"prover_fee_bips"`
	PreExecGasPerTx   uint64    `mapstructure:"pre_exec_gas_per_tx"`
	PreExecGasPerByte uint64    `mapstructure:"pre_exec_gas_per_byte"`
}

func (c *ChainConfig) Verify() error {
	errs := wrappers.Errs{}
	if c.GasPrice == 0 {
		errs.Add(errZeroGasPrice)
	}
	if c.BaseFee == 0 {
		errs.Add(errZeroBaseFee)
	}
	if c.ProverFeeBips > bank.OneInBips {
		errs.Add(fmt.Errorf("%w: %d", errProverFeeBips, c.ProverFeeBips))
	}
	if c.PreExecGasPerTx == 0 {
		errs.Add(errNoPreExecCosts)
	}
	return errs.Err
}

// ProverIncentives configures where the prover share of fees is paid.
type ProverIncentives struct {
	PoolAddress string `mapstructure:"pool_address"`
}

func (p *ProverIncentives) Pool() (ids.ShortID, error) {
	if p.PoolAddress == "" {
		return ids.ShortEmpty, errMissingPool
	}
	return ids.ShortFromString(p.PoolAddress)
}

// Genesis is the initial configuration of every module.
type Genesis struct {
	Accounts          accounts.Config
	Bank              bank.Config
	SequencerRegistry sequencer.Config
	ProverIncentives  ProverIncentives
	ChainState        ChainConfig
}

// Load reads and verifies the genesis files at [paths].
func Load(paths Paths) (*Genesis, error) {
	g := &Genesis{}
	files := []struct {
		path string
		dst  interface{}
	}{
		{path: paths.Accounts, dst: &g.Accounts},
		{path: paths.Bank, dst: &g.Bank},
		{path: paths.SequencerRegistry, dst: &g.SequencerRegistry},
		{path: paths.ProverIncentives, dst: &g.ProverIncentives},
		{path: paths.ChainState, dst: &g.ChainState},
	}
	for _, f := range files {
		if err := readFile(f.path, f.dst); err != nil {
			return nil, err
		}
	}

	if err := g.ChainState.Verify(); err != nil {
		return nil, fmt.Errorf("invalid chain state: %w", err)
	}
	if _, err := g.ProverIncentives.Pool(); err != nil {
		return nil, fmt.Errorf("invalid prover incentives: %w", err)
	}
	return g, nil
}

// LoadDir is Load(FromDir(dir)).
func LoadDir(dir string) (*Genesis, error) {
	return Load(FromDir(dir))
}

func readFile(path string, dst interface{}) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("couldn't read %s: %w", path, err)
	}
	if err := v.Unmarshal(dst); err != nil {
		return fmt.Errorf("couldn't decode %s: %w", path, err)
	}
	return nil
}
