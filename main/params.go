// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	versionKey    = "version"
	configFileKey = "config-file"
	genesisDirKey = "genesis-dir"
	slotsFileKey  = "slots"
	logLevelKey   = "log-level"
	httpAddrKey   = "http-addr"

	loadURIKey       = "load-uri"
	loadSeedKey      = "load-seed"
	loadRoundsKey    = "load-rounds"
	loadTxsKey       = "load-txs"
	loadAmountKey    = "load-amount"
	loadMaxFeeKey    = "load-max-fee"
	loadSequencerKey = "load-sequencer"
	loadChainIDKey   = "load-chain-id"
)

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("stf", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints the version and quits")
	fs.String(configFileKey, "", "Optional config file setting any of these flags")
	fs.String(genesisDirKey, "test_data/genesis", "Directory holding the genesis json files")
	fs.String(slotsFileKey, "", "Json file of slots to apply after genesis")
	fs.String(logLevelKey, "info", "One of crit, error, warn, info, debug")
	fs.String(httpAddrKey, "", "If set, serves the JSON-RPC API and metrics on this address")

	fs.String(loadURIKey, "", "If set, submits transfers to the JSON-RPC API at this uri instead of running a chain")
	fs.String(loadSeedKey, "", "Seed of the key transfers are paid from. Its address must be funded")
	fs.Int(loadRoundsKey, 10, "Number of slots to submit")
	fs.Int(loadTxsKey, 20, "Number of transfers in each slot")
	fs.Uint64(loadAmountKey, 1, "Amount of each transfer")
	fs.Uint64(loadMaxFeeKey, 10000, "Max fee of each transfer")
	fs.String(loadSequencerKey, "", "DA address the batches are published from")
	fs.Uint64(loadChainIDKey, 4321, "Chain id the transfers are signed for")

	return fs
}

// getViper returns the viper environment for the node binary
func getViper() (*viper.Viper, error) {
	v := viper.New()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	if path := v.GetString(configFileKey); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}
