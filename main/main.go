// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/informalsystems/sov-rollup-starter/client"
	"github.com/informalsystems/sov-rollup-starter/genesis"
	"github.com/informalsystems/sov-rollup-starter/loadgen"
	"github.com/informalsystems/sov-rollup-starter/stf"
)

func main() {
	v, err := getViper()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print version and exit
	if v.GetBool(versionKey) {
		fmt.Printf("%s@%s\n", stf.Name, stf.Version)
		os.Exit(0)
	}

	if err := run(v); err != nil {
		fmt.Printf("%s\n", err)
		os.Exit(1)
	}
}

func run(v *viper.Viper) error {
	level, err := log.LvlFromString(v.GetString(logLevelKey))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger := log.New()
	logger.SetHandler(log.LvlFilterHandler(level, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	if uri := v.GetString(loadURIKey); uri != "" {
		return runLoad(v, uri, logger)
	}

	g, err := genesis.LoadDir(v.GetString(genesisDirKey))
	if err != nil {
		return fmt.Errorf("couldn't load genesis: %w", err)
	}
	pool, err := g.ProverIncentives.Pool()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	rt, err := stf.NewRuntime(stf.Config{
		Chain:      g.ChainState,
		ProverPool: pool,
		Registerer: registry,
	})
	if err != nil {
		return err
	}
	chain := stf.NewChain(memdb.New(), rt)
	chain.SetLogger(logger)
	defer chain.Close()

	if err := chain.Initialize(g); err != nil {
		return fmt.Errorf("couldn't initialize chain: %w", err)
	}

	if path := v.GetString(slotsFileKey); path != "" {
		if err := applySlots(chain, path); err != nil {
			return err
		}
	}

	addr := v.GetString(httpAddrKey)
	if addr == "" {
		return nil
	}
	handler, err := stf.NewHandler(chain)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/rpc", handler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("serving", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

// applySlots replays the slots in [path], printing the digest each one leads
// to.
func applySlots(chain *stf.Chain, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var slots []stf.SubmitSlotArgs
	if err := json.Unmarshal(b, &slots); err != nil {
		return fmt.Errorf("couldn't parse %s: %w", path, err)
	}
	for i := range slots {
		slot, err := slots[i].Slot()
		if err != nil {
			return err
		}
		receipt, err := chain.ApplySlot(slot)
		if err != nil {
			return fmt.Errorf("couldn't apply slot %d: %w", slot.Height, err)
		}
		fmt.Printf("slot %d: %s\n", receipt.Height, receipt.PostStateDigest)
		for _, batch := range receipt.Batches {
			fmt.Printf("  batch %s: %s\n", batch.BatchID, batch.Outcome)
		}
	}
	return nil
}

// runLoad submits signed transfers to the chain served at [uri].
func runLoad(v *viper.Viper, uri string, logger log.Logger) error {
	seed := v.GetString(loadSeedKey)
	if seed == "" {
		return fmt.Errorf("--%s is required with --%s", loadSeedKey, loadURIKey)
	}
	key, err := loadgen.KeyFromSeed(seed)
	if err != nil {
		return err
	}
	sequencer, err := ids.ShortFromString(v.GetString(loadSequencerKey))
	if err != nil {
		return fmt.Errorf("invalid sequencer DA address: %w", err)
	}

	gen, err := loadgen.New(client.New(uri), key, loadgen.Config{
		ChainID:    v.GetUint64(loadChainIDKey),
		Sequencer:  sequencer,
		Amount:     v.GetUint64(loadAmountKey),
		MaxFee:     v.GetUint64(loadMaxFeeKey),
		TxsPerSlot: v.GetInt(loadTxsKey),
	})
	if err != nil {
		return err
	}
	gen.SetLogger(logger)
	logger.Info("generating load", "uri", uri, "sender", gen.Sender())

	rounds, err := gen.Run(context.Background(), v.GetInt(loadRoundsKey))
	for _, round := range rounds {
		fmt.Printf("slot %d: %s, %d transfers, spent %d\n", round.Height, round.Outcome, round.Transfers, round.Spent)
	}
	return err
}
