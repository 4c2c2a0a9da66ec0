// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package loadgen submits bank transfers to a running chain and checks the
// balances they lead to.
package loadgen

import (
	"context"
	"errors"
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/crypto"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/client"
	"github.com/informalsystems/sov-rollup-starter/modules/bank"
	"github.com/informalsystems/sov-rollup-starter/stf"
)

var (
	factory crypto.FactorySECP256K1R

	ErrBalanceMismatch = errors.New("unexpected balance")

	errNoTxs       = errors.New("at least one transaction per slot is needed")
	errZeroAmount  = errors.New("transfer amount must be positive")
	errZeroMaxFee  = errors.New("max fee must be positive")
	errNoSequencer = errors.New("sequencer DA address is missing")
)

// Config describes the transfers a Generator submits.
type Config struct {
	ChainID uint64
	// Sequencer is the DA address batches are published from.
	Sequencer  ids.ShortID
	Amount     uint64
	GasLimit   uint64
	MaxFee     uint64
	TxsPerSlot int
}

func (c *Config) Verify() error {
	errs := wrappers.Errs{}
	if c.TxsPerSlot <= 0 {
		errs.Add(errNoTxs)
	}
	if c.Amount == 0 {
		errs.Add(errZeroAmount)
	}
	if c.MaxFee == 0 {
		errs.Add(errZeroMaxFee)
	}
	if c.Sequencer == ids.ShortEmpty {
		errs.Add(errNoSequencer)
	}
	return errs.Err
}

// Round is what one submitted slot did.
type Round struct {
	Height    uint64
	Outcome   stf.Outcome
	Transfers int
	// Spent is what the sender paid, transfers and gas.
	Spent uint64
}

// KeyFromSeed derives a signing key from [seed], so that a sender can be
// funded at genesis and driven later.
func KeyFromSeed(seed string) (crypto.PrivateKey, error) {
	return factory.ToPrivateKey(hashing.ComputeHash256([]byte(seed)))
}

// Generator sends transfers from one key to freshly generated recipients.
type Generator struct {
	log    log.Logger
	cli    client.Client
	config Config

	key    crypto.PrivateKey
	credID ids.ID
	sender ids.ShortID

	height uint64
}

func New(cli client.Client, key crypto.PrivateKey, config Config) (*Generator, error) {
	if err := config.Verify(); err != nil {
		return nil, fmt.Errorf("invalid load config: %w", err)
	}
	return &Generator{
		log:    log.New("module", "loadgen"),
		cli:    cli,
		config: config,
		key:    key,
		credID: auth.Credential{PubKey: key.PublicKey().Bytes()}.ID(),
		sender: key.PublicKey().Address(),
	}, nil
}

func (g *Generator) SetLogger(l log.Logger) { g.log = l.New("module", "loadgen") }

// Sender is the address transfers are paid from.
func (g *Generator) Sender() ids.ShortID { return g.sender }

// Run submits [rounds] slots and stops at the first error.
func (g *Generator) Run(ctx context.Context, rounds int) ([]Round, error) {
	done := make([]Round, 0, rounds)
	for i := 0; i < rounds; i++ {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		round, err := g.Next(ctx)
		if err != nil {
			return done, err
		}
		done = append(done, *round)
	}
	return done, nil
}

// Next submits one slot of transfers and checks that every executed transfer
// arrived and that the sender paid exactly for them and their gas.
func (g *Generator) Next(ctx context.Context) (*Round, error) {
	acc, err := g.cli.GetAccount(ctx, g.credID)
	if err != nil {
		return nil, err
	}
	nonce := uint64(0)
	if acc.Exists {
		nonce = uint64(acc.Nonce)
	}
	start, err := g.cli.GetBalance(ctx, g.sender)
	if err != nil {
		return nil, err
	}
	if g.height == 0 {
		g.height = g.latestHeight(ctx)
	}

	txs := make([]auth.RawTx, g.config.TxsPerSlot)
	recipients := make([]ids.ShortID, g.config.TxsPerSlot)
	for i := range txs {
		to, err := factory.NewPrivateKey()
		if err != nil {
			return nil, err
		}
		recipients[i] = to.PublicKey().Address()
		call, err := bank.EncodeCall(&bank.Transfer{To: recipients[i], Amount: g.config.Amount})
		if err != nil {
			return nil, err
		}
		txs[i], err = auth.NewSignedRawTx(g.key, auth.UnsignedTx{
			RuntimeMsg: call,
			ChainID:    g.config.ChainID,
			Nonce:      nonce + uint64(i),
			MaxFee:     g.config.MaxFee,
			GasLimit:   g.config.GasLimit,
		})
		if err != nil {
			return nil, err
		}
	}

	height := g.height + 1
	reply, err := g.cli.SubmitSlot(ctx, &stf.Slot{
		Height:  height,
		Batches: []stf.Batch{{Sequencer: g.config.Sequencer, Txs: txs}},
	})
	if err != nil {
		return nil, err
	}
	g.height = height

	slot, err := g.cli.GetSlot(ctx, &height)
	if err != nil {
		return nil, err
	}
	batch, err := g.cli.GetBatchReceipt(ctx, slot.BatchIDs[0])
	if err != nil {
		return nil, err
	}

	round := &Round{
		Height:  height,
		Outcome: reply.Outcomes[0],
	}
	for i, tx := range batch.Txs {
		round.Spent += tx.Consumed
		if tx.Status != stf.TxSuccessful {
			continue
		}
		balance, err := g.cli.GetBalance(ctx, recipients[i])
		if err != nil {
			return nil, err
		}
		if balance != g.config.Amount {
			return nil, fmt.Errorf("%w: recipient %s has %d, expected %d", ErrBalanceMismatch, recipients[i], balance, g.config.Amount)
		}
		round.Transfers++
		round.Spent += g.config.Amount
	}

	end, err := g.cli.GetBalance(ctx, g.sender)
	if err != nil {
		return nil, err
	}
	if end+round.Spent != start {
		return nil, fmt.Errorf("%w: sender went from %d to %d having spent %d", ErrBalanceMismatch, start, end, round.Spent)
	}
	g.log.Info("submitted transfers",
		"height", height,
		"outcome", round.Outcome,
		"transfers", round.Transfers,
		"spent", round.Spent,
	)
	return round, nil
}

func (g *Generator) latestHeight(ctx context.Context) uint64 {
	slot, err := g.cli.GetSlot(ctx, nil)
	if err != nil {
		// a chain with no slot applied starts at height 1
		g.log.Debug("no latest slot", "err", err)
		return 0
	}
	return uint64(slot.Height)
}
