// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sequencer

import (
	"errors"
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/informalsystems/sov-rollup-starter/modules"
	"github.com/informalsystems/sov-rollup-starter/modules/bank"
	"github.com/informalsystems/sov-rollup-starter/state"
)

const codecVersion = 0

var (
	// RegistryAddress holds every bond and the sequencer share of gas fees.
	RegistryAddress = modules.Address("sequencer_registry")

	registryCodec codec.Manager

	sequencerPrefix   = []byte("sequencer/da/")
	batchPrefix       = []byte("sequencer/batch/")
	minimumBondKey    = []byte("sequencer/minimum_bond")
	batchSeenMarker   = []byte{1}
	errInvalidAddress = errors.New("invalid genesis address")

	ErrUnknownSequencer      = errors.New("unknown sequencer")
	ErrAlreadyRegistered     = errors.New("sequencer already registered")
	ErrUnauthorizedSequencer = errors.New("unauthorized sequencer")
	ErrDuplicateBatch        = errors.New("duplicate batch")
)

func init() {
	registryCodec = codec.NewDefaultManager()
	if err := registryCodec.RegisterCodec(codecVersion, linearcodec.NewDefault()); err != nil {
		panic(err)
	}
}

// Sequencer is a registered sequencer and its bond.
type Sequencer struct {
	Address   ids.ShortID `serialize:"true" json:"address"`
	DaAddress ids.ShortID `serialize:"true" json:"daAddress"`
	Stake     uint64      `serialize:"true" json:"stake"`
}

// Config is the sequencer registry genesis.
type Config struct {
	MinimumBond uint64  `mapstructure:"minimum_bond"`
	Sequencers  []Entry `mapstructure:"sequencers"`
}

type Entry struct {
	Address   string `mapstructure:"address"`
	DaAddress string `mapstructure:"da_address"`
	Stake     uint64 `mapstructure:"stake"`
}

// Registry tracks which DA addresses may publish batches and what they have
// at stake. Bonds are held by the bank at RegistryAddress.
type Registry struct {
	log  log.Logger
	bank *bank.Module
}

func New(bank *bank.Module) *Registry {
	return &Registry{
		log:  log.New("module", "sequencer"),
		bank: bank,
	}
}

func (r *Registry) SetLogger(l log.Logger) { r.log = l }

func (r *Registry) InitGenesis(cfg Config, rw state.ReadWriter) error {
	if err := database.PutUInt64(rw, minimumBondKey, cfg.MinimumBond); err != nil {
		return err
	}
	for _, e := range cfg.Sequencers {
		addr, err := ids.ShortFromString(e.Address)
		if err != nil {
			return fmt.Errorf("%w %q: %v", errInvalidAddress, e.Address, err)
		}
		daAddr, err := ids.ShortFromString(e.DaAddress)
		if err != nil {
			return fmt.Errorf("%w %q: %v", errInvalidAddress, e.DaAddress, err)
		}
		if err := r.Register(addr, daAddr, e.Stake, rw); err != nil {
			return err
		}
	}
	return nil
}

func sequencerKey(daAddr ids.ShortID) []byte {
	return append(append([]byte{}, sequencerPrefix...), daAddr[:]...)
}

func batchKey(batchID ids.ID) []byte {
	return append(append([]byte{}, batchPrefix...), batchID[:]...)
}

// MinimumBond is the least stake a sequencer needs to be allowed to publish.
func (r *Registry) MinimumBond(db state.Reader) (uint64, error) {
	bond, err := database.GetUInt64(db, minimumBondKey)
	if err == database.ErrNotFound {
		return 0, nil
	}
	return bond, err
}

// Get returns the sequencer publishing from [daAddr].
func (r *Registry) Get(daAddr ids.ShortID, db state.Reader) (Sequencer, error) {
	b, err := db.Get(sequencerKey(daAddr))
	if err == database.ErrNotFound {
		return Sequencer{}, fmt.Errorf("%w: %s", ErrUnknownSequencer, daAddr)
	}
	if err != nil {
		return Sequencer{}, err
	}
	s := Sequencer{}
	if _, err := registryCodec.Unmarshal(b, &s); err != nil {
		return Sequencer{}, err
	}
	return s, nil
}

func (r *Registry) put(s Sequencer, rw state.ReadWriter) error {
	b, err := registryCodec.Marshal(codecVersion, &s)
	if err != nil {
		return err
	}
	return rw.Put(sequencerKey(s.DaAddress), b)
}

// Register bonds [stake] from [addr] and lets it publish from [daAddr].
func (r *Registry) Register(addr, daAddr ids.ShortID, stake uint64, rw state.ReadWriter) error {
	_, err := r.Get(daAddr, rw)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, daAddr)
	case !errors.Is(err, ErrUnknownSequencer):
		return err
	}
	if err := r.bank.Transfer(addr, RegistryAddress, stake, rw); err != nil {
		return fmt.Errorf("couldn't bond sequencer %s: %w", daAddr, err)
	}
	r.log.Info("registered sequencer", "address", addr, "da", daAddr, "stake", stake)
	return r.put(Sequencer{Address: addr, DaAddress: daAddr, Stake: stake}, rw)
}

// ResolveDaAddress returns the rollup address of the sequencer publishing from
// [daAddr].
func (r *Registry) ResolveDaAddress(daAddr ids.ShortID, db state.Reader) (ids.ShortID, error) {
	s, err := r.Get(daAddr, db)
	if err != nil {
		return ids.ShortEmpty, err
	}
	return s.Address, nil
}

// AuthorizeSequencer checks that [daAddr] is registered with at least the
// minimum bond and returns a meter over its stake priced at [baseFee].
func (r *Registry) AuthorizeSequencer(daAddr ids.ShortID, baseFee uint64, db state.Reader) (*StakeMeter, error) {
	s, err := r.Get(daAddr, db)
	if errors.Is(err, ErrUnknownSequencer) {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorizedSequencer, err)
	}
	if err != nil {
		return nil, err
	}
	minimum, err := r.MinimumBond(db)
	if err != nil {
		return nil, err
	}
	if s.Stake < minimum {
		return nil, fmt.Errorf("%w: %s has %d staked, needs %d", ErrUnauthorizedSequencer, daAddr, s.Stake, minimum)
	}
	return NewStakeMeter(s.Stake, baseFee), nil
}

// RecordBatch remembers [batchID]; a batch may only be published once.
func (r *Registry) RecordBatch(batchID ids.ID, rw state.ReadWriter) error {
	seen, err := rw.Has(batchKey(batchID))
	if err != nil {
		return err
	}
	if seen {
		return fmt.Errorf("%w: %s", ErrDuplicateBatch, batchID)
	}
	return rw.Put(batchKey(batchID), batchSeenMarker)
}

// Reward grows the bond of [daAddr] by [amount]. The tokens were already paid
// to RegistryAddress as fees.
func (r *Registry) Reward(daAddr ids.ShortID, amount uint64, rw state.ReadWriter) error {
	s, err := r.Get(daAddr, rw)
	if err != nil {
		return err
	}
	s.Stake, err = safemath.Add64(s.Stake, amount)
	if err != nil {
		return err
	}
	return r.put(s, rw)
}

// Penalize credits [earned] to the bond of [daAddr], then burns up to [amount]
// of it and returns how much was taken. [earned] must already have been paid
// to RegistryAddress.
func (r *Registry) Penalize(daAddr ids.ShortID, amount, earned uint64, rw state.ReadWriter) (uint64, error) {
	s, err := r.Get(daAddr, rw)
	if err != nil {
		return 0, err
	}
	s.Stake, err = safemath.Add64(s.Stake, earned)
	if err != nil {
		return 0, err
	}
	taken := safemath.Min64(amount, s.Stake)
	if err := r.bank.Burn(RegistryAddress, taken, rw); err != nil {
		return 0, err
	}
	s.Stake -= taken
	r.log.Info("penalized sequencer", "da", daAddr, "amount", taken, "earned", earned, "stake", s.Stake)
	return taken, r.put(s, rw)
}

// Slash burns the whole bond of [daAddr] and deregisters it.
func (r *Registry) Slash(daAddr ids.ShortID, rw state.ReadWriter) (uint64, error) {
	s, err := r.Get(daAddr, rw)
	if err != nil {
		return 0, err
	}
	if err := r.bank.Burn(RegistryAddress, s.Stake, rw); err != nil {
		return 0, err
	}
	r.log.Warn("slashed sequencer", "da", daAddr, "stake", s.Stake)
	return s.Stake, rw.Delete(sequencerKey(daAddr))
}
