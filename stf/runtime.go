// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"fmt"

	log "github.com/inconshreveable/log15"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanchego/ids"

	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/genesis"
	"github.com/informalsystems/sov-rollup-starter/modules/accounts"
	"github.com/informalsystems/sov-rollup-starter/modules/bank"
	"github.com/informalsystems/sov-rollup-starter/modules/sequencer"
	"github.com/informalsystems/sov-rollup-starter/state"
)

const defaultNamespace = "stf"

// Config wires a Runtime.
type Config struct {
	Chain      genesis.ChainConfig
	ProverPool ids.ShortID
	// Dispatcher executes admitted calls. Defaults to the module dispatcher.
	Dispatcher Dispatcher
	// Registerer receives the runtime metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
	Namespace  string
}

// Runtime runs slots through admission, execution and settlement. It is not
// safe for concurrent use.
type Runtime struct {
	log log.Logger

	config        genesis.ChainConfig
	proverPool    ids.ShortID
	authenticator *auth.Authenticator

	accounts   *accounts.Module
	bank       *bank.Module
	registry   *sequencer.Registry
	dispatcher Dispatcher
	chainState ChainState

	metrics *metrics
}

func NewRuntime(config Config) (*Runtime, error) {
	if err := config.Chain.Verify(); err != nil {
		return nil, fmt.Errorf("invalid chain config: %w", err)
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	m, err := newMetrics(namespace, config.Registerer)
	if err != nil {
		return nil, err
	}

	bankModule := bank.New()
	r := &Runtime{
		log:           log.New("module", "stf"),
		config:        config.Chain,
		proverPool:    config.ProverPool,
		authenticator: auth.NewAuthenticator(config.Chain.ChainID),
		accounts:      accounts.New(),
		bank:          bankModule,
		registry:      sequencer.New(bankModule),
		dispatcher:    config.Dispatcher,
		chainState:    NewChainState(),
		metrics:       m,
	}
	if r.dispatcher == nil {
		r.dispatcher = NewModuleDispatcher(bankModule)
	}
	return r, nil
}

// SetLogger replaces the logger of the runtime and of every module.
func (r *Runtime) SetLogger(l log.Logger) {
	r.log = l.New("module", "stf")
	r.accounts.SetLogger(l.New("module", "accounts"))
	r.bank.SetLogger(l.New("module", "bank"))
	r.registry.SetLogger(l.New("module", "sequencer"))
}

func (r *Runtime) Accounts() *accounts.Module       { return r.accounts }
func (r *Runtime) Bank() *bank.Module               { return r.bank }
func (r *Runtime) Registry() *sequencer.Registry    { return r.registry }
func (r *Runtime) ChainConfig() genesis.ChainConfig { return r.config }

// InitGenesis writes the initial state of every module. It fails if the
// state was already initialized.
func (r *Runtime) InitGenesis(s *state.Storage, g *genesis.Genesis) error {
	initialized, err := r.chainState.IsInitialized(s.Reader())
	if err != nil {
		return err
	}
	if initialized {
		return ErrAlreadyInitialized
	}

	slot, err := s.BeginSlot()
	if err != nil {
		return err
	}
	if err := r.initGenesis(slot, g); err != nil {
		s.Abort()
		return fmt.Errorf("couldn't initialize genesis: %w", err)
	}
	if err := s.Finalize(slot, nil); err != nil {
		s.Abort()
		return err
	}
	r.log.Info("initialized genesis",
		"balances", len(g.Bank.Balances),
		"accounts", len(g.Accounts.Accounts),
		"sequencers", len(g.SequencerRegistry.Sequencers),
	)
	return nil
}

func (r *Runtime) initGenesis(slot *state.Checkpoint, g *genesis.Genesis) error {
	if err := r.bank.InitGenesis(g.Bank, slot); err != nil {
		return err
	}
	if err := r.accounts.InitGenesis(g.Accounts, slot); err != nil {
		return err
	}
	if err := r.registry.InitGenesis(g.SequencerRegistry, slot); err != nil {
		return err
	}
	return r.chainState.SetInitialized(slot)
}
