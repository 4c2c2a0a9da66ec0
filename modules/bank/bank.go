// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"errors"
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/informalsystems/sov-rollup-starter/modules"
	"github.com/informalsystems/sov-rollup-starter/state"
)

var (
	// EscrowAddress holds reserved gas while a transaction executes.
	EscrowAddress = modules.Address("bank")

	balancePrefix = []byte("bank/balance/")

	ErrInsufficientBalance = errors.New("insufficient balance")
	errInvalidAddress      = errors.New("invalid genesis address")
)

// Config is the bank genesis.
type Config struct {
	Balances []Balance `mapstructure:"balances"`
}

type Balance struct {
	Address string `mapstructure:"address"`
	Amount  uint64 `mapstructure:"amount"`
}

// Module keeps the balance of every address.
type Module struct {
	log log.Logger
}

func New() *Module {
	return &Module{log: log.New("module", "bank")}
}

func (m *Module) SetLogger(l log.Logger) { m.log = l }

func (m *Module) InitGenesis(cfg Config, rw state.ReadWriter) error {
	for _, b := range cfg.Balances {
		addr, err := ids.ShortFromString(b.Address)
		if err != nil {
			return fmt.Errorf("%w %q: %v", errInvalidAddress, b.Address, err)
		}
		if err := m.mint(addr, b.Amount, rw); err != nil {
			return err
		}
	}
	return nil
}

func balanceKey(addr ids.ShortID) []byte {
	return append(append([]byte{}, balancePrefix...), addr[:]...)
}

// Balance returns the balance of [addr]; unknown addresses hold nothing.
func (m *Module) Balance(addr ids.ShortID, r state.Reader) (uint64, error) {
	balance, err := database.GetUInt64(r, balanceKey(addr))
	if err == database.ErrNotFound {
		return 0, nil
	}
	return balance, err
}

func (m *Module) setBalance(addr ids.ShortID, amount uint64, rw state.ReadWriter) error {
	if amount == 0 {
		return rw.Delete(balanceKey(addr))
	}
	return database.PutUInt64(rw, balanceKey(addr), amount)
}

// Transfer moves [amount] from [from] to [to]. Nothing is written on failure.
func (m *Module) Transfer(from, to ids.ShortID, amount uint64, rw state.ReadWriter) error {
	if amount == 0 || from == to {
		return nil
	}
	fromBalance, err := m.Balance(from, rw)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, from, fromBalance, amount)
	}
	toBalance, err := m.Balance(to, rw)
	if err != nil {
		return err
	}
	newToBalance, err := safemath.Add64(toBalance, amount)
	if err != nil {
		return err
	}
	if err := m.setBalance(from, fromBalance-amount, rw); err != nil {
		return err
	}
	return m.setBalance(to, newToBalance, rw)
}

// Burn destroys [amount] held by [addr].
func (m *Module) Burn(addr ids.ShortID, amount uint64, rw state.ReadWriter) error {
	balance, err := m.Balance(addr, rw)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: can't burn %d from %s holding %d", ErrInsufficientBalance, amount, addr, balance)
	}
	return m.setBalance(addr, balance-amount, rw)
}

func (m *Module) mint(addr ids.ShortID, amount uint64, rw state.ReadWriter) error {
	balance, err := m.Balance(addr, rw)
	if err != nil {
		return err
	}
	newBalance, err := safemath.Add64(balance, amount)
	if err != nil {
		return err
	}
	return m.setBalance(addr, newBalance, rw)
}
