// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"errors"
	"sync"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/version"

	"github.com/informalsystems/sov-rollup-starter/genesis"
	"github.com/informalsystems/sov-rollup-starter/modules/accounts"
	"github.com/informalsystems/sov-rollup-starter/modules/sequencer"
	"github.com/informalsystems/sov-rollup-starter/state"
)

const Name = "stf"

var Version = version.NewDefaultVersion(0, 1, 0)

// Chain drives a Runtime over a database and serves reads of the committed
// state. Slots are applied one at a time; reads may run concurrently with
// each other.
type Chain struct {
	lock sync.RWMutex

	log      log.Logger
	runtime  *Runtime
	storage  *state.Storage
	receipts ReceiptState
}

func NewChain(db database.Database, runtime *Runtime) *Chain {
	storage := state.NewStorage(db)
	return &Chain{
		log:      log.New("module", "chain"),
		runtime:  runtime,
		storage:  storage,
		receipts: NewReceiptState(storage.AccessoryReader()),
	}
}

func (c *Chain) SetLogger(l log.Logger) {
	c.log = l.New("module", "chain")
	c.runtime.SetLogger(l)
}

// Initialize writes [g] unless the database already holds an initialized
// chain.
func (c *Chain) Initialize(g *genesis.Genesis) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	err := c.runtime.InitGenesis(c.storage, g)
	if errors.Is(err, ErrAlreadyInitialized) {
		c.log.Info("chain already initialized, skipping genesis")
		return nil
	}
	return err
}

// ApplySlot runs [slot] through the runtime and commits it.
func (c *Chain) ApplySlot(slot *Slot) (*SlotReceipt, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.runtime.ApplySlot(c.storage, c.receipts, slot)
}

func (c *Chain) Balance(addr ids.ShortID) (uint64, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.runtime.Bank().Balance(addr, c.storage.Reader())
}

func (c *Chain) Sequencer(daAddr ids.ShortID) (sequencer.Sequencer, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.runtime.Registry().Get(daAddr, c.storage.Reader())
}

func (c *Chain) Account(credID ids.ID) (accounts.Account, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.runtime.Accounts().Get(credID, c.storage.Reader())
}

func (c *Chain) Slot(height uint64) (*SlotIndex, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.receipts.GetSlot(height)
}

// LastSlot returns the height of the last applied slot.
func (c *Chain) LastSlot() (uint64, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.receipts.LastSlot()
}

func (c *Chain) BatchReceipt(batchID ids.ID) (*BatchReceipt, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.receipts.GetBatchReceipt(batchID)
}

func (c *Chain) TxReceipt(hash ids.ID) (*TxReceipt, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.receipts.GetTxReceipt(hash)
}

// StateDigest hashes the committed user state.
func (c *Chain) StateDigest() (ids.ID, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.storage.StateDigest()
}

func (c *Chain) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.receipts.ClearCache()
	return c.storage.Close()
}
