// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/informalsystems/sov-rollup-starter/state"
)

var (
	isInitializedKey  = []byte("chain/initialized")
	slotHeightKey     = []byte("chain/slot_height")
	preStateDigestKey = []byte("chain/pre_state_digest")
)

// ChainState is the part of the user state the runtime keeps about the chain
// itself.
type ChainState interface {
	IsInitialized(db state.Reader) (bool, error)
	SetInitialized(rw state.ReadWriter) error

	// SlotHeight is the height of the slot being or last processed.
	SlotHeight(db state.Reader) (uint64, error)
	// PreStateDigest is the digest of the state the current slot started from.
	PreStateDigest(db state.Reader) (ids.ID, error)
	SetSlot(rw state.ReadWriter, height uint64, preStateDigest ids.ID) error
}

type chainState struct{}

func NewChainState() ChainState { return chainState{} }

func (chainState) IsInitialized(db state.Reader) (bool, error) {
	return db.Has(isInitializedKey)
}

func (chainState) SetInitialized(rw state.ReadWriter) error {
	return rw.Put(isInitializedKey, nil)
}

func (chainState) SlotHeight(db state.Reader) (uint64, error) {
	return database.GetUInt64(db, slotHeightKey)
}

func (chainState) PreStateDigest(db state.Reader) (ids.ID, error) {
	b, err := db.Get(preStateDigestKey)
	if err != nil {
		return ids.Empty, err
	}
	return ids.ToID(b)
}

func (chainState) SetSlot(rw state.ReadWriter, height uint64, preStateDigest ids.ID) error {
	if err := database.PutUInt64(rw, slotHeightKey, height); err != nil {
		return err
	}
	return rw.Put(preStateDigestKey, preStateDigest[:])
}
