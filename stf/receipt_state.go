// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"errors"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/informalsystems/sov-rollup-starter/state"
)

const (
	receiptCacheSize = 1024
)

var (
	errReceiptWrongVersion = errors.New("wrong version")

	slotPrefix  = []byte("slot/")
	batchPrefix = []byte("batch/")
	txPrefix    = []byte("tx/")
	lastSlotKey = []byte("last_slot")

	_ ReceiptState = &receiptState{}
)

// SlotIndex is what is stored per slot; batch receipts are stored on their
// own.
type SlotIndex struct {
	Height          uint64   `serialize:"true" json:"height"`
	PreStateDigest  ids.ID   `serialize:"true" json:"preStateDigest"`
	PostStateDigest ids.ID   `serialize:"true" json:"postStateDigest"`
	BatchIDs        []ids.ID `serialize:"true" json:"batchIDs"`
}

// ReceiptState stores receipts in the accessory state. Reads see committed
// receipts only.
type ReceiptState interface {
	GetSlot(height uint64) (*SlotIndex, error)
	GetBatchReceipt(batchID ids.ID) (*BatchReceipt, error)
	// GetTxReceipt returns the receipt of the last admitted transaction with
	// [hash].
	GetTxReceipt(hash ids.ID) (*TxReceipt, error)
	// LastSlot returns the height of the last finalized slot.
	LastSlot() (uint64, error)

	PutSlot(rw state.ReadWriter, receipt *SlotReceipt) error

	ClearCache()
}

type receiptState struct {
	batchCache cache.Cacher
	db         state.Reader
}

func NewReceiptState(db state.Reader) ReceiptState {
	return &receiptState{
		batchCache: &cache.LRU{Size: receiptCacheSize},
		db:         db,
	}
}

func prefixed(prefix []byte, suffix []byte) []byte {
	return append(append(make([]byte, 0, len(prefix)+len(suffix)), prefix...), suffix...)
}

func heightKey(height uint64) []byte {
	return prefixed(slotPrefix, database.PackUInt64(height))
}

func get(db state.Reader, key []byte, dst interface{}) error {
	b, err := db.Get(key)
	if err != nil {
		return err
	}
	version, err := Codec.Unmarshal(b, dst)
	if err != nil {
		return err
	}
	if version != CodecVersion {
		return errReceiptWrongVersion
	}
	return nil
}

func put(rw state.ReadWriter, key []byte, v interface{}) error {
	b, err := Codec.Marshal(CodecVersion, v)
	if err != nil {
		return err
	}
	return rw.Put(key, b)
}

func (s *receiptState) GetSlot(height uint64) (*SlotIndex, error) {
	idx := &SlotIndex{}
	if err := get(s.db, heightKey(height), idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *receiptState) GetBatchReceipt(batchID ids.ID) (*BatchReceipt, error) {
	if receipt, ok := s.batchCache.Get(batchID); ok {
		return receipt.(*BatchReceipt), nil
	}
	receipt := &BatchReceipt{}
	if err := get(s.db, prefixed(batchPrefix, batchID[:]), receipt); err != nil {
		return nil, err
	}
	s.batchCache.Put(batchID, receipt)
	return receipt, nil
}

func (s *receiptState) GetTxReceipt(hash ids.ID) (*TxReceipt, error) {
	receipt := &TxReceipt{}
	if err := get(s.db, prefixed(txPrefix, hash[:]), receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *receiptState) LastSlot() (uint64, error) {
	return database.GetUInt64(s.db, lastSlotKey)
}

func (s *receiptState) PutSlot(rw state.ReadWriter, receipt *SlotReceipt) error {
	idx := &SlotIndex{
		Height:          receipt.Height,
		PreStateDigest:  receipt.PreStateDigest,
		PostStateDigest: receipt.PostStateDigest,
		BatchIDs:        make([]ids.ID, 0, len(receipt.Batches)),
	}
	for i := range receipt.Batches {
		batch := &receipt.Batches[i]
		idx.BatchIDs = append(idx.BatchIDs, batch.BatchID)

		// A duplicate batch must not replace the receipt of the original.
		if batch.Outcome.Kind == Slashed && batch.Outcome.Reason == DuplicateBatch {
			continue
		}
		key := prefixed(batchPrefix, batch.BatchID[:])
		// Nor may a republished batch that was turned away.
		if !batch.Admitted {
			seen, err := rw.Has(key)
			if err != nil {
				return err
			}
			if seen {
				continue
			}
		}
		s.batchCache.Evict(batch.BatchID)
		if err := put(rw, key, batch); err != nil {
			return err
		}
		for j := range batch.Txs {
			tx := &batch.Txs[j]
			if tx.Status == TxSkipped {
				continue
			}
			if err := put(rw, prefixed(txPrefix, tx.Hash[:]), tx); err != nil {
				return err
			}
		}
	}
	if err := put(rw, heightKey(receipt.Height), idx); err != nil {
		return err
	}
	return database.PutUInt64(rw, lastSlotKey, receipt.Height)
}

func (s *receiptState) ClearCache() {
	s.batchCache.Flush()
}
