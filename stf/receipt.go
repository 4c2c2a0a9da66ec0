// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"

	"github.com/informalsystems/sov-rollup-starter/auth"
)

// Batch is a sequence of raw transactions published by one sequencer.
type Batch struct {
	// Sequencer is the DA address the batch was published from.
	Sequencer ids.ShortID  `serialize:"true"`
	Txs       []auth.RawTx `serialize:"true"`
}

// ID is the hash of the batch's canonical encoding.
func (b *Batch) ID() (ids.ID, error) {
	bytes, err := Codec.Marshal(CodecVersion, b)
	if err != nil {
		return ids.Empty, err
	}
	return hashing.ComputeHash256Array(bytes), nil
}

// Slot is every batch the DA layer included at one height, in DA order.
type Slot struct {
	Height  uint64
	Batches []Batch
}

type TxStatus uint8

const (
	TxSuccessful TxStatus = iota + 1
	TxReverted
	// TxSkipped transactions were never admitted. Their sender paid nothing
	// and their nonce was not consumed.
	TxSkipped
)

func (s TxStatus) String() string {
	switch s {
	case TxSuccessful:
		return "successful"
	case TxReverted:
		return "reverted"
	case TxSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// TxReceipt records how a transaction was processed and what it paid.
type TxReceipt struct {
	Hash     ids.ID   `serialize:"true" json:"hash"`
	Status   TxStatus `serialize:"true" json:"status"`
	Error    string   `serialize:"true" json:"error"`
	GasUsed  uint64   `serialize:"true" json:"gasUsed"`
	Consumed uint64   `serialize:"true" json:"consumed"`
	Refunded uint64   `serialize:"true" json:"refunded"`
}

// BatchReceipt records how a batch was processed and settled. Batches that
// were not admitted carry no transaction receipts and no outcome effects.
type BatchReceipt struct {
	BatchID     ids.ID      `serialize:"true" json:"batchID"`
	Height      uint64      `serialize:"true" json:"height"`
	Index       uint32      `serialize:"true" json:"index"`
	SequencerDa ids.ShortID `serialize:"true" json:"sequencerDa"`
	Admitted    bool        `serialize:"true" json:"admitted"`
	Outcome     Outcome     `serialize:"true" json:"outcome"`
	// StakeChange is what the outcome added to or took from the stake.
	StakeChange uint64      `serialize:"true" json:"stakeChange"`
	Txs         []TxReceipt `serialize:"true" json:"txs"`
}

// SlotReceipt records the processing of a slot.
type SlotReceipt struct {
	Height          uint64         `serialize:"true" json:"height"`
	PreStateDigest  ids.ID         `serialize:"true" json:"preStateDigest"`
	PostStateDigest ids.ID         `serialize:"true" json:"postStateDigest"`
	Batches         []BatchReceipt `serialize:"true" json:"batches"`
}
