// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"github.com/ava-labs/avalanchego/ids"
)

// Context is what a call knows about the transaction it runs in.
type Context struct {
	// Sender is the rollup address the transaction's credential acts as.
	Sender ids.ShortID
	// Sequencer is the rollup address of the sequencer that published the
	// batch.
	Sequencer   ids.ShortID
	SequencerDa ids.ShortID
	Height      uint64
}
