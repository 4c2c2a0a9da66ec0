// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules holds the state modules the admission pipeline reads and
// writes through: accounts, bank and the sequencer registry.
package modules

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// Address derives the account a module holds funds under.
func Address(name string) ids.ShortID {
	return ids.ShortID(hashing.ComputeHash160Array([]byte("module/" + name)))
}
