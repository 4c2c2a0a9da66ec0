// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"fmt"
)

// OutcomeKind is how a batch is settled with its sequencer.
type OutcomeKind uint8

const (
	Rewarded OutcomeKind = iota + 1
	Ignored
	Slashed
	Penalized
)

func (k OutcomeKind) String() string {
	switch k {
	case Rewarded:
		return "rewarded"
	case Ignored:
		return "ignored"
	case Slashed:
		return "slashed"
	case Penalized:
		return "penalized"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(k))
	}
}

// SlashReason is why a sequencer lost its bond.
type SlashReason uint8

const (
	NoSlash SlashReason = iota
	InvalidTransactionEncoding
	DuplicateBatch
)

func (r SlashReason) String() string {
	switch r {
	case NoSlash:
		return "none"
	case InvalidTransactionEncoding:
		return "invalid transaction encoding"
	case DuplicateBatch:
		return "duplicate batch"
	default:
		return fmt.Sprintf("reason(%d)", uint8(r))
	}
}

// Outcome is the settlement of one batch. Amount is the reward for Rewarded
// and the penalty for Penalized; Reason is only set for Slashed.
type Outcome struct {
	Kind   OutcomeKind `serialize:"true" json:"kind"`
	Amount uint64      `serialize:"true" json:"amount"`
	Reason SlashReason `serialize:"true" json:"reason"`
}

func RewardedOutcome(amount uint64) Outcome     { return Outcome{Kind: Rewarded, Amount: amount} }
func PenalizedOutcome(amount uint64) Outcome    { return Outcome{Kind: Penalized, Amount: amount} }
func SlashedOutcome(reason SlashReason) Outcome { return Outcome{Kind: Slashed, Reason: reason} }
func IgnoredOutcome() Outcome                   { return Outcome{Kind: Ignored} }

func (o Outcome) String() string {
	switch o.Kind {
	case Rewarded, Penalized:
		return fmt.Sprintf("%s(%d)", o.Kind, o.Amount)
	case Slashed:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
	default:
		return o.Kind.String()
	}
}

// BatchSummary is what the execution of a batch observed about its sequencer.
type BatchSummary struct {
	// Violation is set when the batch carried something the sequencer is
	// accountable for.
	Violation SlashReason
	// StakeExhausted is set when pre-execution checks ran past the stake.
	StakeExhausted bool
	// StakeConsumed is what the sequencer owes for pre-execution work nobody
	// else paid for.
	StakeConsumed uint64
	Admitted      int
	// SequencerFees is the sum of the sequencer shares of consumed gas.
	SequencerFees uint64
}

// Settle maps a batch summary to its outcome. Slashing takes precedence over
// penalties, which take precedence over ignoring the batch.
func Settle(s BatchSummary) Outcome {
	switch {
	case s.Violation != NoSlash:
		return SlashedOutcome(s.Violation)
	case s.StakeExhausted:
		return PenalizedOutcome(s.StakeConsumed)
	case s.Admitted == 0:
		return IgnoredOutcome()
	default:
		return RewardedOutcome(s.SequencerFees)
	}
}
