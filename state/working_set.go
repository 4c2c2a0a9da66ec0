// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

// WorkingSet is the speculative overlay a single transaction executes in.
type WorkingSet struct {
	*layer

	parent *Checkpoint
	meter  *GasMeter
}

// GasMeter returns the meter reserved for this transaction. It stays readable
// after the working set is resolved.
func (w *WorkingSet) GasMeter() *GasMeter { return w.meter }

// Checkpoint commits the overlay into its batch and hands the batch back.
func (w *WorkingSet) Checkpoint() (*Checkpoint, error) {
	if err := w.commit(); err != nil {
		return nil, err
	}
	return w.parent, nil
}

// Revert drops every write made in the overlay and hands the batch back.
// Reverting an already resolved working set is a no-op.
func (w *WorkingSet) Revert() *Checkpoint {
	_ = w.discard()
	return w.parent
}
