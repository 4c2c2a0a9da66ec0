// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"testing"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/require"
)

var (
	keyA = []byte("a")
	keyB = []byte("b")
)

func TestTxCommitPropagatesToSlot(t *testing.T) {
	require := require.New(t)
	s := NewStorage(memdb.New())

	slot, err := s.BeginSlot()
	require.NoError(err)
	batch, err := slot.BeginBatch()
	require.NoError(err)
	ws, err := batch.ToRevertable(NewGasMeter(10, 1, 10))
	require.NoError(err)

	require.NoError(ws.Put(keyA, []byte{1}))

	// the batch can't be observed while the tx overlay is open
	_, err = batch.Get(keyA)
	require.ErrorIs(err, ErrChildOpen)

	back, err := ws.Checkpoint()
	require.NoError(err)
	require.Equal(batch, back)

	v, err := batch.Get(keyA)
	require.NoError(err)
	require.Equal([]byte{1}, v)

	require.NoError(batch.Commit())
	require.NoError(s.Finalize(slot, nil))

	v, err = s.Reader().Get(keyA)
	require.NoError(err)
	require.Equal([]byte{1}, v)
	require.False(s.Open())
}

func TestRevertLeavesBatchUntouched(t *testing.T) {
	require := require.New(t)
	s := NewStorage(memdb.New())

	slot, err := s.BeginSlot()
	require.NoError(err)
	batch, err := slot.BeginBatch()
	require.NoError(err)
	require.NoError(batch.Put(keyB, []byte{2}))

	ws, err := batch.ToRevertable(NewGasMeter(10, 1, 10))
	require.NoError(err)
	require.NoError(ws.Put(keyA, []byte{1}))
	require.NoError(ws.Delete(keyB))

	batch = ws.Revert()

	has, err := batch.Has(keyA)
	require.NoError(err)
	require.False(has)
	v, err := batch.Get(keyB)
	require.NoError(err)
	require.Equal([]byte{2}, v)

	// the reverted handle is closed
	require.ErrorIs(ws.Put(keyA, []byte{1}), ErrScopeClosed)
}

func TestDiscardedBatchInvisibleToSlot(t *testing.T) {
	require := require.New(t)
	s := NewStorage(memdb.New())

	slot, err := s.BeginSlot()
	require.NoError(err)
	require.NoError(slot.Put(keyB, []byte{2}))

	batch, err := slot.BeginBatch()
	require.NoError(err)
	require.NoError(batch.Put(keyA, []byte{1}))
	require.NoError(batch.Discard())

	_, err = slot.Get(keyA)
	require.ErrorIs(err, database.ErrNotFound)

	require.NoError(s.Finalize(slot, nil))
	_, err = s.Reader().Get(keyA)
	require.ErrorIs(err, database.ErrNotFound)
	v, err := s.Reader().Get(keyB)
	require.NoError(err)
	require.Equal([]byte{2}, v)
}

func TestParentCannotResolveWithOpenChild(t *testing.T) {
	require := require.New(t)
	s := NewStorage(memdb.New())

	slot, err := s.BeginSlot()
	require.NoError(err)
	batch, err := slot.BeginBatch()
	require.NoError(err)
	ws, err := batch.ToRevertable(NewGasMeter(1, 1, 1))
	require.NoError(err)

	require.ErrorIs(batch.Commit(), ErrChildOpen)
	require.ErrorIs(s.Finalize(slot, nil), ErrChildOpen)
	_, err = batch.ToRevertable(NewGasMeter(1, 1, 1))
	require.ErrorIs(err, ErrChildOpen)
	_, err = slot.BeginBatch()
	require.ErrorIs(err, ErrChildOpen)

	ws.Revert()
	require.NoError(batch.Commit())
	require.ErrorIs(batch.Commit(), ErrScopeClosed)
	require.NoError(s.Finalize(slot, nil))
}

func TestScopeLevels(t *testing.T) {
	require := require.New(t)
	s := NewStorage(memdb.New())

	slot, err := s.BeginSlot()
	require.NoError(err)
	_, err = s.BeginSlot()
	require.ErrorIs(err, ErrSlotOpen)

	_, err = slot.ToRevertable(NewGasMeter(1, 1, 1))
	require.ErrorIs(err, ErrWrongLevel)
	require.ErrorIs(slot.Commit(), ErrWrongLevel)

	batch, err := slot.BeginBatch()
	require.NoError(err)
	_, err = batch.BeginBatch()
	require.ErrorIs(err, ErrWrongLevel)
	require.ErrorIs(s.Finalize(batch, nil), ErrWrongLevel)
	require.Equal(BatchLevel, batch.Level())
}

func TestStaleHandleAfterReuse(t *testing.T) {
	require := require.New(t)
	s := NewStorage(memdb.New())

	slot, err := s.BeginSlot()
	require.NoError(err)
	first, err := slot.BeginBatch()
	require.NoError(err)
	require.NoError(first.Discard())

	// the second batch takes the same arena index with a new generation
	second, err := slot.BeginBatch()
	require.NoError(err)
	require.ErrorIs(first.Put(keyA, nil), ErrScopeClosed)
	require.NoError(second.Put(keyA, []byte{1}))
	require.NoError(second.Commit())
}

func TestFinalizeAccessoryExcludedFromDigest(t *testing.T) {
	require := require.New(t)
	s := NewStorage(memdb.New())

	slot, err := s.BeginSlot()
	require.NoError(err)
	require.NoError(slot.Put(keyA, []byte{1}))
	require.NoError(s.Finalize(slot, nil))
	before, err := s.StateDigest()
	require.NoError(err)

	slot, err = s.BeginSlot()
	require.NoError(err)
	var staged ids.ID
	require.NoError(s.Finalize(slot, func(digest ids.ID, rw ReadWriter) error {
		staged = digest
		return rw.Put(keyB, []byte{2})
	}))

	after, err := s.StateDigest()
	require.NoError(err)
	require.Equal(before, after)
	require.Equal(after, staged)

	v, err := s.AccessoryReader().Get(keyB)
	require.NoError(err)
	require.Equal([]byte{2}, v)
	has, err := s.Reader().Has(keyB)
	require.NoError(err)
	require.False(has)
}

func TestFailedAccessoryCommitsNothing(t *testing.T) {
	require := require.New(t)
	s := NewStorage(memdb.New())
	errDiskFull := errors.New("disk full")

	slot, err := s.BeginSlot()
	require.NoError(err)
	require.NoError(slot.Put(keyA, []byte{1}))
	before, err := s.StateDigest()
	require.NoError(err)

	var staged ids.ID
	err = s.Finalize(slot, func(digest ids.ID, rw ReadWriter) error {
		staged = digest
		if err := rw.Put(keyB, []byte{2}); err != nil {
			return err
		}
		return errDiskFull
	})
	require.ErrorIs(err, errDiskFull)
	require.False(s.Open())
	require.NotEqual(before, staged)

	after, err := s.StateDigest()
	require.NoError(err)
	require.Equal(before, after)
	has, err := s.Reader().Has(keyA)
	require.NoError(err)
	require.False(has)
	has, err = s.AccessoryReader().Has(keyB)
	require.NoError(err)
	require.False(has)

	// the next slot starts from the committed state
	slot, err = s.BeginSlot()
	require.NoError(err)
	has, err = slot.Has(keyA)
	require.NoError(err)
	require.False(has)
	require.NoError(s.Finalize(slot, nil))
}

func TestAbortDropsOpenScopes(t *testing.T) {
	require := require.New(t)
	s := NewStorage(memdb.New())

	slot, err := s.BeginSlot()
	require.NoError(err)
	require.NoError(slot.Put(keyA, []byte{1}))
	batch, err := slot.BeginBatch()
	require.NoError(err)
	require.NoError(batch.Put(keyB, []byte{2}))

	s.Abort()
	require.False(s.Open())
	require.ErrorIs(batch.Put(keyB, nil), ErrScopeClosed)

	has, err := s.Reader().Has(keyA)
	require.NoError(err)
	require.False(has)

	_, err = s.BeginSlot()
	require.NoError(err)
}

func TestGasMeter(t *testing.T) {
	require := require.New(t)
	m := NewGasMeter(100, 2, 200)

	require.NoError(m.Charge(60))
	require.Equal(uint64(40), m.Remaining())
	require.ErrorIs(m.Charge(41), ErrOutOfGas)
	require.Equal(uint64(100), m.Used())
	require.Equal(uint64(0), m.Remaining())
	require.Equal(uint64(200), m.Reserved())
	require.Equal(uint64(2), m.Price())
}
