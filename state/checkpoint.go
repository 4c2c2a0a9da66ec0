// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"github.com/ava-labs/avalanchego/database/versiondb"
)

var (
	_ ReadWriter = (*Checkpoint)(nil)
	_ ReadWriter = (*WorkingSet)(nil)
)

// layer is a handle on one entry of the storage arena.
type layer struct {
	storage *Storage
	idx     int
	gen     uint64
	level   Level
}

// db returns the scope's write-set, or an error if the handle is stale or if a
// child scope is stacked on top of it.
func (l *layer) db() (*versiondb.Database, error) {
	arena := l.storage.arena
	if l.idx >= len(arena) || arena[l.idx].gen != l.gen {
		return nil, ErrScopeClosed
	}
	if l.idx != len(arena)-1 {
		return nil, ErrChildOpen
	}
	return arena[l.idx].db, nil
}

func (l *layer) Level() Level { return l.level }

func (l *layer) Has(key []byte) (bool, error) {
	db, err := l.db()
	if err != nil {
		return false, err
	}
	return db.Has(key)
}

func (l *layer) Get(key []byte) ([]byte, error) {
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	return db.Get(key)
}

func (l *layer) Put(key []byte, value []byte) error {
	db, err := l.db()
	if err != nil {
		return err
	}
	return db.Put(key, value)
}

func (l *layer) Delete(key []byte) error {
	db, err := l.db()
	if err != nil {
		return err
	}
	return db.Delete(key)
}

func (l *layer) child(level Level) (*layer, error) {
	db, err := l.db()
	if err != nil {
		return nil, err
	}
	return l.storage.push(level, db), nil
}

// commit merges the write-set into the scope below and closes the handle.
func (l *layer) commit() error {
	db, err := l.db()
	if err != nil {
		return err
	}
	if err := db.Commit(); err != nil {
		return err
	}
	l.storage.pop()
	return nil
}

// discard drops the write-set and closes the handle.
func (l *layer) discard() error {
	db, err := l.db()
	if err != nil {
		return err
	}
	db.Abort()
	l.storage.pop()
	return nil
}

// Checkpoint is a slot or batch scope. Writes are only visible to the enclosing
// scope once the checkpoint is committed.
type Checkpoint struct {
	*layer
}

// BeginBatch opens a batch scope inside a slot scope.
func (c *Checkpoint) BeginBatch() (*Checkpoint, error) {
	if c.level != SlotLevel {
		return nil, ErrWrongLevel
	}
	l, err := c.child(BatchLevel)
	if err != nil {
		return nil, err
	}
	return &Checkpoint{layer: l}, nil
}

// ToRevertable opens a transaction overlay on a batch scope. The overlay owns
// [meter] for the lifetime of the transaction.
func (c *Checkpoint) ToRevertable(meter *GasMeter) (*WorkingSet, error) {
	if c.level != BatchLevel {
		return nil, ErrWrongLevel
	}
	l, err := c.child(TxLevel)
	if err != nil {
		return nil, err
	}
	return &WorkingSet{
		layer:  l,
		parent: c,
		meter:  meter,
	}, nil
}

// Commit merges a batch scope into its slot. Slots are committed through
// Storage.Finalize.
func (c *Checkpoint) Commit() error {
	if c.level != BatchLevel {
		return ErrWrongLevel
	}
	return c.commit()
}

// Discard drops a batch scope; none of its writes become visible to the slot.
func (c *Checkpoint) Discard() error {
	if c.level != BatchLevel {
		return ErrWrongLevel
	}
	return c.discard()
}
