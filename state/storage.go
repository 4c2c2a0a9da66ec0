// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
)

var (
	// These are prefixes for db keys.
	// User state is covered by the state digest, accessory state is not.
	userStatePrefix      = []byte("user")
	accessoryStatePrefix = []byte("accessory")

	ErrSlotOpen    = errors.New("a slot is already open")
	ErrChildOpen   = errors.New("scope has an open child scope")
	ErrScopeClosed = errors.New("scope was already resolved")
	ErrWrongLevel  = errors.New("operation not allowed at this scope level")
)

// Reader is the read half of a scope.
type Reader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// ReadWriter is implemented by every scope in the checkpoint hierarchy.
type ReadWriter interface {
	Reader
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Level of a scope in the slot -> batch -> transaction hierarchy.
type Level uint8

const (
	SlotLevel Level = iota + 1
	BatchLevel
	TxLevel
)

func (l Level) String() string {
	switch l {
	case SlotLevel:
		return "slot"
	case BatchLevel:
		return "batch"
	case TxLevel:
		return "tx"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// arenaEntry is one open scope. Handles refer to it by index and generation;
// a handle whose generation no longer matches its slot in the arena is closed.
type arenaEntry struct {
	level Level
	gen   uint64
	db    *versiondb.Database
}

// Storage owns the committed state and the stack of open scopes on top of it.
type Storage struct {
	baseDB      database.Database
	userDB      database.Database
	accessoryDB database.Database

	// staged collects the writes of the open slot, user and accessory alike,
	// so they reach baseDB in a single batch.
	staged *versiondb.Database

	arena   []arenaEntry
	nextGen uint64
}

func NewStorage(db database.Database) *Storage {
	return &Storage{
		baseDB:      db,
		userDB:      prefixdb.New(userStatePrefix, db),
		accessoryDB: prefixdb.New(accessoryStatePrefix, db),
	}
}

// BeginSlot opens the outermost scope. Only one slot may be open at a time.
func (s *Storage) BeginSlot() (*Checkpoint, error) {
	if len(s.arena) != 0 {
		return nil, ErrSlotOpen
	}
	s.staged = versiondb.New(s.baseDB)
	return &Checkpoint{layer: s.push(SlotLevel, prefixdb.New(userStatePrefix, s.staged))}, nil
}

// Finalize commits [slot] and then runs [accessory] against the accessory
// state, passing it the digest the user state will have. Accessory writes
// never affect the state digest. The slot and the accessory writes are
// written together: if [accessory] fails neither is committed and the slot is
// dropped.
func (s *Storage) Finalize(slot *Checkpoint, accessory func(digest ids.ID, rw ReadWriter) error) error {
	if slot.level != SlotLevel {
		return ErrWrongLevel
	}
	if err := slot.commit(); err != nil {
		return err
	}
	staged := s.staged
	s.staged = nil

	if accessory != nil {
		digest, err := digestOf(prefixdb.New(userStatePrefix, staged))
		if err != nil {
			staged.Abort()
			return err
		}
		if err := accessory(digest, prefixdb.New(accessoryStatePrefix, staged)); err != nil {
			staged.Abort()
			return fmt.Errorf("failed to write accessory state: %w", err)
		}
	}
	return staged.Commit()
}

// Abort drops every open scope. The committed state is left untouched.
func (s *Storage) Abort() {
	for i := len(s.arena) - 1; i >= 0; i-- {
		s.arena[i].db.Abort()
	}
	s.arena = s.arena[:0]
	if s.staged != nil {
		s.staged.Abort()
		s.staged = nil
	}
}

// Open reports whether any scope is currently open.
func (s *Storage) Open() bool { return len(s.arena) != 0 }

// Reader returns the committed user state.
func (s *Storage) Reader() Reader { return s.userDB }

// AccessoryReader returns the committed accessory state.
func (s *Storage) AccessoryReader() Reader { return s.accessoryDB }

// StateDigest hashes every committed user key/value pair in key order.
func (s *Storage) StateDigest() (ids.ID, error) {
	return digestOf(s.userDB)
}

func digestOf(db database.Iteratee) (ids.ID, error) {
	it := db.NewIterator()
	defer it.Release()

	h := sha256.New()
	var lenBuf [4]byte
	for it.Next() {
		for _, b := range [][]byte{it.Key(), it.Value()} {
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
			_, _ = h.Write(lenBuf[:])
			_, _ = h.Write(b)
		}
	}
	if err := it.Error(); err != nil {
		return ids.Empty, err
	}
	var digest ids.ID
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// Close closes the underlying base database
func (s *Storage) Close() error {
	s.Abort()
	return s.baseDB.Close()
}

func (s *Storage) push(level Level, under database.Database) *layer {
	s.nextGen++
	s.arena = append(s.arena, arenaEntry{
		level: level,
		gen:   s.nextGen,
		db:    versiondb.New(under),
	})
	return &layer{
		storage: s,
		idx:     len(s.arena) - 1,
		gen:     s.nextGen,
		level:   level,
	}
}

func (s *Storage) pop() {
	s.arena = s.arena[:len(s.arena)-1]
}
