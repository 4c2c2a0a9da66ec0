// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accounts

import (
	"errors"
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	safemath "github.com/ava-labs/avalanchego/utils/math"

	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/state"
)

const codecVersion = 0

var (
	accountCodec codec.Manager

	credentialPrefix = []byte("accounts/credential/")
	addressPrefix    = []byte("accounts/address/")

	ErrBadNonce       = errors.New("bad nonce")
	ErrAddressTaken   = errors.New("address is bound to another credential")
	ErrUnknownAccount = errors.New("unknown account")
)

func init() {
	accountCodec = codec.NewDefaultManager()
	if err := accountCodec.RegisterCodec(codecVersion, linearcodec.NewDefault()); err != nil {
		panic(err)
	}
}

// Account is what the rollup knows about a credential.
type Account struct {
	Address ids.ShortID `serialize:"true" json:"address"`
	// Nonce is the nonce the next transaction of the credential must carry.
	Nonce uint64 `serialize:"true" json:"nonce"`
}

// Config is the accounts genesis: credentials bound to addresses up front.
type Config struct {
	Accounts []Entry `mapstructure:"accounts"`
}

type Entry struct {
	CredentialID string `mapstructure:"credential_id"`
	Address      string `mapstructure:"address"`
}

// Module binds credentials to addresses and guards against replay.
type Module struct {
	log log.Logger
}

func New() *Module {
	return &Module{log: log.New("module", "accounts")}
}

func (m *Module) SetLogger(l log.Logger) { m.log = l }

func (m *Module) InitGenesis(cfg Config, rw state.ReadWriter) error {
	for _, e := range cfg.Accounts {
		credID, err := ids.FromString(e.CredentialID)
		if err != nil {
			return fmt.Errorf("invalid credential id %q: %w", e.CredentialID, err)
		}
		addr, err := ids.ShortFromString(e.Address)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", e.Address, err)
		}
		if err := m.bind(credID, addr, rw); err != nil {
			return err
		}
	}
	return nil
}

func credentialKey(credID ids.ID) []byte {
	return append(append([]byte{}, credentialPrefix...), credID[:]...)
}

func addressKey(addr ids.ShortID) []byte {
	return append(append([]byte{}, addressPrefix...), addr[:]...)
}

// Get returns the account of [credID], or ErrUnknownAccount.
func (m *Module) Get(credID ids.ID, r state.Reader) (Account, error) {
	b, err := r.Get(credentialKey(credID))
	if err == database.ErrNotFound {
		return Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, credID)
	}
	if err != nil {
		return Account{}, err
	}
	acc := Account{}
	if _, err := accountCodec.Unmarshal(b, &acc); err != nil {
		return Account{}, err
	}
	return acc, nil
}

func (m *Module) put(credID ids.ID, acc Account, rw state.ReadWriter) error {
	b, err := accountCodec.Marshal(codecVersion, &acc)
	if err != nil {
		return err
	}
	return rw.Put(credentialKey(credID), b)
}

// bind creates the account of [credID] at [addr]. An address belongs to at most
// one credential.
func (m *Module) bind(credID ids.ID, addr ids.ShortID, rw state.ReadWriter) error {
	owner, err := rw.Get(addressKey(addr))
	switch {
	case err == database.ErrNotFound:
	case err != nil:
		return err
	case toID(owner) != credID:
		return fmt.Errorf("%w: %s", ErrAddressTaken, addr)
	}
	if err := rw.Put(addressKey(addr), credID[:]); err != nil {
		return err
	}
	return m.put(credID, Account{Address: addr}, rw)
}

func toID(b []byte) ids.ID {
	id := ids.ID{}
	copy(id[:], b)
	return id
}

// ResolveSenderAddress returns the address [cred] acts as. A credential seen
// for the first time is bound to its default address.
func (m *Module) ResolveSenderAddress(cred auth.Credential, rw state.ReadWriter) (ids.ShortID, error) {
	acc, err := m.Get(cred.ID(), rw)
	if err == nil {
		return acc.Address, nil
	}
	if !errors.Is(err, ErrUnknownAccount) {
		return ids.ShortEmpty, err
	}

	addr, err := cred.DefaultAddress()
	if err != nil {
		return ids.ShortEmpty, err
	}
	if err := m.bind(cred.ID(), addr, rw); err != nil {
		return ids.ShortEmpty, err
	}
	m.log.Debug("bound new credential", "credential", cred.ID(), "address", addr)
	return addr, nil
}

func (m *Module) nonce(credID ids.ID, r state.Reader) (uint64, error) {
	acc, err := m.Get(credID, r)
	if errors.Is(err, ErrUnknownAccount) {
		return 0, nil
	}
	return acc.Nonce, err
}

// CheckUniqueness fails unless [tx] carries the next nonce of its credential.
// It never writes.
func (m *Module) CheckUniqueness(tx *auth.AuthenticatedTx, r state.Reader) error {
	expected, err := m.nonce(tx.Credential.ID(), r)
	if err != nil {
		return err
	}
	if tx.Nonce() != expected {
		return fmt.Errorf("%w: expected %d but found %d", ErrBadNonce, expected, tx.Nonce())
	}
	return nil
}

// MarkTxAttempted consumes the nonce of [tx]. The credential must have been
// resolved before.
func (m *Module) MarkTxAttempted(tx *auth.AuthenticatedTx, rw state.ReadWriter) error {
	credID := tx.Credential.ID()
	acc, err := m.Get(credID, rw)
	if err != nil {
		return err
	}
	acc.Nonce, err = safemath.Add64(acc.Nonce, 1)
	if err != nil {
		return err
	}
	return m.put(credID, acc, rw)
}
