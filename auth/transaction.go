// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auth

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/crypto"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// RawTx is a transaction exactly as it was read from the DA layer.
type RawTx struct {
	Data []byte `serialize:"true"`
}

// Call is the runtime message a transaction carries. It is opaque to the
// admission pipeline and decoded by the dispatcher.
type Call []byte

// UnsignedTx is the part of a transaction covered by the signature.
type UnsignedTx struct {
	RuntimeMsg []byte `serialize:"true" json:"runtimeMsg"`
	ChainID    uint64 `serialize:"true" json:"chainID"`
	Nonce      uint64 `serialize:"true" json:"nonce"`
	// MaxFee is the most the sender is willing to pay for the transaction.
	MaxFee uint64 `serialize:"true" json:"maxFee"`
	// GasLimit bounds the gas the transaction may use. Zero means the bound
	// is derived from MaxFee.
	GasLimit uint64 `serialize:"true" json:"gasLimit"`
}

// Bytes returns the signed message.
func (u *UnsignedTx) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, u)
}

// Transaction is the payload of the ModAuth scheme.
type Transaction struct {
	Signature [crypto.SECP256K1RSigLen]byte `serialize:"true"`
	PubKey    []byte                        `serialize:"true"`
	Unsigned  UnsignedTx                    `serialize:"true"`
}

// Sign returns [unsigned] signed by [key].
func Sign(key crypto.PrivateKey, unsigned UnsignedTx) (*Transaction, error) {
	msg, err := unsigned.Bytes()
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(msg)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		PubKey:   key.PublicKey().Bytes(),
		Unsigned: unsigned,
	}
	copy(tx.Signature[:], sig)
	return tx, nil
}

func (t *Transaction) Bytes() ([]byte, error) {
	return Codec.Marshal(CodecVersion, t)
}

// Credential identifies the signer of a transaction.
type Credential struct {
	PubKey []byte
}

// ID is the key replay protection is tracked under.
func (c Credential) ID() ids.ID {
	return ids.ID(hashing.ComputeHash256Array(c.PubKey))
}

// DefaultAddress is the address a credential is bound to unless it was
// registered with another one.
func (c Credential) DefaultAddress() (ids.ShortID, error) {
	pk, err := factory.ToPublicKey(c.PubKey)
	if err != nil {
		return ids.ShortEmpty, err
	}
	return pk.Address(), nil
}

// AuthenticatedTx is a decoded transaction whose signature has been checked.
type AuthenticatedTx struct {
	// Hash of the canonical encoding of the scheme payload.
	Hash       ids.ID
	Credential Credential
	Unsigned   UnsignedTx
}

func (tx *AuthenticatedTx) Nonce() uint64    { return tx.Unsigned.Nonce }
func (tx *AuthenticatedTx) MaxFee() uint64   { return tx.Unsigned.MaxFee }
func (tx *AuthenticatedTx) GasLimit() uint64 { return tx.Unsigned.GasLimit }
