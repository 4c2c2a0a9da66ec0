// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auth

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/crypto"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

var (
	factory crypto.FactorySECP256K1R

	errBadSignature = errors.New("signature does not match public key")
	errNilScheme    = errors.New("nil authentication scheme")

	_ Scheme = (*ModAuth)(nil)
)

// Scheme is an authentication scheme a raw transaction is tagged with. The set
// of schemes is closed: every implementation is registered in the codec.
type Scheme interface {
	authenticate(a *Authenticator) (*AuthenticatedTx, Call, error)
}

// ModAuth carries a module-system transaction.
type ModAuth struct {
	Payload []byte `serialize:"true"`
}

// envelope is the wire form of a raw transaction. The codec writes the type ID
// of [Scheme] ahead of its fields, which is the scheme tag.
type envelope struct {
	Scheme Scheme `serialize:"true"`
}

// FatalKind enumerates the errors a sequencer is held accountable for.
type FatalKind uint8

const (
	DeserializationFailed FatalKind = iota
	SigVerificationFailed
	InvalidChainID
)

func (k FatalKind) String() string {
	switch k {
	case DeserializationFailed:
		return "deserialization failed"
	case SigVerificationFailed:
		return "signature verification failed"
	case InvalidChainID:
		return "invalid chain id"
	default:
		return fmt.Sprintf("fatal(%d)", uint8(k))
	}
}

// FatalError is returned when a raw transaction could never have been valid.
// No sender can be charged for it.
type FatalError struct {
	Kind FatalKind
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(kind FatalKind, err error) *FatalError {
	return &FatalError{Kind: kind, Err: err}
}

// Encode wraps [scheme] into a raw transaction.
func Encode(scheme Scheme) (RawTx, error) {
	if scheme == nil {
		return RawTx{}, errNilScheme
	}
	data, err := Codec.Marshal(CodecVersion, &envelope{Scheme: scheme})
	if err != nil {
		return RawTx{}, err
	}
	return RawTx{Data: data}, nil
}

// EncodeMod wraps an encoded Transaction into a ModAuth raw transaction.
func EncodeMod(payload []byte) (RawTx, error) {
	return Encode(&ModAuth{Payload: payload})
}

// Decode is the inverse of Encode.
func Decode(raw RawTx) (Scheme, error) {
	env := envelope{}
	if _, err := Codec.Unmarshal(raw.Data, &env); err != nil {
		return nil, err
	}
	if env.Scheme == nil {
		return nil, errNilScheme
	}
	return env.Scheme, nil
}

// NewSignedRawTx signs [unsigned] and encodes it with the ModAuth scheme.
func NewSignedRawTx(key crypto.PrivateKey, unsigned UnsignedTx) (RawTx, error) {
	tx, err := Sign(key, unsigned)
	if err != nil {
		return RawTx{}, err
	}
	payload, err := tx.Bytes()
	if err != nil {
		return RawTx{}, err
	}
	return EncodeMod(payload)
}

// Authenticator turns raw transactions into authenticated ones for one chain.
type Authenticator struct {
	chainID uint64
}

func NewAuthenticator(chainID uint64) *Authenticator {
	return &Authenticator{chainID: chainID}
}

// Authenticate decodes [raw] and checks its signature. Every error it returns
// is a *FatalError.
func (a *Authenticator) Authenticate(raw RawTx) (*AuthenticatedTx, Call, error) {
	scheme, err := Decode(raw)
	if err != nil {
		return nil, nil, fatal(DeserializationFailed, err)
	}
	return scheme.authenticate(a)
}

func (m *ModAuth) authenticate(a *Authenticator) (*AuthenticatedTx, Call, error) {
	tx := Transaction{}
	if _, err := Codec.Unmarshal(m.Payload, &tx); err != nil {
		return nil, nil, fatal(DeserializationFailed, err)
	}

	pk, err := factory.ToPublicKey(tx.PubKey)
	if err != nil {
		return nil, nil, fatal(SigVerificationFailed, err)
	}
	msg, err := tx.Unsigned.Bytes()
	if err != nil {
		return nil, nil, fatal(DeserializationFailed, err)
	}
	if !pk.Verify(msg, tx.Signature[:]) {
		return nil, nil, fatal(SigVerificationFailed, errBadSignature)
	}
	if tx.Unsigned.ChainID != a.chainID {
		return nil, nil, fatal(
			InvalidChainID,
			fmt.Errorf("expected chain %d but found %d", a.chainID, tx.Unsigned.ChainID),
		)
	}

	return &AuthenticatedTx{
		Hash:       ids.ID(hashing.ComputeHash256Array(m.Payload)),
		Credential: Credential{PubKey: tx.PubKey},
		Unsigned:   tx.Unsigned,
	}, Call(tx.Unsigned.RuntimeMsg), nil
}
