// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bank

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/wrappers"

	"github.com/informalsystems/sov-rollup-starter/state"
)

const (
	codecVersion = 0

	// CallGas is charged for every call before it is decoded.
	CallGas uint64 = 100
	// CallGasPerByte is charged for every byte of the encoded call.
	CallGasPerByte uint64 = 1
	// TransferGas is charged on top of CallGas by a transfer.
	TransferGas uint64 = 300
)

var (
	callCodec codec.Manager

	errNilMessage = errors.New("nil call message")
	errZeroAmount = errors.New("transfer of zero")

	_ Message = (*Transfer)(nil)
)

func init() {
	c := linearcodec.NewDefault()
	callCodec = codec.NewDefaultManager()

	errs := wrappers.Errs{}
	errs.Add(
		c.RegisterType(&Transfer{}),
	)
	errs.Add(
		callCodec.RegisterCodec(codecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}

// Message is a call the bank executes on behalf of a sender.
type Message interface {
	execute(m *Module, sender ids.ShortID, ws *state.WorkingSet) error
}

// CallMessage is the wire form of a bank call.
type CallMessage struct {
	Message Message `serialize:"true"`
}

// Transfer moves Amount from the sender to To.
type Transfer struct {
	To     ids.ShortID `serialize:"true" json:"to"`
	Amount uint64      `serialize:"true" json:"amount"`
}

func (t *Transfer) execute(m *Module, sender ids.ShortID, ws *state.WorkingSet) error {
	if t.Amount == 0 {
		return errZeroAmount
	}
	if err := ws.GasMeter().Charge(TransferGas); err != nil {
		return err
	}
	return m.Transfer(sender, t.To, t.Amount, ws)
}

// EncodeCall returns the runtime message carrying [msg].
func EncodeCall(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, errNilMessage
	}
	return callCodec.Marshal(codecVersion, &CallMessage{Message: msg})
}

// DecodeCall is the inverse of EncodeCall.
func DecodeCall(b []byte) (Message, error) {
	cm := CallMessage{}
	if _, err := callCodec.Unmarshal(b, &cm); err != nil {
		return nil, err
	}
	if cm.Message == nil {
		return nil, errNilMessage
	}
	return cm.Message, nil
}

// Call charges for and executes an encoded bank call. Writes go to [ws]; the
// caller reverts it if an error is returned.
func (m *Module) Call(call []byte, sender ids.ShortID, ws *state.WorkingSet) error {
	meter := ws.GasMeter()
	if err := meter.Charge(CallGas); err != nil {
		return err
	}
	if err := meter.Charge(CallGasPerByte * uint64(len(call))); err != nil {
		return err
	}
	msg, err := DecodeCall(call)
	if err != nil {
		return fmt.Errorf("couldn't decode bank call: %w", err)
	}
	if err := msg.execute(m, sender, ws); err != nil {
		return err
	}
	m.log.Debug("executed call", "sender", sender, "msg", fmt.Sprintf("%T", msg))
	return nil
}
