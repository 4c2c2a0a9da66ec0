// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/rpc/v2"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/informalsystems/sov-rollup-starter/auth"
	"github.com/informalsystems/sov-rollup-starter/modules/accounts"
)

var errNoSlots = errors.New("no slot has been applied yet")

// NewHandler returns the JSON-RPC handler serving reads of [chain].
func NewHandler(chain *Chain) (http.Handler, error) {
	server := rpc.NewServer()
	codec := cjson.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(&Service{chain: chain}, Name)
}

// Service is the API service of a chain
type Service struct {
	chain *Chain
}

// AddressArgs are the arguments to calls taking an address
type AddressArgs struct {
	Address string `json:"address"`
}

// GetBalanceReply is the reply from GetBalance
type GetBalanceReply struct {
	Balance cjson.Uint64 `json:"balance"`
}

// GetBalance returns the balance of [args.Address]
func (s *Service) GetBalance(_ *http.Request, args *AddressArgs, reply *GetBalanceReply) error {
	addr, err := ids.ShortFromString(args.Address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", args.Address, err)
	}
	balance, err := s.chain.Balance(addr)
	if err != nil {
		return err
	}
	reply.Balance = cjson.Uint64(balance)
	return nil
}

// GetSequencerReply is the reply from GetSequencer
type GetSequencerReply struct {
	Address   string       `json:"address"`
	DaAddress string       `json:"daAddress"`
	Stake     cjson.Uint64 `json:"stake"`
}

// GetSequencer returns the sequencer publishing from the DA address
// [args.Address]
func (s *Service) GetSequencer(_ *http.Request, args *AddressArgs, reply *GetSequencerReply) error {
	daAddr, err := ids.ShortFromString(args.Address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", args.Address, err)
	}
	seq, err := s.chain.Sequencer(daAddr)
	if err != nil {
		return err
	}
	reply.Address = seq.Address.String()
	reply.DaAddress = seq.DaAddress.String()
	reply.Stake = cjson.Uint64(seq.Stake)
	return nil
}

// GetAccountReply is the reply from GetAccount
type GetAccountReply struct {
	// Exists is false until a transaction of the credential was executed or
	// it was bound at genesis.
	Exists  bool         `json:"exists"`
	Address string       `json:"address"`
	Nonce   cjson.Uint64 `json:"nonce"`
}

// GetAccount returns the account of the credential [args.ID]
func (s *Service) GetAccount(_ *http.Request, args *IDArgs, reply *GetAccountReply) error {
	acc, err := s.chain.Account(args.ID)
	if errors.Is(err, accounts.ErrUnknownAccount) {
		return nil
	}
	if err != nil {
		return err
	}
	reply.Exists = true
	reply.Address = acc.Address.String()
	reply.Nonce = cjson.Uint64(acc.Nonce)
	return nil
}

// GetSlotArgs are the arguments to GetSlot
type GetSlotArgs struct {
	// Latest returns the last applied slot instead of the one at Height
	Latest bool         `json:"latest"`
	Height cjson.Uint64 `json:"height"`
}

// GetSlotReply is the reply from GetSlot
type GetSlotReply struct {
	Height          cjson.Uint64 `json:"height"`
	PreStateDigest  ids.ID       `json:"preStateDigest"`
	PostStateDigest ids.ID       `json:"postStateDigest"`
	BatchIDs        []ids.ID     `json:"batchIDs"`
}

// GetSlot returns the index of an applied slot
func (s *Service) GetSlot(_ *http.Request, args *GetSlotArgs, reply *GetSlotReply) error {
	height := uint64(args.Height)
	if args.Latest {
		last, err := s.chain.LastSlot()
		if err == database.ErrNotFound {
			return errNoSlots
		}
		if err != nil {
			return err
		}
		height = last
	}
	idx, err := s.chain.Slot(height)
	if err != nil {
		return fmt.Errorf("couldn't get slot %d: %w", height, err)
	}
	reply.Height = cjson.Uint64(idx.Height)
	reply.PreStateDigest = idx.PreStateDigest
	reply.PostStateDigest = idx.PostStateDigest
	reply.BatchIDs = idx.BatchIDs
	return nil
}

// IDArgs are the arguments to calls taking an ID
type IDArgs struct {
	ID ids.ID `json:"id"`
}

// GetBatchReceiptReply is the reply from GetBatchReceipt
type GetBatchReceiptReply struct {
	Receipt BatchReceipt `json:"receipt"`
}

// GetBatchReceipt returns the receipt of batch [args.ID]
func (s *Service) GetBatchReceipt(_ *http.Request, args *IDArgs, reply *GetBatchReceiptReply) error {
	receipt, err := s.chain.BatchReceipt(args.ID)
	if err != nil {
		return fmt.Errorf("couldn't get batch %s: %w", args.ID, err)
	}
	reply.Receipt = *receipt
	return nil
}

// GetTxReceiptReply is the reply from GetTxReceipt
type GetTxReceiptReply struct {
	Receipt TxReceipt `json:"receipt"`
}

// GetTxReceipt returns the receipt of the last admitted transaction with hash
// [args.ID]
func (s *Service) GetTxReceipt(_ *http.Request, args *IDArgs, reply *GetTxReceiptReply) error {
	receipt, err := s.chain.TxReceipt(args.ID)
	if err != nil {
		return fmt.Errorf("couldn't get tx %s: %w", args.ID, err)
	}
	reply.Receipt = *receipt
	return nil
}

// SubmitSlotArgs are the arguments to SubmitSlot
type SubmitSlotArgs struct {
	Height  cjson.Uint64 `json:"height"`
	Batches []APIBatch   `json:"batches"`
}

// APIBatch is a batch whose transactions are hex encoded
type APIBatch struct {
	Sequencer string   `json:"sequencer"`
	Txs       []string `json:"txs"`
}

// Slot decodes [args] into a slot
func (args *SubmitSlotArgs) Slot() (*Slot, error) {
	slot := &Slot{
		Height:  uint64(args.Height),
		Batches: make([]Batch, len(args.Batches)),
	}
	for i, b := range args.Batches {
		daAddr, err := ids.ShortFromString(b.Sequencer)
		if err != nil {
			return nil, fmt.Errorf("invalid sequencer %q: %w", b.Sequencer, err)
		}
		batch := Batch{Sequencer: daAddr}
		for j, tx := range b.Txs {
			data, err := formatting.Decode(formatting.Hex, tx)
			if err != nil {
				return nil, fmt.Errorf("invalid tx %d of batch %d: %w", j, i, err)
			}
			batch.Txs = append(batch.Txs, auth.RawTx{Data: data})
		}
		slot.Batches[i] = batch
	}
	return slot, nil
}

// SubmitSlotReply is the reply from SubmitSlot
type SubmitSlotReply struct {
	PostStateDigest ids.ID    `json:"postStateDigest"`
	Outcomes        []Outcome `json:"outcomes"`
}

// SubmitSlot applies the slot [args]
func (s *Service) SubmitSlot(_ *http.Request, args *SubmitSlotArgs, reply *SubmitSlotReply) error {
	slot, err := args.Slot()
	if err != nil {
		return err
	}
	receipt, err := s.chain.ApplySlot(slot)
	if err != nil {
		return err
	}
	reply.PostStateDigest = receipt.PostStateDigest
	reply.Outcomes = make([]Outcome, len(receipt.Batches))
	for i, b := range receipt.Batches {
		reply.Outcomes[i] = b.Outcome
	}
	return nil
}
